// Package tensor provides batched float64 arrays with numpy-style
// trailing-aligned broadcasting. An Array is a flat row-major buffer plus
// a shape; every operation is pure and returns a new Array. Dense linear
// algebra over the trailing one or two axes (matmul, Cholesky, triangular
// solves) is gonum-backed and batched over the leading axes.
package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Shape is the dimension list of an Array, outermost first.
type Shape []int

// Size returns the number of elements a Shape addresses.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Clone returns a copy of s.
func (s Shape) Clone() Shape {
	c := make(Shape, len(s))
	copy(c, s)
	return c
}

// Equal reports whether s and t have identical dimensions.
func (s Shape) Equal(t Shape) bool {
	if len(s) != len(t) {
		return false
	}
	for i := range s {
		if s[i] != t[i] {
			return false
		}
	}
	return true
}

// Array is an immutable batched float64 array.
type Array struct {
	shape Shape
	data  []float64
}

// New creates an Array with the given shape over a copy of data.
func New(shape Shape, data []float64) (*Array, error) {
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension in shape %v", shape)
		}
	}
	if len(data) != shape.Size() {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, shape.Size(), len(data))
	}
	d := make([]float64, len(data))
	copy(d, data)
	return &Array{shape: shape.Clone(), data: d}, nil
}

// Zeros creates an all-zero Array of the given shape.
func Zeros(shape Shape) *Array {
	return &Array{shape: shape.Clone(), data: make([]float64, shape.Size())}
}

// Full creates an Array of the given shape filled with v.
func Full(shape Shape, v float64) *Array {
	a := Zeros(shape)
	for i := range a.data {
		a.data[i] = v
	}
	return a
}

// Scalar creates a rank-0 Array holding v.
func Scalar(v float64) *Array {
	return &Array{shape: Shape{}, data: []float64{v}}
}

// FromSlice creates a rank-1 Array over a copy of v.
func FromSlice(v []float64) *Array {
	d := make([]float64, len(v))
	copy(d, v)
	return &Array{shape: Shape{len(v)}, data: d}
}

// Shape returns a copy of the Array's shape.
func (a *Array) Shape() Shape { return a.shape.Clone() }

// Rank returns the number of axes.
func (a *Array) Rank() int { return len(a.shape) }

// Size returns the number of elements.
func (a *Array) Size() int { return len(a.data) }

// Dim returns the size of the given axis; negative axes count from the end.
func (a *Array) Dim(axis int) int {
	return a.shape[a.axis(axis)]
}

// At returns the element at a full index.
func (a *Array) At(ix ...int) float64 {
	if len(ix) != len(a.shape) {
		panic(fmt.Sprintf("tensor: index rank %d against shape %v", len(ix), a.shape))
	}
	off := 0
	for d, st := range strides(a.shape) {
		off += ix[d] * st
	}
	return a.data[off]
}

// Data returns a copy of the flat row-major buffer.
func (a *Array) Data() []float64 {
	d := make([]float64, len(a.data))
	copy(d, a.data)
	return d
}

// axis normalizes a possibly negative axis and panics if out of range.
func (a *Array) axis(axis int) int {
	n := len(a.shape)
	if axis < 0 {
		axis += n
	}
	if axis < 0 || axis >= n {
		panic(fmt.Sprintf("tensor: axis %d out of range for rank %d", axis, n))
	}
	return axis
}

// strides returns row-major element strides for a shape.
func strides(s Shape) []int {
	st := make([]int, len(s))
	acc := 1
	for d := len(s) - 1; d >= 0; d-- {
		st[d] = acc
		acc *= s[d]
	}
	return st
}

// BroadcastShape computes the common broadcast of the given shapes,
// aligning from the trailing axis. A dimension broadcasts against an
// equal dimension or against 1.
func BroadcastShape(shapes ...Shape) (Shape, error) {
	rank := 0
	for _, s := range shapes {
		if len(s) > rank {
			rank = len(s)
		}
	}
	out := make(Shape, rank)
	for i := range out {
		out[i] = 1
	}
	for _, s := range shapes {
		off := rank - len(s)
		for i, d := range s {
			j := off + i
			switch {
			case out[j] == 1:
				out[j] = d
			case d == 1 || d == out[j]:
			default:
				return nil, fmt.Errorf("cannot broadcast shapes %v", shapes)
			}
		}
	}
	return out, nil
}

// broadcastStrides returns element strides of src aligned to dst, with 0
// where src is broadcast along an axis.
func broadcastStrides(src, dst Shape) ([]int, error) {
	if len(src) > len(dst) {
		return nil, fmt.Errorf("cannot broadcast %v to %v", src, dst)
	}
	st := make([]int, len(dst))
	srcSt := strides(src)
	off := len(dst) - len(src)
	for i, d := range src {
		switch {
		case d == dst[off+i]:
			st[off+i] = srcSt[i]
		case d == 1:
			st[off+i] = 0
		default:
			return nil, fmt.Errorf("cannot broadcast %v to %v", src, dst)
		}
	}
	return st, nil
}

// BroadcastTo materializes a with every axis expanded to the given shape.
func (a *Array) BroadcastTo(shape Shape) (*Array, error) {
	if a.shape.Equal(shape) {
		return a, nil
	}
	st, err := broadcastStrides(a.shape, shape)
	if err != nil {
		return nil, err
	}
	out := Zeros(shape)
	ix := make([]int, len(shape))
	off := 0
	for i := range out.data {
		out.data[i] = a.data[off]
		for d := len(shape) - 1; d >= 0; d-- {
			ix[d]++
			off += st[d]
			if ix[d] < shape[d] {
				break
			}
			ix[d] = 0
			off -= st[d] * shape[d]
		}
	}
	return out, nil
}

// Reshape returns a with the same elements under a new shape.
func (a *Array) Reshape(shape Shape) (*Array, error) {
	if shape.Size() != len(a.data) {
		return nil, fmt.Errorf("cannot reshape %v to %v", a.shape, shape)
	}
	return &Array{shape: shape.Clone(), data: a.data}, nil
}

// binop applies f elementwise under broadcasting.
func binop(a, b *Array, f func(x, y float64) float64) (*Array, error) {
	shape, err := BroadcastShape(a.shape, b.shape)
	if err != nil {
		return nil, err
	}
	sa, _ := broadcastStrides(a.shape, shape)
	sb, _ := broadcastStrides(b.shape, shape)
	out := Zeros(shape)
	ix := make([]int, len(shape))
	offA, offB := 0, 0
	for i := range out.data {
		out.data[i] = f(a.data[offA], b.data[offB])
		for d := len(shape) - 1; d >= 0; d-- {
			ix[d]++
			offA += sa[d]
			offB += sb[d]
			if ix[d] < shape[d] {
				break
			}
			ix[d] = 0
			offA -= sa[d] * shape[d]
			offB -= sb[d] * shape[d]
		}
	}
	return out, nil
}

// Add returns a + b elementwise with broadcasting.
func (a *Array) Add(b *Array) (*Array, error) {
	return binop(a, b, func(x, y float64) float64 { return x + y })
}

// Sub returns a - b elementwise with broadcasting.
func (a *Array) Sub(b *Array) (*Array, error) {
	return binop(a, b, func(x, y float64) float64 { return x - y })
}

// Mul returns a * b elementwise with broadcasting.
func (a *Array) Mul(b *Array) (*Array, error) {
	return binop(a, b, func(x, y float64) float64 { return x * y })
}

// unop applies f elementwise.
func (a *Array) unop(f func(float64) float64) *Array {
	out := Zeros(a.shape)
	for i, v := range a.data {
		out.data[i] = f(v)
	}
	return out
}

// Scale returns c * a.
func (a *Array) Scale(c float64) *Array {
	return a.unop(func(x float64) float64 { return c * x })
}

// Shift returns a + c.
func (a *Array) Shift(c float64) *Array {
	return a.unop(func(x float64) float64 { return x + c })
}

// Log returns the elementwise natural log.
func (a *Array) Log() *Array {
	return a.unop(math.Log)
}

// Lgamma returns the elementwise log-gamma function.
func (a *Array) Lgamma() *Array {
	return a.unop(func(x float64) float64 {
		v, _ := math.Lgamma(x)
		return v
	})
}

// Square returns a * a elementwise.
func (a *Array) Square() *Array {
	return a.unop(func(x float64) float64 { return x * x })
}

// SumLast sums over the trailing axis, reducing rank by one.
func (a *Array) SumLast() *Array {
	if len(a.shape) == 0 {
		panic("tensor: SumLast on rank-0 array")
	}
	n := a.shape[len(a.shape)-1]
	out := Zeros(a.shape[:len(a.shape)-1])
	if n == 0 {
		return out
	}
	for i := range out.data {
		out.data[i] = floats.Sum(a.data[i*n : (i+1)*n])
	}
	return out
}

// Cat concatenates arrays along one axis. All shapes must agree on every
// other axis. Negative axes count from the end.
func Cat(parts []*Array, axis int) (*Array, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("cat of no arrays")
	}
	ax := parts[0].axis(axis)
	shape := parts[0].shape.Clone()
	for _, p := range parts[1:] {
		if len(p.shape) != len(shape) {
			return nil, fmt.Errorf("cat rank mismatch: %v vs %v", shape, p.shape)
		}
		for d := range shape {
			if d == ax {
				continue
			}
			if p.shape[d] != shape[d] {
				return nil, fmt.Errorf("cat shape mismatch on axis %d: %v vs %v", d, shape, p.shape)
			}
		}
		shape[ax] += p.shape[ax]
	}
	out := Zeros(shape)
	outer := shape[:ax].Size()
	inner := shape[ax+1:].Size()
	pos := 0
	for o := 0; o < outer; o++ {
		for _, p := range parts {
			blk := p.shape[ax] * inner
			copy(out.data[pos:pos+blk], p.data[o*blk:(o+1)*blk])
			pos += blk
		}
	}
	return out, nil
}

// Index selects by integer index along a leading run of axes, returning
// the remaining sub-array.
func (a *Array) Index(ix ...int) (*Array, error) {
	if len(ix) > len(a.shape) {
		return nil, fmt.Errorf("index rank %d exceeds array rank %d", len(ix), len(a.shape))
	}
	off := 0
	st := strides(a.shape)
	for d, i := range ix {
		if i < 0 {
			i += a.shape[d]
		}
		if i < 0 || i >= a.shape[d] {
			return nil, fmt.Errorf("index %d out of range for axis %d of shape %v", ix[d], d, a.shape)
		}
		off += i * st[d]
	}
	rest := a.shape[len(ix):].Clone()
	out := Zeros(rest)
	copy(out.data, a.data[off:off+rest.Size()])
	return out, nil
}

// SliceAxis returns the half-open range [start, stop) along one axis.
func (a *Array) SliceAxis(axis, start, stop int) (*Array, error) {
	ax := a.axis(axis)
	n := a.shape[ax]
	if start < 0 || stop < start || stop > n {
		return nil, fmt.Errorf("slice [%d:%d) out of range for axis %d of shape %v", start, stop, ax, a.shape)
	}
	shape := a.shape.Clone()
	shape[ax] = stop - start
	out := Zeros(shape)
	outer := a.shape[:ax].Size()
	inner := a.shape[ax+1:].Size()
	for o := 0; o < outer; o++ {
		src := (o*n + start) * inner
		dst := o * (stop - start) * inner
		copy(out.data[dst:dst+(stop-start)*inner], a.data[src:src+(stop-start)*inner])
	}
	return out, nil
}

// PadAxis zero-pads one axis by left entries before and right after.
func (a *Array) PadAxis(axis, left, right int) (*Array, error) {
	if left < 0 || right < 0 {
		return nil, fmt.Errorf("negative pad (%d, %d)", left, right)
	}
	ax := a.axis(axis)
	n := a.shape[ax]
	shape := a.shape.Clone()
	shape[ax] = left + n + right
	out := Zeros(shape)
	outer := a.shape[:ax].Size()
	inner := a.shape[ax+1:].Size()
	for o := 0; o < outer; o++ {
		src := o * n * inner
		dst := (o*shape[ax] + left) * inner
		copy(out.data[dst:dst+n*inner], a.data[src:src+n*inner])
	}
	return out, nil
}

// SelectAxis gathers the given indices along one axis, in order.
func (a *Array) SelectAxis(axis int, ix []int) (*Array, error) {
	ax := a.axis(axis)
	n := a.shape[ax]
	shape := a.shape.Clone()
	shape[ax] = len(ix)
	out := Zeros(shape)
	outer := a.shape[:ax].Size()
	inner := a.shape[ax+1:].Size()
	for _, i := range ix {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("select index %d out of range for axis %d of shape %v", i, ax, a.shape)
		}
	}
	for o := 0; o < outer; o++ {
		for k, i := range ix {
			src := (o*n + i) * inner
			dst := (o*len(ix) + k) * inner
			copy(out.data[dst:dst+inner], a.data[src:src+inner])
		}
	}
	return out, nil
}

// TransposeLast2 swaps the two trailing axes.
func (a *Array) TransposeLast2() *Array {
	if len(a.shape) < 2 {
		panic(fmt.Sprintf("tensor: TransposeLast2 on shape %v", a.shape))
	}
	r := a.shape[len(a.shape)-2]
	c := a.shape[len(a.shape)-1]
	shape := a.shape.Clone()
	shape[len(shape)-2] = c
	shape[len(shape)-1] = r
	out := Zeros(shape)
	batch := a.shape[:len(a.shape)-2].Size()
	for b := 0; b < batch; b++ {
		src := a.data[b*r*c:]
		dst := out.data[b*r*c:]
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				dst[j*r+i] = src[i*c+j]
			}
		}
	}
	return out
}

// Diagonal extracts the diagonal of the trailing two axes, which must be
// square, reducing rank by one.
func (a *Array) Diagonal() (*Array, error) {
	if len(a.shape) < 2 {
		return nil, fmt.Errorf("diagonal of shape %v", a.shape)
	}
	n := a.shape[len(a.shape)-1]
	if a.shape[len(a.shape)-2] != n {
		return nil, fmt.Errorf("diagonal of non-square trailing axes %v", a.shape)
	}
	shape := a.shape[:len(a.shape)-1].Clone()
	out := Zeros(shape)
	batch := a.shape[:len(a.shape)-2].Size()
	for b := 0; b < batch; b++ {
		for i := 0; i < n; i++ {
			out.data[b*n+i] = a.data[b*n*n+i*n+i]
		}
	}
	return out, nil
}
