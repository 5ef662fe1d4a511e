package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// batchBlockStrides returns per-axis element strides of shape's batch
// prefix (everything before the trailing eventRank axes) aligned to the
// broadcast batch shape, 0 where the axis is broadcast.
func batchBlockStrides(shape Shape, eventRank int, batch Shape) ([]int, error) {
	prefix := shape[:len(shape)-eventRank]
	block := shape[len(shape)-eventRank:].Size()
	st, err := broadcastStrides(prefix, batch)
	if err != nil {
		return nil, err
	}
	for i := range st {
		st[i] *= block
	}
	return st, nil
}

// forEachBatch walks a batch shape in row-major order, tracking offsets
// for two operands with the given block strides.
func forEachBatch(batch Shape, stA, stB []int, f func(k, offA, offB int) error) error {
	ix := make([]int, len(batch))
	offA, offB := 0, 0
	size := batch.Size()
	for k := 0; k < size; k++ {
		if err := f(k, offA, offB); err != nil {
			return err
		}
		for d := len(batch) - 1; d >= 0; d-- {
			ix[d]++
			offA += stA[d]
			offB += stB[d]
			if ix[d] < batch[d] {
				break
			}
			ix[d] = 0
			offA -= stA[d] * batch[d]
			offB -= stB[d] * batch[d]
		}
	}
	return nil
}

// MatVec computes the batched matrix-vector product m @ v, where m has
// trailing shape (r, c) and v trailing shape (c,). Batch prefixes are
// broadcast against each other.
func MatVec(m, v *Array) (*Array, error) {
	if m.Rank() < 2 || v.Rank() < 1 {
		return nil, fmt.Errorf("matvec on shapes %v, %v", m.shape, v.shape)
	}
	r := m.shape[len(m.shape)-2]
	c := m.shape[len(m.shape)-1]
	if v.shape[len(v.shape)-1] != c {
		return nil, fmt.Errorf("matvec inner dimension mismatch: %v vs %v", m.shape, v.shape)
	}
	batch, err := BroadcastShape(m.shape[:len(m.shape)-2], v.shape[:len(v.shape)-1])
	if err != nil {
		return nil, err
	}
	out := Zeros(append(batch.Clone(), r))
	if r == 0 || c == 0 {
		return out, nil
	}
	stM, _ := batchBlockStrides(m.shape, 2, batch)
	stV, _ := batchBlockStrides(v.shape, 1, batch)
	err = forEachBatch(batch, stM, stV, func(k, offM, offV int) error {
		M := mat.NewDense(r, c, m.data[offM:offM+r*c])
		x := mat.NewVecDense(c, v.data[offV:offV+c])
		y := mat.NewVecDense(r, out.data[k*r:(k+1)*r])
		y.MulVec(M, x)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MatMul computes the batched matrix product a @ b with trailing shapes
// (r, k) and (k, c). Batch prefixes are broadcast against each other.
func MatMul(a, b *Array) (*Array, error) {
	if a.Rank() < 2 || b.Rank() < 2 {
		return nil, fmt.Errorf("matmul on shapes %v, %v", a.shape, b.shape)
	}
	r := a.shape[len(a.shape)-2]
	k := a.shape[len(a.shape)-1]
	c := b.shape[len(b.shape)-1]
	if b.shape[len(b.shape)-2] != k {
		return nil, fmt.Errorf("matmul inner dimension mismatch: %v vs %v", a.shape, b.shape)
	}
	batch, err := BroadcastShape(a.shape[:len(a.shape)-2], b.shape[:len(b.shape)-2])
	if err != nil {
		return nil, err
	}
	out := Zeros(append(batch.Clone(), r, c))
	if r == 0 || k == 0 || c == 0 {
		return out, nil
	}
	stA, _ := batchBlockStrides(a.shape, 2, batch)
	stB, _ := batchBlockStrides(b.shape, 2, batch)
	err = forEachBatch(batch, stA, stB, func(i, offA, offB int) error {
		A := mat.NewDense(r, k, a.data[offA:offA+r*k])
		B := mat.NewDense(k, c, b.data[offB:offB+k*c])
		C := mat.NewDense(r, c, out.data[i*r*c:(i+1)*r*c])
		C.Mul(A, B)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Gram computes the batched product xᵀ @ x for x with trailing shape
// (r, c), yielding trailing shape (c, c).
func Gram(x *Array) (*Array, error) {
	if x.Rank() < 2 {
		return nil, fmt.Errorf("gram on shape %v", x.shape)
	}
	r := x.shape[len(x.shape)-2]
	c := x.shape[len(x.shape)-1]
	batch := x.shape[:len(x.shape)-2].Clone()
	out := Zeros(append(batch.Clone(), c, c))
	if r == 0 || c == 0 {
		return out, nil
	}
	for b := 0; b < batch.Size(); b++ {
		X := mat.NewDense(r, c, x.data[b*r*c:(b+1)*r*c])
		S := mat.NewDense(c, c, out.data[b*c*c:(b+1)*c*c])
		S.Mul(X.T(), X)
	}
	return out, nil
}

// Cholesky factors each trailing (n, n) block as L @ Lᵀ and returns the
// lower-triangular factors. Fails if any block is not symmetric positive
// definite.
func Cholesky(a *Array) (*Array, error) {
	if a.Rank() < 2 {
		return nil, fmt.Errorf("cholesky on shape %v", a.shape)
	}
	n := a.shape[len(a.shape)-1]
	if a.shape[len(a.shape)-2] != n {
		return nil, fmt.Errorf("cholesky of non-square trailing axes %v", a.shape)
	}
	out := Zeros(a.shape.Clone())
	if n == 0 {
		return out, nil
	}
	batch := a.shape[:len(a.shape)-2].Size()
	tri := mat.NewTriDense(n, mat.Lower, nil)
	var ch mat.Cholesky
	for b := 0; b < batch; b++ {
		sym := mat.NewSymDense(n, a.data[b*n*n:(b+1)*n*n])
		if ok := ch.Factorize(sym); !ok {
			return nil, fmt.Errorf("matrix block %d is not positive definite", b)
		}
		ch.LTo(tri)
		dst := out.data[b*n*n:]
		for i := 0; i < n; i++ {
			for j := 0; j <= i; j++ {
				dst[i*n+j] = tri.At(i, j)
			}
		}
	}
	return out, nil
}

// TriSolveVec solves L @ w = b by forward substitution for each batch
// element, where l holds lower-triangular trailing (n, n) blocks and b
// trailing (n,) vectors. Batch prefixes are broadcast.
func TriSolveVec(l, b *Array) (*Array, error) {
	if l.Rank() < 2 || b.Rank() < 1 {
		return nil, fmt.Errorf("triangular solve on shapes %v, %v", l.shape, b.shape)
	}
	n := l.shape[len(l.shape)-1]
	if l.shape[len(l.shape)-2] != n || b.shape[len(b.shape)-1] != n {
		return nil, fmt.Errorf("triangular solve dimension mismatch: %v vs %v", l.shape, b.shape)
	}
	batch, err := BroadcastShape(l.shape[:len(l.shape)-2], b.shape[:len(b.shape)-1])
	if err != nil {
		return nil, err
	}
	out := Zeros(append(batch.Clone(), n))
	if n == 0 {
		return out, nil
	}
	stL, _ := batchBlockStrides(l.shape, 2, batch)
	stB, _ := batchBlockStrides(b.shape, 1, batch)
	err = forEachBatch(batch, stL, stB, func(k, offL, offB int) error {
		L := mat.NewTriDense(n, mat.Lower, l.data[offL:offL+n*n])
		rhs := mat.NewVecDense(n, b.data[offB:offB+n])
		w := mat.NewVecDense(n, out.data[k*n:(k+1)*n])
		if err := w.SolveVec(L, rhs); err != nil {
			return fmt.Errorf("triangular solve block %d: %w", k, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TriSolveMat solves L @ X = B for each batch element, where l holds
// lower-triangular trailing (n, n) blocks and bm trailing (n, c) blocks.
// Batch prefixes are broadcast.
func TriSolveMat(l, bm *Array) (*Array, error) {
	if l.Rank() < 2 || bm.Rank() < 2 {
		return nil, fmt.Errorf("triangular solve on shapes %v, %v", l.shape, bm.shape)
	}
	n := l.shape[len(l.shape)-1]
	c := bm.shape[len(bm.shape)-1]
	if l.shape[len(l.shape)-2] != n || bm.shape[len(bm.shape)-2] != n {
		return nil, fmt.Errorf("triangular solve dimension mismatch: %v vs %v", l.shape, bm.shape)
	}
	batch, err := BroadcastShape(l.shape[:len(l.shape)-2], bm.shape[:len(bm.shape)-2])
	if err != nil {
		return nil, err
	}
	out := Zeros(append(batch.Clone(), n, c))
	if n == 0 || c == 0 {
		return out, nil
	}
	stL, _ := batchBlockStrides(l.shape, 2, batch)
	stB, _ := batchBlockStrides(bm.shape, 2, batch)
	err = forEachBatch(batch, stL, stB, func(k, offL, offB int) error {
		L := mat.NewTriDense(n, mat.Lower, l.data[offL:offL+n*n])
		B := mat.NewDense(n, c, bm.data[offB:offB+n*c])
		var X mat.Dense
		if err := X.Solve(L, B); err != nil {
			return fmt.Errorf("triangular solve block %d: %w", k, err)
		}
		dst := mat.NewDense(n, c, out.data[k*n*c:(k+1)*n*c])
		dst.Copy(&X)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
