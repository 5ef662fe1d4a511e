package tensor

import (
	"math"
	"testing"
)

func TestBroadcastShape(t *testing.T) {
	got, err := BroadcastShape(Shape{2, 1, 3}, Shape{4, 3}, Shape{})
	if err != nil {
		t.Fatalf("BroadcastShape: %v", err)
	}
	if !got.Equal(Shape{2, 4, 3}) {
		t.Errorf("BroadcastShape = %v, want [2 4 3]", got)
	}
	if _, err := BroadcastShape(Shape{2, 3}, Shape{4, 3}); err == nil {
		t.Errorf("BroadcastShape(2x3, 4x3) should fail")
	}
}

func TestAddBroadcast(t *testing.T) {
	a, _ := New(Shape{2, 1}, []float64{1, 2})
	b, _ := New(Shape{3}, []float64{10, 20, 30})
	got, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	want := []float64{11, 21, 31, 12, 22, 32}
	if !got.Shape().Equal(Shape{2, 3}) {
		t.Fatalf("Add shape = %v, want [2 3]", got.Shape())
	}
	for i, w := range want {
		if g := got.Data()[i]; g != w {
			t.Errorf("Add[%d] = %f, want %f", i, g, w)
		}
	}
}

func TestBroadcastTo(t *testing.T) {
	a, _ := New(Shape{1, 2}, []float64{5, 7})
	got, err := a.BroadcastTo(Shape{3, 2})
	if err != nil {
		t.Fatalf("BroadcastTo: %v", err)
	}
	want := []float64{5, 7, 5, 7, 5, 7}
	for i, w := range want {
		if g := got.Data()[i]; g != w {
			t.Errorf("BroadcastTo[%d] = %f, want %f", i, g, w)
		}
	}
	if _, err := a.BroadcastTo(Shape{3, 4}); err == nil {
		t.Errorf("BroadcastTo(3x4) should fail for shape 1x2")
	}
}

func TestSumLast(t *testing.T) {
	a, _ := New(Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	got := a.SumLast()
	if !got.Shape().Equal(Shape{2}) {
		t.Fatalf("SumLast shape = %v, want [2]", got.Shape())
	}
	if d := got.Data(); d[0] != 6 || d[1] != 15 {
		t.Errorf("SumLast = %v, want [6 15]", d)
	}
}

func TestCatAndIndex(t *testing.T) {
	a, _ := New(Shape{1, 2}, []float64{1, 2})
	b, _ := New(Shape{2, 2}, []float64{3, 4, 5, 6})
	c, err := Cat([]*Array{a, b}, 0)
	if err != nil {
		t.Fatalf("Cat: %v", err)
	}
	if !c.Shape().Equal(Shape{3, 2}) {
		t.Fatalf("Cat shape = %v, want [3 2]", c.Shape())
	}
	row, err := c.Index(2)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if d := row.Data(); d[0] != 5 || d[1] != 6 {
		t.Errorf("Index(2) = %v, want [5 6]", d)
	}
	if _, err := c.Index(3); err == nil {
		t.Errorf("Index(3) should fail for axis of size 3")
	}
}

func TestCatMiddleAxis(t *testing.T) {
	a, _ := New(Shape{2, 1, 2}, []float64{1, 2, 3, 4})
	b, _ := New(Shape{2, 2, 2}, []float64{5, 6, 7, 8, 9, 10, 11, 12})
	c, err := Cat([]*Array{a, b}, 1)
	if err != nil {
		t.Fatalf("Cat: %v", err)
	}
	want := []float64{1, 2, 5, 6, 7, 8, 3, 4, 9, 10, 11, 12}
	for i, w := range want {
		if g := c.Data()[i]; g != w {
			t.Errorf("Cat[%d] = %f, want %f", i, g, w)
		}
	}
}

func TestSliceAxis(t *testing.T) {
	a, _ := New(Shape{2, 4}, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	got, err := a.SliceAxis(-1, 1, 3)
	if err != nil {
		t.Fatalf("SliceAxis: %v", err)
	}
	want := []float64{1, 2, 5, 6}
	for i, w := range want {
		if g := got.Data()[i]; g != w {
			t.Errorf("SliceAxis[%d] = %f, want %f", i, g, w)
		}
	}
}

func TestPadAxis(t *testing.T) {
	a, _ := New(Shape{2, 2}, []float64{1, 2, 3, 4})
	got, err := a.PadAxis(-1, 1, 2)
	if err != nil {
		t.Fatalf("PadAxis: %v", err)
	}
	want := []float64{0, 1, 2, 0, 0, 0, 3, 4, 0, 0}
	for i, w := range want {
		if g := got.Data()[i]; g != w {
			t.Errorf("PadAxis[%d] = %f, want %f", i, g, w)
		}
	}
	if _, err := a.PadAxis(-1, -1, 0); err == nil {
		t.Errorf("negative pad should fail")
	}
}

func TestSelectAxis(t *testing.T) {
	a, _ := New(Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	got, err := a.SelectAxis(-1, []int{2, 0, 1})
	if err != nil {
		t.Fatalf("SelectAxis: %v", err)
	}
	want := []float64{3, 1, 2, 6, 4, 5}
	for i, w := range want {
		if g := got.Data()[i]; g != w {
			t.Errorf("SelectAxis[%d] = %f, want %f", i, g, w)
		}
	}
	if _, err := a.SelectAxis(-1, []int{3}); err == nil {
		t.Errorf("out-of-range select should fail")
	}
}

func TestTransposeLast2(t *testing.T) {
	a, _ := New(Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	got := a.TransposeLast2()
	if !got.Shape().Equal(Shape{3, 2}) {
		t.Fatalf("TransposeLast2 shape = %v, want [3 2]", got.Shape())
	}
	want := []float64{1, 4, 2, 5, 3, 6}
	for i, w := range want {
		if g := got.Data()[i]; g != w {
			t.Errorf("TransposeLast2[%d] = %f, want %f", i, g, w)
		}
	}
}

func TestDiagonal(t *testing.T) {
	a, _ := New(Shape{2, 2, 2}, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	got, err := a.Diagonal()
	if err != nil {
		t.Fatalf("Diagonal: %v", err)
	}
	want := []float64{1, 4, 5, 8}
	for i, w := range want {
		if g := got.Data()[i]; g != w {
			t.Errorf("Diagonal[%d] = %f, want %f", i, g, w)
		}
	}
}

func TestReshape(t *testing.T) {
	a, _ := New(Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	got, err := a.Reshape(Shape{3, 2})
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	if got.At(2, 1) != 6 {
		t.Errorf("Reshape At(2,1) = %f, want 6", got.At(2, 1))
	}
	if _, err := a.Reshape(Shape{4}); err == nil {
		t.Errorf("Reshape to wrong size should fail")
	}
}

func TestUnaryOps(t *testing.T) {
	a, _ := New(Shape{2}, []float64{1, math.E})
	if got := a.Log().Data(); math.Abs(got[0]) > 1e-12 || math.Abs(got[1]-1) > 1e-12 {
		t.Errorf("Log = %v, want [0 1]", got)
	}
	b, _ := New(Shape{2}, []float64{2, 4})
	// lgamma(2) = 0, lgamma(4) = log(6)
	if got := b.Lgamma().Data(); math.Abs(got[0]) > 1e-12 || math.Abs(got[1]-math.Log(6)) > 1e-12 {
		t.Errorf("Lgamma = %v, want [0 log(6)]", got)
	}
	if got := b.Square().Data(); got[0] != 4 || got[1] != 16 {
		t.Errorf("Square = %v, want [4 16]", got)
	}
	if got := b.Scale(0.5).Shift(1).Data(); got[0] != 2 || got[1] != 3 {
		t.Errorf("Scale/Shift = %v, want [2 3]", got)
	}
}

func TestNewValidatesLength(t *testing.T) {
	if _, err := New(Shape{2, 2}, []float64{1, 2, 3}); err == nil {
		t.Errorf("New with short data should fail")
	}
}
