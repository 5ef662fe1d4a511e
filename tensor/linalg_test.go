package tensor

import (
	"math"
	"testing"
)

func TestMatVec(t *testing.T) {
	m, _ := New(Shape{2, 2}, []float64{1, 2, 3, 4})
	v, _ := New(Shape{2}, []float64{5, 6})
	got, err := MatVec(m, v)
	if err != nil {
		t.Fatalf("MatVec: %v", err)
	}
	if d := got.Data(); d[0] != 17 || d[1] != 39 {
		t.Errorf("MatVec = %v, want [17 39]", d)
	}
}

func TestMatVecBatchBroadcast(t *testing.T) {
	// One matrix against a batch of two vectors.
	m, _ := New(Shape{2, 2}, []float64{1, 0, 0, 2})
	v, _ := New(Shape{2, 2}, []float64{1, 1, 3, 4})
	got, err := MatVec(m, v)
	if err != nil {
		t.Fatalf("MatVec: %v", err)
	}
	if !got.Shape().Equal(Shape{2, 2}) {
		t.Fatalf("MatVec shape = %v, want [2 2]", got.Shape())
	}
	want := []float64{1, 2, 3, 8}
	for i, w := range want {
		if g := got.Data()[i]; g != w {
			t.Errorf("MatVec[%d] = %f, want %f", i, g, w)
		}
	}
}

func TestMatMulAndGram(t *testing.T) {
	a, _ := New(Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	b, _ := New(Shape{3, 2}, []float64{7, 8, 9, 10, 11, 12})
	got, err := MatMul(a, b)
	if err != nil {
		t.Fatalf("MatMul: %v", err)
	}
	want := []float64{58, 64, 139, 154}
	for i, w := range want {
		if g := got.Data()[i]; g != w {
			t.Errorf("MatMul[%d] = %f, want %f", i, g, w)
		}
	}

	gram, err := Gram(a)
	if err != nil {
		t.Fatalf("Gram: %v", err)
	}
	ref, err := MatMul(a.TransposeLast2(), a)
	if err != nil {
		t.Fatalf("MatMul: %v", err)
	}
	for i, w := range ref.Data() {
		if g := gram.Data()[i]; math.Abs(g-w) > 1e-12 {
			t.Errorf("Gram[%d] = %f, want %f", i, g, w)
		}
	}
}

func TestCholesky(t *testing.T) {
	// [[4 2], [2 3]] = L Lᵀ with L = [[2 0], [1 sqrt(2)]]
	a, _ := New(Shape{2, 2}, []float64{4, 2, 2, 3})
	l, err := Cholesky(a)
	if err != nil {
		t.Fatalf("Cholesky: %v", err)
	}
	want := []float64{2, 0, 1, math.Sqrt(2)}
	for i, w := range want {
		if g := l.Data()[i]; math.Abs(g-w) > 1e-12 {
			t.Errorf("Cholesky[%d] = %f, want %f", i, g, w)
		}
	}
}

func TestCholeskyNotPositiveDefinite(t *testing.T) {
	a, _ := New(Shape{2, 2}, []float64{1, 2, 2, 1})
	if _, err := Cholesky(a); err == nil {
		t.Errorf("Cholesky of indefinite matrix should fail")
	}
}

func TestCholeskyBatch(t *testing.T) {
	a, _ := New(Shape{2, 1, 1}, []float64{4, 9})
	l, err := Cholesky(a)
	if err != nil {
		t.Fatalf("Cholesky: %v", err)
	}
	if d := l.Data(); d[0] != 2 || d[1] != 3 {
		t.Errorf("Cholesky batch = %v, want [2 3]", d)
	}
}

func TestTriSolveVec(t *testing.T) {
	l, _ := New(Shape{2, 2}, []float64{2, 0, 1, math.Sqrt(2)})
	b, _ := New(Shape{2}, []float64{4, 5})
	w, err := TriSolveVec(l, b)
	if err != nil {
		t.Fatalf("TriSolveVec: %v", err)
	}
	// forward substitution: w0 = 2, w1 = (5-2)/sqrt(2)
	want := []float64{2, 3 / math.Sqrt(2)}
	for i, ww := range want {
		if g := w.Data()[i]; math.Abs(g-ww) > 1e-12 {
			t.Errorf("TriSolveVec[%d] = %f, want %f", i, g, ww)
		}
	}
}

func TestTriSolveMatMatchesVec(t *testing.T) {
	l, _ := New(Shape{2, 2}, []float64{3, 0, -1, 2})
	bm, _ := New(Shape{2, 1}, []float64{6, 4})
	bv, _ := New(Shape{2}, []float64{6, 4})
	xm, err := TriSolveMat(l, bm)
	if err != nil {
		t.Fatalf("TriSolveMat: %v", err)
	}
	xv, err := TriSolveVec(l, bv)
	if err != nil {
		t.Fatalf("TriSolveVec: %v", err)
	}
	for i, w := range xv.Data() {
		if g := xm.Data()[i]; math.Abs(g-w) > 1e-12 {
			t.Errorf("TriSolveMat[%d] = %f, want %f", i, g, w)
		}
	}
}

func TestSchurComplementViaSolves(t *testing.T) {
	// For P = [[5 2], [2 4]] eliminating the second coordinate:
	// schur = 5 - 2 * (1/4) * 2 = 4
	pbb, _ := New(Shape{1, 1}, []float64{4})
	pba, _ := New(Shape{1, 1}, []float64{2})
	l, err := Cholesky(pbb)
	if err != nil {
		t.Fatalf("Cholesky: %v", err)
	}
	x, err := TriSolveMat(l, pba)
	if err != nil {
		t.Fatalf("TriSolveMat: %v", err)
	}
	xtx, err := Gram(x)
	if err != nil {
		t.Fatalf("Gram: %v", err)
	}
	if g := 5 - xtx.Data()[0]; math.Abs(g-4) > 1e-12 {
		t.Errorf("schur complement = %f, want 4", g)
	}
}
