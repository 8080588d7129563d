package coords

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func pointNear(a, b Point) bool { return near(a.X, b.X) && near(a.Y, b.Y) }

func TestApply(t *testing.T) {
	m := Matrix{2, 0, 0, 3, 10, 20}
	got := m.Apply(Point{X: 1, Y: 1})
	if !pointNear(got, Point{X: 12, Y: 23}) {
		t.Fatalf("got %+v", got)
	}
}

func TestMulAppliesSecondArgumentFirst(t *testing.T) {
	// Scale then translate is not translate then scale.
	m := Mul(Translate(10, 0), Scale(2, 2))
	got := m.Apply(Point{X: 1, Y: 1})
	if !pointNear(got, Point{X: 12, Y: 2}) {
		t.Fatalf("scale-then-translate gave %+v", got)
	}
	m = Mul(Scale(2, 2), Translate(10, 0))
	got = m.Apply(Point{X: 1, Y: 1})
	if !pointNear(got, Point{X: 22, Y: 2}) {
		t.Fatalf("translate-then-scale gave %+v", got)
	}
}

func TestRotateDegreesExactQuarterTurns(t *testing.T) {
	cases := []struct {
		deg  float64
		want Matrix
	}{
		{0, Identity()},
		{90, Matrix{0, 1, -1, 0, 0, 0}},
		{180, Matrix{-1, 0, 0, -1, 0, 0}},
		{270, Matrix{0, -1, 1, 0, 0, 0}},
		{-90, Matrix{0, -1, 1, 0, 0, 0}},
		{450, Matrix{0, 1, -1, 0, 0, 0}},
	}
	for _, c := range cases {
		if got := RotateDegrees(c.deg); got != c.want {
			t.Errorf("RotateDegrees(%v) = %v, want %v", c.deg, got, c.want)
		}
	}
}

func TestRotateDegreesArbitraryAngle(t *testing.T) {
	got := RotateDegrees(45).Apply(Point{X: 1, Y: 0})
	want := Point{X: math.Sqrt2 / 2, Y: math.Sqrt2 / 2}
	if !pointNear(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	m := Mul(Translate(30, 40), Mul(RotateDegrees(90), Scale(2, 3)))
	inv, err := m.Inverse()
	if err != nil {
		t.Fatal(err)
	}
	p := Point{X: 7, Y: -3}
	if got := inv.Apply(m.Apply(p)); !pointNear(got, p) {
		t.Fatalf("round trip gave %+v", got)
	}
}

func TestInverseSingular(t *testing.T) {
	if _, err := (Matrix{0, 0, 0, 0, 5, 5}).Inverse(); err != ErrSingular {
		t.Fatalf("err = %v", err)
	}
}
