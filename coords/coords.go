// Package coords implements 2D affine transforms in the PDF convention:
// a matrix [a b c d e f] maps (x, y) to (a*x + c*y + e, b*x + d*y + f).
package coords

import (
	"errors"
	"math"
)

// Matrix is a PDF transformation matrix [a b c d e f].
type Matrix [6]float64

// Point is a position in page or device space.
type Point struct{ X, Y float64 }

// Identity returns the identity transform.
func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

// Scale returns a scaling by (sx, sy).
func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate returns a counterclockwise rotation by angle radians.
func Rotate(angle float64) Matrix {
	c := math.Cos(angle)
	s := math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// RotateDegrees returns a rotation by deg degrees. Right angles are
// produced exactly so that quarter-turn page rotations do not
// accumulate floating point noise.
func RotateDegrees(deg float64) Matrix {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	switch d {
	case 0:
		return Identity()
	case 90:
		return Matrix{0, 1, -1, 0, 0, 0}
	case 180:
		return Matrix{-1, 0, 0, -1, 0, 0}
	case 270:
		return Matrix{0, -1, 1, 0, 0, 0}
	}
	return Rotate(d * math.Pi / 180)
}

// Mul composes two transforms: the returned matrix applies b first,
// then a.
func Mul(a, b Matrix) Matrix {
	return Matrix{
		b[0]*a[0] + b[1]*a[2],
		b[0]*a[1] + b[1]*a[3],
		b[2]*a[0] + b[3]*a[2],
		b[2]*a[1] + b[3]*a[3],
		b[4]*a[0] + b[5]*a[2] + a[4],
		b[4]*a[1] + b[5]*a[3] + a[5],
	}
}

// Apply transforms p by m.
func (m Matrix) Apply(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// ErrSingular is returned by Inverse for non-invertible matrices.
var ErrSingular = errors.New("coords: matrix is singular")

// Inverse returns the inverse transform.
func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, ErrSingular
	}
	return Matrix{
		m[3] / det,
		-m[1] / det,
		-m[2] / det,
		m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}
