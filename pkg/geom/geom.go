// Package geom defines the coordinate primitives shared across the
// extraction pipeline: points and pixel rectangles anchored at an image's
// top-left origin.
package geom

import "fmt"

// Point is a pixel position relative to the containing image's origin.
type Point struct {
	X, Y int
}

// Rect is a pixel rectangle: (x, y) is the top-left corner, (w, h) are
// strictly positive dimensions.
type Rect struct {
	X, Y, W, H int
}

// NewRect validates w > 0 and h > 0 before returning a Rect.
func NewRect(x, y, w, h int) (Rect, error) {
	if w <= 0 || h <= 0 {
		return Rect{}, fmt.Errorf("geom: invalid rect dimensions w=%d h=%d, want > 0", w, h)
	}
	return Rect{X: x, Y: y, W: w, H: h}, nil
}

// Right returns x + w.
func (r Rect) Right() int { return r.X + r.W }

// Bottom returns y + h.
func (r Rect) Bottom() int { return r.Y + r.H }

// FitsWithin reports whether r lies entirely inside an image of the given
// dimensions, per the bbox invariant in the data model.
func (r Rect) FitsWithin(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && r.Right() <= width && r.Bottom() <= height
}

// OverlapsY reports whether the y-ranges of r and other overlap (touching,
// i.e. one's bottom equals the other's top, does not count as overlap).
func (r Rect) OverlapsY(other Rect) bool {
	return r.Y < other.Bottom() && other.Y < r.Bottom()
}

// Clamp returns a copy of r with a negative x or y moved to 0 and its
// bottom-right corner pulled in to the given dimensions, keeping w and h
// at least 1. A rect whose origin already lies at or past the image edge
// keeps that origin and so still does not fit. Used by the boundary
// solver to guarantee containment of its computed rectangles; the
// coordinate reconciler (see orchestrator package) never clamps — an
// out-of-bounds reconciled marker there indicates a scale-factor bug, not
// rounding noise, and is rejected rather than silently shrunk.
func (r Rect) Clamp(width, height int) Rect {
	out := r
	if out.X < 0 {
		out.X = 0
	}
	if out.Y < 0 {
		out.Y = 0
	}
	if out.Right() > width {
		out.W = width - out.X
	}
	if out.Bottom() > height {
		out.H = height - out.Y
	}
	if out.W < 1 {
		out.W = 1
	}
	if out.H < 1 {
		out.H = 1
	}
	return out
}

func (r Rect) String() string {
	return fmt.Sprintf("Rect{x:%d y:%d w:%d h:%d}", r.X, r.Y, r.W, r.H)
}
