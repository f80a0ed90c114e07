// Package boundary computes per-problem rectangles from an ordered list of
// markers within one column strip: each problem's region runs from its own
// marker's y down to the next marker's y, and the final marker's region
// runs to the bottom of the strip.
package boundary

import (
	"fmt"

	"github.com/twoLoop-40/problem-cutter/pkg/geom"
	"github.com/twoLoop-40/problem-cutter/pkg/marker"
)

// Boundary is the final computed rectangle for one problem within a column
// strip.
type Boundary struct {
	ProblemNumber int
	Rect          geom.Rect
	SourceEngine  string
}

// Params tunes the solver's optional height cap.
type Params struct {
	// FixedProblemHeight, when > 0, caps the last marker's region at
	// max(FixedProblemHeight, strip_height - marker.y). The cap is never
	// below the strip height remaining under the marker, so the last
	// region still reaches the strip bottom. Zero disables the cap.
	FixedProblemHeight int
}

// Solve computes boundaries for markers within a column strip of the given
// width and height. markers MUST already be sorted by ascending bbox.y (the
// marker package guarantees this); Solve does not re-sort.
//
// Returns an empty slice, not an error, when markers is empty — per
// spec.md's "zero markers in a column: zero boundaries" edge case.
func Solve(markers []marker.Marker, stripWidth, stripHeight int, p Params) ([]Boundary, error) {
	if len(markers) == 0 {
		return nil, nil
	}
	if stripWidth <= 0 || stripHeight <= 0 {
		return nil, fmt.Errorf("boundary: invalid strip dimensions w=%d h=%d", stripWidth, stripHeight)
	}

	out := make([]Boundary, len(markers))
	for i, m := range markers {
		yTop := m.PositionBBox.Y
		var yBottom int
		if i < len(markers)-1 {
			yBottom = markers[i+1].PositionBBox.Y
		} else {
			yBottom = stripHeight
			if p.FixedProblemHeight > 0 {
				limit := max(p.FixedProblemHeight, stripHeight-yTop)
				if yTop+limit < stripHeight {
					yBottom = yTop + limit
				}
			}
		}
		if yBottom <= yTop {
			return nil, fmt.Errorf("boundary: internal_assert: non-positive height for problem %d (y_top=%d y_bottom=%d)", m.Number, yTop, yBottom)
		}

		r, err := geom.NewRect(0, yTop, stripWidth, yBottom-yTop)
		if err != nil {
			return nil, fmt.Errorf("boundary: internal_assert: %w", err)
		}
		// A marker's own y, when it sits right at the strip's bottom edge
		// (local OCR noise placing a word a pixel or two past the page
		// boundary), can push the computed rect's bottom past stripHeight;
		// clamp here rather than in the reconciler, per spec.md's
		// coordinate round-trip law ("clamping is required at the boundary
		// solver, not the reconciler").
		r = r.Clamp(stripWidth, stripHeight)
		out[i] = Boundary{ProblemNumber: m.Number, Rect: r, SourceEngine: m.SourceEngine}
	}

	if err := checkInvariants(out, stripWidth, stripHeight); err != nil {
		return nil, err
	}
	return out, nil
}

// checkInvariants re-asserts the rect-level properties §4.4/§8 require
// before returning: full containment within the strip, and no y-overlap
// between consecutive regions. A violation here indicates a bug in Solve
// itself, not bad input — it is reported as an internal_assert-class
// error, never silently papered over. Problem-number ordering is a
// separate, non-fatal concern the validator flags (see pkg/validator);
// Solve computes a rectangle for whatever order the marker parser handed
// it, in y order.
func checkInvariants(bs []Boundary, stripWidth, stripHeight int) error {
	for i, b := range bs {
		if !b.Rect.FitsWithin(stripWidth, stripHeight) {
			return fmt.Errorf("boundary: internal_assert: boundary %d rect %v does not fit within strip %dx%d", b.ProblemNumber, b.Rect, stripWidth, stripHeight)
		}
		if i > 0 {
			prev := bs[i-1]
			if prev.Rect.OverlapsY(b.Rect) {
				return fmt.Errorf("boundary: internal_assert: boundary %d overlaps boundary %d", prev.ProblemNumber, b.ProblemNumber)
			}
		}
	}
	return nil
}
