package layout

import (
	"image"

	"github.com/twoLoop-40/problem-cutter/pkg/geom"
)

// PageImage is an immutable raster of one page with its index in the
// document (0-based, matching spec.md's p ∈ [0, N)).
type PageImage struct {
	Image      image.Image
	PageNumber int
	W, H       int
}

// NewPageImage constructs a PageImage, capturing its bounds at
// construction time since image.Image.Bounds() is itself immutable.
func NewPageImage(img image.Image, pageNumber int) PageImage {
	b := img.Bounds()
	return PageImage{Image: img, PageNumber: pageNumber, W: b.Dx(), H: b.Dy()}
}

// ColumnStrip is a sub-rectangle of a page image, one reading column.
type ColumnStrip struct {
	Image        image.Image
	PageNumber   int
	ColumnIndex  int
	Rect         geom.Rect // position within the source page image
}

// W returns the strip's pixel width.
func (c ColumnStrip) W() int { return c.Rect.W }

// H returns the strip's pixel height (always equal to the page height).
func (c ColumnStrip) H() int { return c.Rect.H }
