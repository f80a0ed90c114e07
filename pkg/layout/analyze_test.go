package layout

import (
	"image"
	"image/color"
	"testing"
)

// drawVerticalRule paints a solid dark vertical rule of the given width
// centered at x on a white page image.
func drawVerticalRule(img *image.Gray, x, width int) {
	b := img.Bounds()
	for dx := -width / 2; dx <= width/2; dx++ {
		xx := x + dx
		if xx < b.Min.X || xx >= b.Max.X {
			continue
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			img.SetGray(xx, y, color.Gray{Y: 0})
		}
	}
}

func whitePage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return img
}

func TestAnalyze_SingleSeparator_TwoColumns(t *testing.T) {
	w, h := 2339, 3309
	img := whitePage(w, h)
	drawVerticalRule(img, w/2, 3)

	page := NewPageImage(img, 0)
	strips := Analyze(page, DefaultParams())

	if len(strips) != 2 {
		t.Fatalf("got %d strips, want 2", len(strips))
	}
	if strips[0].Rect.X != 0 {
		t.Errorf("first strip x=%d, want 0", strips[0].Rect.X)
	}
	if strips[0].Rect.X >= strips[1].Rect.X {
		t.Errorf("strips not in ascending x order: %v, %v", strips[0].Rect, strips[1].Rect)
	}
	for _, s := range strips {
		if s.Rect.H != h {
			t.Errorf("strip height %d, want page height %d", s.Rect.H, h)
		}
	}
}

func TestAnalyze_ThickSeparator_MergesToOneColumnSplit(t *testing.T) {
	// Two separator lines 20px apart, simulating a thick ruled separator
	// represented as a pair of vertical lines (spec.md scenario 4).
	w, h := 1200, 1600
	img := whitePage(w, h)
	drawVerticalRule(img, 590, 2)
	drawVerticalRule(img, 610, 2)

	page := NewPageImage(img, 0)
	strips := Analyze(page, DefaultParams())

	if len(strips) != 2 {
		t.Fatalf("got %d strips, want 2 (merge should collapse the thick rule), strips=%v", len(strips), strips)
	}
}

func TestAnalyze_NoColumns_FallsBackToFullPage(t *testing.T) {
	w, h := 800, 1000
	img := whitePage(w, h)

	page := NewPageImage(img, 0)
	strips := Analyze(page, DefaultParams())

	if len(strips) != 1 {
		t.Fatalf("got %d strips, want 1", len(strips))
	}
	if strips[0].Rect.W != w || strips[0].Rect.H != h {
		t.Errorf("strip %v does not cover full page %dx%d", strips[0].Rect, w, h)
	}
}

func TestAnalyze_ContentGapFallback_SplitsOnWideGap(t *testing.T) {
	w, h := 1000, 1200
	img := whitePage(w, h)
	// Ink on the left half and right half, leaving a wide gap in the
	// middle band (interior 20-80%: x in [200, 800)).
	for y := 0; y < h; y++ {
		for x := 0; x < 150; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
		for x := 850; x < 1000; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}

	page := NewPageImage(img, 0)
	strips := Analyze(page, DefaultParams())

	if len(strips) != 2 {
		t.Fatalf("got %d strips, want 2 from content-gap fallback, strips=%v", len(strips), strips)
	}
}

func TestAnalyze_CapsAtThreeColumns(t *testing.T) {
	w, h := 2000, 1000
	img := whitePage(w, h)
	drawVerticalRule(img, 500, 2)
	drawVerticalRule(img, 1000, 2)
	drawVerticalRule(img, 1500, 2)

	page := NewPageImage(img, 0)
	strips := Analyze(page, DefaultParams())

	if len(strips) > 3 {
		t.Fatalf("got %d strips, want at most 3", len(strips))
	}
}

func TestAnalyze_ExcessColumns_MergedNotDropped(t *testing.T) {
	w, h := 2000, 1000
	img := whitePage(w, h)
	drawVerticalRule(img, 500, 2)
	drawVerticalRule(img, 1000, 2)
	drawVerticalRule(img, 1500, 2)

	page := NewPageImage(img, 0)
	strips := Analyze(page, DefaultParams())

	if len(strips) != 3 {
		t.Fatalf("got %d strips, want exactly 3", len(strips))
	}
	totalWidth := 0
	for i, s := range strips {
		if s.ColumnIndex != i {
			t.Errorf("strip %d has ColumnIndex %d, want %d", i, s.ColumnIndex, i)
		}
		totalWidth += s.Rect.W
	}
	if totalWidth != w {
		t.Fatalf("strips cover %d px of a %d px page, want full coverage (the fourth candidate's pixels must be merged, not dropped)", totalWidth, w)
	}
	if strips[2].Rect.W <= 500 {
		t.Fatalf("rightmost strip width=%d, want >500 (it should have absorbed the dropped fourth candidate)", strips[2].Rect.W)
	}
}
