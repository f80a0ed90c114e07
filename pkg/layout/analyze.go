// Package layout implements the layout analyzer: it linearizes a
// multi-column page image into column strips in left-to-right reading
// order, using a vertical-separator scan with a content-gap fallback.
//
// The algorithm is grounded on the original Python implementation's
// core.layout_detector module (see original_source/AgentTools/layout.py):
// detect vertical separator lines, merge nearby ones, split on interior
// separators, and fall back to a vertical-projection gap scan when no
// separator is found. No OpenCV binding exists anywhere in the retrieval
// pack, so the scan is expressed directly over Go's image package, in the
// spirit of the teacher's own image-handling code (pkg/pdfocr's PNG/JPEG
// sniffing operates on raw pixel/byte data rather than a vision library).
package layout

import (
	"image"
	"sort"

	"github.com/twoLoop-40/problem-cutter/pkg/geom"
)

// Params tunes the analyzer's thresholds. Zero-value Params is invalid;
// use DefaultParams.
type Params struct {
	MergeTolerance     int     // px; candidates within this x-distance merge
	GapThreshold       int     // px; minimum width of a content gap to split on
	MinColumnWidth     int     // px; strips narrower than this are dropped
	MinColumnWidthFrac float64 // fraction of page width, whichever is larger
	MaxColumns         int     // hard cap on returned column count
	InteriorBandLo     float64 // fraction of page width; separators below this are ignored
	InteriorBandHi     float64 // fraction of page width; separators above this are ignored
	DarkThreshold      uint8   // luma below this counts as "ink" for projections
}

// DefaultParams mirrors spec.md §4.1's defaults.
func DefaultParams() Params {
	return Params{
		MergeTolerance:      20,
		GapThreshold:        50,
		MinColumnWidth:      100,
		MinColumnWidthFrac:  0.10,
		MaxColumns:          3,
		InteriorBandLo:      0.20,
		InteriorBandHi:      0.80,
		DarkThreshold:       128,
	}
}

// vline is a candidate vertical separator: an x-coordinate with a run of
// dark pixels spanning most of the page height.
type vline struct {
	x      int
	length int
}

// Analyze splits one page image into column strips in reading order. It
// never fails hard: when no columns can be identified, it returns a
// single strip covering the full page, per spec.md §4.1's failure
// semantics.
func Analyze(page PageImage, p Params) []ColumnStrip {
	gray := toGray(page.Image)

	candidates := detectVerticalLines(gray, p)
	merged := mergeNearby(candidates, p.MergeTolerance)
	interior := filterInteriorBand(merged, page.W, p.InteriorBandLo, p.InteriorBandHi)

	var splitsX []int
	if len(interior) > 0 {
		for _, v := range interior {
			splitsX = append(splitsX, v.x)
		}
	} else {
		splitsX = contentGapSplits(gray, p)
	}

	strips := splitStrips(page, splitsX)
	strips = filterNarrow(strips, page.W, p)
	strips = capColumns(strips, p.MaxColumns, page)

	if len(strips) == 0 {
		full, _ := geom.NewRect(0, 0, page.W, page.H)
		return []ColumnStrip{{
			Image:       page.Image,
			PageNumber:  page.PageNumber,
			ColumnIndex: 0,
			Rect:        full,
		}}
	}

	sort.Slice(strips, func(i, j int) bool { return strips[i].Rect.X < strips[j].Rect.X })
	for i := range strips {
		strips[i].ColumnIndex = i
	}
	return strips
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

// detectVerticalLines scans each column for a run of dark pixels covering
// most of the page height, approximating a probabilistic vertical line
// transform without a vision library.
func detectVerticalLines(gray *image.Gray, p Params) []vline {
	b := gray.Bounds()
	minRun := int(float64(b.Dy()) * 0.6)

	var lines []vline
	for x := b.Min.X; x < b.Max.X; x++ {
		run := 0
		best := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if gray.GrayAt(x, y).Y < p.DarkThreshold {
				run++
				if run > best {
					best = run
				}
			} else {
				run = 0
			}
		}
		if best >= minRun {
			lines = append(lines, vline{x: x - b.Min.X, length: best})
		}
	}
	return lines
}

// mergeNearby collapses candidates whose x-coordinates differ by at most
// tolerance into a single line at their mean x. This is load-bearing: a
// separator rule rendered as two adjacent dark columns must not survive
// as two lines (and, later, a spurious narrow column between them).
func mergeNearby(lines []vline, tolerance int) []vline {
	if len(lines) == 0 {
		return nil
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].x < lines[j].x })

	var merged []vline
	group := []vline{lines[0]}
	flush := func() {
		sumX, maxLen := 0, 0
		for _, v := range group {
			sumX += v.x
			if v.length > maxLen {
				maxLen = v.length
			}
		}
		merged = append(merged, vline{x: sumX / len(group), length: maxLen})
	}
	for _, v := range lines[1:] {
		if v.x-group[len(group)-1].x <= tolerance {
			group = append(group, v)
			continue
		}
		flush()
		group = []vline{v}
	}
	flush()
	return merged
}

func filterInteriorBand(lines []vline, pageWidth int, lo, hi float64) []vline {
	loX := float64(pageWidth) * lo
	hiX := float64(pageWidth) * hi
	var out []vline
	for _, v := range lines {
		if float64(v.x) >= loX && float64(v.x) <= hiX {
			out = append(out, v)
		}
	}
	return out
}

// contentGapSplits falls back to a vertical ink-projection scan, finding
// local minima (gaps) wider than GapThreshold within the interior band
// that have ink on both sides.
func contentGapSplits(gray *image.Gray, p Params) []int {
	b := gray.Bounds()
	w := b.Dx()
	projection := make([]int, w)
	for x := 0; x < w; x++ {
		dark := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if gray.GrayAt(b.Min.X+x, y).Y < p.DarkThreshold {
				dark++
			}
		}
		projection[x] = dark
	}
	smoothed := smooth(projection, 5)

	loX := int(float64(w) * p.InteriorBandLo)
	hiX := int(float64(w) * p.InteriorBandHi)

	// A gap only separates columns when there is ink on both sides of it;
	// a blank page has no columns to split.
	firstInk, lastInk := -1, -1
	for i, v := range smoothed {
		if v > 0 {
			if firstInk < 0 {
				firstInk = i
			}
			lastInk = i
		}
	}

	var splits []int
	x := loX
	for x < hiX {
		if smoothed[x] > 0 {
			x++
			continue
		}
		start := x
		for x < hiX && smoothed[x] == 0 {
			x++
		}
		gapWidth := x - start
		if gapWidth >= p.GapThreshold && firstInk >= 0 && firstInk < start && lastInk >= x {
			splits = append(splits, (start+x)/2)
		}
	}
	return splits
}

func smooth(values []int, window int) []int {
	out := make([]int, len(values))
	half := window / 2
	for i := range values {
		sum, n := 0, 0
		for j := i - half; j <= i+half; j++ {
			if j >= 0 && j < len(values) {
				sum += values[j]
				n++
			}
		}
		if n > 0 {
			out[i] = sum / n
		}
	}
	return out
}

func splitStrips(page PageImage, splitsX []int) []ColumnStrip {
	if len(splitsX) == 0 {
		r, _ := geom.NewRect(0, 0, page.W, page.H)
		return []ColumnStrip{{Image: page.Image, PageNumber: page.PageNumber, Rect: r}}
	}
	sort.Ints(splitsX)

	bounds := []int{0}
	bounds = append(bounds, splitsX...)
	bounds = append(bounds, page.W)

	var strips []ColumnStrip
	for i := 0; i < len(bounds)-1; i++ {
		x0, x1 := bounds[i], bounds[i+1]
		if x1 <= x0 {
			continue
		}
		r, err := geom.NewRect(x0, 0, x1-x0, page.H)
		if err != nil {
			continue
		}
		strips = append(strips, ColumnStrip{
			Image:      subImage(page.Image, r),
			PageNumber: page.PageNumber,
			Rect:       r,
		})
	}
	return strips
}

func subImage(img image.Image, r geom.Rect) image.Image {
	rect := image.Rect(r.X, r.Y, r.Right(), r.Bottom())
	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}
	out := image.NewRGBA(image.Rect(0, 0, r.W, r.H))
	for y := 0; y < r.H; y++ {
		for x := 0; x < r.W; x++ {
			out.Set(x, y, img.At(r.X+x, r.Y+y))
		}
	}
	return out
}

// filterNarrow drops any strip narrower than max(MinColumnWidth, frac*W).
func filterNarrow(strips []ColumnStrip, pageWidth int, p Params) []ColumnStrip {
	threshold := p.MinColumnWidth
	if frac := int(float64(pageWidth) * p.MinColumnWidthFrac); frac > threshold {
		threshold = frac
	}
	var out []ColumnStrip
	for _, s := range strips {
		if s.Rect.W >= threshold {
			out = append(out, s)
		}
	}
	return out
}

// capColumns enforces spec.md §4.1 step 6: when more candidates survive
// filterNarrow than MaxColumns, keep the widest max strips and merge
// every other strip into its nearest kept neighbor (by edge distance,
// ties favoring the left neighbor), re-slicing the merged strip's image
// from page rather than dropping its pixel region outright.
func capColumns(strips []ColumnStrip, max int, page PageImage) []ColumnStrip {
	if max <= 0 || len(strips) <= max {
		return strips
	}
	sort.Slice(strips, func(i, j int) bool { return strips[i].Rect.X < strips[j].Rect.X })

	byWidth := append([]ColumnStrip(nil), strips...)
	sort.SliceStable(byWidth, func(i, j int) bool { return byWidth[i].Rect.W > byWidth[j].Rect.W })
	kept := make(map[int]bool, max) // keyed by Rect.X, unique since strips tile the page
	for i := 0; i < max; i++ {
		kept[byWidth[i].Rect.X] = true
	}

	var keptIdx []int
	for i, s := range strips {
		if kept[s.Rect.X] {
			keptIdx = append(keptIdx, i)
		}
	}

	owner := make([]int, len(strips))
	for i := range strips {
		if kept[strips[i].Rect.X] {
			owner[i] = i
			continue
		}
		left, right := -1, -1
		for _, k := range keptIdx {
			if k < i {
				left = k
			}
			if k > i && right == -1 {
				right = k
			}
		}
		switch {
		case left == -1:
			owner[i] = right
		case right == -1:
			owner[i] = left
		default:
			leftDist := strips[i].Rect.X - strips[left].Rect.Right()
			rightDist := strips[right].Rect.X - strips[i].Rect.Right()
			if rightDist < leftDist {
				owner[i] = right
			} else {
				owner[i] = left
			}
		}
	}

	members := make(map[int][]int, len(keptIdx))
	for i, o := range owner {
		members[o] = append(members[o], i)
	}

	out := make([]ColumnStrip, 0, max)
	for _, k := range keptIdx {
		x0, x1 := strips[k].Rect.X, strips[k].Rect.Right()
		for _, m := range members[k] {
			if strips[m].Rect.X < x0 {
				x0 = strips[m].Rect.X
			}
			if strips[m].Rect.Right() > x1 {
				x1 = strips[m].Rect.Right()
			}
		}
		r, err := geom.NewRect(x0, 0, x1-x0, page.H)
		if err != nil {
			out = append(out, strips[k])
			continue
		}
		out = append(out, ColumnStrip{
			Image:      subImage(page.Image, r),
			PageNumber: strips[k].PageNumber,
			Rect:       r,
		})
	}
	return out
}
