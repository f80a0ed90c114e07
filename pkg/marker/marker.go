// Package marker identifies problem-number tokens within a column's OCR
// text blocks, following an ordered table of regexes — the same "try
// patterns in order, first match wins" idiom the teacher uses to detect
// PDF OCG layer names (pkg/pdfocr's detectPDFLayers).
package marker

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/twoLoop-40/problem-cutter/pkg/geom"
	"github.com/twoLoop-40/problem-cutter/pkg/ocrengine"
)

// Marker is a detected problem-number token with its pixel position.
type Marker struct {
	Number       int
	PositionBBox geom.Rect
	Confidence   float64
	SourceEngine string
}

// Params tunes the parser's acceptance thresholds.
type Params struct {
	MinProblemNumber       int
	MaxProblemNumber       int
	MaxMarkerXOffset       int // px from the column strip's left edge
	MinConfidenceForSource float64
}

// DefaultParams mirrors spec.md §4.2's defaults.
func DefaultParams() Params {
	return Params{
		MinProblemNumber:       1,
		MaxProblemNumber:       100,
		MaxMarkerXOffset:       300,
		MinConfidenceForSource: 0,
	}
}

// ScaledForDPI scales MaxMarkerXOffset for a DPI other than the spec's
// reference 200 DPI, since pixel offsets grow with resolution.
func (p Params) ScaledForDPI(dpi int) Params {
	if dpi <= 0 {
		dpi = 200
	}
	out := p
	out.MaxMarkerXOffset = p.MaxMarkerXOffset * dpi / 200
	return out
}

var (
	// 1. Digits followed by '.' or ',' (an OCR substitution for '.'),
	// anchored at the start of the trimmed token.
	reDotComma = regexp.MustCompile(`^(\d{1,3})[.,]`)

	// 2. Circled digits ①..⑳ mapped to 1..20.
	reCircled = regexp.MustCompile(`^[①②③④⑤⑥⑦⑧⑨⑩⑪⑫⑬⑭⑮⑯⑰⑱⑲⑳]`)

	// 3. Bracketed digits [n] or (n).
	reBracketed = regexp.MustCompile(`^[\[(](\d{1,3})[\])]`)

	// Score markers like "[3점]" must never be mistaken for a problem
	// marker, even though "[3" matches reBracketed's prefix loosely.
	reScoreMarker = regexp.MustCompile(`^[\[(]\d{1,3}\s*점\s*[\])]`)

	// Any bracketed/circled digit glyph anywhere in the block, used to
	// detect an answer-choice run like "(1) (2) (3) (4)" — reBracketed's
	// start anchor alone would accept its first choice as a marker.
	reAnyChoiceGlyph = regexp.MustCompile(`[\[(]\d{1,3}[\])]|[①②③④⑤⑥⑦⑧⑨⑩⑪⑫⑬⑭⑮⑯⑰⑱⑲⑳]`)
)

var circledValue = map[rune]int{
	'①': 1, '②': 2, '③': 3, '④': 4, '⑤': 5, '⑥': 6, '⑦': 7, '⑧': 8, '⑨': 9, '⑩': 10,
	'⑪': 11, '⑫': 12, '⑬': 13, '⑭': 14, '⑮': 15, '⑯': 16, '⑰': 17, '⑱': 18, '⑲': 19, '⑳': 20,
}

// Parse identifies problem-number markers among blocks, the OCR output
// for one column. Output is deduplicated by number (keeping the
// higher-confidence, or smaller-y on ties) and ordered by ascending y.
func Parse(blocks []ocrengine.TextBlock, columnLeftX int, p Params) []Marker {
	byNumber := make(map[int]Marker)

	for _, b := range blocks {
		if b.Confidence < p.MinConfidenceForSource {
			continue
		}
		trimmed := strings.TrimSpace(b.Text)
		if trimmed == "" {
			continue
		}
		if reScoreMarker.MatchString(trimmed) {
			continue
		}

		n, ok := matchNumber(trimmed)
		if !ok {
			continue
		}
		if n < p.MinProblemNumber || n > p.MaxProblemNumber {
			continue
		}

		offsetFromColumn := b.BBox.X - columnLeftX
		if offsetFromColumn > p.MaxMarkerXOffset {
			continue
		}

		candidate := Marker{
			Number:       n,
			PositionBBox: b.BBox,
			Confidence:   b.Confidence,
			SourceEngine: b.Engine,
		}

		existing, found := byNumber[n]
		if !found || betterMarker(candidate, existing) {
			byNumber[n] = candidate
		}
	}

	out := make([]Marker, 0, len(byNumber))
	for _, m := range byNumber {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionBBox.Y < out[j].PositionBBox.Y })
	return out
}

// betterMarker implements the dedup tie-break: higher confidence wins;
// on a tie, the marker with smaller bbox.y wins.
func betterMarker(candidate, existing Marker) bool {
	if candidate.Confidence != existing.Confidence {
		return candidate.Confidence > existing.Confidence
	}
	return candidate.PositionBBox.Y < existing.PositionBBox.Y
}

// matchNumber tries the three recognized patterns in order and returns
// the parsed problem number, or ok=false if none matched.
func matchNumber(trimmed string) (int, bool) {
	if m := reDotComma.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, true
		}
	}

	if reCircled.MatchString(trimmed) {
		r := []rune(trimmed)[0]
		if n, ok := circledValue[r]; ok {
			if isAnswerChoiceRun(trimmed) {
				return 0, false
			}
			return n, true
		}
	}

	if m := reBracketed.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			if isAnswerChoiceRun(trimmed) {
				return 0, false
			}
			return n, true
		}
	}

	return 0, false
}

// isAnswerChoiceRun reports whether trimmed contains more than one
// bracketed/circled-digit glyph, per spec.md's third rejection rule: a
// standalone bracketed or circled digit surrounded by other choice
// glyphs (e.g. "(1) (2) (3) (4)") is an answer-choice row, not a
// problem marker, even though reBracketed/reCircled's start-anchored
// match accepts its first glyph.
func isAnswerChoiceRun(trimmed string) bool {
	return len(reAnyChoiceGlyph.FindAllString(trimmed, 2)) > 1
}
