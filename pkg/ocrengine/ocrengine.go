// Package ocrengine defines the OCR engine contract shared by the local
// and remote implementations (see ocrengine/local and ocrengine/remote),
// and the text-block types that flow from OCR into marker parsing.
//
// The Engine interface and Response shape mirror the OCRService /
// ocr.Engine conventions seen across the retrieval pack (Google-Cloud-OCR
// wrappers and the Tesseract-backed extension engines): a single blocking
// call that accepts an image and language hints and returns text blocks
// with bounding boxes, never raising for unrecognized content.
package ocrengine

import (
	"context"
	"image"
	"time"

	"github.com/twoLoop-40/problem-cutter/pkg/geom"
)

// TextBlock is one OCR output atom: recognized text with its pixel bbox,
// confidence, and the engine that produced it. Immutable once constructed.
type TextBlock struct {
	Text       string
	BBox       geom.Rect
	Confidence float64 // [0, 1]
	Engine     string
}

// Dimensions is a page's width/height as reported by an engine. It may
// differ from the input image's pixel dimensions when an engine
// internally rasterizes at its own resolution (e.g. a remote engine).
type Dimensions struct {
	W, H int
}

// Response is the result of one OCR invocation.
type Response struct {
	Blocks     []TextBlock
	EngineID   string
	PageDims   Dimensions
	Elapsed    time.Duration
}

// RemoteCredentials is the typed form of spec.md §3's opaque
// remote_credentials blob: the two values read from the literal
// environment names REMOTE_OCR_APP_ID / REMOTE_OCR_APP_KEY (or the
// equivalent CLI flags), independent of which concrete remote engine
// they end up configuring.
type RemoteCredentials struct {
	AppID  string
	AppKey string
}

// LanguageHints is the minimum hint set every engine must accept.
type LanguageHints []string

// KoEn is the default hint set for Korean exam sheets with English
// interleaving, per spec.md's "multi-language OCR tuning beyond
// Korean+English" non-goal: this pair is the one combination this system
// tunes for.
var KoEn = LanguageHints{"ko", "en"}

// Engine is the shared OCR contract. Implementations must never panic or
// return an error for unrecognized content — an empty block list is a
// valid response. Failures are classified via pkg/errkind (transient,
// permanent, or unavailable) by the caller inspecting the returned error.
type Engine interface {
	// Run performs OCR on img at the given DPI hint, using the supplied
	// language hints, and returns recognized text blocks with bounding
	// boxes in the engine's own coordinate space (see Response.PageDims).
	Run(ctx context.Context, img image.Image, hints LanguageHints, dpi int) (*Response, error)

	// ID identifies the engine for provenance tagging (TextBlock.Engine,
	// Marker.SourceEngine).
	ID() string
}
