// Package local implements the cheap first-pass OCR engine using the
// Tesseract binding, reporting bounding boxes in the input image's own
// pixel space.
//
// Grounded on the retrieval pack's Tesseract wrapper
// (wudi-pdfkit/ocr/tesseract/tesseract.go): the same gosseract.Client
// lifecycle (new client per call, SetImageFromBytes, SetLanguage,
// SetVariable for DPI, GetBoundingBoxes at word granularity). Unlike that
// wrapper, which merges all words into one text block per image, this
// engine returns one TextBlock per word — the marker parser needs each
// token's own position, not a merged paragraph bbox.
package local

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/twoLoop-40/problem-cutter/pkg/errkind"
	"github.com/twoLoop-40/problem-cutter/pkg/geom"
	"github.com/twoLoop-40/problem-cutter/pkg/ocrengine"
)

// Engine is a Tesseract-backed ocrengine.Engine.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// New constructs a local OCR engine.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

// ID identifies this engine for provenance tagging.
func (e *Engine) ID() string { return "local" }

// Run performs OCR on img and returns one text block per recognized word,
// in img's own pixel coordinate space, per spec.md §4.3's requirement that
// the local engine's page_dims equal the input image's dimensions.
func (e *Engine) Run(ctx context.Context, img image.Image, hints ocrengine.LanguageHints, dpi int) (*ocrengine.Response, error) {
	start := time.Now()

	select {
	case <-ctx.Done():
		return nil, errkind.New(errkind.OCRTransient, "local.Run", ctx.Err())
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errkind.New(errkind.OCRPermanent, "local.Run", fmt.Errorf("encode image: %w", err))
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, errkind.New(errkind.OCRPermanent, "local.Run", fmt.Errorf("set image: %w", err))
	}
	if len(hints) > 0 {
		if err := c.SetLanguage(hints...); err != nil {
			return nil, errkind.New(errkind.OCRPermanent, "local.Run", fmt.Errorf("set language: %w", err))
		}
	}
	if dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(dpi)); err != nil {
			return nil, errkind.New(errkind.OCRPermanent, "local.Run", fmt.Errorf("set dpi: %w", err))
		}
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, errkind.New(errkind.OCRTransient, "local.Run", fmt.Errorf("get bounding boxes: %w", err))
	}

	b := img.Bounds()
	blocks := make([]ocrengine.TextBlock, 0, len(boxes))
	for _, box := range boxes {
		r, rectErr := geom.NewRect(box.Box.Min.X, box.Box.Min.Y, box.Box.Dx(), box.Box.Dy())
		if rectErr != nil {
			continue
		}
		blocks = append(blocks, ocrengine.TextBlock{
			Text:       box.Word,
			BBox:       r,
			Confidence: box.Confidence / 100.0,
			Engine:     e.ID(),
		})
	}

	return &ocrengine.Response{
		Blocks:   blocks,
		EngineID: e.ID(),
		PageDims: ocrengine.Dimensions{W: b.Dx(), H: b.Dy()},
		Elapsed:  time.Since(start),
	}, nil
}
