// Package imaging provides the minimal crop-and-encode step between a
// computed boundary and a file on disk. Full PDF rasterization and a
// general-purpose image pipeline are assumed external collaborators per
// spec.md §1; this package covers only the narrow "given an image and a
// rectangle, return PNG or JPEG bytes" operation the core still needs to
// run end to end.
//
// DetectFormat mirrors pkg/pdfocr/create.go's detectImageType:
// sniff the format from the encoded bytes rather than trusting a filename
// extension.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/twoLoop-40/problem-cutter/pkg/geom"
)

// Format is an output encoding for a cropped problem image.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpg"
)

// subImager is satisfied by every concrete image.Image this pipeline
// produces (image.Gray, image.RGBA, ...); it lets Crop avoid a full pixel
// copy when the underlying image already supports zero-copy sub-imaging.
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the sub-image of img covered by r. r MUST fit within img's
// bounds; callers (the orchestrator, after boundary solving) are
// responsible for that invariant — Crop asserts it rather than silently
// clamping, since a boundary escaping its strip is a solver bug.
func Crop(img image.Image, r geom.Rect) (image.Image, error) {
	b := img.Bounds()
	if !r.FitsWithin(b.Dx(), b.Dy()) {
		return nil, fmt.Errorf("imaging: rect %v does not fit within image bounds %v", r, b)
	}
	rect := image.Rect(b.Min.X+r.X, b.Min.Y+r.Y, b.Min.X+r.Right(), b.Min.Y+r.Bottom())

	if si, ok := img.(subImager); ok {
		return si.SubImage(rect), nil
	}
	out := image.NewRGBA(image.Rect(0, 0, r.W, r.H))
	for y := 0; y < r.H; y++ {
		for x := 0; x < r.W; x++ {
			out.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out, nil
}

// Encode renders img in the given format, defaulting to PNG for any
// unrecognized format value.
func Encode(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case JPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("imaging: encode jpeg: %w", err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("imaging: encode png: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// CropAndEncode crops img to r and encodes the result in format, the
// single operation the orchestrator calls once per boundary.
func CropAndEncode(img image.Image, r geom.Rect, format Format) ([]byte, error) {
	cropped, err := Crop(img, r)
	if err != nil {
		return nil, err
	}
	return Encode(cropped, format)
}

// DetectFormat sniffs the encoded format of data, the same way
// pkg/pdfocr/create.go's detectImageType does via image.DecodeConfig.
func DetectFormat(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("imaging: detect format: %w", err)
	}
	return strings.ToUpper(format), nil
}

// Ext returns the file extension for a format, matching spec.md §6's
// output filename convention.
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return "png"
}
