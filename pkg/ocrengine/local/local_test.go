package local

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"os/exec"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/twoLoop-40/problem-cutter/pkg/ocrengine"
)

// ensureTesseractAvailable mirrors the retrieval pack's convention of
// skipping OCR-binding tests when the native tesseract binary isn't on
// PATH, rather than failing unrelated CI runs.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func TestEngine_ID(t *testing.T) {
	e := New()
	if e.ID() != "local" {
		t.Fatalf("ID()=%q, want %q", e.ID(), "local")
	}
}

func TestEngine_Run_RespectsCanceledContext(t *testing.T) {
	e := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, image.NewGray(image.Rect(0, 0, 10, 10)), ocrengine.KoEn, 200)
	if err == nil {
		t.Fatal("want an error for a canceled context")
	}
}

func TestEngine_Run_ReportsWordLevelBlocksInInputPixelSpace(t *testing.T) {
	ensureTesseractAvailable(t)

	img := image.NewRGBA(image.Rect(0, 0, 300, 120))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 60),
	}
	d.DrawString("3. Problem text")

	e := New()
	resp, err := e.Run(context.Background(), img, ocrengine.LanguageHints{"eng"}, 200)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.PageDims.W != 300 || resp.PageDims.H != 120 {
		t.Fatalf("page dims = %+v, want input image dims 300x120", resp.PageDims)
	}
	for _, b := range resp.Blocks {
		if !b.BBox.FitsWithin(300, 120) {
			t.Errorf("block %+v does not fit within the input image", b)
		}
	}
}
