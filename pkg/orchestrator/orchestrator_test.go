package orchestrator

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sync/semaphore"

	"github.com/twoLoop-40/problem-cutter/pkg/errkind"
	"github.com/twoLoop-40/problem-cutter/pkg/geom"
	"github.com/twoLoop-40/problem-cutter/pkg/layout"
	"github.com/twoLoop-40/problem-cutter/pkg/manifest"
	"github.com/twoLoop-40/problem-cutter/pkg/marker"
	"github.com/twoLoop-40/problem-cutter/pkg/ocrengine"
)

// fakeEngine is a scripted ocrengine.Engine for exercising the
// orchestrator without a real Tesseract or Document AI dependency. Like
// the real engines, it tags every returned block with its own ID.
type fakeEngine struct {
	id    string
	resp  *ocrengine.Response
	err   error
	calls int
}

func (f *fakeEngine) ID() string { return f.id }

func (f *fakeEngine) Run(ctx context.Context, img image.Image, hints ocrengine.LanguageHints, dpi int) (*ocrengine.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.resp == nil {
		return nil, nil
	}
	resp := *f.resp
	resp.Blocks = make([]ocrengine.TextBlock, len(f.resp.Blocks))
	for i, b := range f.resp.Blocks {
		b.Engine = f.id
		resp.Blocks[i] = b
	}
	return &resp, nil
}

func textBlock(text string, x, y int, conf float64) ocrengine.TextBlock {
	r, _ := geom.NewRect(x, y, 20, 20)
	return ocrengine.TextBlock{Text: text, BBox: r, Confidence: conf}
}

func blankPage(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return img
}

func TestRun_CleanSingleColumnAllFoundByLocal(t *testing.T) {
	local := &fakeEngine{id: "local", resp: &ocrengine.Response{
		Blocks: []ocrengine.TextBlock{
			textBlock("1.", 5, 100, 0.9),
			textBlock("2.", 5, 900, 0.9),
			textBlock("3.", 5, 1700, 0.9),
		},
		PageDims: ocrengine.Dimensions{W: 1169, H: 3309},
	}}
	o := New(local, nil)

	outDir := t.TempDir()
	m, err := o.Run(context.Background(), "job-1", []image.Image{blankPage(1169, 3309)}, outDir, DefaultJobConfig())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if m.Status != "ok" {
		t.Fatalf("status=%v, want ok", m.Status)
	}
	if len(m.Pages) != 1 || len(m.Pages[0].Columns) != 1 {
		t.Fatalf("got %+v, want 1 page with 1 column", m)
	}
	col := m.Pages[0].Columns[0]
	if len(col.Problems) != 3 || len(col.Missing) != 0 {
		t.Fatalf("column=%+v, want 3 problems and no missing", col)
	}
	for _, p := range col.Problems {
		if p.Source != "local" {
			t.Errorf("problem %d source=%q, want local", p.Number, p.Source)
		}
	}
}

func TestRun_MissingRecoveredByRemote(t *testing.T) {
	local := &fakeEngine{id: "local", resp: &ocrengine.Response{
		Blocks: []ocrengine.TextBlock{
			textBlock("1.", 5, 100, 0.9),
			textBlock("2.", 5, 500, 0.9),
			textBlock("4.", 5, 1400, 0.9),
		},
		PageDims: ocrengine.Dimensions{W: 1169, H: 3309},
	}}
	remote := &fakeEngine{id: "remote", resp: &ocrengine.Response{
		Blocks: []ocrengine.TextBlock{
			textBlock("3.", 245, 2374, 0.95),
		},
		PageDims: ocrengine.Dimensions{W: 2923, H: 8273},
	}}
	o := New(local, remote)

	outDir := t.TempDir()
	cfg := DefaultJobConfig()
	cfg.MaxRetries = 0 // force straight to remote without the internal parameter-adjustment retry
	m, err := o.Run(context.Background(), "job-2", []image.Image{blankPage(1169, 3309)}, outDir, cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	col := m.Pages[0].Columns[0]

	if remote.calls != 1 {
		t.Fatalf("remote called %d times, want exactly 1", remote.calls)
	}
	foundThree := false
	for _, p := range col.Problems {
		if p.Number == 3 {
			foundThree = true
			if p.Source != "remote" {
				t.Errorf("problem 3 source=%q, want remote", p.Source)
			}
		}
	}
	if !foundThree {
		t.Fatalf("column=%+v, want problem 3 recovered from remote", col)
	}
}

func TestRun_RemoteUnavailable_CompletesPartial(t *testing.T) {
	local := &fakeEngine{id: "local", resp: &ocrengine.Response{
		Blocks: []ocrengine.TextBlock{
			textBlock("1.", 5, 100, 0.9),
			textBlock("2.", 5, 900, 0.9),
			textBlock("5.", 5, 1700, 0.9),
		},
		PageDims: ocrengine.Dimensions{W: 1169, H: 3309},
	}}
	o := New(local, nil) // no remote engine wired, strategy still allows remote

	outDir := t.TempDir()
	cfg := DefaultJobConfig()
	cfg.MaxRetries = 0
	m, err := o.Run(context.Background(), "job-3", []image.Image{blankPage(1169, 3309)}, outDir, cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if m.Status != "partial" {
		t.Fatalf("status=%v, want partial", m.Status)
	}
	col := m.Pages[0].Columns[0]
	if len(col.Missing) == 0 {
		t.Fatalf("column=%+v, want non-empty missing", col)
	}
}

func TestReconcile_ScaleMismatchWarnsButStillReconciles(t *testing.T) {
	r, _ := geom.NewRect(245, 2374, 25, 27)
	remoteMarkers := []marker.Marker{{Number: 3, PositionBBox: r, Confidence: 0.95, SourceEngine: "remote"}}
	missing := map[int]bool{3: true}

	// sx = 1169/2923 ≈ 0.3999, sy = 3309/4000 ≈ 0.827 — well past the 5%
	// tolerance, but reconcile must still proceed rather than error.
	out, err := reconcile(remoteMarkers, missing, 1169, 3309, 2923, 4000)
	if err != nil {
		t.Fatalf("reconcile() error = %v, want it to log and proceed despite the scale mismatch", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d reconciled markers, want 1", len(out))
	}
}

func TestRunRemoteAndReconcile_PositionGateAppliesInStripSpace(t *testing.T) {
	// Remote is at a much higher resolution (2923x8273) than the strip
	// (1169x3309): sx ≈ 0.4. A marker at raw remote x=500 lands at
	// roughly x=200 in strip space once reconciled — well inside the
	// default 300px MaxMarkerXOffset. Gating on the raw coordinate
	// directly (the bug) rejects it anyway, since 500 > 300.
	remote := &fakeEngine{id: "remote", resp: &ocrengine.Response{
		Blocks: []ocrengine.TextBlock{
			textBlock("3.", 500, 2374, 0.95),
		},
		PageDims: ocrengine.Dimensions{W: 2923, H: 8273},
	}}
	o := New(&fakeEngine{id: "local"}, remote)

	stripRect, _ := geom.NewRect(0, 0, 1169, 3309)
	strip := layout.ColumnStrip{Rect: stripRect}
	sem := semaphore.NewWeighted(2)

	out, err := o.runRemoteAndReconcile(context.Background(), strip, DefaultJobConfig(), sem, nil, []int{3})
	if err != nil {
		t.Fatalf("runRemoteAndReconcile() error = %v", err)
	}
	if len(out) != 1 || out[0].Number != 3 {
		t.Fatalf("got %+v, want marker 3 recovered — the position gate must apply in strip space, not the remote engine's raw pixel space", out)
	}
}

func TestWarnOnScaleMismatch_NoPanicOnZeroFactors(t *testing.T) {
	warnOnScaleMismatch(0, 0) // must not divide by zero
}

func TestRun_NoPages_ReturnsInvalidInputError(t *testing.T) {
	o := New(&fakeEngine{id: "local"}, nil)
	_, err := o.Run(context.Background(), "job-4", nil, t.TempDir(), DefaultJobConfig())
	if err == nil {
		t.Fatal("want an error for zero pages")
	}
}

func TestRun_DeadlineExceeded_FailsWithoutLeakingOutput(t *testing.T) {
	local := &fakeEngine{id: "local", resp: &ocrengine.Response{
		Blocks:   []ocrengine.TextBlock{textBlock("1.", 5, 100, 0.9)},
		PageDims: ocrengine.Dimensions{W: 1169, H: 3309},
	}}
	o := New(local, nil)

	outDir := filepath.Join(t.TempDir(), "job-out")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultJobConfig()
	cfg.PerJobDeadline = 0 // use the already-canceled ctx as-is

	m, err := o.Run(ctx, "job-5", []image.Image{blankPage(1169, 3309)}, outDir, cfg)
	if err == nil {
		t.Fatal("want a deadline_exceeded error")
	}
	if errkind.KindOf(err) != errkind.DeadlineExceeded {
		t.Fatalf("err kind = %v, want deadline_exceeded", errkind.KindOf(err))
	}
	if m == nil || m.Status != manifest.StatusFailed {
		t.Fatalf("manifest=%+v, want non-nil with status failed", m)
	}
	if len(m.Errors) != 1 || m.Errors[0].Kind != string(errkind.DeadlineExceeded) {
		t.Fatalf("errors=%+v, want exactly one deadline_exceeded entry", m.Errors)
	}
	if _, statErr := os.Stat(outDir); !os.IsNotExist(statErr) {
		t.Fatalf("outDir=%s should not exist after a failed job, stat err=%v", outDir, statErr)
	}
}

func TestRun_ColumnFails_ManifestRecordsErrorAndNoOutputPublished(t *testing.T) {
	local := &fakeEngine{id: "local", err: errors.New("ocr exploded")}
	o := New(local, nil)

	outDir := filepath.Join(t.TempDir(), "job-out")
	m, err := o.Run(context.Background(), "job-6", []image.Image{blankPage(1169, 3309)}, outDir, DefaultJobConfig())
	if err == nil {
		t.Fatal("want an error when the local engine fails outright")
	}
	if m == nil || m.Status != manifest.StatusFailed {
		t.Fatalf("manifest=%+v, want non-nil with status failed", m)
	}
	if len(m.Errors) != 1 {
		t.Fatalf("errors=%+v, want exactly one entry", m.Errors)
	}
	if _, statErr := os.Stat(outDir); !os.IsNotExist(statErr) {
		t.Fatalf("outDir=%s should not exist after a failed job, stat err=%v", outDir, statErr)
	}
}

func TestRun_Success_PublishesFilesAndLeavesNoScratchDir(t *testing.T) {
	local := &fakeEngine{id: "local", resp: &ocrengine.Response{
		Blocks:   []ocrengine.TextBlock{textBlock("1.", 5, 100, 0.9)},
		PageDims: ocrengine.Dimensions{W: 1169, H: 3309},
	}}
	o := New(local, nil)

	parent := t.TempDir()
	outDir := filepath.Join(parent, "job-out")
	cfg := DefaultJobConfig()
	cfg.ExpectedProblemCount = 1

	m, err := o.Run(context.Background(), "job-7", []image.Image{blankPage(1169, 3309)}, outDir, cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if m.Status != "ok" {
		t.Fatalf("status=%v, want ok", m.Status)
	}
	if _, statErr := os.Stat(filepath.Join(outDir, "page_0", "problems")); statErr != nil {
		t.Fatalf("expected published problems dir, stat err=%v", statErr)
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatalf("ReadDir(parent) error = %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".problem-cutter-scratch-") {
			t.Fatalf("leftover scratch directory %q after a successful run", e.Name())
		}
	}
}
