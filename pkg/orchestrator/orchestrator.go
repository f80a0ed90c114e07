// Package orchestrator drives one job from rasterized page images to
// cropped problem images and a manifest, running the two-stage OCR
// pipeline described by spec.md §4.5: a cheap local pass validated
// against the expected problem-number sequence, escalating to a remote
// coordinate-returning pass only for the gaps that remain.
//
// The state machine is expressed as an explicit, monotonic sequence of
// named states (see State) rather than free-form control flow, following
// the same "make illegal transitions unrepresentable" approach the
// retrieval pack's retry/health-check loop (jackzampolin-shelf/internal/defra/
// docker.go's waitForReady) takes to bounded retries: every loop here
// terminates in a fixed number of steps by construction, never by luck.
package orchestrator

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/semaphore"

	"github.com/twoLoop-40/problem-cutter/internal/logging"
	"github.com/twoLoop-40/problem-cutter/pkg/boundary"
	"github.com/twoLoop-40/problem-cutter/pkg/errkind"
	"github.com/twoLoop-40/problem-cutter/pkg/geom"
	"github.com/twoLoop-40/problem-cutter/pkg/hocr"
	"github.com/twoLoop-40/problem-cutter/pkg/imaging"
	"github.com/twoLoop-40/problem-cutter/pkg/layout"
	"github.com/twoLoop-40/problem-cutter/pkg/manifest"
	"github.com/twoLoop-40/problem-cutter/pkg/marker"
	"github.com/twoLoop-40/problem-cutter/pkg/ocrengine"
	"github.com/twoLoop-40/problem-cutter/pkg/validator"
)

// State is one node of the per-column state machine in spec.md §4.5.
type State string

const (
	StateInit            State = "INIT"
	StateRasterized      State = "RASTERIZED"
	StateLaidOut         State = "LAID_OUT"
	StateLocalOCRDone    State = "LOCAL_OCR_DONE"
	StateValidatedStage1 State = "VALIDATED_STAGE1"
	StateStage1Gaps      State = "STAGE1_GAPS"
	StateRemoteOCRDone   State = "REMOTE_OCR_DONE"
	StateReconciled      State = "RECONCILED"
	StateValidatedFinal  State = "VALIDATED_FINAL"
	StateCompleteOK      State = "COMPLETE_OK"
	StateCompletePartial State = "COMPLETE_PARTIAL"
	StateFailed          State = "FAILED"
)

// Strategy controls whether and when the remote engine is consulted.
type Strategy string

const (
	StrategyLocalOnly       Strategy = "local_only"
	StrategyLocalThenRemote Strategy = "local_then_remote"
	StrategyManualFallback  Strategy = "manual_fallback"
)

// JobConfig is the immutable configuration for one job, per spec.md §3.
type JobConfig struct {
	Strategy             Strategy
	DPI                  int
	MaxRetries           int
	MinLocalConfidence   float64
	MinRemoteConfidence  float64
	ExpectedProblemCount int // 0 means "infer per column as {1..max detected}"
	OutputFormat         imaging.Format
	MaxRemoteInFlight    int64
	PerJobDeadline       time.Duration
	LocalOCRTimeout      time.Duration
	RemoteOCRTimeout     time.Duration
	DebugHOCR            bool // emit page<k>_col_<c>.hocr.html alongside cropped images
}

// DefaultJobConfig mirrors spec.md §3's defaults.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		Strategy:            StrategyLocalThenRemote,
		DPI:                 200,
		MaxRetries:          2,
		MinLocalConfidence:  0.5,
		MinRemoteConfidence: 0.7,
		OutputFormat:        imaging.PNG,
		MaxRemoteInFlight:   2,
		PerJobDeadline:      10 * time.Minute,
		LocalOCRTimeout:     60 * time.Second,
		RemoteOCRTimeout:    120 * time.Second,
	}
}

const maxProblemNumber = 100

// Orchestrator wires the local and remote engines into the two-stage
// pipeline. A single instance is safe to reuse across jobs.
type Orchestrator struct {
	Local  ocrengine.Engine
	Remote ocrengine.Engine // may be nil when Strategy == local_only
}

// New constructs an Orchestrator. remote may be nil for jobs that never
// use strategy local_then_remote or manual_fallback.
func New(local, remote ocrengine.Engine) *Orchestrator {
	return &Orchestrator{Local: local, Remote: remote}
}

// columnResult is the per-column outcome the job-level Run aggregates
// into a manifest.Manifest.
type columnResult struct {
	state      State
	boundaries []boundary.Boundary
	sources    map[int]string
	missing    []int
	err        error
}

// Run processes every page through layout analysis, the two-stage OCR
// pipeline, and boundary solving. Cropped problem images are written to
// a private scratch directory as each column finishes; outDir itself is
// populated by a single atomic rename once every page has completed, per
// spec.md §5's "writes go to a scratch directory; publishing is atomic
// rename at COMPLETE_*" rule. A fatal error — including a per-job
// deadline expiry — discards the scratch directory, so outDir never
// receives a partial job's output, and returns a manifest with Status
// "failed" and the triggering error recorded in Errors alongside the Go
// error itself, so a caller still has a status/errors payload to publish
// even though the job produced no images or ZIP.
func (o *Orchestrator) Run(ctx context.Context, jobID string, pages []image.Image, outDir string, cfg JobConfig) (*manifest.Manifest, error) {
	jlog := logging.WithJob(jobID)
	jlog.Info().Int("pages", len(pages)).Msg("job started")

	if cfg.PerJobDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.PerJobDeadline)
		defer cancel()
	}

	m := manifest.New(jobID)

	if len(pages) == 0 {
		return failJob(m, "", errkind.New(errkind.InvalidInput, "orchestrator.Run", fmt.Errorf("no pages to process")))
	}

	scratchDir, err := scratchDirFor(outDir)
	if err != nil {
		return failJob(m, "", errkind.New(errkind.InternalAssert, "orchestrator.Run", err))
	}

	sem := semaphore.NewWeighted(maxRemoteInFlight(cfg))

	for pageIdx, pg := range pages {
		select {
		case <-ctx.Done():
			return failJob(m, scratchDir, errkind.New(errkind.DeadlineExceeded, "orchestrator.Run", ctx.Err()))
		default:
		}

		page := layout.NewPageImage(pg, pageIdx)
		strips := layout.Analyze(page, layout.DefaultParams())

		pageManifest := manifest.Page{Page: pageIdx}
		for _, strip := range strips {
			res := o.runColumn(ctx, strip, cfg, sem)
			if res.state == StateFailed {
				return failJob(m, scratchDir, res.err)
			}

			col, files := o.materializeColumn(strip, res, pageIdx, cfg)
			pageManifest.Columns = append(pageManifest.Columns, col)
			if err := writeFiles(scratchDir, pageIdx, strip.ColumnIndex, files); err != nil {
				return failJob(m, scratchDir, errkind.New(errkind.InternalAssert, "orchestrator.Run", err))
			}
		}
		m.AddPage(pageManifest)
	}

	m.Finalize()

	if err := publish(scratchDir, outDir); err != nil {
		return failJob(m, scratchDir, errkind.New(errkind.InternalAssert, "orchestrator.Run", err))
	}
	return m, nil
}

// failJob finalizes m as a failed job: it records err's kind and message
// in m.Errors, discards scratchDir (a no-op if scratchDir is empty,
// i.e. the job never got far enough to create one), and returns both the
// manifest and err.
func failJob(m *manifest.Manifest, scratchDir string, err error) (*manifest.Manifest, error) {
	m.Status = manifest.StatusFailed
	m.AddError(string(errkind.KindOf(err)), err.Error())
	if scratchDir != "" {
		os.RemoveAll(scratchDir)
	}
	return m, err
}

// scratchDirFor creates a private scratch directory alongside outDir so
// the eventual publish is a same-filesystem rename rather than a copy.
func scratchDirFor(outDir string) (string, error) {
	parent := filepath.Dir(outDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("orchestrator: mkdir %s: %w", parent, err)
	}
	return os.MkdirTemp(parent, ".problem-cutter-scratch-*")
}

// publish atomically moves scratchDir's contents into outDir. A job
// directory is owned exclusively by one job for its lifetime (spec.md
// §5), so any pre-existing outDir is cleared first rather than merged.
func publish(scratchDir, outDir string) error {
	if err := os.RemoveAll(outDir); err != nil {
		return fmt.Errorf("orchestrator: clearing %s: %w", outDir, err)
	}
	if err := os.Rename(scratchDir, outDir); err != nil {
		return fmt.Errorf("orchestrator: publishing %s: %w", outDir, err)
	}
	return nil
}

// runColumn drives one column's (local → validate → [remote → reconcile
// → validate]) cycle through the states in §4.5, applying the retry
// policy in §4.5's "Retry policy" subsection.
func (o *Orchestrator) runColumn(ctx context.Context, strip layout.ColumnStrip, cfg JobConfig, sem *semaphore.Weighted) columnResult {
	clog := logging.For("orchestrator")
	state := StateLaidOut

	markerParams := marker.DefaultParams().ScaledForDPI(cfg.DPI)
	markerParams.MinConfidenceForSource = cfg.MinLocalConfidence

	// Both ocr_permanent and retry-budget-exhausted ocr_transient escalate
	// to ocr_failed, per spec.md §7's error-kind table.
	localResp, err := o.runLocalWithRetry(ctx, strip, cfg)
	if err != nil {
		return columnResult{state: StateFailed, err: errkind.New(errkind.OCRFailed, "runColumn", err)}
	}
	state = StateLocalOCRDone

	localMarkers := marker.Parse(localResp.Blocks, 0, markerParams)
	expected := expectedSet(cfg, localMarkers)
	diag := validator.Diagnose(numbersInYOrder(localMarkers), expected)
	state = StateValidatedStage1

	if len(diag.Missing) == 0 {
		bounds, err := boundary.Solve(localMarkers, strip.Rect.W, strip.Rect.H, boundary.Params{})
		if err != nil {
			return columnResult{state: StateFailed, err: errkind.New(errkind.InternalAssert, "runColumn", err)}
		}
		return columnResult{state: StateCompleteOK, boundaries: bounds, sources: sourceMap(localMarkers), missing: nil}
	}

	// One optional, budget-free internal retry widening the marker gate,
	// per spec.md §4.5's "Parameter adjustment on gaps" — applied before
	// ever spending a remote call.
	if cfg.MaxRetries > 0 {
		adjusted := validator.SuggestRetryParams(diag, validator.RetryParams{
			MaxMarkerXOffset:       markerParams.MaxMarkerXOffset,
			MinConfidenceForSource: markerParams.MinConfidenceForSource,
		})
		retryParams := markerParams
		retryParams.MaxMarkerXOffset = adjusted.MaxMarkerXOffset
		retryParams.MinConfidenceForSource = adjusted.MinConfidenceForSource
		retryMarkers := marker.Parse(localResp.Blocks, 0, retryParams)
		retryDiag := validator.Diagnose(numbersInYOrder(retryMarkers), expectedSet(cfg, retryMarkers))
		if len(retryDiag.Missing) < len(diag.Missing) {
			localMarkers, diag = retryMarkers, retryDiag
		}
	}

	if len(diag.Missing) == 0 {
		bounds, err := boundary.Solve(localMarkers, strip.Rect.W, strip.Rect.H, boundary.Params{})
		if err != nil {
			return columnResult{state: StateFailed, err: errkind.New(errkind.InternalAssert, "runColumn", err)}
		}
		return columnResult{state: StateCompleteOK, boundaries: bounds, sources: sourceMap(localMarkers), missing: nil}
	}

	if !remoteAllowed(cfg) || o.Remote == nil {
		state = StateCompletePartial
		bounds, err := boundary.Solve(localMarkers, strip.Rect.W, strip.Rect.H, boundary.Params{})
		if err != nil {
			return columnResult{state: StateFailed, err: errkind.New(errkind.InternalAssert, "runColumn", err)}
		}
		return columnResult{state: state, boundaries: bounds, sources: sourceMap(localMarkers), missing: diag.Missing}
	}

	state = StateStage1Gaps
	merged, remoteErr := o.runRemoteAndReconcile(ctx, strip, cfg, sem, localMarkers, diag.Missing)
	if remoteErr != nil {
		clog.Warn().Err(remoteErr).Int("column", strip.ColumnIndex).Msg("remote OCR unavailable, completing partial")
		state = StateCompletePartial
		bounds, err := boundary.Solve(localMarkers, strip.Rect.W, strip.Rect.H, boundary.Params{})
		if err != nil {
			return columnResult{state: StateFailed, err: errkind.New(errkind.InternalAssert, "runColumn", err)}
		}
		return columnResult{state: state, boundaries: bounds, sources: sourceMap(localMarkers), missing: diag.Missing}
	}
	state = StateReconciled

	finalExpected := expectedSet(cfg, merged)
	finalDiag := validator.Diagnose(numbersInYOrder(merged), finalExpected)
	state = StateValidatedFinal

	bounds, err := boundary.Solve(merged, strip.Rect.W, strip.Rect.H, boundary.Params{})
	if err != nil {
		return columnResult{state: StateFailed, err: errkind.New(errkind.InternalAssert, "runColumn", err)}
	}

	if len(finalDiag.Missing) == 0 {
		return columnResult{state: StateCompleteOK, boundaries: bounds, sources: sourceMap(merged), missing: nil}
	}
	return columnResult{state: StateCompletePartial, boundaries: bounds, sources: sourceMap(merged), missing: finalDiag.Missing}
}

// runLocalWithRetry retries the local OCR call on transient failures, per
// spec.md §4.5's retry policy (exponential backoff, no retry on
// permanent).
func (o *Orchestrator) runLocalWithRetry(ctx context.Context, strip layout.ColumnStrip, cfg JobConfig) (*ocrengine.Response, error) {
	callCtx, cancel := withTimeout(ctx, cfg.LocalOCRTimeout)
	defer cancel()

	var resp *ocrengine.Response
	err := retry.Do(
		func() error {
			r, err := o.Local.Run(callCtx, strip.Image, ocrengine.KoEn, cfg.DPI)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(callCtx),
		retry.Attempts(uint(cfg.MaxRetries)+1),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(errkind.IsRetryable),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// runRemoteAndReconcile sends strip's image to the remote engine in a
// single remote pass for the column (bounded by sem, per spec.md §5's "2
// in-flight remote calls per job" default; only transient failures are
// retried, up to cfg.MaxRetries more attempts), scales its coordinates
// into strip's pixel space, and
// merges the result with localMarkers. Only markers whose number is in
// missing are drawn from the remote pass, per §4.5 step 3.
func (o *Orchestrator) runRemoteAndReconcile(ctx context.Context, strip layout.ColumnStrip, cfg JobConfig, sem *semaphore.Weighted, localMarkers []marker.Marker, missing []int) ([]marker.Marker, error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, errkind.New(errkind.OCRTransient, "runRemoteAndReconcile", err)
	}
	defer sem.Release(1)

	callCtx, cancel := withTimeout(ctx, cfg.RemoteOCRTimeout)
	defer cancel()

	var resp *ocrengine.Response
	err := retry.Do(
		func() error {
			r, err := o.Remote.Run(callCtx, strip.Image, ocrengine.KoEn, cfg.DPI)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(callCtx),
		retry.Attempts(uint(cfg.MaxRetries)+1),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(errkind.IsRetryable),
	)
	if err != nil {
		if errkind.KindOf(err) == errkind.RemoteUnavailable {
			return nil, err
		}
		return nil, errkind.New(errkind.RemoteUnavailable, "runRemoteAndReconcile", err)
	}

	if resp.PageDims.W <= 0 || resp.PageDims.H <= 0 {
		return nil, errkind.New(errkind.RemoteUnavailable, "runRemoteAndReconcile", fmt.Errorf("remote engine reported empty page dimensions"))
	}

	// The position gate (MaxMarkerXOffset) is defined in the column
	// strip's pixel space, per spec.md §4.2, but the remote engine's
	// blocks are still in its own declared page-dimension space at this
	// point — reconcile (below) hasn't scaled them yet, and that space's
	// resolution is independent of cfg.DPI. Scale the threshold into the
	// remote engine's raw space by the same s_x reconcile will use, so
	// the gate rejects exactly the markers that would land outside the
	// offset once actually in strip space, per §9's coordinate-round-trip
	// law — mixing spaces here is "the single highest-risk bug in this
	// system."
	sx, _ := scaleFactors(strip.Rect.W, strip.Rect.H, resp.PageDims.W, resp.PageDims.H)
	remoteParams := marker.DefaultParams().ScaledForDPI(cfg.DPI)
	remoteParams.MinConfidenceForSource = cfg.MinRemoteConfidence
	if sx > 0 {
		remoteParams.MaxMarkerXOffset = int(float64(remoteParams.MaxMarkerXOffset)/sx + 0.5)
	}
	remoteMarkers := marker.Parse(resp.Blocks, 0, remoteParams)

	missingSet := make(map[int]bool, len(missing))
	for _, n := range missing {
		missingSet[n] = true
	}

	reconciled, err := reconcile(remoteMarkers, missingSet, strip.Rect.W, strip.Rect.H, resp.PageDims.W, resp.PageDims.H)
	if err != nil {
		return nil, errkind.New(errkind.InternalAssert, "runRemoteAndReconcile", err)
	}

	return mergeMarkers(localMarkers, reconciled), nil
}

// scaleFactors computes the per-axis ratio between the column strip's
// pixel space and the remote engine's declared page-dimension space.
// Both reconcile (for scaling marker rects) and runRemoteAndReconcile
// (for scaling the position gate before parsing) must derive sx/sy the
// same way, so any fix to one stays consistent with the other.
func scaleFactors(stripW, stripH, remoteW, remoteH int) (sx, sy float64) {
	return float64(stripW) / float64(remoteW), float64(stripH) / float64(remoteH)
}

// reconcile scales remote markers from the remote engine's declared page
// space into the column strip's pixel space, per spec.md §4.5 steps 1-3.
// It asserts containment after scaling, per §9's coordinate-round-trip
// law — a marker landing outside the strip indicates a scale-factor bug,
// not bad OCR input, and is reported as internal_assert.
func reconcile(remoteMarkers []marker.Marker, missing map[int]bool, stripW, stripH, remoteW, remoteH int) ([]marker.Marker, error) {
	sx, sy := scaleFactors(stripW, stripH, remoteW, remoteH)
	warnOnScaleMismatch(sx, sy)

	var out []marker.Marker
	for _, m := range remoteMarkers {
		if !missing[m.Number] {
			continue
		}
		x := int(float64(m.PositionBBox.X)*sx + 0.5)
		y := int(float64(m.PositionBBox.Y)*sy + 0.5)
		w := int(float64(m.PositionBBox.W)*sx + 0.5)
		h := int(float64(m.PositionBBox.H)*sy + 0.5)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		r, err := geom.NewRect(x, y, w, h)
		if err != nil {
			return nil, err
		}
		if !r.FitsWithin(stripW, stripH) {
			return nil, fmt.Errorf("reconciled marker %d rect %v escapes strip %dx%d", m.Number, r, stripW, stripH)
		}
		out = append(out, marker.Marker{
			Number:       m.Number,
			PositionBBox: r,
			Confidence:   m.Confidence,
			SourceEngine: "remote",
		})
	}
	return out, nil
}

// scaleMismatchTolerance is spec.md §4.5 step 2's 5% bound on how far sx
// and sy may diverge before a non-uniform remote rasterization is
// suspect. Exceeding it is not fatal — reconciliation proceeds with the
// computed factors regardless — but it is logged, since a mismatch here
// usually means the remote engine's declared page dimensions don't share
// the strip image's aspect ratio.
const scaleMismatchTolerance = 0.05

// warnOnScaleMismatch logs when sx and sy's relative difference exceeds
// scaleMismatchTolerance, per spec.md §4.5 step 2.
func warnOnScaleMismatch(sx, sy float64) {
	larger := math.Max(sx, sy)
	if larger == 0 {
		return
	}
	relDiff := math.Abs(sx-sy) / larger
	if relDiff > scaleMismatchTolerance {
		olog := logging.For("orchestrator")
		olog.Warn().
			Float64("sx", sx).
			Float64("sy", sy).
			Float64("relative_diff", relDiff).
			Msg("remote reconciliation scale factors diverge by more than 5%, proceeding anyway")
	}
}

// mergeMarkers combines local survivors with reconciled remote markers.
// On a number collision the higher-confidence marker wins; ties favor
// remote, per spec.md §4.5 step 4 and §9's documented open-question
// resolution.
func mergeMarkers(local, remote []marker.Marker) []marker.Marker {
	byNumber := make(map[int]marker.Marker, len(local)+len(remote))
	for _, m := range local {
		byNumber[m.Number] = m
	}
	for _, m := range remote {
		existing, ok := byNumber[m.Number]
		if !ok || m.Confidence >= existing.Confidence {
			byNumber[m.Number] = m
		}
	}
	out := make([]marker.Marker, 0, len(byNumber))
	for _, m := range byNumber {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionBBox.Y < out[j].PositionBBox.Y })
	return out
}

func expectedSet(cfg JobConfig, markers []marker.Marker) []int {
	if cfg.ExpectedProblemCount > 0 {
		out := make([]int, cfg.ExpectedProblemCount)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}
	return validator.ExpectedSet(numbers(markers), maxProblemNumber)
}

func numbers(markers []marker.Marker) []int {
	out := make([]int, len(markers))
	for i, m := range markers {
		out[i] = m.Number
	}
	return out
}

// numbersInYOrder assumes markers is already sorted by ascending bbox.y
// (the marker package's output invariant) and returns just the numbers,
// the shape validator.Diagnose needs to detect out-of-order sequences.
func numbersInYOrder(markers []marker.Marker) []int {
	return numbers(markers)
}

func sourceMap(markers []marker.Marker) map[int]string {
	out := make(map[int]string, len(markers))
	for _, m := range markers {
		out[m.Number] = m.SourceEngine
	}
	return out
}

func remoteAllowed(cfg JobConfig) bool {
	return cfg.Strategy == StrategyLocalThenRemote || cfg.Strategy == StrategyManualFallback
}

func maxRemoteInFlight(cfg JobConfig) int64 {
	if cfg.MaxRemoteInFlight > 0 {
		return cfg.MaxRemoteInFlight
	}
	return 2
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// materializeColumn crops and encodes every boundary in res into image
// bytes, and builds the corresponding manifest.Column entry. Filenames
// follow spec.md §6's page<k>_col_<c>_prob_<nn>.<ext> convention.
func (o *Orchestrator) materializeColumn(strip layout.ColumnStrip, res columnResult, pageIdx int, cfg JobConfig) (manifest.Column, map[string][]byte) {
	col := manifest.Column{Column: strip.ColumnIndex, Missing: res.missing}
	files := make(map[string][]byte, len(res.boundaries))

	for _, b := range res.boundaries {
		data, err := imaging.CropAndEncode(strip.Image, b.Rect, cfg.OutputFormat)
		name := fmt.Sprintf("page%d_col_%d_prob_%02d.%s", pageIdx, strip.ColumnIndex, b.ProblemNumber, cfg.OutputFormat.Ext())
		if err != nil {
			col.Missing = append(col.Missing, b.ProblemNumber)
			continue
		}
		files[name] = data
		col.Problems = append(col.Problems, manifest.Problem{
			Number: b.ProblemNumber,
			File:   filepath.Join(fmt.Sprintf("page_%d", pageIdx), "problems", name),
			Source: res.sources[b.ProblemNumber],
		})
	}
	sort.Slice(col.Problems, func(i, j int) bool { return col.Problems[i].Number < col.Problems[j].Number })
	sort.Ints(col.Missing)

	if cfg.DebugHOCR {
		if name, data, err := debugHOCRFile(strip, res, pageIdx); err == nil {
			files[name] = data
		}
	}
	return col, files
}

// debugHOCRFile renders the column's detected boundaries to hOCR HTML,
// for operators inspecting a partial or failed extraction (spec.md
// §4.3's optional debug capability).
func debugHOCRFile(strip layout.ColumnStrip, res columnResult, pageIdx int) (string, []byte, error) {
	blocks := make([]ocrengine.TextBlock, 0, len(res.boundaries))
	for _, b := range res.boundaries {
		blocks = append(blocks, ocrengine.TextBlock{
			Text:   fmt.Sprintf("%d", b.ProblemNumber),
			BBox:   b.Rect,
			Engine: res.sources[b.ProblemNumber],
		})
	}
	title := fmt.Sprintf("page_%d_col_%d", pageIdx, strip.ColumnIndex)
	html, err := hocr.RenderColumn(blocks, strip.Rect.W, strip.Rect.H, title)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("page%d_col_%d.hocr.html", pageIdx, strip.ColumnIndex), []byte(html), nil
}

func writeFiles(scratchDir string, pageIdx, _ int, files map[string][]byte) error {
	if len(files) == 0 {
		return nil
	}
	dir := filepath.Join(scratchDir, fmt.Sprintf("page_%d", pageIdx), "problems")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("orchestrator: mkdir %s: %w", dir, err)
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("orchestrator: write %s: %w", name, err)
		}
	}
	return nil
}
