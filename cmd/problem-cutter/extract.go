package main

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/twoLoop-40/problem-cutter/internal/config"
	"github.com/twoLoop-40/problem-cutter/internal/logging"
	"github.com/twoLoop-40/problem-cutter/pkg/errkind"
	"github.com/twoLoop-40/problem-cutter/pkg/manifest"
	"github.com/twoLoop-40/problem-cutter/pkg/ocrengine"
	"github.com/twoLoop-40/problem-cutter/pkg/ocrengine/local"
	"github.com/twoLoop-40/problem-cutter/pkg/ocrengine/remote"
	"github.com/twoLoop-40/problem-cutter/pkg/orchestrator"
	"github.com/twoLoop-40/problem-cutter/pkg/packager"
)

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run one extraction job to completion",
		RunE:  runExtract,
	}
	config.BindFlags(cmd)
	return cmd
}

func runExtract(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return errkind.New(errkind.InvalidInput, "extract", err)
	}
	if err := logging.Setup(cfg.LoggingConfig()); err != nil {
		return errkind.New(errkind.InvalidInput, "extract", err)
	}

	pages, err := loadPageImages(cfg)
	if err != nil {
		return err
	}

	eng := local.New()
	var rem ocrengine.Engine
	if cfg.RemoteCredentials.AppID != "" && cfg.RemoteProcessorID != "" {
		rem = remote.New(remote.ConfigFromCredentials(cfg.RemoteCredentials, cfg.RemoteLocation, cfg.RemoteProcessorID))
	}

	jobID := uuid.NewString()
	o := orchestrator.New(eng, rem)

	m, runErr := o.Run(cmd.Context(), jobID, pages, cfg.OutDir, cfg.JobConfig())
	// m is non-nil even on a fatal error (Status "failed", Errors
	// populated) — write it out regardless, so the job's caller always
	// has a status/errors payload to read, per spec.md §6.
	if m != nil {
		if writeErr := writeManifest(cfg.OutDir, m); writeErr != nil && runErr == nil {
			return errkind.New(errkind.InternalAssert, "extract", writeErr)
		}
	}
	if runErr != nil {
		return runErr
	}

	zipPath := cfg.OutDir + ".zip"
	if err := packager.BuildZIP(cfg.OutDir, zipPath); err != nil {
		return errkind.New(errkind.InternalAssert, "extract", err)
	}

	fmt.Printf("job %s: status=%s archive=%s\n", jobID, m.Status, zipPath)
	if string(m.Status) == "partial" {
		return errkind.New(errkind.ValidationPartial, "extract", fmt.Errorf("one or more columns are missing problem numbers"))
	}
	return nil
}

// writeManifest writes m as manifest.json inside outDir. outDir may not
// exist yet if the job failed before the orchestrator ever published its
// scratch directory, so it is created here rather than assumed present.
func writeManifest(outDir string, m *manifest.Manifest) error {
	data, err := m.MarshalIndent()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "manifest.json"), data, 0o644)
}

// loadPageImages resolves the job's input pages. Rasterizing a PDF is an
// external collaborator this tool does not perform (see DESIGN.md); a
// --pdf path without a pre-rasterized --images-dir is rejected rather
// than silently producing no pages.
func loadPageImages(cfg *config.Config) ([]image.Image, error) {
	if cfg.ImagesDir == "" {
		return nil, errkind.New(errkind.RasterizeFailed, "extract", fmt.Errorf("--pdf %q requires an external rasterizer; pass --images-dir with pre-rasterized pages instead", cfg.PDFPath))
	}

	entries, err := os.ReadDir(cfg.ImagesDir)
	if err != nil {
		return nil, errkind.New(errkind.InvalidInput, "extract", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	pages := make([]image.Image, 0, len(names))
	for _, name := range names {
		f, err := os.Open(filepath.Join(cfg.ImagesDir, name))
		if err != nil {
			return nil, errkind.New(errkind.InvalidInput, "extract", err)
		}
		img, _, err := image.Decode(f)
		closeErr := f.Close()
		if err != nil {
			return nil, errkind.New(errkind.InvalidInput, "extract", fmt.Errorf("decoding %s: %w", name, err))
		}
		if closeErr != nil {
			return nil, errkind.New(errkind.InternalAssert, "extract", closeErr)
		}
		pages = append(pages, img)
	}
	if len(pages) == 0 {
		return nil, errkind.New(errkind.InvalidInput, "extract", fmt.Errorf("no page images found in %s", cfg.ImagesDir))
	}
	return pages, nil
}
