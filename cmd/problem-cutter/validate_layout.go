package main

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/twoLoop-40/problem-cutter/pkg/errkind"
	"github.com/twoLoop-40/problem-cutter/pkg/layout"
)

// validateLayoutCmd runs only the layout analyzer against each page and
// reports detected column counts, recovering the original Python
// repository's standalone examples/detect_layout.py as an operator
// debugging aid (see SPEC_FULL.md §6).
func validateLayoutCmd() *cobra.Command {
	var imagesDir string
	var dpi int

	cmd := &cobra.Command{
		Use:   "validate-layout",
		Short: "Print the detected column layout for each page, without running OCR",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateLayout(imagesDir, dpi)
		},
	}
	cmd.Flags().StringVar(&imagesDir, "images-dir", "", "directory of pre-rasterized page images")
	cmd.Flags().IntVar(&dpi, "dpi", 200, "rasterization DPI hint")
	return cmd
}

func runValidateLayout(imagesDir string, _ int) error {
	if imagesDir == "" {
		return errkind.New(errkind.InvalidInput, "validate-layout", fmt.Errorf("--images-dir is required"))
	}

	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		return errkind.New(errkind.InvalidInput, "validate-layout", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	params := layout.DefaultParams()
	for i, name := range names {
		f, err := os.Open(filepath.Join(imagesDir, name))
		if err != nil {
			return errkind.New(errkind.InvalidInput, "validate-layout", err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return errkind.New(errkind.InvalidInput, "validate-layout", fmt.Errorf("decoding %s: %w", name, err))
		}

		page := layout.NewPageImage(img, i)
		strips := layout.Analyze(page, params)
		fmt.Printf("page %d (%s): %d column(s)\n", i, name, len(strips))
		for _, s := range strips {
			fmt.Printf("  column %d: x=%d w=%d h=%d\n", s.ColumnIndex, s.Rect.X, s.Rect.W, s.Rect.H)
		}
	}
	return nil
}
