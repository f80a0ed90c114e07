// problem-cutter is a command-line tool for extracting individual exam
// problems from multi-column, rasterized test-paper pages and emitting
// each as a cropped image packaged into a ZIP archive alongside a
// manifest.
//
// It runs a two-stage OCR pipeline per column: a cheap local pass
// validated against the expected problem-number sequence, escalating to
// a remote coordinate-returning pass only for the numbers the local pass
// missed.
//
// Usage:
//
//	problem-cutter extract --images-dir ./pages --out ./job-out [options]
//	problem-cutter validate-layout --images-dir ./pages
//
// PDF rasterization is an external collaborator this tool does not
// perform itself (see DESIGN.md); callers supply already-rasterized page
// images via --images-dir. A --pdf path given without --images-dir is
// rejected with rasterize_failed; the path is not otherwise used.
//
// Authentication:
//
// The remote engine's credentials are read from REMOTE_OCR_APP_ID and
// REMOTE_OCR_APP_KEY, or overridden with --remote-credentials-file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
