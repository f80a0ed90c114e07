// Package packager assembles a job's output directory tree into the
// final ZIP archive, the last of the "assumed external collaborator"
// interfaces spec.md §1 names (alongside PDF rasterization and image
// encoding) that still needs a minimal, runnable implementation.
package packager

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// BuildZIP walks srcDir and writes every regular file into a ZIP archive
// at destZipPath, preserving the directory tree's relative paths as
// archive entry names — the manifest's declared file paths are relative
// to srcDir and so double as archive entry names unchanged.
func BuildZIP(srcDir, destZipPath string) error {
	out, err := os.Create(destZipPath)
	if err != nil {
		return fmt.Errorf("packager: create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("packager: relative path for %s: %w", path, err)
		}
		return addFile(zw, path, filepath.ToSlash(rel))
	})
}

func addFile(zw *zip.Writer, srcPath, archiveName string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("packager: open %s: %w", srcPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("packager: stat %s: %w", srcPath, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("packager: header for %s: %w", srcPath, err)
	}
	header.Name = archiveName
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("packager: create entry %s: %w", archiveName, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("packager: write entry %s: %w", archiveName, err)
	}
	return nil
}
