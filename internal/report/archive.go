package report

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Archive writes a zip copy of the run's output directory to dstPath. The
// archive itself (and anything else outside OutDir) is excluded, so archiving
// into a subdirectory of the output tree is safe.
func (w *Writer) Archive(dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	f, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	absDst, _ := filepath.Abs(dstPath)

	err = filepath.WalkDir(w.OutDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == absDst {
			return nil
		}
		rel, err := filepath.Rel(w.OutDir, path)
		if err != nil {
			return err
		}
		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("archive entry %s: %w", rel, err)
		}
		src, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("archive read %s: %w", rel, err)
		}
		defer src.Close()
		if _, err := io.Copy(entry, src); err != nil {
			return fmt.Errorf("archive copy %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", w.OutDir, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	w.log.Info("run archived", "path", dstPath)
	return nil
}

// ArchiveName builds a timestamped archive filename from the output
// directory name.
func ArchiveName(outDir, timestamp string) string {
	base := strings.TrimSuffix(filepath.Base(outDir), string(filepath.Separator))
	return base + "_" + timestamp + ".zip"
}
