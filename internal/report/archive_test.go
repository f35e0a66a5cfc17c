package report

import (
	"archive/zip"
	"path/filepath"
	"testing"
	"time"
)

func TestArchive(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.WriteReport(sampleReport(time.Now().UTC()), FormatBoth); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if _, err := w.WriteComms("5381234567", "thread"); err != nil {
		t.Fatalf("WriteComms: %v", err)
	}

	dst := filepath.Join(dir, "run.zip")
	if err := w.Archive(dst); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	zr, err := zip.OpenReader(dst)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{
		"cases_overview.json",
		"cases_overview.csv",
		"cases/5381234567_communications_redacted.txt",
	} {
		if !names[want] {
			t.Errorf("archive missing %q; has %v", want, names)
		}
	}
	if names["run.zip"] {
		t.Error("archive contains itself")
	}
}

func TestArchiveName(t *testing.T) {
	got := ArchiveName("/var/out", "20260605_150000")
	want := "out_20260605_150000.zip"
	if got != want {
		t.Errorf("ArchiveName = %q, want %q", got, want)
	}
}
