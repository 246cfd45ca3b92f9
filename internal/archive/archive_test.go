package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/The-Promised-Neverland/tsb/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitWriter(io.Discard, slog.LevelError)
	os.Exit(m.Run())
}

func TestIsArchive(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"photo.zip", true},
		{"PHOTO.ZIP", true},
		{"backup.rar", true},
		{"data.7z", true},
		{"report.tsbzip", true},
		{"report.txt", false},
		{"Makefile", false},
		{"archive.tar.gz", false},
	}
	for _, tt := range tests {
		if got := IsArchive(tt.path); got != tt.want {
			t.Errorf("IsArchive(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if !HasMarker("x.TSBZIP") || HasMarker("x.zip") {
		t.Error("HasMarker should only match the reserved extension")
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	content := bytes.Repeat([]byte("round trip payload\n"), 5000)
	src := filepath.Join(srcDir, "report.txt")
	if err := os.WriteFile(src, content, 0644); err != nil {
		t.Fatal(err)
	}

	archivePath, created, err := Pack(src)
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	defer Cleanup(archivePath)
	if !created {
		t.Fatal("Pack() created = false for a plain file")
	}
	if filepath.Base(archivePath) != "report.tsbzip" {
		t.Errorf("archive name = %q, want report.tsbzip", filepath.Base(archivePath))
	}

	// Simulate arrival in a receive folder.
	recvDir := t.TempDir()
	received := filepath.Join(recvDir, filepath.Base(archivePath))
	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(received, data, 0644); err != nil {
		t.Fatal(err)
	}

	dest := ExtractDir(received)
	if dest != filepath.Join(recvDir, "report") {
		t.Errorf("ExtractDir() = %q", dest)
	}
	if err := Unpack(received, dest); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "report.txt"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("extracted content differs from original")
	}
	if _, err := os.Stat(received); !os.IsNotExist(err) {
		t.Error("Unpack() should delete the container on success")
	}
}

func TestExtractDir(t *testing.T) {
	dir := filepath.Join("recv", "inbox")
	tests := []struct {
		name string
		want string
	}{
		{"report.tsbzip", "report"},
		{"photos.zip", "photos"},
		{"archive.tar.gz", "archive.tar"},
		{"payload", "payload_extracted"},
		{".tsbzip", ".tsbzip_extracted"},
	}
	for _, tt := range tests {
		got := ExtractDir(filepath.Join(dir, tt.name))
		if want := filepath.Join(dir, tt.want); got != want {
			t.Errorf("ExtractDir(%q) = %q, want %q", tt.name, got, want)
		}
	}
}

func TestUnpackExtensionlessArchive(t *testing.T) {
	src := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(src, []byte("no extension on the wire"), 0644); err != nil {
		t.Fatal(err)
	}
	packed, _, err := Pack(src)
	if err != nil {
		t.Fatal(err)
	}
	defer Cleanup(packed)

	received := filepath.Join(t.TempDir(), "payload")
	data, err := os.ReadFile(packed)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(received, data, 0644); err != nil {
		t.Fatal(err)
	}
	dest := ExtractDir(received)
	if err := Unpack(received, dest); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "notes.txt"))
	if err != nil || string(got) != "no extension on the wire" {
		t.Errorf("extracted = %q, err = %v", got, err)
	}
}

func TestPackLeavesArchivesAlone(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bundle.zip")
	if err := os.WriteFile(src, []byte("not really a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	got, created, err := Pack(src)
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if created || got != src {
		t.Errorf("Pack() = %q, %v; want %q, false", got, created, src)
	}
}

func TestPackMissingSource(t *testing.T) {
	_, _, err := Pack(filepath.Join(t.TempDir(), "nope.txt"))
	if !errors.Is(err, ErrPack) {
		t.Fatalf("Pack() error = %v, want ErrPack", err)
	}
}

func TestUnpackCorruptContainer(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "broken.tsbzip")
	if err := os.WriteFile(bad, []byte("definitely not a zip container"), 0644); err != nil {
		t.Fatal(err)
	}
	err := Unpack(bad, filepath.Join(dir, "broken"))
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("Unpack() error = %v, want ErrExtraction", err)
	}
	if _, statErr := os.Stat(bad); statErr != nil {
		t.Error("a failed Unpack() must keep the container")
	}
}

func TestUnpackSkipsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tsbzip")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"../escape.txt":   "outside",
		"inside/keep.txt": "inside",
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(body))
	}
	zw.Close()
	f.Close()

	dest := filepath.Join(dir, "evil")
	if err := Unpack(archivePath, dest); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Error("entry escaping the destination was extracted")
	}
	if got, _ := os.ReadFile(filepath.Join(dest, "inside", "keep.txt")); string(got) != "inside" {
		t.Errorf("inside/keep.txt = %q, want %q", got, "inside")
	}
}

func TestCleanupRemovesTempDir(t *testing.T) {
	src := filepath.Join(t.TempDir(), "notes.md")
	os.WriteFile(src, []byte("# notes"), 0644)
	archivePath, _, err := Pack(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := Cleanup(archivePath); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(archivePath)); !os.IsNotExist(err) {
		t.Error("Cleanup() left the temp directory behind")
	}
}
