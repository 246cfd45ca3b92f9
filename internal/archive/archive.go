package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/The-Promised-Neverland/tsb/pkg/logger"
)

// MarkerExt tells the receiver that the payload must be extracted on arrival.
const MarkerExt = ".tsbzip"

var knownExtensions = []string{".zip", ".rar", ".7z", MarkerExt}

var (
	ErrExtraction = errors.New("archive: extraction failed")
	ErrPack       = errors.New("archive: packing failed")
)

// IsArchive reports whether path already carries a recognized archive extension.
func IsArchive(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, known := range knownExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// HasMarker reports whether name ends with the reserved auto-extract extension.
func HasMarker(name string) bool {
	return strings.EqualFold(filepath.Ext(name), MarkerExt)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExtractDir is the directory an archive at archivePath unpacks into: a sibling named after its stem.
// Names without a usable extension get an "_extracted" suffix so the directory never shadows the archive.
func ExtractDir(archivePath string) string {
	base := filepath.Base(archivePath)
	name := stem(archivePath)
	if name == "" || name == base {
		name = base + "_extracted"
	}
	return filepath.Join(filepath.Dir(archivePath), name)
}

// Pack wraps sourcePath into a single-entry deflate container unless it already is an archive.
// created is false when sourcePath is returned unchanged.
func Pack(sourcePath string) (archivePath string, created bool, err error) {
	if IsArchive(sourcePath) {
		return sourcePath, false, nil
	}
	src, err := os.Open(sourcePath)
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to open source: %w", ErrPack, err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to stat source: %w", ErrPack, err)
	}

	tempDir, err := os.MkdirTemp("", "tsb-pack-*")
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to create temp dir: %w", ErrPack, err)
	}
	archivePath = filepath.Join(tempDir, stem(sourcePath)+MarkerExt)
	if err := writeContainer(archivePath, src, info); err != nil {
		os.RemoveAll(tempDir)
		return "", false, err
	}
	logger.Log.Info("Packed file for transfer", "source", sourcePath, "archive", archivePath)
	return archivePath, true, nil
}

func writeContainer(archivePath string, src io.Reader, info os.FileInfo) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("%w: failed to create archive: %w", ErrPack, err)
	}
	defer out.Close()
	zw := zip.NewWriter(out)
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("%w: failed to build entry header: %w", ErrPack, err)
	}
	header.Name = info.Name()
	header.Method = zip.Deflate
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("%w: failed to create entry: %w", ErrPack, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("%w: failed to write entry: %w", ErrPack, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: failed to finish archive: %w", ErrPack, err)
	}
	return out.Sync()
}

// Cleanup removes an archive created by Pack along with its temp directory.
func Cleanup(archivePath string) error {
	dir := filepath.Dir(archivePath)
	if strings.HasPrefix(filepath.Base(dir), "tsb-pack-") {
		return os.RemoveAll(dir)
	}
	return os.Remove(archivePath)
}

// Unpack extracts every entry of the container into destDir and deletes the container.
// Extraction is not atomic: entries written before a failure stay on disk.
func Unpack(archivePath, destDir string) error {
	if err := extract(archivePath, destDir); err != nil {
		return err
	}
	if err := os.Remove(archivePath); err != nil {
		logger.Log.Warn("Failed to remove archive after extraction", "path", archivePath, "err", err)
	}
	logger.Log.Info("Successfully extracted archive", "archive", archivePath, "extractPath", destDir)
	return nil
}

func extract(archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create extract directory: %w", ErrExtraction, err)
	}
	// Insecure names are filtered per entry below.
	zr, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("%w: failed to open archive: %w", ErrExtraction, err)
	}
	defer zr.Close()

	destClean := filepath.Clean(destDir)
	for _, entry := range zr.File {
		cleanName := filepath.Clean(filepath.FromSlash(entry.Name))
		if cleanName == "" || cleanName == "." || cleanName == string(os.PathSeparator) {
			logger.Log.Error("Skipping root/empty archive entry", "name", entry.Name)
			continue
		}
		targetPath := filepath.Join(destClean, cleanName)
		if !strings.HasPrefix(targetPath, destClean+string(os.PathSeparator)) {
			logger.Log.Warn("Skipping entry with invalid path (outside extract directory)",
				"path", entry.Name,
				"targetPath", targetPath)
			continue
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return fmt.Errorf("%w: failed to create directory: %w", ErrExtraction, err)
			}
			continue
		}
		if err := extractFile(entry, targetPath); err != nil {
			return err
		}
		logger.Log.Debug("Extracted file", "path", targetPath, "size", entry.UncompressedSize64)
	}
	return nil
}

func extractFile(entry *zip.File, targetPath string) error {
	if info, err := os.Stat(targetPath); err == nil && info.IsDir() {
		return fmt.Errorf("%w: target path is a directory: %s", ErrExtraction, targetPath)
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return fmt.Errorf("%w: failed to create parent directory: %w", ErrExtraction, err)
	}
	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: failed to open entry %s: %w", ErrExtraction, entry.Name, err)
	}
	defer rc.Close()
	mode := entry.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("%w: failed to create file: %w", ErrExtraction, err)
	}
	if _, err := io.Copy(outFile, rc); err != nil {
		outFile.Close()
		return fmt.Errorf("%w: failed to write file: %w", ErrExtraction, err)
	}
	if err := outFile.Close(); err != nil {
		return fmt.Errorf("%w: failed to close file: %w", ErrExtraction, err)
	}
	return nil
}
