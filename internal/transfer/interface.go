package transfer

import (
	"github.com/The-Promised-Neverland/tsb/internal/archive"
	"github.com/The-Promised-Neverland/tsb/internal/session"
)

// Observer receives every session change. Implementations must not block.
type Observer interface {
	Notify(eventType string, snap session.Snapshot)
}

type ObserverFunc func(eventType string, snap session.Snapshot)

func (f ObserverFunc) Notify(eventType string, snap session.Snapshot) {
	f(eventType, snap)
}

type Extractor interface {
	Unpack(archivePath, destDir string) error
}

// CapacityChecker reports free bytes on the volume holding dir.
type CapacityChecker interface {
	FreeBytes(dir string) (uint64, error)
}

type ZipExtractor struct{}

func (ZipExtractor) Unpack(archivePath, destDir string) error {
	return archive.Unpack(archivePath, destDir)
}
