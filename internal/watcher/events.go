package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

type EventType string

const (
	EventCreate EventType = "create"
	EventWrite  EventType = "write"
	EventRemove EventType = "remove"
	EventRename EventType = "rename"
)

type FileEvent struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// FilterConfig selects which inbox paths produce events.
type FilterConfig struct {
	AllowedExtensions   []string
	IgnorePatterns      []string
	WatchSubdirectories bool
	// Hold keeps a path's pending change unreported while it returns true,
	// e.g. a file the receiver is still appending to.
	Hold func(path string) bool
}

// DefaultFilterConfig watches extracted folders too and skips editor and OS droppings.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		IgnorePatterns:      []string{".tmp", ".swp", ".DS_Store", "~", ".part"},
		WatchSubdirectories: true,
	}
}

func (fc *FilterConfig) ShouldProcess(filePath string) bool {
	if len(fc.AllowedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(filePath))
		matched := false
		for _, allowed := range fc.AllowedExtensions {
			if strings.EqualFold(ext, allowed) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, pattern := range fc.IgnorePatterns {
		if strings.HasSuffix(filePath, pattern) {
			return false
		}
	}
	return true
}

// Held reports whether path must stay pending for now.
func (fc *FilterConfig) Held(path string) bool {
	return fc.Hold != nil && fc.Hold(path)
}
