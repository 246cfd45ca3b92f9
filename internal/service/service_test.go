package service

import (
	"testing"

	"github.com/The-Promised-Neverland/tsb/internal/config"
)

func TestFreeBytes(t *testing.T) {
	s := NewService(config.New())
	free, err := s.FreeBytes(t.TempDir())
	if err != nil {
		t.Fatalf("FreeBytes() error = %v", err)
	}
	if free == 0 {
		t.Error("FreeBytes() = 0 on a writable temp dir")
	}
	if _, err := s.FreeBytes("/definitely/not/a/real/dir"); err == nil {
		t.Error("FreeBytes() on a missing dir should fail")
	}
}

func TestHealth(t *testing.T) {
	t.Setenv("TSB_RECEIVE_DIR", t.TempDir())
	s := NewService(config.New())
	h := s.Health()
	if h.Status != "Healthy" {
		t.Errorf("Status = %q, want Healthy", h.Status)
	}
	if h.Uptime < 0 {
		t.Errorf("Uptime = %d", h.Uptime)
	}
}
