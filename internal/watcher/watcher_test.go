package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/The-Promised-Neverland/tsb/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitWriter(io.Discard, slog.LevelError)
	os.Exit(m.Run())
}

func TestShouldProcess(t *testing.T) {
	def := DefaultFilterConfig()
	only := FilterConfig{AllowedExtensions: []string{".txt", ".PDF"}}
	tests := []struct {
		name string
		fc   FilterConfig
		path string
		want bool
	}{
		{"plain file", def, "/inbox/report.txt", true},
		{"swap file", def, "/inbox/.report.txt.swp", false},
		{"backup", def, "/inbox/report.txt~", false},
		{"ds store", def, "/inbox/.DS_Store", false},
		{"allowed ext", only, "/inbox/a.txt", true},
		{"allowed ext case", only, "/inbox/a.pdf", true},
		{"disallowed ext", only, "/inbox/a.zip", false},
	}
	held := FilterConfig{Hold: func(p string) bool { return p == "/inbox/partial.bin" }}
	if !held.Held("/inbox/partial.bin") || held.Held("/inbox/done.bin") {
		t.Error("Held() should follow the Hold func")
	}
	if def.Held("/inbox/partial.bin") {
		t.Error("Held() without a Hold func should be false")
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fc.ShouldProcess(tt.path); got != tt.want {
				t.Errorf("ShouldProcess(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestWatcherReportsNewFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(context.Background(), dir, DefaultFilterConfig())
	if err != nil {
		t.Fatal(err)
	}
	w.SetQuietPeriod(20 * time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-w.Events():
		if ev.Path != path {
			t.Errorf("event path = %q, want %q", ev.Path, path)
		}
		if ev.Type != EventCreate && ev.Type != EventWrite {
			t.Errorf("event type = %q", ev.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event for new file")
	}
}

func TestHeldPathIsReportedOnceReleased(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "incoming.bin")
	var receiving atomic.Bool
	receiving.Store(true)
	fc := DefaultFilterConfig()
	fc.Hold = func(p string) bool { return p == path && receiving.Load() }

	w, err := NewWatcher(context.Background(), dir, fc)
	if err != nil {
		t.Fatal(err)
	}
	w.SetQuietPeriod(20 * time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		f.Write([]byte("chunk"))
	}
	f.Close()

	select {
	case ev := <-w.Events():
		t.Fatalf("event %+v reported while the file is held", ev)
	case <-time.After(200 * time.Millisecond):
	}

	receiving.Store(false)
	select {
	case ev := <-w.Events():
		if ev.Path != path || ev.Type != EventCreate {
			t.Errorf("event = %+v, want create for %q", ev, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event after the hold was released")
	}
	select {
	case ev := <-w.Events():
		t.Errorf("unexpected second event %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCoalesce(t *testing.T) {
	tests := []struct {
		prev, next, want EventType
	}{
		{EventCreate, EventWrite, EventCreate},
		{EventWrite, EventWrite, EventWrite},
		{EventCreate, EventRemove, EventRemove},
		{EventWrite, EventRename, EventRename},
	}
	for _, tt := range tests {
		if got := coalesce(tt.prev, tt.next); got != tt.want {
			t.Errorf("coalesce(%q, %q) = %q, want %q", tt.prev, tt.next, got, tt.want)
		}
	}
}

func TestStopBeforeStart(t *testing.T) {
	w, err := NewWatcher(context.Background(), t.TempDir(), DefaultFilterConfig())
	if err != nil {
		t.Fatal(err)
	}
	w.Stop()
	if _, ok := <-w.Events(); ok {
		t.Error("Events() should be closed after Stop")
	}
}

func TestStopClosesEvents(t *testing.T) {
	w, err := NewWatcher(context.Background(), t.TempDir(), DefaultFilterConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	if _, ok := <-w.Events(); ok {
		t.Error("Events() should be closed after Stop")
	}
}
