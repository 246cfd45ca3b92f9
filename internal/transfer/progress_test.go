package transfer

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/The-Promised-Neverland/tsb/internal/models"
	"github.com/The-Promised-Neverland/tsb/internal/session"
	"github.com/fatih/color"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{3 * 1024 * 1024, "3.0 MiB"},
		{1536 * 1024 * 1024, "1.5 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConsoleReporter(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	rep := NewConsoleReporter(&buf)
	reason := session.ReasonHashMismatch

	rep.Notify(models.MsgTransferInit, session.Snapshot{Filename: "report.txt", Filesize: 2048})
	rep.Notify(models.MsgTransferProgress, session.Snapshot{Filename: "report.txt", Filesize: 2048, ReceivedBytes: 1024, State: session.StateReceiving})
	rep.Notify(models.MsgTransferFailed, session.Snapshot{ErrorState: &reason})
	rep.Notify(models.MsgTransferExtracted, session.Snapshot{ExtractedTo: "/tmp/report"})
	rep.Close()
	rep.Notify(models.MsgTransferInit, session.Snapshot{Filename: "late.txt"})

	out := buf.String()
	for _, want := range []string{
		"Incoming report.txt (2.0 KiB)",
		"Received 1024/2048 bytes (50.0%",
		"Transfer failed: hash mismatch",
		"Archive extracted to /tmp/report",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "late.txt") {
		t.Error("Notify after Close should be ignored")
	}
}

// stalledWriter blocks every Write until release is closed.
type stalledWriter struct {
	release chan struct{}
	mu      sync.Mutex
	buf     bytes.Buffer
}

func (w *stalledWriter) Write(p []byte) (int, error) {
	<-w.release
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func TestConsoleReporterDoesNotBlockOnStalledOutput(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	out := &stalledWriter{release: make(chan struct{})}
	rep := NewConsoleReporter(out)

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		rep.Notify(models.MsgTransferInit, session.Snapshot{Filename: "big.iso", Filesize: 1000})
		for i := 1; i <= 1000; i++ {
			rep.Notify(models.MsgTransferProgress, session.Snapshot{Filename: "big.iso", Filesize: 1000, ReceivedBytes: uint64(i)})
		}
		rep.Notify(models.MsgTransferCompleted, session.Snapshot{Filename: "big.iso"})
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked behind a stalled writer")
	}

	close(out.release)
	rep.Close()
	got := out.buf.String()
	if !strings.Contains(got, "Incoming big.iso") || !strings.Contains(got, "File received successfully: big.iso") {
		t.Errorf("state lines lost:\n%s", got)
	}
}
