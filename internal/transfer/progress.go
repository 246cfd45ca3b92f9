package transfer

import (
	"fmt"
	"io"
	"sync"

	"github.com/The-Promised-Neverland/tsb/internal/models"
	"github.com/The-Promised-Neverland/tsb/internal/session"
	"github.com/The-Promised-Neverland/tsb/pkg/logger"
	"github.com/fatih/color"
)

const reporterBacklog = 256

type report struct {
	eventType string
	snap      session.Snapshot
}

// ConsoleReporter prints one human-readable line per observation.
// Notify never blocks: lines are queued for a single writer goroutine and
// dropped when the backlog is full.
type ConsoleReporter struct {
	out       io.Writer
	queue     chan report
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	c := &ConsoleReporter{
		out:   out,
		queue: make(chan report, reporterBacklog),
		done:  make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *ConsoleReporter) Notify(eventType string, snap session.Snapshot) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	// Progress keeps the upper half of the queue free for state changes.
	if eventType == models.MsgTransferProgress && len(c.queue) >= reporterBacklog/2 {
		return
	}
	select {
	case c.queue <- report{eventType: eventType, snap: snap}:
	default:
		logger.Log.Warn("Console reporter backlog full, dropping line", "type", eventType)
	}
}

// Close drains queued lines and stops the writer goroutine.
func (c *ConsoleReporter) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.queue)
		c.mu.Unlock()
		<-c.done
	})
}

func (c *ConsoleReporter) run() {
	defer close(c.done)
	for r := range c.queue {
		c.render(r.eventType, r.snap)
	}
}

var (
	progressColor = color.New(color.FgCyan)
	successColor  = color.New(color.FgGreen, color.Bold)
	failureColor  = color.New(color.FgRed, color.Bold)
	noticeColor   = color.New(color.FgYellow)
)

func (c *ConsoleReporter) render(eventType string, snap session.Snapshot) {
	switch eventType {
	case models.MsgTransferInit:
		noticeColor.Fprintf(c.out, "📦 Incoming %s (%s)\n", snap.Filename, FormatBytes(snap.Filesize))
	case models.MsgTransferProgress:
		progressColor.Fprintf(c.out, "\r📥 Received %d/%d bytes (%.1f%%, %s/s, ETA %.0fs)",
			snap.ReceivedBytes, snap.Filesize, snap.Percent(), FormatBytes(uint64(snap.Rate)), snap.ETASeconds)
	case models.MsgTransferCompleted:
		successColor.Fprintf(c.out, "\n✅ File received successfully: %s\n", snap.Filename)
	case models.MsgTransferFailed:
		reason := "unknown error"
		if snap.ErrorState != nil {
			reason = *snap.ErrorState
		}
		failureColor.Fprintf(c.out, "\n❌ Transfer failed: %s\n", reason)
	case models.MsgTransferExtracted:
		if snap.ExtractError != "" {
			failureColor.Fprintf(c.out, "❗ Extraction failed: %s\n", snap.ExtractError)
			return
		}
		successColor.Fprintf(c.out, "📂 Archive extracted to %s\n", snap.ExtractedTo)
	}
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
