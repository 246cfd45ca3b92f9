package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/The-Promised-Neverland/tsb/internal/archive"
	"github.com/The-Promised-Neverland/tsb/internal/checksum"
	"github.com/The-Promised-Neverland/tsb/internal/models"
	"github.com/The-Promised-Neverland/tsb/internal/session"
	"github.com/The-Promised-Neverland/tsb/pkg/logger"
	"github.com/google/uuid"
)

var (
	ErrInvalidInit         = errors.New("invalid init data")
	ErrInsufficientStorage = errors.New("insufficient disk space")
	ErrNoData              = errors.New("no data received")
	ErrNoSession           = errors.New("no active transfer")
	ErrSessionClosed       = errors.New("transfer already finished")
	ErrChunkOverflow       = errors.New("chunk exceeds declared file size")
	ErrIO                  = errors.New("failed to write chunk")
)

// Receiver owns the single transfer session. Mutations are serialized by mu;
// Status reads the last published snapshot without taking the lock.
type Receiver struct {
	dir       string
	extractor Extractor
	capacity  CapacityChecker

	mu   sync.Mutex
	sess session.Session
	file *os.File

	snapshot atomic.Pointer[session.Snapshot]

	observersMu sync.RWMutex
	observers   []Observer

	now   func() time.Time
	newID func() string
}

// NewReceiver stores incoming files under dir. capacity may be nil to skip the free-space check.
func NewReceiver(dir string, extractor Extractor, capacity CapacityChecker) *Receiver {
	if extractor == nil {
		extractor = ZipExtractor{}
	}
	r := &Receiver{
		dir:       dir,
		extractor: extractor,
		capacity:  capacity,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	r.publish()
	return r
}

func (r *Receiver) Dir() string {
	return r.dir
}

func (r *Receiver) Subscribe(o Observer) {
	r.observersMu.Lock()
	defer r.observersMu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *Receiver) notify(eventType string, snap session.Snapshot) {
	r.observersMu.RLock()
	defer r.observersMu.RUnlock()
	for _, o := range r.observers {
		o.Notify(eventType, snap)
	}
}

// publish must be called with mu held, or before the receiver is shared.
func (r *Receiver) publish() session.Snapshot {
	snap := r.sess.Snapshot()
	r.snapshot.Store(&snap)
	return snap
}

// Status returns the current session snapshot. It has no side effects.
func (r *Receiver) Status() session.Snapshot {
	return *r.snapshot.Load()
}

// InProgress reports whether path is the destination of a transfer that is still accepting chunks.
func (r *Receiver) InProgress(path string) bool {
	snap := r.Status()
	if !(session.Status{State: snap.State}).Accepting() {
		return false
	}
	return filepath.Clean(path) == filepath.Join(r.dir, snap.Filename)
}

func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	base := filepath.Base(filepath.FromSlash(name))
	switch base {
	case "", ".", "..", string(os.PathSeparator):
		return ""
	}
	return base
}

// Init validates the negotiation payload and unconditionally replaces the current session.
func (r *Receiver) Init(req models.InitRequest) (session.Snapshot, error) {
	if req.Filename == nil || req.Filesize == nil || req.Filehash == nil {
		return session.Snapshot{}, ErrInvalidInit
	}
	name := sanitizeFileName(*req.Filename)
	if name == "" || strings.TrimSpace(*req.Filehash) == "" {
		return session.Snapshot{}, ErrInvalidInit
	}
	algo, err := checksum.ParseAlgorithm(req.HashAlgorithm)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidInit, err)
	}
	if r.capacity != nil {
		free, err := r.capacity.FreeBytes(r.dir)
		if err != nil {
			logger.Log.Warn("Failed to query free disk space, skipping check", "dir", r.dir, "err", err)
		} else if *req.Filesize > free {
			return session.Snapshot{}, fmt.Errorf("%w: need %d bytes, %d free", ErrInsufficientStorage, *req.Filesize, free)
		}
	}
	isArchive := archive.HasMarker(name)
	if req.IsArchive != nil {
		isArchive = *req.IsArchive
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess.Status.State == session.StateReceiving {
		logger.Log.Warn("Abandoning in-progress transfer", "sessionId", r.sess.ID, "filename", r.sess.Filename,
			"receivedBytes", r.sess.ReceivedBytes, "filesize", r.sess.Filesize)
	}
	r.closeFile()
	r.sess.Reset(session.Params{
		ID:            r.newID(),
		Filename:      name,
		Filesize:      *req.Filesize,
		Filehash:      strings.TrimSpace(*req.Filehash),
		HashAlgorithm: algo,
		IsArchive:     isArchive,
	}, r.now())
	logger.Log.Info("Transfer initialized",
		"sessionId", r.sess.ID,
		"filename", name,
		"filesize", r.sess.Filesize,
		"hashAlgorithm", algo,
		"isArchive", isArchive)
	r.notify(models.MsgTransferInit, r.publish())

	if r.sess.Filesize == 0 {
		if err := r.openFile(); err != nil {
			r.failIO(err)
		} else {
			r.finalize()
		}
	}
	return r.publish(), nil
}

// WriteChunk appends data to the destination file and runs the completion check once
// every declared byte has arrived. Verification outcome is only visible via Status.
func (r *Receiver) WriteChunk(data []byte) (session.Snapshot, error) {
	if len(data) == 0 {
		return r.Status(), ErrNoData
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.sess.Status.State == "" || r.sess.Status.State == session.StateIdle:
		return r.publish(), ErrNoSession
	case r.sess.Status.Terminal():
		return r.publish(), ErrSessionClosed
	case !r.sess.Fits(len(data)):
		logger.Log.Warn("Rejecting chunk beyond declared size",
			"sessionId", r.sess.ID,
			"chunk_size", len(data),
			"receivedBytes", r.sess.ReceivedBytes,
			"filesize", r.sess.Filesize)
		return r.publish(), ErrChunkOverflow
	}

	if r.file == nil {
		if err := r.openFile(); err != nil {
			r.failIO(err)
			return r.publish(), fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	written, err := r.file.Write(data)
	if err != nil {
		logger.Log.Error("Failed to write chunk to destination file", "err", err, "written", written, "chunk_size", len(data))
		r.failIO(err)
		return r.publish(), fmt.Errorf("%w: %w", ErrIO, err)
	}
	r.sess.Advance(written, r.now())
	snap := r.publish()
	logger.Log.Debug("Received and wrote chunk",
		"bytes", written,
		"receivedBytes", snap.ReceivedBytes,
		"filesize", snap.Filesize,
		"rate", snap.Rate,
		"etaSeconds", snap.ETASeconds)
	r.notify(models.MsgTransferProgress, snap)

	if r.sess.Due() {
		r.finalize()
	}
	return r.publish(), nil
}

// Close releases the destination file handle, if any.
func (r *Receiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeFile()
}

func (r *Receiver) destPath() string {
	return filepath.Join(r.dir, r.sess.Filename)
}

// openFile truncates any stale file of the same name; the destination is append-only afterwards.
func (r *Receiver) openFile() error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create receive folder: %w", err)
	}
	f, err := os.OpenFile(r.destPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	r.file = f
	return nil
}

func (r *Receiver) closeFile() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	if err != nil {
		logger.Log.Error("Failed to close destination file", "err", err)
	}
	return err
}

func (r *Receiver) failIO(err error) {
	r.closeFile()
	r.sess.Fail("io error: " + err.Error())
	r.notify(models.MsgTransferFailed, r.publish())
}

// finalize verifies the written file and extracts it when it is a container.
func (r *Receiver) finalize() {
	path := r.destPath()
	if err := r.file.Sync(); err != nil {
		logger.Log.Warn("Failed to sync destination file", "path", path, "err", err)
	}
	if err := r.closeFile(); err != nil {
		r.failIO(err)
		return
	}
	digest, err := checksum.DigestWith(path, r.sess.HashAlgorithm)
	if err != nil {
		r.failIO(err)
		return
	}
	if !checksum.Equal(digest, r.sess.Filehash) {
		r.sess.Fail(session.ReasonHashMismatch)
		logger.Log.Error("Checksum mismatch, file retained for inspection",
			"sessionId", r.sess.ID,
			"path", path,
			"expected", r.sess.Filehash,
			"actual", digest)
		r.notify(models.MsgTransferFailed, r.publish())
		return
	}
	r.sess.Complete()
	logger.Log.Info("File received and verified",
		"sessionId", r.sess.ID,
		"path", path,
		"bytes", r.sess.ReceivedBytes,
		"duration", r.now().Sub(r.sess.StartTime).String())
	r.notify(models.MsgTransferCompleted, r.publish())

	if !r.sess.IsArchive {
		return
	}
	dest := archive.ExtractDir(path)
	if err := r.extractor.Unpack(path, dest); err != nil {
		r.sess.ExtractError = err.Error()
		logger.Log.Error("Failed to extract received archive", "path", path, "extractPath", dest, "err", err)
	} else {
		r.sess.ExtractedTo = dest
	}
	r.notify(models.MsgTransferExtracted, r.publish())
}
