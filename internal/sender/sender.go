// Package sender streams a local file to a receiver in sequential chunks.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/The-Promised-Neverland/tsb/internal/archive"
	"github.com/The-Promised-Neverland/tsb/internal/checksum"
	"github.com/The-Promised-Neverland/tsb/internal/config"
	"github.com/The-Promised-Neverland/tsb/internal/models"
	"github.com/The-Promised-Neverland/tsb/internal/session"
	"github.com/The-Promised-Neverland/tsb/pkg/logger"
	"github.com/The-Promised-Neverland/tsb/pkg/utils"
	"github.com/schollz/progressbar/v3"
)

type Options struct {
	ChunkSize     int
	HashAlgorithm checksum.Algorithm
	// Timeout bounds each HTTP call separately.
	Timeout time.Duration
	// Progress receives the progress bar; nil disables it.
	Progress io.Writer
	Client   *http.Client
}

// OptionsFromConfig maps the environment configuration onto sender options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	algo, err := checksum.ParseAlgorithm(cfg.HashAlgorithm())
	if err != nil {
		return Options{}, err
	}
	return Options{
		ChunkSize:     cfg.ChunkSize(),
		HashAlgorithm: algo,
		Timeout:       cfg.HTTPTimeout(),
		Progress:      os.Stderr,
	}, nil
}

type Sender struct {
	opts   Options
	client *http.Client
}

func New(opts Options) *Sender {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = config.DefaultChunkSize
	}
	if opts.HashAlgorithm == "" {
		opts.HashAlgorithm = checksum.MD5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Sender{opts: opts, client: client}
}

type Result struct {
	SessionID string
	Filename  string
	Bytes     uint64
	Chunks    int
	Archived  bool
	Duration  time.Duration
	Status    session.Snapshot
}

// Send runs init, chunk upload, and the final status check against targetURL.
func (s *Sender) Send(ctx context.Context, targetURL, localPath string) (*Result, error) {
	start := time.Now()
	absPath, err := filepath.Abs(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", localPath, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, absPath)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", absPath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, absPath)
	}

	sendPath, created, err := archive.Pack(absPath)
	if err != nil {
		return nil, err
	}
	if created {
		defer func() {
			if err := archive.Cleanup(sendPath); err != nil {
				logger.Log.Warn("Failed to remove temporary archive", "path", sendPath, "err", err)
			}
		}()
	}

	sendInfo, err := os.Stat(sendPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", sendPath, err)
	}
	digest, err := checksum.DigestWith(sendPath, s.opts.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	filename := filepath.Base(sendPath)
	filesize := uint64(sendInfo.Size())
	isArchive := created || archive.HasMarker(filename)

	initResp, err := s.initTransfer(ctx, targetURL, models.InitRequest{
		Filename:      &filename,
		Filesize:      &filesize,
		Filehash:      &digest,
		HashAlgorithm: string(s.opts.HashAlgorithm),
		IsArchive:     &isArchive,
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Receiver ready",
		"sessionId", initResp.SessionID,
		"filename", filename,
		"filesize", filesize,
		"isArchive", isArchive)

	chunks, err := s.streamChunks(ctx, targetURL, sendPath, filesize)
	if err != nil {
		return nil, err
	}

	snap, err := s.finalStatus(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	result := &Result{
		SessionID: initResp.SessionID,
		Filename:  filename,
		Bytes:     filesize,
		Chunks:    chunks,
		Archived:  created,
		Duration:  time.Since(start),
		Status:    snap,
	}
	logger.Log.Info("Transfer completed", "filename", filename, "bytes", filesize, "chunks", chunks, "duration", result.Duration.String())
	return result, nil
}

func (s *Sender) initTransfer(ctx context.Context, targetURL string, req models.InitRequest) (*models.InitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal init request: %w", err)
	}
	status, respBody, err := s.do(ctx, http.MethodPost, utils.JoinURL(targetURL, "/init"), "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("init request failed: %w", err)
	}
	if status != http.StatusOK {
		return nil, &ProtocolError{Op: "init", Status: status, Body: string(respBody)}
	}
	var resp models.InitResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode init response: %w", err)
	}
	return &resp, nil
}

func (s *Sender) streamChunks(ctx context.Context, targetURL, path string, filesize uint64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	bar := s.newBar(int64(filesize), filepath.Base(path))
	chunkURL := utils.JoinURL(targetURL, "/send_chunk")
	buf := make([]byte, s.opts.ChunkSize)
	chunks := 0
	for {
		if err := ctx.Err(); err != nil {
			return chunks, err
		}
		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			status, respBody, err := s.do(ctx, http.MethodPost, chunkURL, "application/octet-stream", buf[:n])
			if err != nil {
				return chunks, fmt.Errorf("chunk %d upload failed: %w", chunks+1, err)
			}
			if status != http.StatusOK {
				return chunks, &ProtocolError{Op: "send_chunk", Status: status, Body: string(respBody)}
			}
			chunks++
			if bar != nil {
				bar.Add(n)
			}
			logger.Log.Debug("Sent chunk", "chunk_number", chunks, "bytes", n)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return chunks, fmt.Errorf("failed to read %s: %w", path, readErr)
		}
	}
	if bar != nil {
		bar.Finish()
	}
	return chunks, nil
}

func (s *Sender) finalStatus(ctx context.Context, targetURL string) (session.Snapshot, error) {
	status, body, err := s.do(ctx, http.MethodGet, utils.JoinURL(targetURL, "/status"), "", nil)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("status request failed: %w", err)
	}
	if status != http.StatusOK {
		return session.Snapshot{}, &ProtocolError{Op: "status", Status: status, Body: string(body)}
	}
	var snap session.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return session.Snapshot{}, &IncompleteError{Body: string(body)}
	}
	if !snap.Completed {
		return snap, &IncompleteError{Body: string(body)}
	}
	return snap, nil
}

// do performs one request under its own deadline and returns the full response body.
func (s *Sender) do(ctx context.Context, method, url, contentType string, body []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (s *Sender) newBar(total int64, name string) *progressbar.ProgressBar {
	if s.opts.Progress == nil {
		return nil
	}
	w := s.opts.Progress
	return progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription("Sending "+name),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
	)
}
