// Package session models the receiver's single transfer record and its state machine.
package session

import (
	"time"

	"github.com/The-Promised-Neverland/tsb/internal/checksum"
)

type State string

const (
	StateIdle        State = "idle"
	StateInitialized State = "initialized"
	StateReceiving   State = "receiving"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

const ReasonHashMismatch = "hash mismatch"

// minElapsed stands in for a zero elapsed time when computing the rate.
const minElapsed = time.Millisecond

// Status is the tagged state. Reason is only meaningful for StateFailed.
type Status struct {
	State  State
	Reason string
}

func (s Status) Terminal() bool {
	return s.State == StateCompleted || s.State == StateFailed
}

// Accepting reports whether chunks may still be appended.
func (s Status) Accepting() bool {
	return s.State == StateInitialized || s.State == StateReceiving
}

// Params are the negotiated fields supplied by init.
type Params struct {
	ID            string
	Filename      string
	Filesize      uint64
	Filehash      string
	HashAlgorithm checksum.Algorithm
	IsArchive     bool
}

type Session struct {
	Params
	ReceivedBytes uint64
	StartTime     time.Time
	Status        Status
	ExtractedTo   string
	ExtractError  string
	Rate          float64 // bytes per second
	ETASeconds    float64 // seconds until the declared size is reached at the current rate
}

// Reset discards any previous transfer and starts a new one.
func (s *Session) Reset(p Params, now time.Time) {
	*s = Session{
		Params:    p,
		StartTime: now,
		Status:    Status{State: StateInitialized},
	}
}

// Remaining is the number of bytes still expected.
func (s *Session) Remaining() uint64 {
	if s.ReceivedBytes >= s.Filesize {
		return 0
	}
	return s.Filesize - s.ReceivedBytes
}

// Fits reports whether n more bytes stay within the declared size.
func (s *Session) Fits(n int) bool {
	return uint64(n) <= s.Remaining()
}

// Due reports whether every declared byte has arrived.
func (s *Session) Due() bool {
	return s.ReceivedBytes >= s.Filesize
}

// Advance accounts for n appended bytes and refreshes rate and ETA.
func (s *Session) Advance(n int, now time.Time) {
	s.ReceivedBytes += uint64(n)
	s.Status = Status{State: StateReceiving}
	elapsed := now.Sub(s.StartTime)
	if elapsed < minElapsed {
		elapsed = minElapsed
	}
	s.Rate = float64(s.ReceivedBytes) / elapsed.Seconds()
	s.ETASeconds = 0
	if s.Rate > 0 {
		s.ETASeconds = float64(s.Remaining()) / s.Rate
	}
}

func (s *Session) Complete() {
	s.Status = Status{State: StateCompleted}
	s.ETASeconds = 0
}

func (s *Session) Fail(reason string) {
	s.Status = Status{State: StateFailed, Reason: reason}
}

// Snapshot is the immutable view served by the status operation.
type Snapshot struct {
	SessionID     string     `json:"sessionId"`
	Filename      string     `json:"filename"`
	Filesize      uint64     `json:"filesize"`
	Filehash      string     `json:"filehash"`
	HashAlgorithm string     `json:"hashAlgorithm"`
	ReceivedBytes uint64     `json:"receivedBytes"`
	StartTime     *time.Time `json:"startTime"`
	Completed     bool       `json:"completed"`
	ErrorState    *string    `json:"errorState"`
	IsArchive     bool       `json:"isArchive"`
	State         State      `json:"state"`
	ExtractedTo   string     `json:"extractedTo,omitempty"`
	ExtractError  string     `json:"extractError,omitempty"`
	Rate          float64    `json:"rate"`
	ETASeconds    float64    `json:"etaSeconds"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:     s.ID,
		Filename:      s.Filename,
		Filesize:      s.Filesize,
		Filehash:      s.Filehash,
		HashAlgorithm: string(s.HashAlgorithm),
		ReceivedBytes: s.ReceivedBytes,
		Completed:     s.Status.State == StateCompleted,
		IsArchive:     s.IsArchive,
		State:         s.Status.State,
		ExtractedTo:   s.ExtractedTo,
		ExtractError:  s.ExtractError,
		Rate:          s.Rate,
		ETASeconds:    s.ETASeconds,
	}
	if snap.State == "" {
		snap.State = StateIdle
	}
	if !s.StartTime.IsZero() {
		start := s.StartTime
		snap.StartTime = &start
	}
	if s.Status.State == StateFailed {
		reason := s.Status.Reason
		snap.ErrorState = &reason
	}
	return snap
}

// Percent is the share of the declared size received so far.
func (s Snapshot) Percent() float64 {
	if s.Filesize == 0 {
		if s.State == StateIdle {
			return 0
		}
		return 100
	}
	return float64(s.ReceivedBytes) / float64(s.Filesize) * 100
}
