package models

import "time"

const (
	MsgTransferInit      = "transfer_init"
	MsgTransferProgress  = "transfer_progress"
	MsgTransferCompleted = "transfer_completed"
	MsgTransferFailed    = "transfer_failed"
	MsgTransferExtracted = "transfer_extracted"
	MsgInboxEvent        = "inbox_event"
	MsgConnected         = "connected"
)

const (
	StatusReady         = "ready"
	StatusChunkReceived = "chunk received"
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// InitRequest is the body of POST /init. Pointers distinguish absent fields from zero values.
type InitRequest struct {
	Filename      *string `json:"filename"`
	Filesize      *uint64 `json:"filesize"`
	Filehash      *string `json:"filehash"`
	HashAlgorithm string  `json:"hashAlgorithm,omitempty"`
	IsArchive     *bool   `json:"isArchive,omitempty"`
}

type InitResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId,omitempty"`
}

type ChunkResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthCheck struct {
	Status   string `json:"status"`
	Uptime   int64  `json:"uptime"`
	Hostname string `json:"hostname,omitempty"`
	DiskFree uint64 `json:"diskFree"`
}

type InboxEvent struct {
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}
