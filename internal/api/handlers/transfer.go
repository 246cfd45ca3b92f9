package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/The-Promised-Neverland/tsb/internal/models"
	"github.com/The-Promised-Neverland/tsb/internal/transfer"
	"github.com/The-Promised-Neverland/tsb/pkg/logger"
	"github.com/gin-gonic/gin"
)

// InitTransfer serves POST /init.
func (h *Handler) InitTransfer(c *gin.Context) {
	var req models.InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Log.Warn("Invalid init payload", "err", err)
		abortWithError(c, http.StatusBadRequest, "Invalid init data")
		return
	}
	snap, err := h.Receiver.Init(req)
	switch {
	case errors.Is(err, transfer.ErrInvalidInit):
		logger.Log.Warn("Rejected init", "err", err)
		abortWithError(c, http.StatusBadRequest, "Invalid init data")
		return
	case errors.Is(err, transfer.ErrInsufficientStorage):
		logger.Log.Warn("Rejected init", "err", err)
		abortWithError(c, http.StatusInsufficientStorage, "Insufficient disk space")
		return
	case err != nil:
		logger.Log.Error("Failed to initialize transfer", "err", err)
		abortWithError(c, http.StatusInternalServerError, "Failed to initialize transfer")
		return
	}
	c.JSON(http.StatusOK, models.InitResponse{Status: models.StatusReady, SessionID: snap.SessionID})
}

// SendChunk serves POST /send_chunk. The body is the raw chunk.
func (h *Handler) SendChunk(c *gin.Context) {
	body := c.Request.Body
	if h.MaxChunkBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.MaxChunkBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, http.StatusRequestEntityTooLarge, "Chunk too large")
			return
		}
		logger.Log.Warn("Failed to read chunk body", "err", err)
		abortWithError(c, http.StatusBadRequest, "Failed to read chunk")
		return
	}

	_, err = h.Receiver.WriteChunk(data)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, models.ChunkResponse{Status: models.StatusChunkReceived})
	case errors.Is(err, transfer.ErrNoData):
		abortWithError(c, http.StatusBadRequest, "No data received")
	case errors.Is(err, transfer.ErrChunkOverflow):
		abortWithError(c, http.StatusBadRequest, "Chunk exceeds declared file size")
	case errors.Is(err, transfer.ErrNoSession):
		abortWithError(c, http.StatusConflict, "No active transfer")
	case errors.Is(err, transfer.ErrSessionClosed):
		abortWithError(c, http.StatusConflict, "Transfer already finished")
	default:
		abortWithError(c, http.StatusInternalServerError, "Failed to write chunk")
	}
}

// Status serves GET /status.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.Receiver.Status())
}
