package handlers

import (
	"github.com/The-Promised-Neverland/tsb/internal/models"
	"github.com/The-Promised-Neverland/tsb/internal/service"
	"github.com/The-Promised-Neverland/tsb/internal/transfer"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	Receiver      *transfer.Receiver
	Service       *service.Service
	MaxChunkBytes int64
}

func NewHandler(r *transfer.Receiver, s *service.Service, maxChunkBytes int64) *Handler {
	return &Handler{
		Receiver:      r,
		Service:       s,
		MaxChunkBytes: maxChunkBytes,
	}
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: msg})
}
