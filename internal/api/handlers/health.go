package handlers

import (
	"net/http"

	"github.com/The-Promised-Neverland/tsb/internal/models"
	"github.com/The-Promised-Neverland/tsb/pkg/system"
	"github.com/gin-gonic/gin"
)

func (h *Handler) HealthCheck(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusOK, models.HealthCheck{Status: "Healthy", Uptime: system.Uptime()})
		return
	}
	c.JSON(http.StatusOK, h.Service.Health())
}
