package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/walletvault/server/internal/models"
	"github.com/walletvault/server/internal/utils"
)

var startedAt = time.Now()

// Health godoc
// @Summary Liveness probe
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"timestamp":  models.Timestamp(h.now()),
		"uptime":     time.Since(startedAt).Seconds(),
		"goroutines": runtime.NumGoroutine(),
	})
}
