package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/auctiondash/internal/domain"
)

// FeedStatusFunc reports the live feed connection status.
type FeedStatusFunc func() domain.FeedStatus

// StatusHandler serves the backend status (mode, feed health, uptime) for
// the dashboard header.
type StatusHandler struct {
	mode       string
	feedStatus FeedStatusFunc
	startedAt  time.Time
}

// NewStatusHandler creates a StatusHandler. feedStatus may be nil when no
// feed is running.
func NewStatusHandler(mode string, feedStatus FeedStatusFunc, startedAt time.Time) *StatusHandler {
	return &StatusHandler{mode: mode, feedStatus: feedStatus, startedAt: startedAt}
}

// GetStatus responds with the current backend mode, feed connection status,
// and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	feed := domain.FeedClosed
	if h.feedStatus != nil {
		feed = h.feedStatus()
	}

	uptime := int64(time.Since(h.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"feed_status":    feed,
		"uptime_seconds": uptime,
	})
}
