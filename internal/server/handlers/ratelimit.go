package handlers

import (
	"net/http"
	"time"

	"github.com/namelens/ascgate/internal/core"
	apperrors "github.com/namelens/ascgate/internal/errors"
)

// RateWindowSource exposes the local request window.
type RateWindowSource interface {
	Stats() core.RateWindowStats
}

// RateWindowResponse is the body of GET /ratelimit.
type RateWindowResponse struct {
	InWindow  int        `json:"in_window"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	WindowMS  int64      `json:"window_ms"`
	OldestAt  *time.Time `json:"oldest_at,omitempty"`
	FreesAt   *time.Time `json:"frees_at,omitempty"`
}

// NewRateWindowHandler reports how much of the local window is in use.
// FreesAt is when the oldest recorded request leaves the window.
func NewRateWindowHandler(source RateWindowSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if source == nil {
			respondWithError(w, r, apperrors.NewUnavailableError("rate limiter is not configured"))
			return
		}

		stats := source.Stats()
		resp := RateWindowResponse{
			InWindow:  stats.InWindow,
			Limit:     stats.Limit,
			Remaining: max(stats.Limit-stats.InWindow, 0),
			WindowMS:  stats.Window.Milliseconds(),
			OldestAt:  stats.OldestAt,
		}
		if stats.OldestAt != nil {
			frees := stats.OldestAt.Add(stats.Window)
			resp.FreesAt = &frees
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
