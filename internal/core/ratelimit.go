package core

import "time"

// RateWindowStats is a point-in-time view of the local request window.
type RateWindowStats struct {
	InWindow int           `json:"in_window"`
	Limit    int           `json:"limit"`
	Window   time.Duration `json:"window"`
	OldestAt *time.Time    `json:"oldest_at,omitempty"`
}
