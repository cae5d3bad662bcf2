package ratelimit

import "time"

// Result describes one fixed-window admission decision.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// BlockEntry describes one hard-blocked client IP.
type BlockEntry struct {
	IP        string    `json:"ip"`
	Reason    string    `json:"reason"`
	BlockedAt time.Time `json:"blocked_at"`
	Until     time.Time `json:"until"`
}
