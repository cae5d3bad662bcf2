package session

import (
	"time"

	"github.com/mssola/useragent"

	id "sentra/pkg/domain"
)

// Session tracks one authenticated principal. LastActivityAt moves on every
// validated request; everything else is fixed at creation.
type Session struct {
	ID                id.SessionID `json:"id"`
	ActorID           id.ActorID   `json:"actor_id"`
	Role              string       `json:"role"`
	Permissions       []string     `json:"permissions"`
	StartedAt         time.Time    `json:"started_at"`
	LastActivityAt    time.Time    `json:"last_activity_at"`
	SourceIP          string       `json:"source_ip"`
	DeviceFingerprint string       `json:"device_fingerprint"`
	MFAVerified       bool         `json:"mfa_verified"`
}

// HasPermission reports whether the session carries the named permission.
func (s Session) HasPermission(perm string) bool {
	for _, p := range s.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// ExpiredAt reports whether the session has been idle past the timeout.
func (s Session) ExpiredAt(now time.Time, idleTimeout time.Duration) bool {
	return now.Sub(s.LastActivityAt) >= idleTimeout
}

// Fingerprint reduces a raw User-Agent to a coarse device label. Coarse on
// purpose: it distinguishes devices for hijack detection without storing the
// full header.
func Fingerprint(rawUA string) string {
	if rawUA == "" {
		return "unknown"
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name == "" {
		return "unknown"
	}
	label := name + " " + version
	if os := ua.OS(); os != "" {
		label += " on " + os
	}
	if ua.Mobile() {
		label += " (mobile)"
	}
	return label
}
