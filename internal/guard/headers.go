package guard

import "net/http"

// SetSecurityHeaders attaches the response security headers. Applied on
// every outcome, pass or fail, before any body is written.
func SetSecurityHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	h.Set("X-Healthcare-Security", "enforced")
	h.Set("X-Audit-Required", "true")
}
