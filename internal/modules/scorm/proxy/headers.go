package proxy

import "net/http"

const (
	HeaderFrameOptions = "SAMEORIGIN"
	HeaderCSP          = "frame-ancestors 'self'"
	HeaderCacheControl = "private, no-cache, no-store, must-revalidate"
)

// ApplySecurityHeaders marks proxied package content as same-origin framable
// only and never cacheable by shared caches.
func ApplySecurityHeaders(h http.Header) {
	h.Set("X-Frame-Options", HeaderFrameOptions)
	h.Set("Content-Security-Policy", HeaderCSP)
	h.Set("Cache-Control", HeaderCacheControl)
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Set("X-Content-Type-Options", "nosniff")
}
