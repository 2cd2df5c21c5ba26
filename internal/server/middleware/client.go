package middleware

import (
	"net/http"

	"github.com/postly/postly/internal/quota"
)

// ClientID derives the quota and rate-limit key from the request's remote
// address. Behind a trusted proxy, run chi's RealIP first so proxied
// requests carry the caller's address.
func ClientID(r *http.Request) string {
	if r == nil {
		return quota.UnknownClient
	}
	return quota.NormalizeClientID(r.RemoteAddr)
}
