package auth

import (
	"net/http"
	"strings"
)

// Token sources checked by TokenFromRequest.
const (
	APIKeyHeader = "X-API-Key"
	TokenParam   = "token"
)

// TokenFromRequest returns the credential carried by r, checking the
// Authorization bearer token, then the X-API-Key header, then the "token"
// query parameter. Browsers cannot set headers on a WebSocket upgrade, so
// the query parameter is the usual path for web clients.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	if k := r.Header.Get(APIKeyHeader); k != "" {
		return strings.TrimSpace(k)
	}
	return strings.TrimSpace(r.URL.Query().Get(TokenParam))
}
