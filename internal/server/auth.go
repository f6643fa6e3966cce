package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/docqa-go/internal/logging"
)

// authChallenge is the WWW-Authenticate value sent with every 401.
const authChallenge = `Bearer realm="docqa"`

// authMiddleware requires "Authorization: Bearer <apiKey>" on next. An empty
// apiKey disables the check; New logs one warning at startup in that case.
//
// Rejections carry a WWW-Authenticate challenge and a JSON error body. The
// presented token is never logged.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		switch {
		case token == "":
			rejectAuth(w, r, authChallenge, "authorization required", "missing bearer token")
		case subtle.ConstantTimeCompare([]byte(token), want) != 1:
			rejectAuth(w, r, authChallenge+` error="invalid_token"`, "invalid token", "invalid bearer token")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// rejectAuth logs the failure reason and writes a 401.
func rejectAuth(w http.ResponseWriter, r *http.Request, challenge, msg, reason string) {
	logging.FromContext(r.Context()).Warn("auth: request rejected",
		slog.String("reason", reason),
		slog.String("remote_ip", clientIP(r)),
	)
	w.Header().Set("WWW-Authenticate", challenge)
	writeError(w, r, http.StatusUnauthorized, msg)
}

// bearerToken returns the token from an "Authorization: Bearer <token>"
// header, or "" when the header is absent or uses another scheme.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
