package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"gqljoin/internal/logging"
)

// AdminTokenHeader carries the shared admin secret. A bearer token in the
// Authorization header is accepted as well.
const AdminTokenHeader = "X-Admin-Token"

// AdminTokenAuthConfig configures shared-secret protection for admin routes.
type AdminTokenAuthConfig struct {
	Token string
	// HeaderName overrides AdminTokenHeader.
	HeaderName string
}

// AdminTokenAuthMiddleware rejects requests that do not present the admin
// token. It fails when no token is configured so that an admin route is never
// exposed unprotected.
func AdminTokenAuthMiddleware(cfg AdminTokenAuthConfig) (func(http.Handler) http.Handler, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("admin auth token is required")
	}
	header := strings.TrimSpace(cfg.HeaderName)
	if header == "" {
		header = AdminTokenHeader
	}
	want := sha256.Sum256([]byte(token))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := sha256.Sum256([]byte(presentedToken(r, header)))
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				logging.FromContext(r.Context()).Warn("admin request rejected",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="gqljoin-admin"`)
				WriteError(w, http.StatusUnauthorized, ErrorDetail{
					Code:    "unauthorized",
					Message: "missing or invalid admin token",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

func presentedToken(r *http.Request, header string) string {
	if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
		return v
	}
	return bearerToken(r.Header.Get("Authorization"))
}
