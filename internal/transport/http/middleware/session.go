package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/pkg/id"
)

const (
	SessionCookie = "otp_session"
	SessionHeader = "X-Session-Id"

	sessionKey contextKey = "session_id"
)

// Session resolves the verification session id from the otp_session cookie
// or the X-Session-Id header, minting a new ULID when neither carries a
// valid one. The id is echoed back in both places.
func Session(maxAge time.Duration, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := strings.TrimSpace(r.Header.Get(SessionHeader))
			if c, err := r.Cookie(SessionCookie); err == nil && sid == "" {
				sid = c.Value
			}
			if !id.Valid(sid) {
				sid = id.New()
			}
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sid,
				Path:     "/",
				MaxAge:   int(maxAge.Seconds()),
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(SessionHeader, sid)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sid)))
		})
	}
}

func SessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionKey).(string)
	return sid
}

// RequestAuth assembles the caller identity for application services.
func RequestAuth(r *http.Request) domain.AuthContext {
	a := domain.AuthContext{
		SessionID: SessionIDFromContext(r.Context()),
		ClientIP:  realIP(r),
	}
	if c, ok := ClaimsFromContext(r.Context()); ok {
		a.CustomerID = c.CustomerID
	}
	return a
}
