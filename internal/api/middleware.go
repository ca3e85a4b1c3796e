package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/amaftei/rsvpd/internal/guard"
	"github.com/amaftei/rsvpd/internal/models"
)

// AdminAuthMiddleware checks the X-Admin-Password header against the
// configured password. Failed attempts count against the admin guard,
// keyed by client IP, so password guessing locks out like bad tokens do.
func AdminAuthMiddleware(password string, g *guard.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				writeError(w, http.StatusServiceUnavailable, models.CodeServerError, "admin access is not configured")
				return
			}

			key := "admin:" + clientIP(r)

			decision := g.Check(key)
			if !decision.Allowed {
				retryAfter := int64(decision.RetryAfter(time.Now()).Seconds()) + 1
				writeAppError(w, models.RateLimitedError(retryAfter))
				return
			}

			supplied := r.Header.Get("X-Admin-Password")
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(password)) != 1 {
				g.RecordFailure(key)
				writeError(w, http.StatusUnauthorized, models.CodeInvalidToken, "invalid admin password")
				return
			}

			g.RecordSuccess(key)
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from X-Forwarded-For.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LoggingMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.statusCode).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
