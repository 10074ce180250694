package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// AdminTokenHeader carries the shared secret for administrative routes.
const AdminTokenHeader = "X-Admin-Token"

// statusWriter captures the status code for request logging.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}

// RequestLogger logs one line per request.
func RequestLogger(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			if sw.status == 0 {
				sw.status = http.StatusOK
			}
			ev := log.Info()
			if sw.status >= 500 {
				ev = log.Error()
			} else if sw.status >= 400 {
				ev = log.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("client", clientIP(r)).
				Int("status", sw.status).
				Int("bytes", sw.bytes).
				Dur("took", time.Since(start)).
				Msg("request")
		})
	}
}

// Recoverer turns a handler panic into a 500.
func Recoverer(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					log.Error().Interface("panic", p).Str("path", r.URL.Path).Msg("handler panic")
					RespondWithError(w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// token. An empty token locks the route entirely.
func RequireAdminToken(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(AdminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			RespondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
