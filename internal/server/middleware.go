package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/vaultsandbox/e3kit-go/internal/api"
)

type ctxKey int

const requestIDKey ctxKey = 0

// statusRecorder captures the response code for logs and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument assigns a request ID, recovers panics, and records a log line
// and metrics for every request.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()

		id := strings.TrimSpace(r.Header.Get(api.RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(api.RequestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				s.log.Error("panic in handler", "request_id", id, "panic", p)
				writeError(rec, r, http.StatusInternalServerError, "internal error")
			}

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			elapsed := s.now().Sub(start)
			s.metrics.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			s.metrics.duration.WithLabelValues(route).Observe(elapsed.Seconds())
			s.log.Info("request",
				"request_id", id,
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"duration", elapsed,
			)
		}()

		next.ServeHTTP(rec, r)
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// authenticate verifies the bearer token and returns its subject. On failure
// it writes the error response and returns false.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	tok, ok := strings.CutPrefix(h, "Bearer ")
	tok = strings.TrimSpace(tok)
	if !ok || tok == "" {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return "", false
	}
	claims, err := s.issuer.Verify(tok)
	if err != nil {
		s.log.Debug("token rejected", "request_id", requestID(r.Context()), "error", err)
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return "", false
	}
	return claims.Subject, true
}

// authorize is authenticate plus a check that the token was issued to
// identity.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, identity string) bool {
	subject, ok := s.authenticate(w, r)
	if !ok {
		return false
	}
	if subject != identity {
		s.log.Warn("identity mismatch", "request_id", requestID(r.Context()), "subject", subject, "identity", identity)
		writeError(w, r, http.StatusForbidden, "token subject does not match identity")
		return false
	}
	return true
}
