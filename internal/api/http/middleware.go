package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"carrental-backend/internal/config"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/security"
)

// AuthMiddleware authenticates and authorizes requests by the security level
// of the matched route.
type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		level := config.SecurityAccess
		if route := mux.CurrentRoute(r); route != nil {
			level = config.GetSecurityLevel(route.GetName())
		}

		token := extractToken(r)
		if level == config.SecurityPublic && token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authorization token is not provided", nil)
			return
		}

		claims, err := m.tokenManager.ValidateAccessToken(token)
		if err != nil {
			if level == config.SecurityPublic {
				next.ServeHTTP(w, r)
				return
			}
			msg := "invalid token"
			if errors.Is(err, security.ErrExpiredToken) {
				msg = "token has expired"
			}
			writeError(w, http.StatusUnauthorized, msg, nil)
			return
		}

		actor := claims.Actor()
		if level == config.SecurityStaff && !actor.IsStaff() {
			logger.Warn("Staff route rejected", "route", routeName(r), "user_id", actor.UserID, "role", actor.Role)
			writeError(w, http.StatusForbidden, "staff role required", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogger tags every request with an id and logs its outcome.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		log := logger.WithRequest(requestID)
		next.ServeHTTP(rec, r)
		log.Info("Request handled", "method", r.Method, "path", r.URL.Path, "route", routeName(r), "status", rec.status, "duration_ms", time.Since(start).Milliseconds())
	})
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("Panic in handler", "route", routeName(r), "panic", p)
				writeError(w, http.StatusInternalServerError, "internal error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}
