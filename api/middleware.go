package api

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"casetrack/metrics"
	"casetrack/storage"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// recoveryMiddleware converts handler panics into 500 responses
func (a *API) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				a.logger.Errorw("Panic while handling request",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", GetRequestIDOrDefault(r.Context()),
				)
				writeErrorMessage(w, http.StatusInternalServerError, "an unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware tags every request with a correlation ID
func (a *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}

// rateLimitMiddleware provides rate limiting per IP
func (a *API) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		a.rateLimitersMu.Lock()
		entry, exists := a.rateLimiters[ip]
		if !exists {
			entry = &rateLimiterEntry{
				limiter:  rate.NewLimiter(rate.Limit(a.config.API.RateLimit.RequestsPerSecond), a.config.API.RateLimit.Burst),
				lastSeen: time.Now(),
			}
			a.rateLimiters[ip] = entry
		} else {
			entry.lastSeen = time.Now()
		}
		// Capture limiter reference while holding lock to prevent race with cleanup
		limiter := entry.limiter
		a.rateLimitersMu.Unlock()

		if !limiter.Allow() {
			metrics.RateLimitRejections.Inc()
			writeErrorMessage(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cleanupRateLimiters periodically removes inactive rate limiters to prevent memory leaks
func (a *API) cleanupRateLimiters() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.rateLimitersMu.Lock()
			for ip, entry := range a.rateLimiters {
				if time.Since(entry.lastSeen) > 1*time.Hour {
					delete(a.rateLimiters, ip)
				}
			}
			a.rateLimitersMu.Unlock()
		case <-a.stopCh:
			return
		}
	}
}

// jwtAuthMiddleware authenticates the bearer token, loads the user and
// installs a fresh request-scoped access checker into the context.
func (a *API) jwtAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tokenString string

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			cookie, err := r.Cookie("auth_token")
			if err != nil {
				writeErrorMessage(w, http.StatusUnauthorized, "authorization required")
				return
			}
			tokenString = cookie.Value
		}

		claims, err := validateJWT(tokenString, a.config)
		if err != nil {
			a.logger.Warnw("Invalid JWT token", "error", err)
			writeErrorMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := a.users.GetUser(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				writeErrorMessage(w, http.StatusUnauthorized, "invalid token")
				return
			}
			a.logger.Errorw("Failed to load user for token", "error", err, "user_id", claims.Subject)
			writeErrorMessage(w, http.StatusInternalServerError, "an unexpected error occurred")
			return
		}
		if !user.Active {
			writeErrorMessage(w, http.StatusUnauthorized, "account disabled")
			return
		}

		ctx := WithUser(r.Context(), user)
		ctx = WithChecker(ctx, a.access.NewChecker(user))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// metricsMiddleware counts handled requests by route template and status
func (a *API) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, routeTemplate(r), strconv.Itoa(sw.status)).Inc()
	})
}

// statusWriter captures the response status for metrics
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// clientIP returns the remote IP without the port
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
