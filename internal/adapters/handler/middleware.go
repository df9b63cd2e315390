package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Organization scoping headers set by the upstream auth gateway
const (
	HeaderOrganizationID = "X-Organization-ID"
	HeaderUserID         = "X-User-ID"
)

type contextKey string

const (
	orgIDKey  contextKey = "organization_id"
	userIDKey contextKey = "user_id"
)

// RequireOrganization rejects requests without an organization header and
// stores the organization and optional user in the request context
func RequireOrganization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := strings.TrimSpace(r.Header.Get(HeaderOrganizationID))
		if orgID == "" {
			writeJSON(w, http.StatusUnauthorized, NewErrorResponse(http.StatusUnauthorized, "Unauthorized"))
			return
		}

		ctx := context.WithValue(r.Context(), orgIDKey, orgID)
		if userID := strings.TrimSpace(r.Header.Get(HeaderUserID)); userID != "" {
			ctx = context.WithValue(ctx, userIDKey, userID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireInternalToken checks "Authorization: Bearer <token>".
// An empty token disables the check.
func RequireInternalToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				slog.Warn("Rejected request with invalid internal token",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				writeJSON(w, http.StatusUnauthorized, NewErrorResponse(http.StatusUnauthorized, "Unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request with slog
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func organizationID(ctx context.Context) string {
	orgID, _ := ctx.Value(orgIDKey).(string)
	return orgID
}

// actorID returns the acting user, or nil for system calls
func actorID(ctx context.Context) *string {
	if userID, ok := ctx.Value(userIDKey).(string); ok && userID != "" {
		return &userID
	}
	return nil
}
