// Package middleware provides HTTP middleware for auditor authentication.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// auditorIDKey is the context key for the authenticated auditor ID.
const auditorIDKey ContextKey = "auditorID"

// TokenValidator validates bearer tokens. The indirection keeps this
// package free of a dependency on the JWT service.
type TokenValidator interface {
	ValidateToken(tokenString string) (AuditorIDGetter, error)
}

// AuditorIDGetter extracts the auditor ID from token claims.
type AuditorIDGetter interface {
	GetAuditorID() uuid.UUID
}

// Auth creates middleware that validates bearer tokens and adds the
// auditor ID to the request context.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), auditorIDKey, claims.GetAuditorID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuditorID extracts the authenticated auditor ID from the request
// context.
func GetAuditorID(r *http.Request) (uuid.UUID, error) {
	id, ok := r.Context().Value(auditorIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("auditor ID not found in request context")
	}
	return id, nil
}

// AuditorIDKey returns the context key for the auditor ID (for tests).
func AuditorIDKey() ContextKey {
	return auditorIDKey
}
