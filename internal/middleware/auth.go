package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Dan9191/decembrrr/internal/apperr"
	"github.com/Dan9191/decembrrr/internal/config"
)

const (
	RolePresident = "president"
	RoleStudent   = "student"
)

// Claims are the access token claims issued by the hosted auth provider.
type Claims struct {
	Role    string `json:"role"`
	ClassID string `json:"class_id"`
	jwt.RegisteredClaims
}

type contextKey string

const claimsKey contextKey = "claims"

// ClaimsFromContext returns the claims stored by AuthMiddleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// AuthMiddleware verifies the HS256 bearer token of every request
func AuthMiddleware(cfg *config.Config) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(header, "Bearer ")
			if header == "" || tokenString == header {
				writeError(w, apperr.Unauthenticated(nil, "missing bearer token"))
				return
			}

			claims := &Claims{}
			_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				writeError(w, apperr.Unauthenticated(err, "invalid or expired session"))
				return
			}
			if claims.Role != RolePresident && claims.Role != RoleStudent {
				writeError(w, apperr.Unauthenticated(nil, "token carries no known role"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// ClassScope rejects requests for a class other than the caller's own.
func ClassScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, apperr.Unauthenticated(nil, "missing session"))
			return
		}
		want, err := uuid.Parse(mux.Vars(r)["classID"])
		if err != nil {
			writeError(w, apperr.Validation("INVALID_ID", err, "class id is not a valid id"))
			return
		}
		have, err := uuid.Parse(claims.ClassID)
		if err != nil || have != want {
			writeError(w, apperr.Forbidden("you are not a member of this class").
				WithHints("Switch to your own class"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePresident lets only the class president through.
func RequirePresident(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, apperr.Unauthenticated(nil, "missing session"))
			return
		}
		if claims.Role != RolePresident {
			writeError(w, apperr.Forbidden("this action requires the president role"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJobSecret guards job endpoints called by an external scheduler.
// An empty JOB_SECRET disables them.
func RequireJobSecret(cfg *config.Config) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Job-Secret")
			if cfg.JobSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(cfg.JobSecret)) != 1 {
				writeError(w, apperr.Unauthenticated(nil, "invalid job secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, e *apperr.Error) {
	status := http.StatusUnauthorized
	if e.Kind == apperr.KindForbidden {
		status = http.StatusForbidden
	} else if e.Kind == apperr.KindValidation {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    e.Code,
			"message": e.Message,
			"hints":   e.Hints,
		},
	})
}
