package handlers

import (
	"crypto/subtle"
	"net/http"
)

// ══════════════════════════════════════════════════════════════════════════════
// BEARER AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// BearerAuth checks the shared bridge secret.
// The header must equal "Bearer <secret>" exactly; there is no trimming.
type BearerAuth struct {
	expected []byte
}

// NewBearerAuth creates a new BearerAuth. An empty secret rejects everything.
func NewBearerAuth(secret string) *BearerAuth {
	if secret == "" {
		return &BearerAuth{}
	}
	return &BearerAuth{expected: []byte("Bearer " + secret)}
}

// IsValid reports whether the Authorization header carries the secret.
func (a *BearerAuth) IsValid(header string) bool {
	if len(a.expected) == 0 || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), a.expected) == 1
}

// Middleware rejects unauthenticated requests with 401 before anything
// else runs, including the method check.
func (a *BearerAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.IsValid(r.Header.Get("Authorization")) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SIZE LIMIT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// MaxBodyBytes caps webhook and bridge request bodies.
const MaxBodyBytes = 1 << 20

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// MiddlewareFunc is a function that wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain chains multiple middleware functions. The first one runs first.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ChainHandler chains middleware and wraps a final handler.
func ChainHandler(handler http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	return Chain(middlewares...)(handler)
}
