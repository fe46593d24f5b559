package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Dosada05/lanparty/auth"
)

type contextKey string

const callerContextKey contextKey = "caller"

// Authenticate verifies the bearer token when one is sent and stores the caller in the
// request context. Requests without a token pass through anonymously; a bad token is
// rejected. Browsers cannot set headers on EventSource and WebSocket requests, so the
// token may also come from the access_token query parameter.
func Authenticate(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.URL.Query().Get("access_token")
			if header := r.Header.Get("Authorization"); header != "" {
				token, err := auth.TokenFromHeader(header)
				if err != nil {
					writeError(w, http.StatusUnauthorized, "malformed authorization header")
					return
				}
				raw = token
			}
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			caller, err := tokens.Verify(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CallerFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithCaller(ctx context.Context, caller *auth.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext returns the authenticated caller, or nil for anonymous requests.
func CallerFromContext(ctx context.Context) *auth.Caller {
	caller, _ := ctx.Value(callerContextKey).(*auth.Caller)
	return caller
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "kind": "unauthorized"})
}
