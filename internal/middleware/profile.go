package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"
)

type contextKey string

const profileContextKey contextKey = "profile"

// ResolveProfile extracts the calling profile from each request and stores
// it in the context. The X-Profile-ID header wins; otherwise an
// Authorization Bearer token is verified as a device JWT via verify, which
// returns the profile ID the token was minted for. Requests that present a
// Bearer token that fails verification are rejected with 401. Requests with
// no credential at all pass through with no profile set, leaving the
// decision to each handler.
func ResolveProfile(verify func(token string) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profileID := strings.TrimSpace(r.Header.Get("X-Profile-ID"))

			if profileID == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					id, err := verify(strings.TrimPrefix(auth, "Bearer "))
					if err != nil {
						log.Printf("middleware: reject device token: %v", err)
						w.Header().Set("Content-Type", "application/json")
						w.WriteHeader(http.StatusUnauthorized)
						w.Write([]byte(`{"error": "invalid or expired device token"}`))
						return
					}
					profileID = id
				}
			}

			if profileID == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), profileContextKey, profileID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProfileFromContext retrieves the resolved profile ID from the request
// context. Returns "" when the request carried no profile credential.
func ProfileFromContext(ctx context.Context) string {
	id, _ := ctx.Value(profileContextKey).(string)
	return id
}
