package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/snippet-share/internal/model"
)

// CookieName is the HttpOnly cookie holding the access token.
const CookieName = "token"

// contextKey is unexported so no other package can read or overwrite the
// identity stored under it.
type contextKey string

const userIDKey contextKey = "userID"

// UserLookup loads a user for the admin check.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth rejects requests without a valid token with 401 and stores the
// authenticated user ID in the context of the rest.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns one that wraps it. Chi
// applies them in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "Not authorized, please login!")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// RequireAdmin must run after RequireAuth. It loads the caller and answers
// 403 unless they hold the admin role.
//
// The role is read from the database on every request rather than baked into
// the token, so a promotion or demotion takes effect immediately.
func RequireAdmin(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "Not authorized, please login!")
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil || !user.IsAdmin() {
				if err != nil {
					slog.Debug("admin check: user lookup failed", "user_id", userID, "error", err)
				}
				writeMessage(w, http.StatusForbidden, "Only admins can do this!")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user's ID, or ("", false) for
// an anonymous request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// extractUserID validates the token from the cookie, falling back to an
// "Authorization: Bearer" header for non-browser clients.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return tokens.Validate(cookie.Value)
	}

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", http.ErrNoCookie
	}
	return tokens.Validate(strings.TrimSpace(raw))
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
