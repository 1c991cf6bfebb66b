package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/http/response"
)

// SessionCookie carries the identity token set by POST /api/auth/session.
const SessionCookie = "firebase-session-token"

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// userIDKey is the context key for the authenticated user ID.
const userIDKey ctxKey = "userID"

// GetUserID returns the authenticated user ID from context.
// Returns 401 error if user is not authenticated.
func GetUserID(ctx context.Context) (string, error) {
	userID := userIDFrom(ctx)
	if userID == "" {
		return "", huma.Error401Unauthorized("Authentication required")
	}
	return userID, nil
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// setUserID stores the user ID in context.
func setUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// presentedToken returns the Bearer token, falling back to the session cookie.
func presentedToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(authHeader[len("Bearer "):])
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// authMiddleware verifies the presented token and stores the user ID in
// context, creating the user document on first sight. Requests without a
// valid token continue anonymously; handlers use GetUserID to reject them.
// A store failure while loading the user ends the request.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := presentedToken(r)
		if token == "" || s.verifier == nil {
			next.ServeHTTP(w, r)
			return
		}

		ident, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			s.logger.Debug("token rejected", "path", r.URL.Path, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.services.Users.Ensure(r.Context(), ident)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}

		next.ServeHTTP(w, r.WithContext(setUserID(r.Context(), user.UID)))
	})
}
