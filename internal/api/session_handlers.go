package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/goccy/go-json"

	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
)

// sessionMaxAge is how long the browser keeps the session cookie.
const sessionMaxAge = 5 * 24 * time.Hour

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "setSession",
		Method:      http.MethodPost,
		Path:        "/api/auth/session",
		Summary:     "Set session",
		Description: "Stores an identity token in an HttpOnly session cookie",
		Tags:        []string{"Auth"},
	}, s.handleSetSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteSession",
		Method:      http.MethodDelete,
		Path:        "/api/auth/session",
		Summary:     "Delete session",
		Description: "Expires the session cookie",
		Tags:        []string{"Auth"},
	}, s.handleDeleteSession)
}

// === DTOs ===

// SetSessionInput carries the raw request body. It is decoded by hand so a
// malformed body produces the route's own error instead of a 422.
type SetSessionInput struct {
	RawBody []byte
}

type sessionRequest struct {
	Token string `json:"token"`
}

// SessionResponse acknowledges a session change.
type SessionResponse struct {
	Success bool `json:"success" doc:"Always true"`
}

// SessionOutput sets or clears the session cookie.
type SessionOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      SessionResponse
}

// === Handlers ===

func (s *Server) handleSetSession(_ context.Context, input *SetSessionInput) (*SessionOutput, error) {
	var req sessionRequest
	if err := json.Unmarshal(input.RawBody, &req); err != nil {
		s.logger.Error("failed to set session", "error", err)
		return nil, domainerrors.Internal("Failed to set session")
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		s.logger.Error("failed to set session", "error", "empty token")
		return nil, domainerrors.Internal("Failed to set session")
	}

	return &SessionOutput{
		SetCookie: s.sessionCookie(token, int(sessionMaxAge.Seconds())),
		Body:      SessionResponse{Success: true},
	}, nil
}

func (s *Server) handleDeleteSession(_ context.Context, _ *struct{}) (*SessionOutput, error) {
	return &SessionOutput{
		SetCookie: s.sessionCookie("", -1),
		Body:      SessionResponse{Success: true},
	}, nil
}

// sessionCookie builds the session cookie. A negative maxAge expires it.
func (s *Server) sessionCookie(value string, maxAge int) http.Cookie {
	c := http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.App.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	}
	if maxAge < 0 {
		c.Expires = time.Unix(0, 0)
	}
	return c
}
