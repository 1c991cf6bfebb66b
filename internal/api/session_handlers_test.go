package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postSession(ts *testServer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	require.Fail(t, "session cookie not set", "headers: %v", w.Header())
	return nil
}

func TestSetSession_SetsCookie(t *testing.T) {
	ts := setupTestServer(t)

	w := postSession(ts, `{"token":"id-token-123"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	c := sessionCookie(t, w)
	assert.Equal(t, "id-token-123", c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, 432000, c.MaxAge)
	assert.Equal(t, "/", c.Path)
	assert.False(t, c.Secure, "cookie is not secure outside production")
}

func TestSetSession_SecureInProduction(t *testing.T) {
	ts := setupTestServer(t, withProduction())

	w := postSession(ts, `{"token":"id-token-123"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, sessionCookie(t, w).Secure)
}

func TestSetSession_RejectsBadBodies(t *testing.T) {
	ts := setupTestServer(t)

	for name, body := range map[string]string{
		"malformed":   `{"token":`,
		"empty token": `{"token":""}`,
		"no token":    `{}`,
		"blank token": `{"token":"   "}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := postSession(ts, body)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, "Failed to set session", errorMessage(t, w))
			assert.Empty(t, w.Header().Get("Set-Cookie"))
		})
	}
}

func TestDeleteSession_ExpiresCookie(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/auth/session", nil)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	c := sessionCookie(t, w)
	assert.Empty(t, c.Value)
	assert.Less(t, c.MaxAge, 0)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)
}

func TestSessionCookie_AuthenticatesRequests(t *testing.T) {
	ts := setupTestServer(t)

	w := postSession(ts, `{"token":"`+ts.tokenFor(t, "alice")+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookie(t, w)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "alice", decode[map[string]any](t, w)["uid"])
}

func TestAuthenticatedRoutes_RejectAnonymous(t *testing.T) {
	ts := setupTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/me"},
		{http.MethodGet, "/api/contacts"},
		{http.MethodGet, "/api/exchanges?role=incoming"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodPut, "/api/library/owned/" + bookID(1)},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := ts.do(t, tc.method, tc.path, "", nil)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Authentication required", errorMessage(t, w))
		})
	}
}

func TestAuthenticatedRoutes_RejectInvalidToken(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
