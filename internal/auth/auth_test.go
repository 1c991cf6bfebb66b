package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
)

func newTestTokenService(t *testing.T, ttl time.Duration) *TokenService {
	t.Helper()
	key, err := DeriveKey("test-secret-of-sufficient-length")
	require.NoError(t, err)
	svc, err := NewTokenService(key, ttl)
	require.NoError(t, err)
	return svc
}

func TestDeriveKey(t *testing.T) {
	a, err := DeriveKey("correct horse battery staple")
	require.NoError(t, err)
	b, err := DeriveKey("correct horse battery staple")
	require.NoError(t, err)
	c, err := DeriveKey("another secret entirely here")
	require.NoError(t, err)

	assert.Len(t, a, keyLength)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = DeriveKey("short")
	assert.Error(t, err)
}

func TestLoadOrGenerateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auth.key")

	first, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	assert.Len(t, first, keyLength)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrGenerateKey_RejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.key")
	require.NoError(t, os.WriteFile(path, []byte("not-hex"), 0o600))

	_, err := LoadOrGenerateKey(path)
	assert.Error(t, err)
}

func TestLocalKey_PrefersSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.key")

	derived, err := LocalKey("correct horse battery staple", path)
	require.NoError(t, err)
	expected, err := DeriveKey("correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, expected, derived)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no key file is written when a secret is set")

	generated, err := LocalKey("", path)
	require.NoError(t, err)
	assert.Len(t, generated, keyLength)
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	token, err := svc.Issue(domain.Identity{UID: "alice", Email: "alice@example.com", DisplayName: "Alice"})
	require.NoError(t, err)

	ident, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", ident.UID)
	assert.Equal(t, "alice@example.com", ident.Email)
	assert.Equal(t, "Alice", ident.DisplayName)
}

func TestTokenService_RejectsExpired(t *testing.T) {
	svc := newTestTokenService(t, time.Minute)
	now := time.Now()
	svc.now = func() time.Time { return now }

	token, err := svc.Issue(domain.Identity{UID: "alice"})
	require.NoError(t, err)

	svc.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = svc.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsForeignKeyAndGarbage(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)
	token, err := svc.Issue(domain.Identity{UID: "alice"})
	require.NoError(t, err)

	otherKey, err := DeriveKey("a completely different secret")
	require.NoError(t, err)
	other, err := NewTokenService(otherKey, time.Hour)
	require.NoError(t, err)

	_, err = other.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify(context.Background(), "v4.local.garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_IssueRequiresUID(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)
	_, err := svc.Issue(domain.Identity{})
	assert.Error(t, err)
}

func TestIdentityFromClaims(t *testing.T) {
	ident := identityFromClaims("uid-1", map[string]any{
		"email":   "bob@example.com",
		"name":    "Bob",
		"picture": "https://example.com/bob.png",
		"other":   42,
	})
	assert.Equal(t, &domain.Identity{
		UID:         "uid-1",
		Email:       "bob@example.com",
		DisplayName: "Bob",
		PhotoURL:    "https://example.com/bob.png",
	}, ident)
}
