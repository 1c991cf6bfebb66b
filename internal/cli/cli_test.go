package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arax734/bookshare-app-sub001/internal/auth"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

type cliEnv struct {
	dataPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("ENV", "development")
	t.Setenv("AUTH_PROVIDER", "local")
	t.Setenv("AUTH_LOCAL_SECRET", "test-secret-key-for-testing-only")
	t.Setenv("SESSION_TTL", "1h")
	return &cliEnv{dataPath: t.TempDir()}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--data-path", e.dataPath,
		"--env-file", filepath.Join(e.dataPath, "missing.env"),
		"--no-color",
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSeed_PopulatesStore(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 3 users")

	s, err := store.Open(filepath.Join(env.dataPath, "db"), nil, store.Options{ReadOnly: true})
	require.NoError(t, err)
	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, 3, stats[store.CollectionUsers])
	assert.Equal(t, 4, stats[store.CollectionOwnership])
	assert.Equal(t, 1, stats[store.CollectionDesires])
	assert.Equal(t, 5, stats[store.CollectionReviews])
	assert.Equal(t, 2, stats[store.CollectionContacts])
	assert.Equal(t, 1, stats[store.CollectionExchanges])
}

func TestSeed_SkipsPopulatedStore(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "seed")
	require.NoError(t, err)

	out, err := env.run(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "already has 3 users")
}

func TestInspect(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "seed")
	require.NoError(t, err)

	t.Run("counts", func(t *testing.T) {
		out, err := env.run(t, "inspect")
		require.NoError(t, err)
		for _, name := range store.Collections {
			assert.Contains(t, out, name)
		}
	})

	t.Run("dump", func(t *testing.T) {
		out, err := env.run(t, "inspect", "--collection", store.CollectionExchanges)
		require.NoError(t, err)
		assert.Contains(t, out, `"status": "pending"`)
		assert.Contains(t, out, `"kind": "unresolved"`)
	})

	t.Run("limit", func(t *testing.T) {
		out, err := env.run(t, "inspect", "-c", store.CollectionUsers, "-n", "1")
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(out, `"uid"`))
	})

	t.Run("unknown collection", func(t *testing.T) {
		_, err := env.run(t, "inspect", "-c", "books")
		assert.ErrorContains(t, err, "unknown collection")
	})
}

func TestToken_VerifiesWithConfiguredKey(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "token", "alice", "--email", "alice@example.com", "--name", "Alice", "-q")
	require.NoError(t, err)
	token := strings.TrimSpace(out)

	key, err := auth.DeriveKey("test-secret-key-for-testing-only")
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	ident, err := tokens.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", ident.UID)
	assert.Equal(t, "alice@example.com", ident.Email)
	assert.Equal(t, "Alice", ident.DisplayName)
}

func TestToken_RequiresLocalProvider(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("AUTH_PROVIDER", "firebase")
	t.Setenv("FIREBASE_PROJECT_ID", "bookshare-test")

	_, err := env.run(t, "token", "alice")
	assert.ErrorContains(t, err, "local provider")
}

func TestCachePurge(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "cache", "purge")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 expired entries, 0 remain")
}

func TestBackup_CreateValidateRestore(t *testing.T) {
	src := newCLIEnv(t)
	_, err := src.run(t, "seed")
	require.NoError(t, err)

	archive := filepath.Join(t.TempDir(), "snapshot.zip")
	out, err := src.run(t, "backup", "create", "-o", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "Backup written to "+archive)
	assert.Contains(t, out, "sha256")

	out, err = src.run(t, "backup", "validate", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "Backup version 1.0")

	dst := &cliEnv{dataPath: t.TempDir()}
	out, err = dst.run(t, "backup", "restore", archive, "--mode", "full")
	require.NoError(t, err)
	assert.Contains(t, out, "Restore complete")

	s, err := store.Open(filepath.Join(dst.dataPath, "db"), nil, store.Options{ReadOnly: true})
	require.NoError(t, err)
	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, 3, stats[store.CollectionUsers])
	assert.Equal(t, 5, stats[store.CollectionReviews])
	assert.Equal(t, 1, stats[store.CollectionExchanges])
}

func TestBackup_RestoreRejectsUnknownMode(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "backup", "restore", filepath.Join(env.dataPath, "x.zip"), "--mode", "replace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")
}

func TestBackup_ValidateMissingArchive(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "backup", "validate", filepath.Join(env.dataPath, "missing.zip"))
	assert.Error(t, err)
}
