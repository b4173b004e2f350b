package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrEthical07/goGuard/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHasher(t *testing.T) *password.Argon2 {
	t.Helper()
	h, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	return h
}

func yamlFor(t *testing.T, h *password.Argon2, identity, secret string) string {
	t.Helper()
	hash, err := h.Hash(secret)
	require.NoError(t, err)
	return fmt.Sprintf(`users:
  - identity: %q
    id: user-1
    hash: %q
    attributes:
      role: admin
`, identity, hash)
}

func TestVerify(t *testing.T) {
	h := testHasher(t)
	dir, err := Parse(strings.NewReader(yamlFor(t, h, " Alice ", "correct-horse")), h)
	require.NoError(t, err)
	require.Equal(t, 1, dir.Len())
	ctx := context.Background()

	p, err := dir.Verify(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, "admin", p.Attributes["role"])

	p, err = dir.Verify(ctx, "alice", "battery-staple")
	assert.NoError(t, err)
	assert.Nil(t, p)

	p, err = dir.Verify(ctx, "mallory", "correct-horse")
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestVerifyCanceledContextIsFault(t *testing.T) {
	h := testHasher(t)
	dir, err := Parse(strings.NewReader(yamlFor(t, h, "alice", "correct-horse")), h)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = dir.Verify(ctx, "alice", "correct-horse")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyCorruptHashIsFault(t *testing.T) {
	h := testHasher(t)
	dir, err := Parse(strings.NewReader("users:\n  - identity: alice\n    hash: not-a-hash\n"), h)
	require.NoError(t, err)

	_, err = dir.Verify(context.Background(), "alice", "correct-horse")
	assert.Error(t, err)
}

func TestParseRejectsBadFiles(t *testing.T) {
	h := testHasher(t)
	cases := map[string]string{
		"unknown field": "users:\n  - identity: alice\n    hash: x\n    pw: y\n",
		"no hash":       "users:\n  - identity: alice\n",
		"bad identity":  "users:\n  - identity: \"  \"\n    hash: x\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc), h)
			assert.Error(t, err)
		})
	}

	_, err := Parse(strings.NewReader("users:\n  - identity: Alice\n    hash: x\n  - identity: ALICE\n    hash: y\n"), h)
	assert.True(t, errors.Is(err, ErrDuplicateIdentity), "got %v", err)

	dir, err := Parse(strings.NewReader(""), h)
	require.NoError(t, err)
	assert.Equal(t, 0, dir.Len())
}

func TestLoadAndReload(t *testing.T) {
	h := testHasher(t)
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlFor(t, h, "alice", "correct-horse")), 0o600))

	dir, err := Load(path, h)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(yamlFor(t, h, "bob", "correct-horse")), 0o600))
	require.NoError(t, dir.Reload())

	p, err := dir.Verify(context.Background(), "bob", "correct-horse")
	require.NoError(t, err)
	assert.NotNil(t, p)

	require.NoError(t, os.WriteFile(path, []byte("users: [oops"), 0o600))
	assert.Error(t, dir.Reload())
	p, err = dir.Verify(context.Background(), "bob", "correct-horse")
	require.NoError(t, err)
	assert.NotNil(t, p, "failed reload must keep previous entries")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), h)
	assert.Error(t, err)
}
