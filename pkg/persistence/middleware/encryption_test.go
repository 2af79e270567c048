package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/thunder/pkg/adapters/memory"
	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/persistence/middleware"
	"github.com/aretw0/thunder/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secretSession(id string) *domain.Session {
	s := domain.NewSession(id)
	s.Prompt = "my-secret-sauce"
	s.Tree = domain.Tree{{Name: "a.txt", Kind: domain.NodeFile, Path: "/a.txt", Content: "classified"}}
	return s
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	secure := mw(underlying)
	ctx := context.Background()

	require.NoError(t, secure.Save(ctx, secretSession("s")))

	stored, err := underlying.Load(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, stored.Prompt, "prompt must not be stored in clear text")
	assert.Empty(t, stored.Tree)
	assert.NotEmpty(t, stored.Sealed)
	assert.False(t, strings.Contains(stored.Sealed, "classified"))

	loaded, err := secure.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Prompt)
	assert.Equal(t, "classified", loaded.Tree[0].Content)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	ports.RunSessionStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	mwOld, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, err)
	require.NoError(t, mwOld(underlying).Save(ctx, secretSession("rot")))

	mwNew, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	require.NoError(t, err)
	loaded, err := mwNew(underlying).Load(ctx, "rot")
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Prompt)

	mwWrong, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: newKey})
	require.NoError(t, err)
	_, err = mwWrong(underlying).Load(ctx, "rot")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_RejectsPlainAndBadKeys(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, domain.NewSession("plain")))

	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	_, err = mw(underlying).Load(ctx, "plain")
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.ErrorIs(t, err, middleware.ErrKeySize)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.ErrorIs(t, err, middleware.ErrKeySize)
}
