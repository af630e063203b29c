package presence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/delivery-ops-api/pkg/clock"
)

func signedToken(t *testing.T, expires time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "driver@example.com",
		ExpiresAt: jwt.NewNumericDate(expires),
	}).SignedString([]byte("server-only-secret"))
	require.NoError(t, err)
	return token
}

func TestTokenSourceRequiresAToken(t *testing.T) {
	_, err := NewTokenSource(" ", "", nil, nil)
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = NewTokenSource("", filepath.Join(t.TempDir(), "missing"), nil, nil)
	assert.Error(t, err)
}

func TestTokenSourceStatic(t *testing.T) {
	source, err := NewTokenSource(" abc ", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", source.Token())
}

func TestTokenSourceRereadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o600))

	source, err := NewTokenSource("", path, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", source.Token())

	require.NoError(t, os.WriteFile(path, []byte("second"), 0o600))
	assert.Equal(t, "second", source.Token(), "rotated tokens are picked up without a restart")

	require.NoError(t, os.Remove(path))
	assert.Equal(t, "second", source.Token(), "an unreadable file keeps the last token")
}

func TestTokenSourceLogsExpiryOnce(t *testing.T) {
	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	core, logs := observer.New(zapcore.ErrorLevel)
	token := signedToken(t, now.Add(time.Hour))

	source, err := NewTokenSource(token, "", clk, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, token, source.Token())
	assert.Zero(t, logs.Len())

	clk.Advance(2 * time.Hour)
	source.Token()
	source.Token()
	assert.Equal(t, 1, logs.FilterMessage("agent token expired, locations stay queued until it is replaced").Len())
}

func TestTokenExpiry(t *testing.T) {
	expires := time.Date(2024, 5, 2, 22, 0, 0, 0, time.UTC)
	got, ok := TokenExpiry(signedToken(t, expires))
	require.True(t, ok)
	assert.True(t, expires.Equal(got))

	_, ok = TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}
