package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedesk/pkg/models"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestSessionClaims(t *testing.T) {
	exp := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tok := signed(t, jwt.MapClaims{
		"id":    "42",
		"email": "ops@example.com",
		"role":  "User",
		"exp":   exp.Unix(),
	})

	s, err := New(tok, nil)
	require.NoError(t, err)
	assert.Equal(t, "42", s.UserID())
	assert.Equal(t, models.RoleUser, s.Role())
	assert.False(t, s.IsAdmin())
	assert.Equal(t, "ops@example.com", s.Email())
	assert.True(t, s.ExpiresAt().Equal(exp))
	assert.False(t, s.Expired(exp.Add(-time.Minute)))
	assert.True(t, s.Expired(exp))
}

func TestSessionPrefersProfileID(t *testing.T) {
	tok := signed(t, jwt.MapClaims{"sub": "from-token", "role": "Admin"})

	s, err := New(tok, &models.User{ID: "7"})
	require.NoError(t, err)
	assert.Equal(t, "7", s.UserID())
	assert.True(t, s.IsAdmin())

	s, err = New(tok, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-token", s.UserID())
	assert.True(t, s.ExpiresAt().IsZero())
	assert.False(t, s.Expired(time.Now()))
}

func TestNumericUserIDClaim(t *testing.T) {
	s, err := New(signed(t, jwt.MapClaims{"userId": 1001}), nil)
	require.NoError(t, err)
	assert.Equal(t, "1001", s.UserID())
}

func TestParseTokenErrors(t *testing.T) {
	_, err := ParseToken("")
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = ParseToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestSaveLoadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrNoToken)

	s, err := New(signed(t, jwt.MapClaims{"id": "9", "role": "Admin"}), &models.User{ID: "9", Name: "Asha"})
	require.NoError(t, err)
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s.Token, loaded.Token)
	assert.Equal(t, "Asha", loaded.User.Name)
	assert.True(t, loaded.IsAdmin())

	require.NoError(t, Remove(path))
	require.NoError(t, Remove(path))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrNoToken)
}
