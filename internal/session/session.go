// Package session keeps the bearer token issued at login and the claims
// decoded from it.
//
// Tokens are decoded without signature verification; the backend is the only
// party that can verify them, and the client only needs the user id, role and
// expiry for routing and attribution.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"

	"invoicedesk/pkg/models"
)

var (
	// ErrNoToken is returned when no session is stored.
	ErrNoToken = errors.New("No authentication token found. Please log in again.")

	// ErrMalformedToken is returned when the token is not a decodable JWT.
	ErrMalformedToken = errors.New("malformed authentication token")
)

// Session is a logged-in user.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user,omitempty"`

	claims jwt.MapClaims
}

// New decodes token and returns a session for it. user is the profile
// returned alongside the token and may be nil.
func New(token string, user *models.User) (*Session, error) {
	claims, err := ParseToken(token)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user, claims: claims}, nil
}

// ParseToken decodes the claims of a JWT without verifying it.
func ParseToken(token string) (jwt.MapClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoToken
	}
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

// UserID returns the id of the logged-in user, preferring the profile over
// the token claims.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	if s.User != nil && s.User.ID.String() != "" {
		return s.User.ID.String()
	}
	for _, key := range []string{"userId", "user_id", "sub", "id"} {
		if v := claimString(s.claims, key); v != "" {
			return v
		}
	}
	return ""
}

// Role maps the role claim; "User" becomes models.RoleUser.
func (s *Session) Role() models.Role {
	if s == nil {
		return ""
	}
	if r := claimString(s.claims, "role"); r != "" {
		return models.ParseRole(r)
	}
	if s.User != nil {
		return models.ParseRole(s.User.Role)
	}
	return ""
}

// IsAdmin reports whether the admin endpoints apply.
func (s *Session) IsAdmin() bool {
	return s.Role() == models.RoleAdmin
}

// Email returns the email claim or the profile email.
func (s *Session) Email() string {
	if s == nil {
		return ""
	}
	if e := claimString(s.claims, "email"); e != "" {
		return e
	}
	if s.User != nil {
		return s.User.Email
	}
	return ""
}

// ExpiresAt returns the exp claim, or the zero time when absent.
func (s *Session) ExpiresAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	switch exp := s.claims["exp"].(type) {
	case float64:
		return time.Unix(int64(exp), 0)
	case json.Number:
		v, _ := exp.Int64()
		return time.Unix(v, 0)
	}
	return time.Time{}
}

// Expired reports whether the token has an exp claim in the past.
func (s *Session) Expired(now time.Time) bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}

func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	case json.Number:
		return v.String()
	}
	return ""
}

// Load reads a session file written by Save.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("read session %s: %w", path, err)
	}
	var stored Session
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", path, err)
	}
	return New(stored.Token, stored.User)
}

// Save writes the session to path with owner-only permissions.
func (s *Session) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}
	return nil
}

// Remove deletes the session file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session %s: %w", path, err)
	}
	return nil
}
