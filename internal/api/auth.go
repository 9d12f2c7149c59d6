package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"invoicedesk/internal/session"
	"invoicedesk/pkg/models"
)

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration are the sign-up form fields.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login exchanges credentials for a session and switches the client to it.
func (c *Client) Login(ctx context.Context, creds Credentials) (*session.Session, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/login", creds)
	if err != nil {
		return nil, err
	}
	var resp authResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	s, err := session.New(resp.Token, resp.User)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.SetSession(s)
	c.log.Info().Str("email", creds.Email).Msg("Logged in")
	return s, nil
}

// Register creates an account. Self sign-up returns a session and the client
// switches to it; when an admin adds a user no token comes back and the
// session is nil.
func (c *Client) Register(ctx context.Context, reg Registration) (*session.Session, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/register", reg)
	if err != nil {
		return nil, err
	}
	var resp authResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if strings.TrimSpace(resp.Token) == "" {
		return nil, nil
	}
	s, err := session.New(resp.Token, resp.User)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	c.SetSession(s)
	return s, nil
}

// Me returns the profile of the logged-in user, including the assigned
// projects of a regular user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := c.do(req, &u); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return &u, nil
}
