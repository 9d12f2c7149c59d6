package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"invoicedesk/pkg/models"
)

// ErrInvalidProjectRole is returned for a project outside models.AdminProjects.
var ErrInvalidProjectRole = errors.New("Invalid project role")

// userRecord is a user as returned by the admin listing, which uses several
// spellings for the same fields.
type userRecord struct {
	ID          models.FlexString `json:"id"`
	Name        string            `json:"name"`
	UserName    string            `json:"user_name"`
	Email       string            `json:"email"`
	Role        string            `json:"role"`
	UserRole    string            `json:"user_role"`
	IsAdmin     bool              `json:"is_admin"`
	IsAdminAlt  bool              `json:"isAdmin"`
	Admin       bool              `json:"admin"`
	ProjectRole interface{}       `json:"project_role"`
}

func (r userRecord) user() models.User {
	u := models.User{
		ID:          r.ID,
		Name:        r.Name,
		Email:       r.Email,
		ProjectRole: r.ProjectRole,
	}
	if u.Name == "" {
		u.Name = r.UserName
	}
	switch {
	case r.Role != "":
		u.Role = r.Role
	case r.UserRole != "":
		u.Role = r.UserRole
	case r.IsAdmin || r.IsAdminAlt || r.Admin:
		u.Role = string(models.RoleAdmin)
	}
	return u
}

// ListUsers returns every account. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/register", nil)
	if err != nil {
		return nil, err
	}
	var records []userRecord
	if err := c.do(req, &records); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]models.User, len(records))
	for i, r := range records {
		users[i] = r.user()
	}
	return users, nil
}

// DeleteUser removes an account. Admin only.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/auth/register/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

// SetProjectRole assigns a user to one project. Admin only.
func (c *Client) SetProjectRole(ctx context.Context, id, project string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if !validProject(project) {
		return fmt.Errorf("%w: %q", ErrInvalidProjectRole, project)
	}
	body := map[string]string{"project_role": project}
	req, err := c.newJSONRequest(ctx, http.MethodPut, "/auth/register/"+url.PathEscape(id), body)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("update project role of user %s: %w", id, err)
	}
	return nil
}

func validProject(project string) bool {
	for _, p := range models.AdminProjects {
		if p == strings.TrimSpace(project) {
			return true
		}
	}
	return false
}
