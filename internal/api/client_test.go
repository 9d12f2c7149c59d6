package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedesk/internal/session"
	"invoicedesk/pkg/models"
)

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

type upload struct {
	fields map[string][]string
	files  map[string]string
}

// backend is an in-memory invoice server.
type backend struct {
	t          *testing.T
	adminToken string
	userToken  string

	mu      sync.Mutex
	calls   []string
	uploads []upload
	deleted []string
	roles   map[string]string
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	gin.SetMode(gin.TestMode)
	b := &backend{
		t:          t,
		adminToken: token(t, jwt.MapClaims{"id": "1", "role": "Admin", "email": "admin@example.com"}),
		userToken:  token(t, jwt.MapClaims{"id": "2", "role": "User"}),
		roles:      map[string]string{},
	}

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", b.login)
	v1.GET("/files/:name", func(c *gin.Context) {
		c.String(http.StatusOK, "file:"+c.Param("name"))
	})

	authed := v1.Group("", b.auth)
	authed.GET("/auth/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": 2, "name": "Ravi", "projectRole": []string{"NFS", "GAIL"}})
	})
	authed.GET("/auth/register", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": "u1", "user_name": "asha", "email": "asha@example.com", "is_admin": true},
			{"id": "u2", "name": "Ravi", "role": "User", "project_role": "NFS"},
		})
	})
	authed.PUT("/auth/register/:id", func(c *gin.Context) {
		var body map[string]string
		require.NoError(t, c.BindJSON(&body))
		b.mu.Lock()
		b.roles[c.Param("id")] = body["project_role"]
		b.mu.Unlock()
		c.Status(http.StatusOK)
	})
	authed.GET("/invoices", b.list)
	authed.GET("/user-invoices/project", b.list)
	authed.POST("/invoices", b.create)
	authed.POST("/user-invoices", b.create)
	authed.PUT("/user-invoices/:id", b.create)
	authed.DELETE("/invoices/:id", b.remove)
	authed.DELETE("/invoices/:id/file", func(c *gin.Context) {
		b.record(c)
		c.JSON(http.StatusOK, gin.H{"message": "removed " + c.Query("type")})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *backend) record(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, c.Request.Method+" "+c.Request.URL.RequestURI())
}

func (b *backend) auth(c *gin.Context) {
	h := c.GetHeader("Authorization")
	if h != "Bearer "+b.adminToken && h != "Bearer "+b.userToken {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	c.Next()
}

func (b *backend) login(c *gin.Context) {
	var creds Credentials
	require.NoError(b.t, c.BindJSON(&creds))
	switch {
	case creds.Password != "secret":
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
	case creds.Email == "admin@example.com":
		c.JSON(http.StatusOK, gin.H{"token": b.adminToken, "user": gin.H{"id": 1, "name": "Asha", "role": "Admin"}})
	default:
		c.JSON(http.StatusOK, gin.H{"token": b.userToken, "user": gin.H{"id": 2, "name": "Ravi", "role": "User"}})
	}
}

func (b *backend) list(c *gin.Context) {
	b.record(c)
	c.JSON(http.StatusOK, []gin.H{
		{"id": 1, "invoiceNumber": "OLD", "createdAt": "2025-01-01T10:00:00Z"},
		{"id": 2, "invoiceNumber": "NONE"},
		{"id": "3", "invoiceNumber": "NEW", "createdAt": "2025-03-01T10:00:00Z", "project": "NFS"},
	})
}

func (b *backend) create(c *gin.Context) {
	b.record(c)
	form, err := c.MultipartForm()
	require.NoError(b.t, err)

	up := upload{fields: form.Value, files: map[string]string{}}
	for field, headers := range form.File {
		up.files[field] = headers[0].Filename
	}
	b.mu.Lock()
	b.uploads = append(b.uploads, up)
	b.mu.Unlock()

	number := c.PostForm("invoiceNumber")
	if number == "DUP" {
		c.JSON(http.StatusConflict, gin.H{"message": "Invoice number DUP already exists"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": 99, "invoiceNumber": number, "project": form.Value["project"]})
}

func (b *backend) remove(c *gin.Context) {
	b.record(c)
	if c.Param("id") == "bad" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot delete"})
		return
	}
	b.mu.Lock()
	b.deleted = append(b.deleted, c.Param("id"))
	b.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func login(t *testing.T, srv *httptest.Server, email string) *Client {
	t.Helper()
	c := NewClient(srv.URL)
	_, err := c.Login(context.Background(), Credentials{Email: email, Password: "secret"})
	require.NoError(t, err)
	return c
}

func TestNewClientPrefix(t *testing.T) {
	assert.Equal(t, "http://x/api/v1", NewClient("http://x/").baseURL)
	assert.Equal(t, "http://x/api/v1", NewClient("http://x/api/v1/").baseURL)
}

func TestLoginAndListSorted(t *testing.T) {
	b, srv := newBackend(t)
	c := login(t, srv, "admin@example.com")

	require.NotNil(t, c.Session())
	assert.True(t, c.Session().IsAdmin())
	assert.Equal(t, "1", c.Session().UserID())

	list, err := c.ListInvoices(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "NEW", list[0].InvoiceNumber)
	assert.Equal(t, "OLD", list[1].InvoiceNumber)
	assert.Equal(t, "NONE", list[2].InvoiceNumber)
	assert.Equal(t, models.Projects{"NFS"}, list[0].Project)
	assert.Equal(t, []string{"GET /api/v1/invoices"}, b.calls)
}

func TestLoginFailure(t *testing.T) {
	_, srv := newBackend(t)
	c := NewClient(srv.URL)

	_, err := c.Login(context.Background(), Credentials{Email: "x@example.com", Password: "nope"})
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "Invalid credentials")
	assert.Nil(t, c.Session())
}

func TestCallsWithoutSession(t *testing.T) {
	_, srv := newBackend(t)
	c := NewClient(srv.URL)

	_, err := c.ListInvoices(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
	_, err = c.CreateInvoice(context.Background(), models.NewPayload(), nil)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.ErrorIs(t, c.DeleteInvoices(context.Background(), []string{"1"}), ErrNoToken)
}

func TestUserRoleRouting(t *testing.T) {
	b, srv := newBackend(t)
	c := login(t, srv, "ravi@example.com")

	_, err := c.ListInvoices(context.Background())
	require.NoError(t, err)

	p := models.NewPayload()
	p.Set("invoiceNumber", "INV-5")
	_, err = c.UpdateInvoice(context.Background(), "5", p, nil)
	require.NoError(t, err)

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Projects{"NFS", "GAIL"}, me.Projects())

	assert.Equal(t, []string{
		"GET /api/v1/user-invoices/project",
		"PUT /api/v1/user-invoices/5",
	}, b.calls)
}

func TestCreateInvoiceMultipart(t *testing.T) {
	b, srv := newBackend(t)
	c := login(t, srv, "admin@example.com")

	dir := t.TempDir()
	copyPath := filepath.Join(dir, "copy.pdf")
	require.NoError(t, os.WriteFile(copyPath, []byte("%PDF-1.4"), 0o644))

	p := models.NewPayload()
	p.Add("project", "NFS")
	p.Add("project", "GAIL")
	p.Set("invoiceNumber", "INV-1")
	p.Set("netPayable", "5000.00")

	inv, err := c.CreateInvoice(context.Background(), p, models.Files{models.FileInvoiceCopy: copyPath})
	require.NoError(t, err)
	assert.Equal(t, "99", inv.ID.String())
	assert.Equal(t, models.Projects{"NFS", "GAIL"}, inv.Project)

	require.Len(t, b.uploads, 1)
	up := b.uploads[0]
	assert.Equal(t, []string{"NFS", "GAIL"}, up.fields["project"])
	assert.Equal(t, []string{"5000.00"}, up.fields["netPayable"])
	assert.Equal(t, map[string]string{"invoiceCopy": "copy.pdf"}, up.files)
}

func TestCreateInvoiceBackendMessage(t *testing.T) {
	_, srv := newBackend(t)
	c := login(t, srv, "admin@example.com")

	p := models.NewPayload()
	p.Set("invoiceNumber", "DUP")
	_, err := c.CreateInvoice(context.Background(), p, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "Invoice number DUP already exists", apiErr.Message)
}

func TestCreateInvoiceMissingAttachment(t *testing.T) {
	_, srv := newBackend(t)
	c := login(t, srv, "admin@example.com")

	_, err := c.CreateInvoice(context.Background(), models.NewPayload(),
		models.Files{models.FileProofOfSubmission: filepath.Join(t.TempDir(), "missing.pdf")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDeleteInvoicesAttemptsAll(t *testing.T) {
	b, srv := newBackend(t)
	c := login(t, srv, "admin@example.com")

	err := c.DeleteInvoices(context.Background(), []string{"1", "bad", "3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot delete")
	assert.ElementsMatch(t, []string{"1", "3"}, b.deleted)
}

func TestDeleteInvoicesBeyondParallelLimit(t *testing.T) {
	b, srv := newBackend(t)
	c := login(t, srv, "admin@example.com")

	ids := make([]string, 3*maxParallelDeletes)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", i+1)
	}
	require.NoError(t, c.DeleteInvoices(context.Background(), ids))
	assert.ElementsMatch(t, ids, b.deleted)
}

func TestRemoveFileAndDownload(t *testing.T) {
	b, srv := newBackend(t)
	c := login(t, srv, "admin@example.com")

	require.NoError(t, c.RemoveFile(context.Background(), "7", models.FileSupportingDocs))
	assert.Equal(t, []string{"DELETE /api/v1/invoices/7/file?type=supportingDocs"}, b.calls)

	var buf bytes.Buffer
	n, err := c.DownloadFile(context.Background(), `uploads\2025\copy 1.pdf`, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "file:copy 1.pdf", buf.String())
	assert.True(t, strings.HasSuffix(c.FileURL("/srv/uploads/a.pdf"), "/api/v1/files/a.pdf"))
}

func TestUsers(t *testing.T) {
	b, srv := newBackend(t)
	c := login(t, srv, "admin@example.com")

	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "asha", users[0].Name)
	assert.Equal(t, "Admin", users[0].Role)
	assert.Equal(t, models.Projects{"NFS"}, users[1].Projects())

	require.NoError(t, c.SetProjectRole(context.Background(), "u2", "GAIL"))
	assert.Equal(t, "GAIL", b.roles["u2"])

	err = c.SetProjectRole(context.Background(), "u2", "Moon Base")
	assert.ErrorIs(t, err, ErrInvalidProjectRole)
}

func TestSessionFromStoredToken(t *testing.T) {
	b, srv := newBackend(t)
	s, err := session.New(b.userToken, nil)
	require.NoError(t, err)

	c := NewClient(srv.URL, WithSession(s))
	_, err = c.ListInvoices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /api/v1/user-invoices/project"}, b.calls)
}
