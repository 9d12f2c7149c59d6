package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"invoicedesk/pkg/models"
)

// ErrInvoiceNotFound is returned by GetInvoice for an unknown id.
var ErrInvoiceNotFound = errors.New("invoice not found")

// ListInvoices fetches every invoice visible to the session, most recently
// created first.
func (c *Client) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, c.listPath(), nil)
	if err != nil {
		return nil, err
	}
	var list []models.Invoice
	if err := c.do(req, &list); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	SortByCreated(list)
	c.log.Debug().Int("count", len(list)).Msg("Fetched invoices")
	return list, nil
}

// SortByCreated orders invoices by creation time, newest first. Invoices
// without a timestamp go last.
func SortByCreated(list []models.Invoice) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].CreatedAt, list[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// GetInvoice finds one invoice by id in the visible list.
func (c *Client) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	list, err := c.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID.String() == id {
			return &list[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, id)
}

// CreateInvoice submits a new invoice as multipart form data. files maps
// attachment kinds to local paths.
func (c *Client) CreateInvoice(ctx context.Context, payload *models.Payload, files models.Files) (*models.Invoice, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	inv, err := c.sendForm(ctx, http.MethodPost, c.invoicesPath(), payload, files)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return inv, nil
}

// UpdateInvoice replaces the fields of invoice id. Attachments not present in
// files are left untouched on the server.
func (c *Client) UpdateInvoice(ctx context.Context, id string, payload *models.Payload, files models.Files) (*models.Invoice, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	inv, err := c.sendForm(ctx, http.MethodPut, c.invoicesPath()+"/"+url.PathEscape(id), payload, files)
	if err != nil {
		return nil, fmt.Errorf("update invoice %s: %w", id, err)
	}
	return inv, nil
}

func (c *Client) sendForm(ctx context.Context, method, path string, payload *models.Payload, files models.Files) (*models.Invoice, error) {
	body, contentType, err := encodeForm(payload, files)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	var inv models.Invoice
	if err := c.do(req, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// encodeForm writes payload fields in order followed by the attachments.
func encodeForm(payload *models.Payload, files models.Files) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if payload != nil {
		for _, key := range payload.Keys() {
			for _, v := range payload.Values(key) {
				if err := w.WriteField(key, v); err != nil {
					return nil, "", fmt.Errorf("write field %s: %w", key, err)
				}
			}
		}
	}

	for _, kind := range models.FileKinds {
		path := files[kind]
		if path == "" {
			continue
		}
		if err := attach(w, string(kind), path); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func attach(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open attachment %s: %w", path, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file %s: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy attachment %s: %w", path, err)
	}
	return nil
}

// DeleteInvoice removes one invoice.
func (c *Client) DeleteInvoice(ctx context.Context, id string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodDelete, c.invoicesPath()+"/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete invoice %s: %w", id, err)
	}
	c.log.Info().Str("invoice_id", id).Msg("Deleted invoice")
	return nil
}

const maxParallelDeletes = 4

// DeleteInvoices removes several invoices concurrently. Every delete is
// attempted; the first failure is returned.
func (c *Client) DeleteInvoices(ctx context.Context, ids []string) error {
	if err := c.requireSession(); err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(maxParallelDeletes)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return c.DeleteInvoice(ctx, id)
		})
	}
	return g.Wait()
}

// RemoveFile deletes one stored attachment of an invoice.
func (c *Client) RemoveFile(ctx context.Context, id string, kind models.FileKind) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	path := fmt.Sprintf("%s/%s/file?type=%s", c.invoicesPath(), url.PathEscape(id), url.QueryEscape(string(kind)))
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("remove %s of invoice %s: %w", kind, id, err)
	}
	return nil
}

// FileURL returns the download URL of a stored attachment path. Only the
// base name of the stored path is used.
func (c *Client) FileURL(storedPath string) string {
	return c.baseURL + "/files/" + url.PathEscape(baseName(storedPath))
}

// DownloadFile streams a stored attachment into w.
func (c *Client) DownloadFile(ctx context.Context, storedPath string, w io.Writer) (int64, error) {
	name := baseName(storedPath)
	if name == "" {
		return 0, fmt.Errorf("download: empty file path")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(storedPath), nil)
	if err != nil {
		return 0, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", name, err)
	}
	return n, nil
}

// baseName takes the last segment of a path with either separator.
func baseName(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
