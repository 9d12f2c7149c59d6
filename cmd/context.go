package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"invoicedesk/internal/api"
	"invoicedesk/internal/importer"
	"invoicedesk/internal/invoice"
	"invoicedesk/internal/session"
)

// commandContext creates a context with timeout and signal handling
func commandContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// loadSession returns the session from --token / INVOICEDESK_TOKEN, or the
// one saved by login.
func loadSession() (*session.Session, error) {
	if appConfig.Token != "" {
		return session.New(appConfig.Token, nil)
	}
	s, err := session.Load(appConfig.SessionFile)
	if err != nil {
		return nil, err
	}
	if s.Expired(time.Now()) {
		return nil, fmt.Errorf("session expired at %s: %w", s.ExpiresAt().Format(time.RFC3339), session.ErrNoToken)
	}
	return s, nil
}

// newClient creates a backend client. Authenticated clients carry the
// current session.
func newClient(authenticated bool) (*api.Client, error) {
	client := api.NewClient(appConfig.APIURL, api.WithTimeout(commandTimeout()))
	if !authenticated {
		return client, nil
	}
	s, err := loadSession()
	if err != nil {
		return nil, err
	}
	client.SetSession(s)
	return client, nil
}

// handleAPIError provides user-friendly error messages for backend failures
func handleAPIError(err error, log zerolog.Logger) error {
	if err == nil {
		return nil
	}
	log.Debug().Err(err).Msg("Command failed")

	var apiErr *api.APIError
	var problems invoice.ValidationErrors

	switch {
	case errors.Is(err, session.ErrNoToken):
		return fmt.Errorf("%s Run `invoicedesk login` first", strings.TrimSuffix(err.Error(), "."))
	case errors.Is(err, session.ErrMalformedToken):
		return fmt.Errorf("the stored token is not a valid JWT. Run `invoicedesk login` again")
	case api.IsUnauthorized(err):
		return fmt.Errorf("the backend rejected the session (401). Run `invoicedesk login` again")
	case errors.Is(err, importer.ErrNoUser):
		return fmt.Errorf("user information not found. Please re-login with `invoicedesk login`")
	case errors.Is(err, importer.ErrEmptySheet):
		return fmt.Errorf("file appears to be empty or missing headers")
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("operation was canceled")
	case errors.As(err, &problems):
		msgs := make([]string, len(problems))
		for i, p := range problems {
			msgs[i] = "  - " + p.Message
		}
		return fmt.Errorf("invoice not submitted:\n%s", strings.Join(msgs, "\n"))
	case errors.As(err, &apiErr):
		return fmt.Errorf("backend error (%d): %s", apiErr.StatusCode, apiErr.Error())
	default:
		return err
	}
}
