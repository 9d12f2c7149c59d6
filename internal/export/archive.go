package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"invoicedesk/internal/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrNoBucket is returned when archiving is requested without a bucket.
var ErrNoBucket = errors.New("GCS_EXPORT_BUCKET is required to archive exports")

// Archiver stores exported workbooks in a Cloud Storage bucket.
type Archiver struct {
	client *storage.Client
	bucket string
	folder string
	log    zerolog.Logger
}

// NewArchiver connects to Cloud Storage. Credentials come from
// GCS_CREDENTIALS_JSON when set, else from application default credentials.
func NewArchiver(ctx context.Context, bucket, folder string) (*Archiver, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, ErrNoBucket
	}

	var opts []option.ClientOption
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Archiver{
		client: client,
		bucket: bucket,
		folder: folder,
		log:    logger.WithComponent("export-archive"),
	}, nil
}

// ObjectName places name under folder.
func ObjectName(folder, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

// Upload copies r into the bucket and returns the gs:// URI of the object.
func (a *Archiver) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	object := ObjectName(a.folder, name)

	wc := a.client.Bucket(a.bucket).Object(object).NewWriter(ctx)
	wc.ContentType = xlsxContentType
	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", object, err)
	}

	uri := fmt.Sprintf("gs://%s/%s", a.bucket, object)
	a.log.Info().Str("object", uri).Msg("Archived export")
	return uri, nil
}

// Close releases the storage client.
func (a *Archiver) Close() error {
	return a.client.Close()
}
