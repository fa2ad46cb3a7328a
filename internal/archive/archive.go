// Package archive stores the original invoice PDFs in Google Cloud
// Storage so disputes can be traced back to the source document.
package archive

import (
	"context"
	"fmt"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Archiver uploads invoice PDFs. With an empty bucket name it becomes
// a no-op, which keeps local setups free of cloud credentials.
type Archiver struct {
	bucket string
	log    zerolog.Logger
}

// New creates an Archiver for the given bucket. An empty bucket
// disables archival.
func New(bucket string, log zerolog.Logger) *Archiver {
	return &Archiver{bucket: bucket, log: log}
}

// Enabled reports whether uploads will actually happen.
func (a *Archiver) Enabled() bool { return a.bucket != "" }

// StorePDF uploads the PDF bytes and returns the gs:// URI. Object
// names are date-partitioned and prefixed with a UUID so re-uploads of
// the same filename never collide.
func (a *Archiver) StorePDF(ctx context.Context, filename string, data []byte) (string, error) {
	if !a.Enabled() {
		return "", nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("StorePDF: create storage client: %w", err)
	}
	defer client.Close()

	now := time.Now().UTC()
	objectName := path.Join(
		"uploads",
		now.Format("2006/01/02"),
		fmt.Sprintf("%s-%s", uuid.New().String(), path.Base(filename)),
	)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/pdf"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("StorePDF: write object %q: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("StorePDF: close writer for %q: %w", objectName, err)
	}

	uri := fmt.Sprintf("gs://%s/%s", a.bucket, objectName)
	a.log.Info().Str("uri", uri).Int("bytes", len(data)).Msg("invoice archived")
	return uri, nil
}
