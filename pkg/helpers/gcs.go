package helpers

import (
	"bytes"
	"cloud.google.com/go/storage"
	"context"
	"errors"
	"google.golang.org/api/option"
	"io"
)

// NewGCSClient creates a Google Cloud Storage client. If credsPath is empty, ADC is used.
func NewGCSClient(ctx context.Context, credsPath string) (*storage.Client, error) {
	if credsPath == "" {
		return storage.NewClient(ctx)
	}
	return storage.NewClient(ctx, option.WithCredentialsFile(credsPath))
}

// GCSSecretStore keeps the signing secret in a single private object.
type GCSSecretStore struct {
	Client *storage.Client
	Bucket string
	Object string
}

func NewGCSSecretStore(client *storage.Client, bucket, object string) *GCSSecretStore {
	return &GCSSecretStore{Client: client, Bucket: bucket, Object: object}
}

func (s *GCSSecretStore) Load(ctx context.Context) ([]byte, error) {
	rc, err := s.Client.Bucket(s.Bucket).Object(s.Object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrSecretNotFound
		}
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(b), nil
}

// Save writes the secret only if the object does not exist yet, so two
// instances starting together end up with the same key.
func (s *GCSSecretStore) Save(ctx context.Context, secret []byte) error {
	obj := s.Client.Bucket(s.Bucket).Object(s.Object).If(storage.Conditions{DoesNotExist: true})
	wc := obj.NewWriter(ctx)
	wc.ContentType = "application/octet-stream"
	wc.ChunkSize = 0 // disable chunking for small files
	if _, err := io.Copy(wc, bytes.NewReader(secret)); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}
