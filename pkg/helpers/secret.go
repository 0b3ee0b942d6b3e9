package helpers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrSecretNotFound is returned by a SecretStore that holds no secret yet.
	ErrSecretNotFound = errors.New("signing secret not found")
	// ErrNoSigningSecret means neither configuration nor a store can provide a key.
	ErrNoSigningSecret = errors.New("no signing secret configured: set JWT_SECRET or GCS_BUCKET")
)

// SecretStore persists the signing secret across restarts.
type SecretStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, secret []byte) error
}

// ResolveSigningSecret returns a stable signing key. A configured value wins;
// otherwise the store is consulted and, when empty, seeded with a fresh random
// secret so every later process start reuses it.
func ResolveSigningSecret(ctx context.Context, configured string, store SecretStore) ([]byte, error) {
	if configured != "" {
		if len(configured) < MinSecretLength {
			return nil, ErrWeakSecret
		}
		return []byte(configured), nil
	}
	if store == nil {
		return nil, ErrNoSigningSecret
	}

	secret, err := store.Load(ctx)
	switch {
	case err == nil:
		if len(secret) < MinSecretLength {
			return nil, ErrWeakSecret
		}
		return secret, nil
	case !errors.Is(err, ErrSecretNotFound):
		return nil, fmt.Errorf("load signing secret: %w", err)
	}

	secret, err = GenerateSecret(MinSecretLength)
	if err != nil {
		return nil, err
	}
	if err := store.Save(ctx, secret); err != nil {
		// Another instance may have won the race; prefer its secret.
		if existing, lerr := store.Load(ctx); lerr == nil && len(existing) >= MinSecretLength {
			return existing, nil
		}
		return nil, fmt.Errorf("persist signing secret: %w", err)
	}
	return secret, nil
}

// GenerateSecret returns n random bytes hex-encoded.
func GenerateSecret(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	out := make([]byte, hex.EncodedLen(n))
	hex.Encode(out, b)
	return out, nil
}
