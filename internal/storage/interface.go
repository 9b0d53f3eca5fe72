package storage

import (
	"context"
	"errors"

	"github.com/org/vaultadmin/pkg/models"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence surface the admin operations need.
type Store interface {
	// Catalog
	ListTables(ctx context.Context) ([]string, error)

	// Encrypted secrets
	ListSecretRecords(ctx context.Context) ([]models.SecretRecord, error)
	UpdateSecretCiphertext(ctx context.Context, alias, ciphertext string) error

	// Metrics helpers
	CountSecretRecords(ctx context.Context) (int64, error)
	CountCredentials(ctx context.Context) (int64, error)

	// Lifecycle
	Close()
}
