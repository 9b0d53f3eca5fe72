package rotate

import (
	"context"
	"fmt"

	"github.com/org/vaultadmin/internal/crypto"
	"github.com/org/vaultadmin/internal/storage"
	"github.com/org/vaultadmin/pkg/models"
	"github.com/rs/zerolog/log"
)

// SecretStore is the persistence surface the pipeline needs.
type SecretStore interface {
	ListSecretRecords(ctx context.Context) ([]models.SecretRecord, error)
	UpdateSecretCiphertext(ctx context.Context, alias, ciphertext string) error
}

// ProgressFunc receives one event per record as it is processed.
type ProgressFunc func(alias string, pos, total int)

// Config holds everything one rotation run needs. Keys are 64-hex-character
// strings; both are validated before any data is touched.
type Config struct {
	DBUrl    string
	OldKey   string
	NewKey   string
	Progress ProgressFunc
}

// Failure records why one record could not be rotated.
type Failure struct {
	Alias  string
	Reason string
}

// Result aggregates one rotation run. A non-zero Failed count means some
// records are still encrypted under the old key; callers must not treat the
// new key as authoritative until Failed is zero.
type Result struct {
	Rotated  int
	Failed   int
	Failures []Failure
}

// Run re-encrypts every stored secret from cfg.OldKey to cfg.NewKey. Key
// format errors fail fast before a session is opened; the session itself is
// owned by this call and closed on every path.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	oldKey, err := crypto.ParseKey(cfg.OldKey)
	if err != nil {
		return nil, fmt.Errorf("old key: %w", err)
	}
	newKey, err := crypto.ParseKey(cfg.NewKey)
	if err != nil {
		return nil, fmt.Errorf("new key: %w", err)
	}

	store, err := storage.NewPostgresStore(ctx, cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("opening rotation session: %w", err)
	}
	defer store.Close()

	return Rotate(ctx, store, oldKey, newKey, cfg.Progress)
}

// Rotate runs the per-record pipeline: decrypt under the old key, re-encrypt
// under the new key, verify the round trip, persist. Each record is handled
// independently; one bad record never aborts the batch, it is recorded and
// processing continues.
func Rotate(ctx context.Context, store SecretStore, oldKey, newKey *[32]byte, progress ProgressFunc) (*Result, error) {
	records, err := store.ListSecretRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching secret records: %w", err)
	}

	result := &Result{}
	for i, record := range records {
		if progress != nil {
			progress(record.Alias, i+1, len(records))
		}
		if reason := rotateRecord(ctx, store, record, oldKey, newKey); reason != "" {
			result.Failed++
			result.Failures = append(result.Failures, Failure{Alias: record.Alias, Reason: reason})
			log.Warn().Str("alias", record.Alias).Str("reason", reason).Msg("record not rotated")
			continue
		}
		result.Rotated++
	}

	log.Info().Int("rotated", result.Rotated).Int("failed", result.Failed).Msg("rotation finished")
	return result, nil
}

// rotateRecord processes one record and returns a failure reason, or "" on
// success. The row is only written after the new ciphertext decrypts back to
// the original plaintext; anything short of that leaves it untouched.
func rotateRecord(ctx context.Context, store SecretStore, record models.SecretRecord, oldKey, newKey *[32]byte) string {
	plaintext, err := crypto.Decrypt(record.Ciphertext, oldKey)
	if err != nil {
		return fmt.Sprintf("decrypting under old key: %v", err)
	}

	reencrypted, err := crypto.Encrypt(plaintext, newKey)
	if err != nil {
		return fmt.Sprintf("encrypting under new key: %v", err)
	}

	roundTrip, err := crypto.Decrypt(reencrypted, newKey)
	if err != nil {
		return fmt.Sprintf("verifying new ciphertext: %v", err)
	}
	if roundTrip != plaintext {
		return "round-trip verification mismatch"
	}

	if err := store.UpdateSecretCiphertext(ctx, record.Alias, reencrypted); err != nil {
		return fmt.Sprintf("persisting update: %v", err)
	}
	return ""
}
