package rotate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/org/vaultadmin/internal/crypto"
	"github.com/org/vaultadmin/pkg/models"
)

// memSecretStore is an in-memory SecretStore.
type memSecretStore struct {
	records   []models.SecretRecord
	updateErr map[string]error
}

func (m *memSecretStore) ListSecretRecords(_ context.Context) ([]models.SecretRecord, error) {
	out := make([]models.SecretRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *memSecretStore) UpdateSecretCiphertext(_ context.Context, alias, ciphertext string) error {
	if err := m.updateErr[alias]; err != nil {
		return err
	}
	for i := range m.records {
		if m.records[i].Alias == alias {
			m.records[i].Ciphertext = ciphertext
			return nil
		}
	}
	return errors.New("no such alias")
}

func (m *memSecretStore) get(alias string) models.SecretRecord {
	for _, r := range m.records {
		if r.Alias == alias {
			return r
		}
	}
	return models.SecretRecord{}
}

func mustKey(t *testing.T, fill string) *[32]byte {
	t.Helper()
	key, err := crypto.ParseKey(strings.Repeat(fill, 32))
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func seedStore(t *testing.T, key *[32]byte, plaintexts map[string]string) *memSecretStore {
	t.Helper()
	store := &memSecretStore{}
	for alias, pt := range plaintexts {
		blob, err := crypto.Encrypt(pt, key)
		if err != nil {
			t.Fatal(err)
		}
		store.records = append(store.records, models.SecretRecord{
			Alias: alias, Type: "Ed25519VerificationKey2018", Ciphertext: blob,
		})
	}
	return store
}

func TestRotateAllRecords(t *testing.T) {
	oldKey := mustKey(t, "aa")
	newKey := mustKey(t, "bb")
	store := seedStore(t, oldKey, map[string]string{
		"alpha": "seed-1", "beta": "seed-2", "gamma": "seed-3",
	})

	result, err := Rotate(context.Background(), store, oldKey, newKey, nil)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if result.Rotated != 3 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 3 rotated, 0 failed", result)
	}
	// Every record now decrypts under the new key only.
	for alias, want := range map[string]string{"alpha": "seed-1", "beta": "seed-2", "gamma": "seed-3"} {
		got, err := crypto.Decrypt(store.get(alias).Ciphertext, newKey)
		if err != nil {
			t.Fatalf("decrypting %s under new key: %v", alias, err)
		}
		if got != want {
			t.Errorf("%s: got %q want %q", alias, got, want)
		}
		if _, err := crypto.Decrypt(store.get(alias).Ciphertext, oldKey); err == nil {
			t.Errorf("%s still decryptable under old key", alias)
		}
	}
}

func TestRotateBackRestoresPlaintexts(t *testing.T) {
	oldKey := mustKey(t, "aa")
	newKey := mustKey(t, "bb")
	store := seedStore(t, oldKey, map[string]string{"alpha": "seed-1", "beta": "seed-2", "gamma": "seed-3"})

	if _, err := Rotate(context.Background(), store, oldKey, newKey, nil); err != nil {
		t.Fatal(err)
	}
	// Swap keys and rotate again.
	result, err := Rotate(context.Background(), store, newKey, oldKey, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Rotated != 3 || result.Failed != 0 {
		t.Fatalf("swap-back result = %+v", result)
	}
	for alias, want := range map[string]string{"alpha": "seed-1", "beta": "seed-2", "gamma": "seed-3"} {
		got, err := crypto.Decrypt(store.get(alias).Ciphertext, oldKey)
		if err != nil || got != want {
			t.Errorf("%s after swap-back: got %q, %v", alias, got, err)
		}
	}
}

func TestRotateIsolatesBadRecord(t *testing.T) {
	oldKey := mustKey(t, "aa")
	newKey := mustKey(t, "bb")
	otherKey := mustKey(t, "cc")

	store := seedStore(t, oldKey, map[string]string{"alpha": "a", "beta": "b"})
	// One record encrypted under a different key entirely.
	rogue, err := crypto.Encrypt("rogue", otherKey)
	if err != nil {
		t.Fatal(err)
	}
	store.records = append(store.records, models.SecretRecord{Alias: "rogue", Ciphertext: rogue})

	result, err := Rotate(context.Background(), store, oldKey, newKey, nil)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if result.Rotated != 2 || result.Failed != 1 {
		t.Fatalf("result = %+v, want 2 rotated / 1 failed", result)
	}
	if len(result.Failures) != 1 || result.Failures[0].Alias != "rogue" {
		t.Errorf("Failures = %+v", result.Failures)
	}
	// The failed row is untouched: still the original ciphertext.
	if store.get("rogue").Ciphertext != rogue {
		t.Error("failed record was modified")
	}
	// The good rows were committed despite the failure.
	if _, err := crypto.Decrypt(store.get("alpha").Ciphertext, newKey); err != nil {
		t.Errorf("alpha not rotated: %v", err)
	}
}

func TestRotatePersistFailureCounted(t *testing.T) {
	oldKey := mustKey(t, "aa")
	newKey := mustKey(t, "bb")
	store := seedStore(t, oldKey, map[string]string{"alpha": "a", "beta": "b"})
	store.updateErr = map[string]error{"beta": errors.New("connection reset by peer")}

	result, err := Rotate(context.Background(), store, oldKey, newKey, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Rotated != 1 || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(result.Failures[0].Reason, "persisting update") {
		t.Errorf("reason = %q", result.Failures[0].Reason)
	}
}

func TestRotateProgressOrder(t *testing.T) {
	oldKey := mustKey(t, "aa")
	newKey := mustKey(t, "bb")
	store := seedStore(t, oldKey, map[string]string{"alpha": "a"})
	store.records = append(store.records, models.SecretRecord{Alias: "zeta", Ciphertext: mustEncrypt(t, "z", oldKey)})

	var seen []string
	progress := func(alias string, pos, total int) {
		if total != 2 {
			t.Errorf("total = %d", total)
		}
		seen = append(seen, alias)
	}
	if _, err := Rotate(context.Background(), store, oldKey, newKey, progress); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != "alpha" || seen[1] != "zeta" {
		t.Errorf("progress order = %v", seen)
	}
}

func mustEncrypt(t *testing.T, pt string, key *[32]byte) string {
	t.Helper()
	blob, err := crypto.Encrypt(pt, key)
	if err != nil {
		t.Fatal(err)
	}
	return blob
}

func TestRunRejectsMalformedKeys(t *testing.T) {
	// Key validation happens before any database work, so no reachable
	// database is needed for this to fail fast.
	_, err := Run(context.Background(), Config{
		DBUrl:  "postgres://unused",
		OldKey: "short",
		NewKey: strings.Repeat("ab", 32),
	})
	if err == nil || !strings.Contains(err.Error(), "old key") {
		t.Errorf("expected old key format error, got %v", err)
	}

	_, err = Run(context.Background(), Config{
		DBUrl:  "postgres://unused",
		OldKey: strings.Repeat("ab", 32),
		NewKey: strings.Repeat("zz", 32),
	})
	if err == nil || !strings.Contains(err.Error(), "new key") {
		t.Errorf("expected new key format error, got %v", err)
	}
}
