package verify

import (
	"context"
	"errors"
	"testing"
)

type fakeLister struct {
	tables []string
	err    error
}

func (f *fakeLister) ListTables(_ context.Context) ([]string, error) {
	return f.tables, f.err
}

func TestCheckAllPresent(t *testing.T) {
	lister := &fakeLister{tables: []string{
		"credential", "identity", "key", "private_key", "schema_migrations", "audit_log",
	}}
	result, err := Check(context.Background(), lister)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !result.Valid || len(result.Missing) != 0 {
		t.Errorf("result = %+v, want valid with nothing missing", result)
	}
}

func TestCheckMissingCredential(t *testing.T) {
	lister := &fakeLister{tables: []string{
		"identity", "key", "private_key", "schema_migrations",
	}}
	result, err := Check(context.Background(), lister)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if result.Valid {
		t.Error("expected invalid result")
	}
	if len(result.Missing) != 1 || result.Missing[0] != "credential" {
		t.Errorf("Missing = %v, want [credential]", result.Missing)
	}
}

func TestCheckCaseInsensitive(t *testing.T) {
	lister := &fakeLister{tables: []string{
		"Credential", "IDENTITY", "Key", "Private_Key", "Schema_Migrations",
	}}
	result, err := Check(context.Background(), lister)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("case difference should not count as missing: %+v", result)
	}
}

func TestCheckListError(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection reset")}
	if _, err := Check(context.Background(), lister); err == nil {
		t.Error("expected error to propagate")
	}
}
