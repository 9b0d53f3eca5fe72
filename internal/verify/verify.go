package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/org/vaultadmin/internal/storage"
)

// CoreTables is the fixed set of tables the credential service cannot run
// without. The names are a configuration constant, not derived from the schema.
var CoreTables = []string{
	"identity",
	"key",
	"private_key",
	"credential",
	"schema_migrations",
}

// Lister enumerates the tables present in the working schema.
type Lister interface {
	ListTables(ctx context.Context) ([]string, error)
}

// Result reports whether all core tables are present and which are missing.
type Result struct {
	Valid   bool
	Missing []string
}

// Run opens a session, checks the schema and closes the session.
func Run(ctx context.Context, dbURL string) (*Result, error) {
	store, err := storage.NewPostgresStore(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("opening verify session: %w", err)
	}
	defer store.Close()
	return Check(ctx, store)
}

// Check compares the tables present against CoreTables, case-insensitively.
// It never mutates the database.
func Check(ctx context.Context, lister Lister) (*Result, error) {
	present, err := lister.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	have := make(map[string]bool, len(present))
	for _, name := range present {
		have[strings.ToLower(name)] = true
	}

	result := &Result{Valid: true}
	for _, want := range CoreTables {
		if !have[strings.ToLower(want)] {
			result.Valid = false
			result.Missing = append(result.Missing, want)
		}
	}
	return result, nil
}
