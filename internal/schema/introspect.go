package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Introspector reads table, column and primary-key metadata from the
// PostgreSQL catalog for the public schema.
type Introspector struct {
	pool *pgxpool.Pool
}

// NewIntrospector creates an Introspector over an open pool.
func NewIntrospector(pool *pgxpool.Pool) *Introspector {
	return &Introspector{pool: pool}
}

// Tables returns every user table in lexicographic name order, each with its
// columns in ordinal order and its primary-key column list. Any catalog error
// aborts the whole introspection; partial schemas are never returned.
func (in *Introspector) Tables(ctx context.Context) ([]Table, error) {
	names, err := in.tableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		cols, err := in.columns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting columns of %s: %w", name, err)
		}
		pk, err := in.primaryKey(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting primary key of %s: %w", name, err)
		}
		tables = append(tables, Table{Name: name, Columns: cols, PrimaryKey: pk})
	}
	return tables, nil
}

func (in *Introspector) tableNames(ctx context.Context) ([]string, error) {
	rows, err := in.pool.Query(ctx,
		`SELECT table_name
		 FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		 ORDER BY table_name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (in *Introspector) columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := in.pool.Query(ctx,
		`SELECT column_name, data_type, character_maximum_length, is_nullable, column_default
		 FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1
		 ORDER BY ordinal_position`,
		table,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var nullable string
		if err := rows.Scan(&c.Name, &c.DataType, &c.MaxLength, &nullable, &c.Default); err != nil {
			return nil, err
		}
		c.Nullable = nullable == "YES"
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (in *Introspector) primaryKey(ctx context.Context, table string) ([]string, error) {
	rows, err := in.pool.Query(ctx,
		`SELECT a.attname
		 FROM pg_index i
		 JOIN pg_class c ON c.oid = i.indrelid
		 JOIN pg_namespace n ON n.oid = c.relnamespace
		 JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
		 WHERE n.nspname = 'public' AND c.relname = $1 AND i.indisprimary
		 ORDER BY array_position(i.indkey, a.attnum)`,
		table,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}
