package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/org/vaultadmin/internal/schema"
	"github.com/org/vaultadmin/pkg/models"
)

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pgxpool connection and returns a ready store.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

// Pool exposes the underlying pool for components that run their own queries.
func (p *PostgresStore) Pool() *pgxpool.Pool {
	return p.pool
}

// --- Catalog ---

// ListTables returns the names of all user tables in the public schema.
func (p *PostgresStore) ListTables(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx,
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

// Tables returns the full snapshot units for every user table.
func (p *PostgresStore) Tables(ctx context.Context) ([]schema.Table, error) {
	return schema.NewIntrospector(p.pool).Tables(ctx)
}

// ForEachRow streams every row of a table in the given column order.
func (p *PostgresStore) ForEachRow(ctx context.Context, table string, columns []string, fn func(values []any) error) error {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	rows, err := p.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %q`, strings.Join(quoted, ", "), table),
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return err
		}
		if err := fn(values); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Exec runs one statement, discarding the command tag.
func (p *PostgresStore) Exec(ctx context.Context, sql string) error {
	_, err := p.pool.Exec(ctx, sql)
	return err
}

// --- Encrypted secrets ---

// ListSecretRecords fetches every stored encrypted private key in catalog
// row order (by alias, which is unique).
func (p *PostgresStore) ListSecretRecords(ctx context.Context) ([]models.SecretRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT alias, type, encrypted_private_key FROM private_key ORDER BY alias`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []models.SecretRecord
	for rows.Next() {
		var r models.SecretRecord
		if err := rows.Scan(&r.Alias, &r.Type, &r.Ciphertext); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// UpdateSecretCiphertext rewrites the ciphertext of one record, keyed by alias.
func (p *PostgresStore) UpdateSecretCiphertext(ctx context.Context, alias, ciphertext string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE private_key SET encrypted_private_key = $1 WHERE alias = $2`,
		ciphertext, alias,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating %s: %w", alias, ErrNotFound)
	}
	return nil
}

// --- Metrics ---

func (p *PostgresStore) CountSecretRecords(ctx context.Context) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM private_key`).Scan(&count)
	return count, err
}

func (p *PostgresStore) CountCredentials(ctx context.Context) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM credential`).Scan(&count)
	return count, err
}

// --- Database admin ---

// RecreateDatabase drops and recreates a database. It must be called with a
// connection URL pointing at a maintenance database (e.g. "postgres"), not at
// the database being dropped. Other sessions connected to the target are
// terminated first so the drop cannot fail with "database is in use".
func RecreateDatabase(ctx context.Context, adminConnStr, dbName string) error {
	conn, err := pgx.Connect(ctx, adminConnStr)
	if err != nil {
		return fmt.Errorf("connecting to maintenance database: %w", err)
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx,
		`SELECT pg_terminate_backend(pid)
		 FROM pg_stat_activity
		 WHERE datname = $1 AND pid <> pg_backend_pid()`,
		dbName,
	)
	if err != nil {
		return fmt.Errorf("terminating sessions on %s: %w", dbName, err)
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf(`DROP DATABASE IF EXISTS %q`, dbName)); err != nil {
		return fmt.Errorf("dropping database %s: %w", dbName, err)
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %q`, dbName)); err != nil {
		return fmt.Errorf("creating database %s: %w", dbName, err)
	}
	return nil
}
