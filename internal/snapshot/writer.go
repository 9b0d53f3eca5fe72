package snapshot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/org/vaultadmin/internal/schema"
	"github.com/org/vaultadmin/internal/storage"
	"github.com/rs/zerolog/log"
)

// Source supplies the schema and row data a snapshot is assembled from.
type Source interface {
	Tables(ctx context.Context) ([]schema.Table, error)
	ForEachRow(ctx context.Context, table string, columns []string, fn func(values []any) error) error
}

// ProgressFunc receives one event per table as it is written.
type ProgressFunc func(table string, pos, total int)

// Config holds everything one snapshot run needs. The core never reads
// ambient process state; callers pass connection and destination explicitly.
type Config struct {
	DBUrl       string
	Destination string
	Progress    ProgressFunc
}

// Result describes a written snapshot artifact.
type Result struct {
	Path      string
	ByteSize  int64
	LineCount int
}

// Run takes a snapshot of the configured database and writes the artifact to
// cfg.Destination, creating parent directories as needed. It owns the whole
// session lifecycle: the connection is opened here and closed on every path.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	store, err := storage.NewPostgresStore(ctx, cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot session: %w", err)
	}
	defer store.Close()

	if dir := filepath.Dir(cfg.Destination); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating snapshot directory: %w", err)
		}
	}
	f, err := os.Create(cfg.Destination)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot artifact: %w", err)
	}
	defer f.Close()

	lines, err := Write(ctx, store, f, cfg.Progress)
	if err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("flushing snapshot artifact: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stating snapshot artifact: %w", err)
	}

	log.Info().Str("path", cfg.Destination).Int64("bytes", info.Size()).Int("lines", lines).
		Msg("snapshot written")
	return &Result{Path: cfg.Destination, ByteSize: info.Size(), LineCount: lines}, nil
}

// Write emits the full statement stream for src to w and returns the number
// of lines written. Tables come out in the source's deterministic order, each
// as a drop/create/primary-key/insert block.
func Write(ctx context.Context, src Source, w io.Writer, progress ProgressFunc) (int, error) {
	tables, err := src.Tables(ctx)
	if err != nil {
		return 0, fmt.Errorf("introspecting schema: %w", err)
	}

	bw := bufio.NewWriter(w)
	lines := 0
	writeln := func(format string, args ...any) {
		fmt.Fprintf(bw, format+"\n", args...)
		lines++
	}

	writeln("-- vaultadmin snapshot")
	writeln("-- generated: %s", time.Now().UTC().Format(time.RFC3339))
	writeln("SET client_encoding = 'UTF8';")

	for i, table := range tables {
		if progress != nil {
			progress(table.Name, i+1, len(tables))
		}
		writeln("")
		writeln(`DROP TABLE IF EXISTS %q CASCADE;`, table.Name)

		defs := make([]string, len(table.Columns))
		for j, col := range table.Columns {
			defs[j] = "  " + schema.ColumnDef(col)
		}
		writeln(`CREATE TABLE IF NOT EXISTS %q (`, table.Name)
		for j, def := range defs {
			if j < len(defs)-1 {
				writeln("%s,", def)
			} else {
				writeln("%s", def)
			}
		}
		writeln(");")

		if len(table.PrimaryKey) > 0 {
			writeln(`ALTER TABLE %q ADD PRIMARY KEY (%s);`, table.Name, quoteJoin(table.PrimaryKey))
		}

		columns := table.ColumnNames()
		insertPrefix := fmt.Sprintf(`INSERT INTO %q (%s) VALUES `, table.Name, quoteJoin(columns))
		err := src.ForEachRow(ctx, table.Name, columns, func(values []any) error {
			literals := make([]string, len(values))
			for j, v := range values {
				literals[j] = Literal(v)
			}
			writeln("%s(%s);", insertPrefix, strings.Join(literals, ", "))
			return nil
		})
		if err != nil {
			return lines, fmt.Errorf("reading rows of %s: %w", table.Name, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return lines, err
	}
	return lines, nil
}

// quoteJoin renders column names as a quoted, comma-joined list.
func quoteJoin(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, ",")
}
