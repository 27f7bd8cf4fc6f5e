package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/tonhe/nocwatch/internal/engine"
)

const migrationsTable = "nocwatch_schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres stores snapshots and events in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgres connects to cfg.DSN and applies pending migrations.
func NewPostgres(ctx context.Context, cfg Config, log zerolog.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "nocwatch"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to initialize pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if err := runMigrations(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Uint16("port", poolConfig.ConnConfig.Port).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Connected to PostgreSQL")

	return &Postgres{pool: pool, log: log}, nil
}

func (p *Postgres) GetLast(ctx context.Context, device, iface string) (*engine.Snapshot, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT snapshot FROM interface_snapshots WHERE device = $1 AND iface = $2`,
		device, iface).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot %s/%s: %w", device, iface, err)
	}

	var snap engine.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s/%s: %w", device, iface, err)
	}
	return &snap, nil
}

func (p *Postgres) Save(ctx context.Context, device, iface string, snap engine.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s/%s: %w", device, iface, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO interface_snapshots (device, iface, ts, snapshot, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (device, iface)
		DO UPDATE SET ts = EXCLUDED.ts, snapshot = EXCLUDED.snapshot, updated_at = now()`,
		device, iface, snap.Timestamp, raw)
	if err != nil {
		return fmt.Errorf("upsert snapshot %s/%s: %w", device, iface, err)
	}
	return nil
}

func (p *Postgres) AppendEvent(ctx context.Context, t engine.Transition) error {
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}
	var from *string
	if t.From != nil {
		s := string(*t.From)
		from = &s
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO interface_events (id, device, iface, from_state, to_state, reason, err_rate, description, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, t.Device, t.Iface, from, string(t.To), t.Diagnostics.Reason, t.Diagnostics.ErrRate, t.Description(), t.Timestamp)
	if err != nil {
		return fmt.Errorf("append event %s/%s: %w", t.Device, t.Iface, err)
	}
	return nil
}

func (p *Postgres) ListSnapshots(ctx context.Context, device string) ([]engine.Snapshot, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT iface, snapshot FROM interface_snapshots WHERE device = $1 ORDER BY iface`, device)
	if err != nil {
		return nil, fmt.Errorf("list snapshots for %s: %w", device, err)
	}
	defer rows.Close()

	var out []engine.Snapshot
	for rows.Next() {
		var (
			iface string
			raw   []byte
		)
		if err := rows.Scan(&iface, &raw); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap engine.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot %s/%s: %w", device, iface, err)
		}
		if snap.Name == "" {
			snap.Name = iface
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

func (p *Postgres) RecentEvents(ctx context.Context, limit int) ([]engine.Transition, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, device, iface, from_state, to_state, reason, err_rate, ts
		FROM interface_events
		ORDER BY ts DESC, created_at DESC
		LIMIT $1`, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []engine.Transition
	for rows.Next() {
		var (
			t    engine.Transition
			from *string
			to   string
		)
		if err := rows.Scan(&t.ID, &t.Device, &t.Iface, &from, &to, &t.Diagnostics.Reason, &t.Diagnostics.ErrRate, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		t.To = engine.State(to)
		if from != nil {
			s := engine.State(*from)
			t.From = &s
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// runMigrations applies embedded *.up.sql files not yet recorded in the
// tracking table, in file name order.
func runMigrations(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("migrations: acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version     TEXT PRIMARY KEY,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, migrationsTable)); err != nil {
		return fmt.Errorf("migrations: create tracking table: %w", err)
	}

	applied := make(map[string]struct{})
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT version FROM %s`, migrationsTable))
	if err != nil {
		return fmt.Errorf("migrations: list applied versions: %w", err)
	}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("migrations: scan applied version: %w", err)
		}
		applied[version] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("migrations: iterate applied versions: %w", err)
	}

	names, err := migrationFiles()
	if err != nil {
		return err
	}

	for _, name := range names {
		version := migrationVersion(name)
		if _, ok := applied[version]; ok {
			continue
		}

		log.Info().Str("migration", name).Msg("Applying migration")

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("migrations: read %s: %w", name, err)
		}

		for idx, stmt := range splitStatements(string(content)) {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrations: statement %d in %s failed: %w", idx+1, name, err)
			}
		}

		if _, err := conn.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (version) VALUES ($1)`, migrationsTable), version); err != nil {
			return fmt.Errorf("migrations: record %s: %w", name, err)
		}
	}

	return nil
}

func migrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations: read embedded migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func migrationVersion(filename string) string {
	version, _, _ := strings.Cut(filename, "_")
	return version
}

// splitStatements splits a migration into statements on semicolons at the
// end of a line, dropping comment-only lines. Statements in these migrations
// never embed semicolons.
func splitStatements(content string) []string {
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			out = append(out, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()

	for i, stmt := range out {
		out[i] = strings.TrimSuffix(stmt, ";")
	}
	return out
}
