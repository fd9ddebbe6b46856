/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	// PostgreSQL driver registered as "pgx" for the shared cache
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"

	"mattydesign/internal/domain"
	applog "mattydesign/internal/log"
	"mattydesign/internal/version"
)

const (
	// CacheFileName is the default SQLite cache file name.
	CacheFileName = "designs.sqlite"

	// schemaVersion tracks the cache schema. Bump it and add a step to
	// runMigrations on schema changes.
	schemaVersion = 2

	tsLayout = "2006-01-02T15:04:05.000000000Z"
)

// Cache drivers understood by OpenCache.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Cache is a design cache the CLI can list from and the editor reads and reconciles.
type Cache interface {
	AddDesign(ctx context.Context, d domain.Design) error
	UpdateDesign(ctx context.Context, id string, p domain.DesignPatch) error
	GetDesignByID(ctx context.Context, id string) (domain.Design, bool, error)
	ListDesigns(ctx context.Context) ([]domain.Design, error)
	Close() error
}

// OpenCache opens the cache for driver; path applies to SQLite, dsn to PostgreSQL.
func OpenCache(ctx context.Context, driver, path, dsn string) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		return OpenSQLiteCache(ctx, path)
	case DriverPostgres, "pgx":
		return OpenPostgresCache(ctx, dsn)
	case DriverMemory:
		return NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", driver)
	}
}

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// DesignCache is a design cache backed by a SQL database.
type DesignCache struct {
	db      *sql.DB
	dialect dialect
	log     *slog.Logger
}

// OpenSQLiteCache opens (creating if needed) the SQLite cache at path,
// enables WAL mode and brings the schema up to date.
func OpenSQLiteCache(ctx context.Context, path string) (*DesignCache, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "cache_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create cache dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	c := &DesignCache{db: db, dialect: dialectSQLite, log: l}
	if err := c.prepare(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	l.Info("cache ready")
	return c, nil
}

// OpenPostgresCache connects to a PostgreSQL cache shared between workstations.
func OpenPostgresCache(ctx context.Context, dsn string) (*DesignCache, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "cache_open").With(slog.String("driver", "pgx"))
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres cache requires a DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		l.Error("ping failed", slog.Any("err", err))
		return nil, fmt.Errorf("ping db: %w", err)
	}
	c := &DesignCache{db: db, dialect: dialectPostgres, log: l}
	if err := c.prepare(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	l.Info("cache ready")
	return c, nil
}

func (c *DesignCache) prepare(ctx context.Context) error {
	if err := c.ensureVersion(ctx); err != nil {
		c.log.Error("ensure version failed", slog.Any("err", err))
		return err
	}
	if err := c.ensureSchema(ctx); err != nil {
		c.log.Error("ensure schema failed", slog.Any("err", err))
		return err
	}
	if err := c.runMigrations(ctx); err != nil {
		c.log.Error("run migrations failed", slog.Any("err", err))
		return err
	}
	return nil
}

func (c *DesignCache) Close() error { return c.db.Close() }

// rebind rewrites ? placeholders as $n for PostgreSQL.
func (c *DesignCache) rebind(q string) string {
	if c.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *DesignCache) ensureVersion(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS cache_version (
		id             INTEGER PRIMARY KEY CHECK(id=1),
		schema_version INTEGER NOT NULL,
		app            TEXT,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := c.db.QueryRowContext(ctx, `SELECT schema_version FROM cache_version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := c.db.ExecContext(ctx, c.rebind(`INSERT INTO cache_version (id, schema_version, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`), schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := c.db.ExecContext(ctx, c.rebind(`UPDATE cache_version SET app=?, updated_at=? WHERE id=1`), appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func (c *DesignCache) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS designs (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			json_data  TEXT,
			s3_url     TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_designs_updated ON designs(updated_at)`,
	}
	for _, q := range ddl {
		if _, err := c.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func (c *DesignCache) runMigrations(ctx context.Context) error {
	var cur int
	if err := c.db.QueryRowContext(ctx, `SELECT schema_version FROM cache_version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{`CREATE INDEX IF NOT EXISTS idx_designs_updated ON designs(updated_at)`}
		}
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, c.rebind(`UPDATE cache_version SET schema_version=?, updated_at=? WHERE id=1`), next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AddDesign stores d, replacing a cached design with the same id.
func (c *DesignCache) AddDesign(ctx context.Context, d domain.Design) error {
	if d.ID == "" {
		return ErrNoID
	}
	return c.upsert(ctx, c.db, d)
}

// UpdateDesign applies p to the design with id, creating it when absent.
func (c *DesignCache) UpdateDesign(ctx context.Context, id string, p domain.DesignPatch) error {
	if id == "" {
		return ErrNoID
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	d, ok, err := c.get(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if !ok {
		d = domain.Design{ID: id}
	}
	p.Apply(&d)
	if err := c.upsert(ctx, tx, d); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func (c *DesignCache) GetDesignByID(ctx context.Context, id string) (domain.Design, bool, error) {
	return c.get(ctx, c.db, id)
}

// ListDesigns returns cached designs, most recently written first.
func (c *DesignCache) ListDesigns(ctx context.Context) ([]domain.Design, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, title, json_data, s3_url FROM designs ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	defer rows.Close()
	var out []domain.Design
	for rows.Next() {
		d, err := scanDesign(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	return out, nil
}

func (c *DesignCache) get(ctx context.Context, q queryer, id string) (domain.Design, bool, error) {
	row := q.QueryRowContext(ctx, c.rebind(`SELECT id, title, json_data, s3_url FROM designs WHERE id=?`), id)
	d, err := scanDesign(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Design{}, false, nil
	}
	if err != nil {
		return domain.Design{}, false, err
	}
	return d, true, nil
}

func (c *DesignCache) upsert(ctx context.Context, q queryer, d domain.Design) error {
	var body sql.NullString
	if !d.JSONData.Empty() {
		b, err := d.JSONData.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode jsonData: %w", err)
		}
		body = sql.NullString{String: string(b), Valid: true}
	}
	_, err := q.ExecContext(ctx, c.rebind(`INSERT INTO designs (id, title, json_data, s3_url, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title=excluded.title, json_data=excluded.json_data, s3_url=excluded.s3_url, updated_at=excluded.updated_at`),
		d.ID, d.Title, body, d.S3URL, time.Now().UTC().Format(tsLayout))
	if err != nil {
		return fmt.Errorf("store design %s: %w", d.ID, err)
	}
	return nil
}

func scanDesign(scan func(dest ...any) error) (domain.Design, error) {
	var (
		d    domain.Design
		body sql.NullString
	)
	if err := scan(&d.ID, &d.Title, &body, &d.S3URL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, err
		}
		return d, fmt.Errorf("scan design: %w", err)
	}
	if body.Valid {
		if err := d.JSONData.UnmarshalJSON([]byte(body.String)); err != nil {
			return d, fmt.Errorf("decode jsonData of %s: %w", d.ID, err)
		}
	}
	return d, nil
}
