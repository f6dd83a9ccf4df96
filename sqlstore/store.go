// Package sqlstore keeps a repository in SQLite. Catalogs are loaded with
// Import, after which the store serves them like the static repository, but
// without holding records in memory.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/vitec-memorix/OaiPmh"
	"github.com/vitec-memorix/OaiPmh/static"
)

// DefaultPageSize is the number of sets or records per list response.
const DefaultPageSize = 100

var (
	ErrNoIdentity    = errors.New("sqlstore: no identity, import a catalog first")
	ErrSchemaVersion = errors.New("sqlstore: unsupported schema version")
	// ErrMissingMetadata is returned by Import for a record that is not
	// deleted but lacks metadata in one of its formats.
	ErrMissingMetadata = errors.New("sqlstore: record without metadata")
)

var _ oaipmh.Repository = (*Store)(nil)

// Store is a repository backed by a SQLite database.
type Store struct {
	db       *sql.DB
	baseURL  string
	pageSize int
	logger   *zap.Logger
	identity atomic.Pointer[identityMemo]
}

// Option configures a Store.
type Option func(*Store)

// WithBaseURL overrides the base URL stored with the identity.
func WithBaseURL(u string) Option {
	return func(s *Store) {
		s.baseURL = u
	}
}

// WithPageSize sets the number of entries per page.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLogger sets the logger, default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens or creates the database at dsn and migrates its schema. An
// in-memory database can be opened with ":memory:".
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer, and every connection to :memory: would get
	// its own database.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db, pageSize: DefaultPageSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.identity.Store(s.newIdentityMemo(-1))
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// identityMemo ties a cached identity to the import it was read from.
type identityMemo struct {
	generation int64
	cache      *oaipmh.IdentityCache
	// baseURL is written by the loader, read it only after a successful Get.
	baseURL string
}

func (s *Store) newIdentityMemo(generation int64) *identityMemo {
	m := &identityMemo{generation: generation}
	m.cache = oaipmh.NewIdentityCache(func(ctx context.Context) (oaipmh.Identity, error) {
		id, baseURL, err := s.loadIdentity(ctx)
		if err == nil {
			m.baseURL = baseURL
		}
		return id, err
	})
	return m
}

// generation returns the id of the latest import, 0 for an empty database.
func (s *Store) generation(ctx context.Context) (int64, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM imports").Scan(&gen)
	return gen, err
}

// currentIdentity returns the memo for the current content of the database.
// A catalog imported through another handle, or another process, replaces
// it. If the generation cannot be read, the last memo is used.
func (s *Store) currentIdentity(ctx context.Context) *identityMemo {
	memo := s.identity.Load()
	gen, err := s.generation(ctx)
	if err != nil {
		s.logger.Warn("reading import generation failed", zap.Error(err))
		return memo
	}
	if gen == memo.generation {
		return memo
	}
	next := s.newIdentityMemo(gen)
	if !s.identity.CompareAndSwap(memo, next) {
		return s.identity.Load()
	}
	return next
}

// Import replaces the content of the store with c, in a single transaction.
func (s *Store) Import(ctx context.Context, c *static.Catalog) error {
	started := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"record_sets", "record_formats", "records", "sets", "formats", "identity"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	id := c.Identity
	var earliest sql.NullInt64
	if !id.EarliestDatestamp.IsZero() {
		earliest = sql.NullInt64{Int64: id.EarliestDatestamp.Unix(), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO identity (id, base_url, repository_name, earliest_datestamp,
		deleted_record, granularity, admin_emails, compression, description) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.BaseURL, id.RepositoryName, earliest, id.DeletedRecord, string(id.Granularity),
		strings.Join(id.AdminEmails, "\n"), id.Compression, docString(id.Description))
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}

	for i, f := range c.Formats {
		if _, err := tx.ExecContext(ctx, "INSERT INTO formats (prefix, schema, namespace, position) VALUES (?, ?, ?, ?)",
			f.Prefix, f.Schema, f.Namespace, i); err != nil {
			return fmt.Errorf("insert format %s: %w", f.Prefix, err)
		}
	}
	for i, set := range c.Sets {
		if _, err := tx.ExecContext(ctx, "INSERT INTO sets (spec, name, description, position) VALUES (?, ?, ?, ?)",
			set.Spec, set.Name, docString(set.Description), i); err != nil {
			return fmt.Errorf("insert set %s: %w", set.Spec, err)
		}
	}
	for _, item := range c.Items {
		if err := insertItem(ctx, tx, item); err != nil {
			return fmt.Errorf("insert record %s: %w", item.Header.Identifier, err)
		}
	}
	res, err := tx.ExecContext(ctx, "INSERT INTO imports (imported_at, records) VALUES (?, ?)",
		started.Unix(), len(c.Items))
	if err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	gen, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.identity.Store(s.newIdentityMemo(gen))
	s.logger.Info("imported catalog",
		zap.String("repository", id.RepositoryName),
		zap.Int("formats", len(c.Formats)),
		zap.Int("sets", len(c.Sets)),
		zap.Int("records", len(c.Items)),
		zap.Duration("took", time.Since(started)))
	return nil
}

func insertItem(ctx context.Context, tx *sql.Tx, item static.Item) error {
	h := item.Header
	if _, err := tx.ExecContext(ctx, "INSERT INTO records (identifier, datestamp, deleted, about) VALUES (?, ?, ?, ?)",
		h.Identifier, h.Datestamp.Unix(), h.Deleted, docString(item.About)); err != nil {
		return err
	}
	for _, prefix := range item.Formats {
		if !h.Deleted && item.Metadata[prefix] == nil {
			return fmt.Errorf("%w: format %s", ErrMissingMetadata, prefix)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO record_formats (identifier, prefix, metadata) VALUES (?, ?, ?)",
			h.Identifier, prefix, docString(item.Metadata[prefix])); err != nil {
			return err
		}
	}
	for i, spec := range h.SetSpecs {
		if _, err := tx.ExecContext(ctx, "INSERT INTO record_sets (identifier, spec, position) VALUES (?, ?, ?)",
			h.Identifier, spec, i); err != nil {
			return err
		}
	}
	return nil
}

// docString maps a document to a nullable column.
func docString(doc *oaipmh.Document) sql.NullString {
	if doc == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: doc.String(), Valid: true}
}

// parseDoc is the inverse of docString.
func parseDoc(s sql.NullString) (*oaipmh.Document, error) {
	if !s.Valid {
		return nil, nil
	}
	return oaipmh.ParseDocumentString(s.String)
}
