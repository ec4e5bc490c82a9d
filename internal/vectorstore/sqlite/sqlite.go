package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // pure Go sqlite driver

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

// Store keeps the corpus in a single SQLite file.
// Metadata rows and vector blobs share one table so they cannot drift apart.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS records (
            position INTEGER PRIMARY KEY,
            vector BLOB NOT NULL,
            metadata TEXT NOT NULL
        );`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save replaces the stored corpus inside one transaction.
func (s *Store) Save(ctx context.Context, c *domain.Corpus) error {
	if err := c.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meta`); err != nil {
		return fmt.Errorf("clearing meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (position, vector, metadata) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := range c.Vectors {
		meta, err := json.Marshal(c.Metadata[i])
		if err != nil {
			return fmt.Errorf("marshal metadata %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, i, vectorstore.EncodeVector(c.Vectors[i]), string(meta)); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	for k, v := range map[string]string{
		"model":     c.Model,
		"dimension": strconv.Itoa(c.Dimension),
		"count":     strconv.Itoa(c.Len()),
	} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("write meta %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load reads the stored corpus and verifies it is aligned.
func (s *Store) Load(ctx context.Context) (*domain.Corpus, error) {
	meta, err := s.readMeta(ctx)
	if err != nil {
		return nil, err
	}
	if len(meta) == 0 {
		return nil, vectorstore.ErrNotFound
	}

	dim, err := strconv.Atoi(meta["dimension"])
	if err != nil {
		return nil, &domain.CorpusLoadError{Reason: "bad dimension", Err: err}
	}
	count, err := strconv.Atoi(meta["count"])
	if err != nil {
		return nil, &domain.CorpusLoadError{Reason: "bad count", Err: err}
	}

	c := domain.NewCorpus(meta["model"], dim)
	rows, err := s.db.QueryContext(ctx, `SELECT position, vector, metadata FROM records ORDER BY position`)
	if err != nil {
		return nil, &domain.CorpusLoadError{Reason: "reading records", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pos  int
			blob []byte
			raw  string
		)
		if err := rows.Scan(&pos, &blob, &raw); err != nil {
			return nil, &domain.CorpusLoadError{Reason: "scanning record", Err: err}
		}
		if pos != len(c.Vectors) {
			return nil, &domain.CorpusLoadError{Reason: fmt.Sprintf("record %d missing", len(c.Vectors))}
		}
		vec, err := vectorstore.DecodeVector(blob)
		if err != nil {
			return nil, &domain.CorpusLoadError{Reason: fmt.Sprintf("record %d", pos), Err: err}
		}
		var m domain.Metadata
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, &domain.CorpusLoadError{Reason: fmt.Sprintf("record %d metadata", pos), Err: err}
		}
		c.Vectors = append(c.Vectors, vec)
		c.Metadata = append(c.Metadata, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.CorpusLoadError{Reason: "iterating records", Err: err}
	}
	if c.Len() != count {
		return nil, &domain.CorpusLoadError{Reason: fmt.Sprintf("expected %d records, found %d", count, c.Len())}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) readMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, &domain.CorpusLoadError{Reason: "reading meta", Err: err}
	}
	defer rows.Close()
	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, &domain.CorpusLoadError{Reason: "scanning meta", Err: err}
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.CorpusLoadError{Reason: "iterating meta", Err: err}
	}
	return meta, nil
}

var _ vectorstore.Store = (*Store)(nil)
