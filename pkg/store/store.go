package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	json "github.com/goccy/go-json"

	"github.com/amenyxia/templar/pkg/template"
)

// SetupSchema initializes the template and program tables in the provided
// database. It should be called once before any other operations are
// performed. It is idempotent and safe to call on an already-initialized
// database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaTemplates = `
CREATE TABLE IF NOT EXISTS templar_templates (
    template_id INTEGER PRIMARY KEY,
    template_name TEXT NOT NULL UNIQUE,
    source TEXT NOT NULL,
    syntax TEXT NOT NULL,
    source_hash TEXT NOT NULL
);
`
		schemaPrograms = `
CREATE TABLE IF NOT EXISTS templar_programs (
    template_id INTEGER PRIMARY KEY,
    source_hash TEXT NOT NULL,
    payload BLOB NOT NULL
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaTemplates); err != nil {
		return fmt.Errorf("could not create templates schema: %w", err)
	}

	if _, err = tx.Exec(schemaPrograms); err != nil {
		return fmt.Errorf("could not create programs schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// Template is one stored template source together with the syntax
// descriptor it should be lexed with.
type Template struct {
	ID     int64
	Name   string
	Source string
	Syntax template.Syntax
	Hash   string
}

// SourceHash returns the cache key for a source/syntax pair. Any change to
// either invalidates cached programs.
func SourceHash(source string, syn template.Syntax) string {
	h := sha256.New()
	h.Write([]byte(source))
	if data, err := json.Marshal(syn); err == nil {
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Store provides access to persisted templates and the compiled-program
// cache. It pre-compiles all SQL statements; all methods are safe for
// concurrent use.
type Store struct {
	db              *sql.DB
	stmtPut         *sql.Stmt
	stmtGet         *sql.Stmt
	stmtList        *sql.Stmt
	stmtDelete      *sql.Stmt
	stmtSaveProgram *sql.Stmt
	stmtLoadProgram *sql.Stmt
	stmtDropProgram *sql.Stmt
	logger          *slog.Logger
}

// New creates a Store over an initialized database. It returns an error if
// any statement preparation fails.
func New(db *sql.DB) (*Store, error) {
	stmtPut, err := db.Prepare(`INSERT INTO templar_templates (template_name, source, syntax, source_hash) VALUES (?, ?, ?, ?)
ON CONFLICT(template_name) DO UPDATE SET source = excluded.source, syntax = excluded.syntax, source_hash = excluded.source_hash
RETURNING template_id;`)
	if err != nil {
		return nil, err
	}

	stmtGet, err := db.Prepare(`SELECT template_id, source, syntax, source_hash FROM templar_templates WHERE template_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtList, err := db.Prepare(`SELECT template_id, template_name, source, syntax, source_hash FROM templar_templates ORDER BY template_name;`)
	if err != nil {
		return nil, err
	}

	stmtDelete, err := db.Prepare(`DELETE FROM templar_templates WHERE template_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtSaveProgram, err := db.Prepare(`INSERT INTO templar_programs (template_id, source_hash, payload) VALUES (?, ?, ?)
ON CONFLICT(template_id) DO UPDATE SET source_hash = excluded.source_hash, payload = excluded.payload;`)
	if err != nil {
		return nil, err
	}

	stmtLoadProgram, err := db.Prepare(`SELECT payload FROM templar_programs WHERE template_id = ? AND source_hash = ?;`)
	if err != nil {
		return nil, err
	}

	stmtDropProgram, err := db.Prepare(`DELETE FROM templar_programs WHERE template_id = ?;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:              db,
		stmtPut:         stmtPut,
		stmtGet:         stmtGet,
		stmtList:        stmtList,
		stmtDelete:      stmtDelete,
		stmtSaveProgram: stmtSaveProgram,
		stmtLoadProgram: stmtLoadProgram,
		stmtDropProgram: stmtDropProgram,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store.
func (s *Store) Close() {
	_ = s.stmtPut.Close()
	_ = s.stmtGet.Close()
	_ = s.stmtList.Close()
	_ = s.stmtDelete.Close()
	_ = s.stmtSaveProgram.Close()
	_ = s.stmtLoadProgram.Close()
	_ = s.stmtDropProgram.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are
// discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Put inserts or updates a template source and returns its stored form.
// An unchanged template is left alone, keeping its cached program; when
// the source or syntax changed, the stale cached program is dropped.
func (s *Store) Put(ctx context.Context, name, source string, syn template.Syntax) (Template, error) {
	synData, err := json.Marshal(syn)
	if err != nil {
		return Template{}, fmt.Errorf("could not encode syntax: %w", err)
	}
	hash := SourceHash(source, syn)

	existing, err := s.Get(ctx, name)
	if err == nil && existing.Hash == hash {
		return existing, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Template{}, err
	}

	var id int64
	if err = s.stmtPut.QueryRowContext(ctx, name, source, string(synData), hash).Scan(&id); err != nil {
		return Template{}, fmt.Errorf("could not store template %q: %w", name, err)
	}

	if _, err = s.stmtDropProgram.ExecContext(ctx, id); err != nil {
		return Template{}, fmt.Errorf("could not invalidate cached program for %q: %w", name, err)
	}

	s.logger.DebugContext(ctx, "Template stored", "name", name, "hash", hash)
	return Template{ID: id, Name: name, Source: source, Syntax: syn, Hash: hash}, nil
}

// Get retrieves a single template by name. A missing template reports
// sql.ErrNoRows.
func (s *Store) Get(ctx context.Context, name string) (Template, error) {
	var (
		t       Template
		synData string
	)
	t.Name = name
	err := s.stmtGet.QueryRowContext(ctx, name).Scan(&t.ID, &t.Source, &synData, &t.Hash)
	if err != nil {
		return Template{}, err
	}
	if err = json.Unmarshal([]byte(synData), &t.Syntax); err != nil {
		return Template{}, fmt.Errorf("could not decode syntax for %q: %w", name, err)
	}
	return t, nil
}

// List retrieves all stored templates ordered by name.
func (s *Store) List(ctx context.Context) ([]Template, error) {
	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var templates []Template
	for rows.Next() {
		var (
			t       Template
			synData string
		)
		if err = rows.Scan(&t.ID, &t.Name, &t.Source, &synData, &t.Hash); err != nil {
			return nil, err
		}
		if err = json.Unmarshal([]byte(synData), &t.Syntax); err != nil {
			return nil, fmt.Errorf("could not decode syntax for %q: %w", t.Name, err)
		}
		templates = append(templates, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return templates, nil
}

// Delete removes a template and its cached program.
func (s *Store) Delete(ctx context.Context, name string) error {
	t, err := s.Get(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if _, err = s.stmtDropProgram.ExecContext(ctx, t.ID); err != nil {
		return fmt.Errorf("could not delete cached program for %q: %w", name, err)
	}
	if _, err = s.stmtDelete.ExecContext(ctx, name); err != nil {
		return fmt.Errorf("could not delete template %q: %w", name, err)
	}
	return nil
}

// SaveProgram caches a compiled program for the template and hash it was
// compiled from.
func (s *Store) SaveProgram(ctx context.Context, templateID int64, hash string, p *template.Program) error {
	payload, err := template.EncodeProgram(p)
	if err != nil {
		return fmt.Errorf("could not encode program: %w", err)
	}
	if _, err = s.stmtSaveProgram.ExecContext(ctx, templateID, hash, payload); err != nil {
		return fmt.Errorf("could not cache program: %w", err)
	}
	return nil
}

// LoadProgram retrieves the cached program for a template, or (nil, nil)
// when no program is cached for that exact hash. A stale entry behaves
// like a miss.
func (s *Store) LoadProgram(ctx context.Context, templateID int64, hash string) (*template.Program, error) {
	var payload []byte
	err := s.stmtLoadProgram.QueryRowContext(ctx, templateID, hash).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p, err := template.DecodeProgram(payload)
	if err != nil {
		// A corrupt cache entry is recoverable: report a miss and let
		// the caller recompile.
		s.logger.WarnContext(ctx, "Dropping corrupt cached program", "template_id", templateID, "error", err)
		_, _ = s.stmtDropProgram.ExecContext(ctx, templateID)
		return nil, nil
	}
	return p, nil
}
