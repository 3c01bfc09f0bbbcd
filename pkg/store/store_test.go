package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/amenyxia/templar/pkg/template"
)

// setupTestStore creates a fresh SQLite database and a Store over it.
// It uses t.Cleanup to ensure resources are released.
func setupTestStore(t *testing.T) *Store {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := New(db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)

	return s
}

func TestSetupSchemaIdempotent(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	for i := 0; i < 2; i++ {
		if err := SetupSchema(db); err != nil {
			t.Fatalf("SetupSchema() run %d error = %v", i+1, err)
		}
	}
}

func TestPutAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	syn := template.DefaultSyntax()

	stored, err := s.Put(ctx, "greeting", "Hello {{ name }}!", syn)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if stored.ID == 0 {
		t.Error("Put() returned a zero template id")
	}
	if stored.Hash != SourceHash("Hello {{ name }}!", syn) {
		t.Errorf("Put() hash = %q, want the source hash", stored.Hash)
	}

	got, err := s.Get(ctx, "greeting")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !reflect.DeepEqual(got, stored) {
		t.Errorf("Get() = %+v, want %+v", got, stored)
	}
}

func TestGetMissing(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Get(context.Background(), "no-such-template")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Get() error = %v, want sql.ErrNoRows", err)
	}
}

func TestPutUpdatesExisting(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	syn := template.DefaultSyntax()

	first, err := s.Put(ctx, "t", "v1", syn)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	second, err := s.Put(ctx, "t", "v2", syn)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("updating a template changed its id: %d -> %d", first.ID, second.ID)
	}
	if first.Hash == second.Hash {
		t.Error("changing the source must change the hash")
	}

	got, err := s.Get(ctx, "t")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Source != "v2" {
		t.Errorf("Get() source = %q, want %q", got.Source, "v2")
	}
}

func TestPutSyntaxChangeChangesHash(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	syn := template.DefaultSyntax()
	first, err := s.Put(ctx, "t", "src", syn)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	syn.ExprOpen, syn.ExprClose = "<<", ">>"
	second, err := s.Put(ctx, "t", "src", syn)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if first.Hash == second.Hash {
		t.Error("changing the syntax must change the hash")
	}
	got, err := s.Get(ctx, "t")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Syntax.ExprOpen != "<<" {
		t.Errorf("Get() syntax = %+v did not round-trip", got.Syntax)
	}
}

func TestList(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	syn := template.DefaultSyntax()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := s.Put(ctx, name, "src "+name, syn); err != nil {
			t.Fatalf("Put(%q) error = %v", name, err)
		}
	}

	templates, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var names []string
	for _, tpl := range templates {
		names = append(names, tpl.Name)
	}
	want := []string{"alpha", "mid", "zeta"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("List() names = %v, want %v", names, want)
	}
}

func TestDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stored, err := s.Put(ctx, "t", "src", template.DefaultSyntax())
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	p, err := template.CompileSource("src", template.DefaultSyntax())
	if err != nil {
		t.Fatalf("CompileSource() error = %v", err)
	}
	if err := s.SaveProgram(ctx, stored.ID, stored.Hash, p); err != nil {
		t.Fatalf("SaveProgram() error = %v", err)
	}

	if err := s.Delete(ctx, "t"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "t"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Get() after delete error = %v, want sql.ErrNoRows", err)
	}
	cached, err := s.LoadProgram(ctx, stored.ID, stored.Hash)
	if err != nil {
		t.Fatalf("LoadProgram() error = %v", err)
	}
	if cached != nil {
		t.Error("Delete() must drop the cached program")
	}

	// Deleting a template that does not exist is a no-op.
	if err := s.Delete(ctx, "t"); err != nil {
		t.Errorf("Delete() on missing template error = %v", err)
	}
}

func TestProgramCache(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	syn := template.DefaultSyntax()
	source := "{% for x in xs %}{{ x }}{% end %}"

	stored, err := s.Put(ctx, "t", source, syn)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Empty cache is a miss, not an error.
	cached, err := s.LoadProgram(ctx, stored.ID, stored.Hash)
	if err != nil {
		t.Fatalf("LoadProgram() error = %v", err)
	}
	if cached != nil {
		t.Fatal("LoadProgram() on an empty cache should miss")
	}

	p, err := template.CompileSource(source, syn)
	if err != nil {
		t.Fatalf("CompileSource() error = %v", err)
	}
	if err := s.SaveProgram(ctx, stored.ID, stored.Hash, p); err != nil {
		t.Fatalf("SaveProgram() error = %v", err)
	}

	cached, err = s.LoadProgram(ctx, stored.ID, stored.Hash)
	if err != nil {
		t.Fatalf("LoadProgram() error = %v", err)
	}
	if cached == nil {
		t.Fatal("LoadProgram() should hit after SaveProgram")
	}
	if !reflect.DeepEqual(cached.Instructions(), p.Instructions()) {
		t.Errorf("cached instructions = %+v, want %+v", cached.Instructions(), p.Instructions())
	}
	if !reflect.DeepEqual(cached.Fragments(), p.Fragments()) {
		t.Errorf("cached fragments = %v, want %v", cached.Fragments(), p.Fragments())
	}
}

func TestPutUnchangedKeepsCachedProgram(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	syn := template.DefaultSyntax()

	stored, err := s.Put(ctx, "t", "{{ x }}", syn)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	p, err := template.CompileSource("{{ x }}", syn)
	if err != nil {
		t.Fatalf("CompileSource() error = %v", err)
	}
	if err := s.SaveProgram(ctx, stored.ID, stored.Hash, p); err != nil {
		t.Fatalf("SaveProgram() error = %v", err)
	}

	again, err := s.Put(ctx, "t", "{{ x }}", syn)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if again.ID != stored.ID || again.Hash != stored.Hash {
		t.Fatalf("unchanged Put() = %+v, want %+v", again, stored)
	}
	cached, err := s.LoadProgram(ctx, stored.ID, stored.Hash)
	if err != nil {
		t.Fatalf("LoadProgram() error = %v", err)
	}
	if cached == nil {
		t.Error("an unchanged Put() must keep the cached program")
	}
}

func TestPutChangedDropsStaleProgram(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	syn := template.DefaultSyntax()

	stored, err := s.Put(ctx, "t", "v1", syn)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	p, err := template.CompileSource("v1", syn)
	if err != nil {
		t.Fatalf("CompileSource() error = %v", err)
	}
	if err := s.SaveProgram(ctx, stored.ID, stored.Hash, p); err != nil {
		t.Fatalf("SaveProgram() error = %v", err)
	}

	updated, err := s.Put(ctx, "t", "v2", syn)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// The old hash misses, and so does the new one until a program for
	// the new source is saved.
	for _, hash := range []string{stored.Hash, updated.Hash} {
		cached, err := s.LoadProgram(ctx, updated.ID, hash)
		if err != nil {
			t.Fatalf("LoadProgram() error = %v", err)
		}
		if cached != nil {
			t.Errorf("LoadProgram(%q) should miss after the source changed", hash)
		}
	}
}

func TestLoadProgramDropsCorruptEntry(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stored, err := s.Put(ctx, "t", "src", template.DefaultSyntax())
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO templar_programs (template_id, source_hash, payload) VALUES (?, ?, ?);`,
		stored.ID, stored.Hash, []byte("not a program"),
	); err != nil {
		t.Fatalf("failed to plant corrupt payload: %v", err)
	}

	cached, err := s.LoadProgram(ctx, stored.ID, stored.Hash)
	if err != nil {
		t.Fatalf("LoadProgram() error = %v", err)
	}
	if cached != nil {
		t.Fatal("a corrupt cache entry must behave like a miss")
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM templar_programs WHERE template_id = ?;`, stored.ID,
	).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Error("the corrupt cache entry should have been dropped")
	}
}

func TestSourceHash(t *testing.T) {
	syn := template.DefaultSyntax()
	if SourceHash("a", syn) == SourceHash("b", syn) {
		t.Error("different sources must hash differently")
	}
	other := syn
	other.StmtOpen = "[%"
	if SourceHash("a", syn) == SourceHash("a", other) {
		t.Error("different syntaxes must hash differently")
	}
	if SourceHash("a", syn) != SourceHash("a", syn) {
		t.Error("the hash must be deterministic")
	}
}
