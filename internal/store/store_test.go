package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/lockdown/internal/testutil"
	"github.com/roach88/lockdown/internal/types"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func beginTestRun(t *testing.T, s *Store, ids *testutil.FixedRunIDs) *Run {
	t.Helper()
	run, err := s.BeginRun(context.Background(), "test",
		WithIDGenerator(ids),
		WithClock(testutil.NewDeterministicClock()),
	)
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	return run
}

func point() *types.CompositeType {
	return types.ObjectType(map[string]types.Type{"x": types.Integer, "y": types.Integer}, types.Named("point"))
}

// ============================================================================
// Open
// ============================================================================

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"types", "runs", "verdicts"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	if _, err := Open("/nonexistent/dir/test.db"); err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"foreign_keys": "1",
		"user_version": "1",
	} {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_CreatesRelationIndex(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND tbl_name='verdicts' AND name=?",
		"idx_verdicts_relation",
	).Scan(&name)
	if err != nil {
		t.Fatalf("relation index not found: %v", err)
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 2"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	s.Close()

	if _, err := Open(path); !errors.Is(err, ErrNewerSchema) {
		t.Errorf("Open() error = %v, want ErrNewerSchema", err)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

// ============================================================================
// Types
// ============================================================================

func TestWriteType_ContentAddressed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id1, err := s.WriteType(ctx, "point", point())
	if err != nil {
		t.Fatalf("WriteType() failed: %v", err)
	}
	id2, err := s.WriteType(ctx, "again", point())
	if err != nil {
		t.Fatalf("second WriteType() failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("structurally equal types got IDs %s and %s", id1, id2)
	}
	if id1 != types.MustTypeID(point()) {
		t.Errorf("stored ID %s differs from TypeID", id1)
	}

	list, err := s.ListTypes(ctx)
	if err != nil {
		t.Fatalf("ListTypes() failed: %v", err)
	}
	if len(list) != 1 || list[0].Name != "point" {
		t.Errorf("ListTypes() = %+v, want the single type named point", list)
	}
}

func TestReadType_RebuildsType(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	original := types.OneOf(types.Unit(int64(1)<<60), types.Const(point()))
	id, err := s.WriteType(ctx, "wide", original)
	if err != nil {
		t.Fatalf("WriteType() failed: %v", err)
	}

	st, err := s.ReadType(ctx, id)
	if err != nil {
		t.Fatalf("ReadType() failed: %v", err)
	}
	oneOf, ok := st.Type.(types.OneOfType)
	if !ok || len(oneOf.Types) != 2 {
		t.Fatalf("ReadType() = %s, want a OneOf of two", st.Type)
	}
	if !types.Equal(oneOf.Types[0], types.Unit(int64(1)<<60)) {
		t.Errorf("unit value lost precision: %s", oneOf.Types[0])
	}
	if got := types.MustTypeID(st.Type); got != id {
		t.Errorf("rebuilt type has ID %s, want %s", got, id)
	}
}

func TestReadType_Missing(t *testing.T) {
	s := createTestStore(t)
	if _, err := s.ReadType(context.Background(), "nope"); err == nil {
		t.Error("expected error for missing type")
	}
}

// ============================================================================
// Runs and verdicts
// ============================================================================

func TestRecord_NumbersVerdictsPerRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	ids := testutil.NewFixedRunIDs()

	first := beginTestRun(t, s, ids)
	second := beginTestRun(t, s, ids)

	for _, run := range []*Run{first, second} {
		for _, subject := range []string{"a", "b"} {
			if _, err := run.Record(ctx, Verdict{Kind: KindConsistency, Subject: subject, OK: true}); err != nil {
				t.Fatalf("Record() failed: %v", err)
			}
		}
	}

	verdicts, err := s.Verdicts(ctx, second.ID)
	if err != nil {
		t.Fatalf("Verdicts() failed: %v", err)
	}
	if len(verdicts) != 2 {
		t.Fatalf("Verdicts() returned %d rows, want 2", len(verdicts))
	}
	for i, v := range verdicts {
		if v.RunID != "test-run-2" || v.Seq != int64(i+1) {
			t.Errorf("verdict %d = %s/%d, want test-run-2/%d", i, v.RunID, v.Seq, i+1)
		}
	}
}

func TestRecord_RequiresStoredTypes(t *testing.T) {
	s := createTestStore(t)
	run := beginTestRun(t, s, testutil.NewFixedRunIDs())

	_, err := run.Record(context.Background(), Verdict{Kind: KindRelation, Subject: "x", TargetID: "missing"})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}

func TestVerdicts_EmptyRun(t *testing.T) {
	s := createTestStore(t)
	verdicts, err := s.Verdicts(context.Background(), "none")
	if err != nil {
		t.Fatalf("Verdicts() failed: %v", err)
	}
	if verdicts == nil || len(verdicts) != 0 {
		t.Errorf("Verdicts() = %#v, want empty slice", verdicts)
	}
}

func TestCheckRelation_CachesAcrossRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	ids := testutil.NewFixedRunIDs()
	wide := types.ObjectType(map[string]types.Type{"x": types.Any})

	first := beginTestRun(t, s, ids)
	ok, cached, err := first.CheckRelation(ctx, "readonly point", types.Readonly(wide), point())
	if err != nil {
		t.Fatalf("CheckRelation() failed: %v", err)
	}
	if !ok || cached {
		t.Errorf("first check = (%v, %v), want (true, false)", ok, cached)
	}

	ok, _, err = first.CheckRelation(ctx, "mutable point", wide, point())
	if err != nil {
		t.Fatalf("CheckRelation() failed: %v", err)
	}
	if ok {
		t.Error("a mutable Any property must not accept an Integer property")
	}

	second := beginTestRun(t, s, ids)
	ok, cached, err = second.CheckRelation(ctx, "readonly point", types.Readonly(wide), point())
	if err != nil {
		t.Fatalf("CheckRelation() failed: %v", err)
	}
	if !ok || !cached {
		t.Errorf("second check = (%v, %v), want (true, true)", ok, cached)
	}

	recorded, err := s.Verdicts(ctx, second.ID)
	if err != nil {
		t.Fatalf("Verdicts() failed: %v", err)
	}
	if len(recorded) != 0 {
		t.Errorf("a cached answer recorded %d verdicts", len(recorded))
	}
}

func TestUUIDv7Generator_Sortable(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()
	if len(a) != 36 {
		t.Errorf("Generate() = %q, want a hyphenated UUID", a)
	}
	if a >= b {
		t.Errorf("later run ID %s does not sort after %s", b, a)
	}
}

func TestLogicalClock_StartsAtOne(t *testing.T) {
	var c LogicalClock
	if got := c.Next(); got != 1 {
		t.Errorf("Next() = %d, want 1", got)
	}
}
