package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/model"
)

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

	var name string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		"shapeq_entities",
	).Scan(&name)
	if err != nil {
		t.Errorf("bookkeeping table not found after idempotent opens: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	pragmas := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"busy_timeout": "5000",
		"foreign_keys": "1",
		"user_version": "1",
	}
	for name, want := range pragmas {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestPragmas_Options(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "opts.db"), WithBusyTimeout(250*time.Millisecond), WithoutWAL())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("busy_timeout", "250"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("journal_mode", "delete"); err != nil {
		t.Error(err)
	}
}

func TestApplySchema_CreatesTables(t *testing.T) {
	s, _ := createShopStore(t)

	for _, table := range []string{"customers", "orders"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not created: %v", table, err)
		}
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM shapeq_entities").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("shapeq_entities has %d rows, want 2", count)
	}
}

func TestApplySchema_Idempotent(t *testing.T) {
	s, m := createShopStore(t)

	if err := s.ApplySchema(context.Background(), m); err != nil {
		t.Errorf("second ApplySchema() failed: %v", err)
	}
}

func TestApplySchema_DetectsDrift(t *testing.T) {
	s, _ := createShopStore(t)

	changed, err := model.CompileString(`
entity: Customer: {
	table: "customers"
	key: ["Id"]
	properties: {Id: int, Name: string | null}
}
`, "changed.cue")
	if err != nil {
		t.Fatal(err)
	}

	err = s.ApplySchema(context.Background(), changed)
	if !errors.Is(err, ErrSchemaDrift) {
		t.Errorf("ApplySchema() error = %v, want ErrSchemaDrift", err)
	}
}

func TestInsertAndForEachRow(t *testing.T) {
	s, m := createShopStore(t)
	ctx := context.Background()
	customer, _ := m.Entity("Customer")

	err := s.InsertAll(ctx, customer, []ir.IRObject{
		{"Id": ir.IRInt(2), "Name": ir.IRString("Grace"), "Vip": ir.IRBool(true)},
		{"Id": ir.IRInt(1), "Name": ir.IRString("Ada"), "Email": ir.IRString("ada@example.com"), "Vip": ir.IRBool(false)},
	})
	if err != nil {
		t.Fatalf("InsertAll() failed: %v", err)
	}

	var got [][]ir.IRValue
	err = s.ForEachRow(ctx, `SELECT id, name, email, is_vip FROM customers ORDER BY id`, nil, func(row []ir.IRValue) error {
		got = append(got, append([]ir.IRValue(nil), row...))
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachRow() failed: %v", err)
	}

	want := [][]ir.IRValue{
		{ir.IRInt(1), ir.IRString("Ada"), ir.IRString("ada@example.com"), ir.IRInt(0)},
		{ir.IRInt(2), ir.IRString("Grace"), ir.Null, ir.IRInt(1)},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if !ir.Equal(want[i][j], got[i][j]) {
				t.Errorf("row %d col %d = %#v, want %#v", i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestInsert_Validates(t *testing.T) {
	s, m := createShopStore(t)
	ctx := context.Background()
	customer, _ := m.Entity("Customer")

	tests := []struct {
		name string
		obj  ir.IRObject
	}{
		{"unknown property", ir.IRObject{"Id": ir.IRInt(1), "Name": ir.IRString("x"), "Vip": ir.IRBool(true), "Age": ir.IRInt(3)}},
		{"null in non-nullable", ir.IRObject{"Id": ir.IRInt(1), "Vip": ir.IRBool(true)}},
		{"wrong type", ir.IRObject{"Id": ir.IRString("1"), "Name": ir.IRString("x"), "Vip": ir.IRBool(true)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Insert(ctx, customer, tt.obj); err == nil {
				t.Error("Insert() succeeded, want error")
			}
		})
	}
}

func TestForEachRow_StopsOnCallbackError(t *testing.T) {
	s, m := createShopStore(t)
	ctx := context.Background()
	customer, _ := m.Entity("Customer")
	for i := 1; i <= 3; i++ {
		if err := s.Insert(ctx, customer, ir.IRObject{"Id": ir.IRInt(i), "Name": ir.IRString("c"), "Vip": ir.IRBool(false)}); err != nil {
			t.Fatal(err)
		}
	}

	stop := errors.New("stop")
	calls := 0
	err := s.ForEachRow(ctx, "SELECT id FROM customers ORDER BY id", nil, func([]ir.IRValue) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("ForEachRow() error = %v, want stop", err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
}

func TestForEachRow_CancelledBetweenRows(t *testing.T) {
	s, m := createShopStore(t)
	customer, _ := m.Entity("Customer")
	for i := 1; i <= 3; i++ {
		if err := s.Insert(context.Background(), customer, ir.IRObject{"Id": ir.IRInt(i), "Name": ir.IRString("c"), "Vip": ir.IRBool(false)}); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	err := s.ForEachRow(ctx, "SELECT id FROM customers ORDER BY id", nil, func([]ir.IRValue) error {
		calls++
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ForEachRow() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
}

func TestForEachRow_RejectsFloats(t *testing.T) {
	s := createTestStore(t)

	err := s.ForEachRow(context.Background(), "SELECT 1.5", nil, func([]ir.IRValue) error { return nil })
	if err == nil {
		t.Error("ForEachRow() succeeded on a REAL column, want error")
	}
}
