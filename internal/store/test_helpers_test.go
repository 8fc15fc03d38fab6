package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/shapeq/internal/model"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// loadShopModel loads the model fixture shared with the model package.
func loadShopModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.LoadDir(filepath.Join("..", "model", "testdata", "shop"))
	if err != nil {
		t.Fatalf("LoadDir() failed: %v", err)
	}
	return m
}

// createShopStore creates a store with the shop tables.
func createShopStore(t *testing.T) (*Store, *model.Model) {
	t.Helper()
	s := createTestStore(t)
	m := loadShopModel(t)
	if err := s.ApplySchema(context.Background(), m); err != nil {
		t.Fatalf("ApplySchema() failed: %v", err)
	}
	return s, m
}
