package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kdimtricp/formfill/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHistoryRepository_InsertAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	first := models.NewExtractionRecord("ws-1", "passport.jpg", "standard", models.OutcomeSuccess)
	first.SessionID = "doc_1"
	first.FieldsFound = 4
	first.FieldsTotal = 6
	first.Duration = 1500 * time.Millisecond
	first.CreatedAt = time.Now().UTC().Add(-time.Minute)

	second := models.NewExtractionRecord("ws-1", "scan.pdf", "pan", models.OutcomeServiceUnreachable)
	second.ErrorMessage = "connection refused"

	other := models.NewExtractionRecord("ws-2", "id.png", "aadhaar", models.OutcomeServiceError)

	for _, rec := range []*models.ExtractionRecord{first, second, other} {
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("Failed to insert record: %v", err)
		}
	}

	records, err := repo.List(ctx, "ws-1", 10)
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].ID != second.ID {
		t.Errorf("Expected most recent record first, got %s", records[0].Filename)
	}

	got := records[1]
	if got.SessionID != "doc_1" || got.FieldsFound != 4 || got.FieldsTotal != 6 {
		t.Errorf("Unexpected record %+v", got)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("Expected duration 1.5s, got %v", got.Duration)
	}
	if records[0].ErrorMessage != "connection refused" || records[0].Outcome != models.OutcomeServiceUnreachable {
		t.Errorf("Unexpected failure record %+v", records[0])
	}

	all, err := repo.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("Failed to list all records: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 records, got %d", len(all))
	}
}

func TestHistoryRepository_Limit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := models.NewExtractionRecord("ws", "id.jpg", "standard", models.OutcomeSuccess)
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("Failed to insert record: %v", err)
		}
	}

	records, err := repo.List(ctx, "ws", 3)
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Expected 3 records, got %d", len(records))
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{dbType: "postgres"}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("unexpected postgres query %q", got)
	}

	lite := &DB{dbType: "sqlite"}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("unexpected sqlite query %q", got)
	}
}

func TestNewDB_UnsupportedType(t *testing.T) {
	if _, err := NewDB(Config{Type: "mysql"}); err == nil {
		t.Error("Expected error for unsupported database type")
	}
}
