package database

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(NewSQLiteDialect(), DialectConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDatabaseIntegration tests the complete database lifecycle
func TestDatabaseIntegration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	// Running twice must be a no-op
	if err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}

	tables := []string{
		"user_profiles", "families", "family_members", "albums", "family_albums",
		"photos", "family_photos", "comments", "family_comments", "likes", "family_likes",
	}
	for _, table := range tables {
		var name string
		err := db.GetContext(ctx, &name, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	var applied int
	if err := db.GetContext(ctx, &applied, "SELECT COUNT(*) FROM migrations"); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if applied != 1 {
		t.Errorf("applied migrations = %d, want 1", applied)
	}
}

// TestUniqueViolation checks that unique index failures are recognised
func TestUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	insert := "INSERT INTO families (id, name, family_code, created_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"
	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, insert, "f1", "Smith", "ABC234", "u1", now, now); err != nil {
		t.Fatalf("Failed to insert family: %v", err)
	}
	_, err := db.ExecContext(ctx, insert, "f2", "Jones", "ABC234", "u2", now, now)
	if err == nil {
		t.Fatal("expected duplicate family code to fail")
	}
	if !db.Dialect.IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
	if db.Dialect.IsUniqueViolation(errors.New("boom")) {
		t.Error("IsUniqueViolation should be false for unrelated errors")
	}
}

// TestDatabaseTransactions tests transaction support
func TestDatabaseTransactions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	insert := "INSERT INTO albums (id, name, created_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"
	now := time.Now().UTC()

	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, insert, "a1", "Navidad 2024", "u1", now, now)
		return err
	})
	if err != nil {
		t.Fatalf("committed transaction failed: %v", err)
	}

	rollbackErr := errors.New("rollback")
	err = db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, insert, "a2", "Verano", "u1", now, now); err != nil {
			return err
		}
		return rollbackErr
	})
	if !errors.Is(err, rollbackErr) {
		t.Fatalf("WithTx error = %v, want %v", err, rollbackErr)
	}

	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM albums"); err != nil {
		t.Fatalf("Failed to count albums: %v", err)
	}
	if count != 1 {
		t.Errorf("album count = %d, want 1", count)
	}
}

func TestSplitStatements(t *testing.T) {
	content := `-- header comment
CREATE TABLE a (
    id TEXT
);

CREATE INDEX idx ON a(id);
`
	stmts := splitStatements(content)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2: %q", len(stmts), stmts)
	}
	if stmts[1] != "CREATE INDEX idx ON a(id);" {
		t.Errorf("second statement = %q", stmts[1])
	}
}

func TestMySQLTablesCompareCaseSensitively(t *testing.T) {
	content, err := migrationFiles.ReadFile("migrations/mysql/001_init.sql")
	if err != nil {
		t.Fatal(err)
	}
	tables := 0
	for _, stmt := range splitStatements(string(content)) {
		if !strings.HasPrefix(stmt, "CREATE TABLE") {
			continue
		}
		tables++
		if !strings.HasSuffix(stmt, "COLLATE=utf8mb4_bin;") {
			t.Errorf("table without binary collation: %s", strings.SplitN(stmt, "\n", 2)[0])
		}
	}
	if tables == 0 {
		t.Fatal("no tables found")
	}
}
