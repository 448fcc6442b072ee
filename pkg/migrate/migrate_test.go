package migrate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsApplyOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_test?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	defer sqlDB.Close()

	ctx := context.Background()
	if err := Run(ctx, sqlDB, "sqlite3", EmbeddedDir, "up"); err != nil {
		t.Fatalf("goose up: %v", err)
	}
	if !conn.Migrator().HasTable("checkout_attempts") {
		t.Fatal("expected checkout_attempts table after up")
	}
	version, err := CurrentVersion(ctx, sqlDB, "sqlite3", EmbeddedDir)
	if err != nil || version != 20261018090000 {
		t.Fatalf("expected ledger at 20261018090000, got %d err=%v", version, err)
	}

	var status bytes.Buffer
	if err := run(ctx, sqlDB, "sqlite3", EmbeddedDir, "status", &status); err != nil {
		t.Fatalf("goose status: %v", err)
	}
	if !strings.Contains(status.String(), "create_checkout_attempts") {
		t.Fatalf("expected migration listed in status, got %q", status.String())
	}

	for range 2 {
		if err := Run(ctx, sqlDB, "sqlite3", EmbeddedDir, "down"); err != nil {
			t.Fatalf("goose down: %v", err)
		}
	}
	if conn.Migrator().HasTable("checkout_attempts") {
		t.Fatal("expected checkout_attempts table to be dropped after down")
	}
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := ValidateDir(EmbeddedDir); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}

func TestCreateSQLMigrationProducesValidFile(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Payment Notes")
	if err != nil {
		t.Fatalf("CreateSQLMigration() error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("migration written outside %s: %s", dir, path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestCreateAtBumpsTakenVersion(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	first, err := createAt(dir, "add refund notes", at)
	if err != nil {
		t.Fatalf("createAt() error: %v", err)
	}
	second, err := createAt(dir, "add refund notes", at)
	if err != nil {
		t.Fatalf("createAt() second error: %v", err)
	}
	if filepath.Base(first) != "20260304050607_add_refund_notes.sql" {
		t.Fatalf("unexpected first name %s", filepath.Base(first))
	}
	if filepath.Base(second) != "20260304050608_add_refund_notes.sql" {
		t.Fatalf("expected bumped version, got %s", filepath.Base(second))
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("bumped migrations should validate: %v", err)
	}
}

func TestCreateRejectsEmptySlug(t *testing.T) {
	if _, err := CreateSQLMigration(t.TempDir(), "  !!! "); err == nil {
		t.Fatal("expected name without letters or digits to fail")
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "oops.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename to be rejected")
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_cmd_test?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	defer sqlDB.Close()

	if err := Run(context.Background(), sqlDB, "sqlite3", EmbeddedDir, "redo-all"); err == nil {
		t.Fatal("expected unknown command to fail")
	}
}

func TestDialect(t *testing.T) {
	if got := Dialect(config.DBConfig{Driver: "sqlite"}); got != "sqlite3" {
		t.Fatalf("expected sqlite3, got %q", got)
	}
	if got := Dialect(config.DBConfig{Driver: "postgres"}); got != "postgres" {
		t.Fatalf("expected postgres, got %q", got)
	}
}

func TestValidateDirReportsUnbalancedBlocks(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_broken.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	err := ValidateDir(dir)
	if err == nil || !strings.Contains(err.Error(), "StatementBegin") {
		t.Fatalf("expected unbalanced block error, got %v", err)
	}
}
