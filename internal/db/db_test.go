package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationFiles_Ordered(t *testing.T) {
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	if len(files) == 0 || files[0] != "001_init.sql" {
		t.Fatalf("files = %v", files)
	}
	for i := 1; i < len(files); i++ {
		if files[i-1] >= files[i] {
			t.Fatalf("files out of order: %v", files)
		}
	}
}

func TestInitMigration_DefinesTablesUsedByStatements(t *testing.T) {
	raw, err := fs.ReadFile(migrationsFS, "migrations/001_init.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	schema := string(raw)
	for _, table := range []string{"users", "reminder_preferences", "notification_records"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("schema missing table %s", table)
		}
	}
	if !strings.Contains(schema, "pg_notify('reminder_changed'") {
		t.Errorf("schema missing reminder_changed trigger")
	}

	for name, sql := range Statements {
		if strings.TrimSpace(sql) == "" {
			t.Errorf("statement %s is empty", name)
		}
	}
}
