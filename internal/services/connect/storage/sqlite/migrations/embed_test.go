package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected migrations to be embedded")
	}
	if entries[0].Name() != "001_connect.sql" {
		t.Fatalf("expected first migration 001_connect.sql, got %s", entries[0].Name())
	}

	content, err := fs.ReadFile(FS, "001_connect.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	for _, table := range []string{"oauth_states", "social_accounts", "credential_audit_log"} {
		if !strings.Contains(string(content), "CREATE TABLE "+table) {
			t.Fatalf("expected migration to create %s", table)
		}
	}
}
