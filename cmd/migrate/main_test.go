package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"002_more.up.sql", "001_init.up.sql", "001_init.down.sql", "002_more.down.sql", "README.md",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	up, err := migrationFiles(dir, "up")
	if err != nil {
		t.Fatal(err)
	}
	if len(up) != 2 || filepath.Base(up[0]) != "001_init.up.sql" {
		t.Errorf("unexpected up order %v", up)
	}

	down, err := migrationFiles(dir, "down")
	if err != nil {
		t.Fatal(err)
	}
	if len(down) != 2 || filepath.Base(down[0]) != "002_more.down.sql" {
		t.Errorf("unexpected down order %v", down)
	}
}

func TestShippedMigrationsPair(t *testing.T) {
	dir := filepath.Join("..", "..", "migrations")
	up, err := migrationFiles(dir, "up")
	if err != nil {
		t.Fatal(err)
	}
	down, err := migrationFiles(dir, "down")
	if err != nil {
		t.Fatal(err)
	}
	if len(up) == 0 || len(up) != len(down) {
		t.Errorf("expected paired migrations, got %d up and %d down", len(up), len(down))
	}
}
