package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/samirrijal/osmqa/internal/adapters/postgres"
	"github.com/samirrijal/osmqa/internal/pkg/config"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding NNN_name.{up,down}.sql files")
	flag.Parse()
	if flag.NArg() < 1 {
		log.Fatal("usage: migrate [-dir migrations] <up|down>")
	}

	cfg, err := config.Load("osmqa-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.Options{MaxConns: 2, Schema: cfg.Analyser.Schema})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch flag.Arg(0) {
	case "up":
		apply(ctx, db, *dir, "up")
	case "down":
		apply(ctx, db, *dir, "down")
	default:
		log.Fatalf("unknown command: %s", flag.Arg(0))
	}
}

// migrationFiles returns the files of one direction, up in ascending order
// and down in descending order.
func migrationFiles(dir, direction string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*."+direction+".sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}

func apply(ctx context.Context, db *postgres.DB, dir, direction string) {
	files, err := migrationFiles(dir, direction)
	if err != nil {
		log.Fatalf("list %s: %v", dir, err)
	}
	if len(files) == 0 {
		log.Fatalf("no %s migrations in %s", direction, dir)
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		if _, err := db.Pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Printf("all %s migrations applied", direction)
}
