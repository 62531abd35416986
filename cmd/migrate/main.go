// Command migrate manages the alert database schema by hand. The service
// applies pending migrations itself on startup; this tool exists for
// rollbacks and for inspecting schema state in operations.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"regiq/migrations"
)

type gooseCmd func(*sql.DB, string, ...goose.OptionsFunc) error

var commands = map[string]gooseCmd{
	"up":      goose.Up,
	"up-one":  goose.UpByOne,
	"down":    goose.Down,
	"redo":    goose.Redo,
	"status":  goose.Status,
	"version": goose.Version,
	"reset":   goose.Reset,
}

func main() {
	defaultPath := os.Getenv("DATABASE_PATH")
	if defaultPath == "" {
		defaultPath = "./data/regiq.db"
	}
	dbPath := flag.String("db", defaultPath, "sqlite database file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	name := flag.Arg(0)
	run, ok := commands[name]
	if !ok {
		log.Fatalf("unknown command %q", name)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("open %s: %v", *dbPath, err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		log.Fatalf("goose dialect: %v", err)
	}

	if err := run(db, "."); err != nil {
		log.Fatalf("migrate %s: %v", name, err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `migrate applies or rolls back alert database migrations.

  migrate [-db path] <command>

commands:
  up       apply all pending migrations
  up-one   apply the next pending migration
  down     roll back the most recent migration
  redo     roll back and re-apply the most recent migration
  status   print per-migration state
  version  print the current schema version
  reset    roll back everything
`)
}
