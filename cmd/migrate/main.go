package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"newsbuzz/migrations"
)

type options struct {
	DatabasePath string `long:"db" env:"DATABASE_PATH" default:"./data/newsbuzz.db" description:"Path to the SQLite database"`
	Args         struct {
		Command string `positional-arg-name:"command" description:"up, up-one, down, status, version or reset"`
	} `positional-args:"yes"`
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [--db path] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  up          Migrate to the latest version")
	fmt.Fprintln(os.Stderr, "  up-one      Migrate one version up")
	fmt.Fprintln(os.Stderr, "  down        Roll back one version")
	fmt.Fprintln(os.Stderr, "  status      Show migration status")
	fmt.Fprintln(os.Stderr, "  version     Show current version")
	fmt.Fprintln(os.Stderr, "  reset       Roll back all migrations")
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		os.Exit(1)
	}
	if opts.Args.Command == "" {
		usage()
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", opts.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(migrations.Dialect); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	cmd := opts.Args.Command
	switch cmd {
	case "up":
		err = goose.Up(db, ".")
	case "up-one":
		err = goose.UpByOne(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	case "version":
		err = goose.Version(db, ".")
	case "reset":
		err = goose.Reset(db, ".")
	default:
		log.Fatalf("unknown command: %s", cmd)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}
