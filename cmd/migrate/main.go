// Command migrate applies and authors the SQL migrations under ./migrations.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/fieldops/stockledger/internal/infrastructure/config"
	"github.com/fieldops/stockledger/internal/infrastructure/logger"
	"github.com/fieldops/stockledger/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// env is what a command runs against; m is nil for file-only commands
type env struct {
	dir  string
	args []string
	log  *zap.Logger
	m    *migration.Migrator
}

type command struct {
	usage   string
	help    string
	offline bool
	run     func(e *env) error
}

var commands = map[string]command{
	"up": {usage: "up", help: "Apply all pending migrations", run: func(e *env) error {
		return e.m.Up()
	}},
	"down": {usage: "down", help: "Roll back all migrations", run: func(e *env) error {
		return e.m.Down()
	}},
	"step": {usage: "step <n>", help: "Apply n migrations (positive=up, negative=down)", run: func(e *env) error {
		n, err := intArg(e.args, "step count")
		if err != nil {
			return err
		}
		return e.m.Steps(n)
	}},
	"version": {usage: "version", help: "Show the applied migration version", run: func(e *env) error {
		v, dirty, err := e.m.Version()
		if err != nil {
			return err
		}
		if v == 0 {
			e.log.Info("No migrations applied")
			return nil
		}
		e.log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	}},
	"force": {usage: "force <version>", help: "Mark a version as applied after a failed run", run: func(e *env) error {
		v, err := intArg(e.args, "version")
		if err != nil {
			return err
		}
		e.log.Warn("Forcing migration version", zap.Int("version", v))
		return e.m.Force(v)
	}},
	"create": {usage: "create <name> [desc]", help: "Write a new up/down file pair", offline: true, run: func(e *env) error {
		if len(e.args) == 0 {
			return errors.New("migration name required")
		}
		desc := ""
		if len(e.args) > 1 {
			desc = e.args[1]
		}
		mf, err := migration.CreateMigration(e.dir, e.args[0], desc)
		if err != nil {
			return err
		}
		e.log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return nil
	}},
	"list": {usage: "list", help: "List migration files", offline: true, run: func(e *env) error {
		names, err := migration.ListMigrations(e.dir)
		if err != nil {
			return err
		}
		e.log.Info("Available migrations", zap.Int("count", len(names)))
		for _, n := range names {
			fmt.Println("  -", n)
		}
		return nil
	}},
}

func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s required", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

func main() {
	dir := flag.String("path", "", "Path to migrations directory (default: nearest ./migrations)")
	level := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	e := &env{dir: resolveDir(*dir, log), args: flag.Args()[1:], log: log}
	log.Info("Migration CLI started", zap.String("command", name), zap.String("migrations_path", e.dir))

	if !cmd.offline {
		db, m := openMigrator(e.dir, log)
		defer db.Close()
		defer m.Close()
		e.m = m
	}

	if err := cmd.run(e); err != nil {
		log.Fatal("Migration command failed", zap.String("command", name), zap.Error(err))
	}
}

func resolveDir(flagValue string, log *zap.Logger) string {
	dir := flagValue
	if dir == "" {
		dir = migration.FindMigrationsPath(".")
	}
	if dir == "" {
		dir = migration.DefaultDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		log.Fatal("Failed to resolve migrations path", zap.String("path", dir), zap.Error(err))
	}
	return abs
}

func openMigrator(dir string, log *zap.Logger) (*sql.DB, *migration.Migrator) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to reach database", zap.Error(err))
	}
	m, err := migration.New(db, dir, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	return db, m
}

func usage() {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)

	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Stock ledger database migration tool")
	fmt.Fprintln(out, "\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:")
	for _, n := range names {
		fmt.Fprintf(out, "  %-22s%s\n", commands[n].usage, commands[n].help)
	}
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
	fmt.Fprintln(out, "\nDatabase settings come from config.toml or STOCKLEDGER_DATABASE_* variables.")
}
