package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// migrationsFS holds embedded SQL migrations in migrate/sql.
//
//go:embed sql/*.sql
var migrationsFS embed.FS

const (
	dir       = "sql"
	tableName = "schema_migrations"
)

// Options defines how to run migrations.
type Options struct {
	Driver  string // sqlite or postgres
	DSN     string // e.g. ./authcode.db for sqlite, or a postgres URL
	Command string // up, down, status, version, up-to, down-to, redo, reset
	Target  int64  // used with up-to/down-to
	Logger  *zap.SugaredLogger
}

// dialectFor maps a database/sql driver name onto the goose dialect.
func dialectFor(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	case "postgres", "postgresql", "pgx":
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported migration driver: %s", driver)
	}
}

// sqlDriver returns the registered database/sql driver name.
func sqlDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return "postgres"
	}
}

// Run executes migrations based on provided options. If Driver or DSN are empty, it is a no-op.
func Run(ctx context.Context, opts Options) error {
	if strings.TrimSpace(opts.Driver) == "" || strings.TrimSpace(opts.DSN) == "" {
		return nil
	}
	if _, err := dialectFor(opts.Driver); err != nil {
		return err
	}

	db, err := sql.Open(sqlDriver(opts.Driver), opts.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	return Exec(ctx, db, opts)
}

// Exec runs opts.Command against an already open database.
func Exec(ctx context.Context, db *sql.DB, opts Options) error {
	dialect, err := dialectFor(opts.Driver)
	if err != nil {
		return err
	}
	if opts.Logger != nil {
		goose.SetLogger(&gooseLogger{opts.Logger})
	} else {
		goose.SetLogger(goose.NopLogger())
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetTableName(tableName)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(opts.Command)) {
	case "", "up":
		return goose.UpContext(ctx, db, dir)
	case "down":
		return goose.DownContext(ctx, db, dir)
	case "status":
		return goose.StatusContext(ctx, db, dir)
	case "version":
		return goose.VersionContext(ctx, db, dir)
	case "up-to":
		return goose.UpToContext(ctx, db, dir, opts.Target)
	case "down-to":
		return goose.DownToContext(ctx, db, dir, opts.Target)
	case "redo":
		return goose.RedoContext(ctx, db, dir)
	case "reset":
		return goose.ResetContext(ctx, db, dir)
	default:
		return fmt.Errorf("unknown migration command: %s", opts.Command)
	}
}

// OptionsFromEnv reads migration settings from the environment.
//
// Env vars:
// - AUTHCODE_MIGRATE_DRIVER: sqlite or postgres
// - AUTHCODE_MIGRATE_DSN: db connection string
// - AUTHCODE_MIGRATE_CMD: up, down, status, version, up-to, down-to, redo, reset (default: up)
// - AUTHCODE_MIGRATE_TARGET: integer version for up-to/down-to
func OptionsFromEnv() Options {
	cmd := strings.TrimSpace(os.Getenv("AUTHCODE_MIGRATE_CMD"))
	if cmd == "" {
		cmd = "up"
	}
	var target int64
	if v := strings.TrimSpace(os.Getenv("AUTHCODE_MIGRATE_TARGET")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			target = n
		}
	}
	return Options{
		Driver:  strings.TrimSpace(os.Getenv("AUTHCODE_MIGRATE_DRIVER")),
		DSN:     strings.TrimSpace(os.Getenv("AUTHCODE_MIGRATE_DSN")),
		Command: cmd,
		Target:  target,
	}
}

// RunFromEnv runs migrations when AUTHCODE_MIGRATE_ON_START is truthy.
func RunFromEnv(ctx context.Context, logger *zap.SugaredLogger) error {
	if !isTruthy(os.Getenv("AUTHCODE_MIGRATE_ON_START")) {
		return nil
	}
	opts := OptionsFromEnv()
	opts.Logger = logger
	return Run(ctx, opts)
}

func isTruthy(v string) bool {
	s := strings.TrimSpace(strings.ToLower(v))
	return s == "1" || s == "true" || s == "yes" || s == "y"
}

type gooseLogger struct{ log *zap.SugaredLogger }

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}
