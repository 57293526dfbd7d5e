// Command migrate runs schema operations for the Agora API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"agora/internal/bootstrap"
	"agora/internal/config"
	"agora/internal/database"

	"gorm.io/gorm"
)

var errUsage = errors.New("usage: migrate [-force] <up|sql|auto|status|down|reset> [version]")

// job is one subcommand. args are what follows the subcommand name.
type job struct {
	db    *gorm.DB
	cfg   *config.Config
	args  []string
	force bool
}

var commands = map[string]func(context.Context, job) error{
	"up":     applySchema,
	"sql":    applySQL,
	"auto":   applyAuto,
	"status": printStatus,
	"down":   rollBack,
	"reset":  reset,
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, argv []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	force := fs.Bool("force", false, "allow reset outside development and test")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errUsage
	}
	name := strings.ToLower(strings.TrimSpace(fs.Arg(0)))
	cmd, ok := commands[name]
	if !ok {
		return errUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rt, err := bootstrap.Open(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(ctx) }()

	return cmd(ctx, job{db: rt.DB, cfg: cfg, args: fs.Args()[1:], force: *force})
}

func applySchema(ctx context.Context, j job) error {
	if err := database.ApplySchema(ctx, j.db, j.cfg); err != nil {
		return fmt.Errorf("apply schema failed: %w", err)
	}
	log.Printf("schema applied (mode=%s driver=%s)", j.cfg.DBSchemaMode, j.db.Dialector.Name())
	return nil
}

func applySQL(ctx context.Context, j job) error {
	n, err := database.NewRunner(j.db, database.Registered()).Up(ctx)
	if err != nil {
		return fmt.Errorf("sql migrations failed: %w", err)
	}
	log.Printf("sql migrations applied: %d", n)
	return nil
}

func applyAuto(ctx context.Context, j job) error {
	j.cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, j.db, j.cfg); err != nil {
		return fmt.Errorf("auto schema apply failed: %w", err)
	}
	log.Println("automigrations applied")
	return nil
}

func printStatus(ctx context.Context, j job) error {
	status, err := database.GetSchemaStatus(ctx, j.db, j.cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	log.Printf("mode=%s driver=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d",
		status.Mode, status.Driver, status.Environment, status.RunSQL, status.RunAuto,
		len(status.Applied), len(status.Pending))
	for _, h := range status.Applied {
		log.Printf("applied: %06d_%s at %s (%dms)", h.Version, h.Name, h.AppliedAt.Format(time.RFC3339), h.DurationMS)
	}
	for _, m := range status.Pending {
		log.Printf("pending: %s", m.String())
	}
	return nil
}

func rollBack(ctx context.Context, j job) error {
	version, err := parseVersion(j.args)
	if err != nil {
		return err
	}
	if err := database.RollbackMigration(ctx, j.db, version); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	log.Printf("rolled back migration %06d", version)
	return nil
}

func parseVersion(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("usage: migrate down <version>")
	}
	version, err := strconv.Atoi(strings.TrimLeft(args[0], "0"))
	if err != nil || version <= 0 {
		return 0, fmt.Errorf("invalid version %q", args[0])
	}
	return version, nil
}

// resettableEnvs may be wiped without -force.
var resettableEnvs = []string{"development", "test"}

func reset(ctx context.Context, j job) error {
	if !j.force && !slices.Contains(resettableEnvs, j.cfg.Env) {
		return fmt.Errorf("refusing to reset a %q database without -force", j.cfg.Env)
	}
	if err := database.DropAll(ctx, j.db); err != nil {
		return fmt.Errorf("drop tables failed: %w", err)
	}
	if err := applySchema(ctx, j); err != nil {
		return err
	}
	log.Println("database reset")
	return nil
}
