// Command seed populates the database with demo data for Agora.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"agora/internal/bootstrap"
	"agora/internal/config"
	"agora/internal/seed"
)

type flags struct {
	plan  string
	users int
	clean bool
	fast  bool
	seed  int64
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.StringVar(&f.plan, "plan", "", "YAML seed plan (defaults are used when empty)")
	fs.IntVar(&f.users, "users", 0, "override the plan's user count")
	fs.BoolVar(&f.clean, "clean", false, "delete existing rows before seeding")
	fs.BoolVar(&f.fast, "fast", true, "hash the shared password with bcrypt.MinCost")
	fs.Int64Var(&f.seed, "seed", 0, "random seed for reproducible runs (0 = random)")
	return f, fs.Parse(args)
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if err := run(context.Background(), f); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(ctx context.Context, f flags) error {
	plan := seed.DefaultPlan()
	if f.plan != "" {
		loaded, err := seed.LoadPlan(f.plan)
		if err != nil {
			return fmt.Errorf("load seed plan: %w", err)
		}
		plan = loaded
		log.Printf("🌱 Using plan %s", f.plan)
	}
	if f.users > 0 {
		plan.Users = f.users
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	rt, err := bootstrap.Open(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(ctx) }()

	s := seed.NewSeeder(rt.DB, seed.Options{FastHash: f.fast, RandSeed: f.seed})
	if f.clean {
		if err := s.ClearAll(ctx); err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
	}

	report, err := s.Run(ctx, plan)
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	log.Printf("✨ Seeded %d users, %d communities, %d posts, %d comments.",
		report.Users, report.Communities, report.Posts, report.Comments)
	log.Printf("📧 All seeded users have the password: %s", plan.Password)
	return nil
}
