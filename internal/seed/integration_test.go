//go:build integration

package seed

import (
	"context"
	"os"
	"testing"

	"agora/internal/config"
	"agora/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with DATABASE_URL=postgres://... go test -tags integration ./internal/seed
func TestIntegration_SeedPostgresKeepsCountersExact(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	cfg := &config.Config{Env: "test", DBDriver: database.DriverPostgres, DBDSN: dsn, DBSchemaMode: database.SchemaModeAuto}
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, database.ApplySchema(ctx, db, cfg))

	s := NewSeeder(db, Options{FastHash: true, Concurrency: 8})
	require.NoError(t, s.ClearAll(ctx))
	plan := DefaultPlan()
	plan.Users = 20
	report, err := s.Run(ctx, plan)
	require.NoError(t, err)
	require.NotZero(t, report.Posts)

	// Concurrent seeding writers must leave every counter equal to its rows.
	drift := map[string]string{
		"post likes": `SELECT COUNT(*) FROM posts p
			WHERE p.likes_count <> (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id)`,
		"comment likes": `SELECT COUNT(*) FROM comments c
			WHERE c.like_count <> (SELECT COUNT(*) FROM comment_likes l WHERE l.comment_id = c.id)`,
	}
	for name, query := range drift {
		var n int64
		require.NoError(t, db.Raw(query).Scan(&n).Error, name)
		assert.Zero(t, n, "%s drifted", name)
	}
}
