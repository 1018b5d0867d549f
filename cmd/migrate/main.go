package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/boardsync/internal/adapter/postgres"
	"github.com/pscheid92/boardsync/internal/app"
	"github.com/pscheid92/boardsync/internal/platform/logging"
)

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "PostgreSQL URL (or set DATABASE_URL env)")
		seed        = flag.Bool("seed", false, "Insert the default boards if the table is empty")
		dryRun      = flag.Bool("dry-run", false, "Report what would change without writing")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
		timeout     = flag.Duration("timeout", time.Minute, "Overall timeout")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	slog.SetDefault(logging.New(os.Stdout, level, "text"))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, *databaseURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	slog.Info("Connected to database", "url", sanitizeURL(*databaseURL))

	if err := migrate(ctx, pool, *dryRun); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if *seed {
		if err := seedBoards(ctx, pool, *dryRun); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	slog.Info("Done")
}

func migrate(ctx context.Context, pool *pgxpool.Pool, dryRun bool) error {
	current, latest, err := postgres.PendingMigrations(ctx, pool)
	if err != nil {
		return err
	}
	slog.Info("Schema version", "current", current, "latest", latest, "pending", latest-current)

	if dryRun || current >= latest {
		return nil
	}

	start := time.Now()
	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		return err
	}
	slog.Info("Migrations applied", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func seedBoards(ctx context.Context, pool *pgxpool.Pool, dryRun bool) error {
	repo := postgres.NewBoardRepo(pool)

	if dryRun {
		n, err := repo.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count boards: %w", err)
		}
		slog.Info("Seed check", "existing_boards", n, "would_seed", n == 0)
		return nil
	}

	seeded, err := app.NewService(repo, clockwork.NewRealClock()).EnsureSeedBoards(ctx)
	if err != nil {
		return err
	}
	slog.Info("Seed result", "seeded", seeded)
	return nil
}

// sanitizeURL hides the password for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
