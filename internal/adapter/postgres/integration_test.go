package postgres

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/boardsync/internal/adapter/metrics"
	"github.com/pscheid92/boardsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	testPool        *pgxpool.Pool
	testDatabaseURL string
	testDBMetrics   *metrics.DBMetrics
)

func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Short() {
		os.Exit(m.Run())
	}

	os.Exit(runWithContainer(m))
}

func runWithContainer(m *testing.M) int {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("boards"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start postgres container: %v\n", err)
		return 1
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to terminate postgres container: %v\n", err)
		}
	}()

	testDatabaseURL, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
		return 1
	}

	testDBMetrics = metrics.NewDBMetrics(prometheus.NewRegistry())
	testPool, err = Connect(ctx, testDatabaseURL, NewMetricsTracer(testDBMetrics))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to test database: %v\n", err)
		return 1
	}
	defer testPool.Close()

	if err := RunMigrationsWithLock(ctx, testPool); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		return 1
	}

	return m.Run()
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	t.Cleanup(func() {
		if _, err := testPool.Exec(context.Background(), "TRUNCATE boards"); err != nil {
			t.Logf("Failed to truncate boards: %v", err)
		}
	})
	return testPool
}

func seedBoard(t *testing.T, repo *BoardRepo, name string) domain.Board {
	t.Helper()
	b := domain.NewBoard(name, []domain.List{
		domain.NewList("Grocery list", domain.NewItem("4-6 Apples"), domain.NewItem("Milk")),
	}, time.Now())
	require.NoError(t, repo.Insert(context.Background(), b))
	return b
}

func TestRunMigrations_Idempotent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, RunMigrationsWithLock(ctx, pool))
	require.NoError(t, RunMigrationsWithLock(ctx, pool))

	current, latest, err := PendingMigrations(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, latest, current)
}

func TestBoardRepo_InsertAndFindOne(t *testing.T) {
	repo := NewBoardRepo(setupTestDB(t))
	ctx := context.Background()

	seeded := seedBoard(t, repo, "Shopping")

	got, err := repo.FindOne(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, got.ID)
	assert.Equal(t, uint64(0), got.Version)
	assert.Equal(t, "Shopping", got.Name)
	assert.WithinDuration(t, seeded.CreatedAt, got.CreatedAt, time.Millisecond)
	require.Len(t, got.Lists, 1)
	assert.Equal(t, seeded.Lists[0].Tasks, got.Lists[0].Tasks)

	assert.Positive(t, testutil.CollectAndCount(testDBMetrics.QueryDuration))
}

func TestBoardRepo_FindOne_NotFound(t *testing.T) {
	repo := NewBoardRepo(setupTestDB(t))

	_, err := repo.FindOne(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrBoardNotFound)
}

func TestBoardRepo_ListAndCount(t *testing.T) {
	repo := NewBoardRepo(setupTestDB(t))
	ctx := context.Background()

	first := seedBoard(t, repo, "Shopping")
	second := seedBoard(t, repo, "Empty Board 1")

	boards, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 2)
	assert.Equal(t, first.ID, boards[0].ID)
	assert.Equal(t, second.ID, boards[1].ID)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBoardRepo_FindAndIncrementVersion(t *testing.T) {
	repo := NewBoardRepo(setupTestDB(t))
	ctx := context.Background()
	seeded := seedBoard(t, repo, "Shopping")

	done := domain.Item{ID: uuid.New(), Name: "Bread", Completed: true}
	lists := []domain.List{{ID: uuid.New(), Name: "Bakery", Tasks: []domain.Item{done}}}

	updated, err := repo.FindAndIncrementVersion(ctx, seeded.ID, "Weekend", lists)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, updated.ID)
	assert.Equal(t, uint64(1), updated.Version)
	assert.Equal(t, "Weekend", updated.Name)
	assert.Equal(t, lists, updated.Lists)
	assert.WithinDuration(t, seeded.CreatedAt, updated.CreatedAt, time.Millisecond)

	reread, err := repo.FindOne(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, reread)
}

func TestBoardRepo_FindAndIncrementVersion_NotFound(t *testing.T) {
	repo := NewBoardRepo(setupTestDB(t))

	_, err := repo.FindAndIncrementVersion(context.Background(), uuid.New(), "x", nil)
	assert.ErrorIs(t, err, domain.ErrBoardNotFound)
}

func TestBoardRepo_ConcurrentWritersGetDistinctVersions(t *testing.T) {
	repo := NewBoardRepo(setupTestDB(t))
	seeded := seedBoard(t, repo, "Shopping")

	const writers = 20
	versions := make([]uint64, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := repo.FindAndIncrementVersion(context.Background(), seeded.ID, fmt.Sprintf("writer %d", i), nil)
			if assert.NoError(t, err) {
				versions[i] = b.Version
			}
		}()
	}
	wg.Wait()

	sort.Slice(versions, func(a, b int) bool { return versions[a] < versions[b] })
	for i, v := range versions {
		assert.Equal(t, uint64(i+1), v)
	}

	final, err := repo.FindOne(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(writers), final.Version)
}
