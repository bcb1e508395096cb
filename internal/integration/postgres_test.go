package integration

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aliuyar1234/feedbackiq/internal/db"
)

var (
	postgresAdminDSN  string
	postgresAdminPool *pgxpool.Pool

	postgresUnavailableErr error
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := startPostgres(ctx)
	if err != nil {
		postgresUnavailableErr = err
		return m.Run()
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
		}
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		postgresUnavailableErr = err
		return m.Run()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		postgresUnavailableErr = err
		return m.Run()
	}
	defer pool.Close()

	postgresAdminDSN = dsn
	postgresAdminPool = pool
	return m.Run()
}

// startPostgres recovers from the panic testcontainers raises when no
// Docker daemon is reachable so the suite skips instead of crashing.
func startPostgres(ctx context.Context) (c *postgres.PostgresContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker unavailable: %v", r)
		}
	}()

	return postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("postgres"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
}

func requirePostgres(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	if postgresAdminPool == nil || postgresUnavailableErr != nil {
		if postgresUnavailableErr == nil {
			postgresUnavailableErr = errors.New("postgres test container unavailable")
		}
		t.Skipf("skipping integration tests: %v", postgresUnavailableErr)
	}
}

// newTestDB creates a migrated database private to t and drops it when t
// finishes.
func newTestDB(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	requirePostgres(t)

	dbName := "feedbackiq_test_" + randomHex(t, 8)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := postgresAdminPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		t.Fatalf("failed to create database %q: %v", dbName, err)
	}
	dropDB := func() {
		dropCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, _ = postgresAdminPool.Exec(dropCtx, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName))
	}

	dsn := databaseDSN(t, dbName)
	if err := db.RunMigrations(dsn); err != nil {
		dropDB()
		t.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		dropDB()
		t.Fatalf("failed to connect to database %q: %v", dbName, err)
	}

	t.Cleanup(func() {
		pool.Close()
		dropDB()
	})
	return pool, dsn
}

func databaseDSN(t *testing.T, dbName string) string {
	t.Helper()
	u, err := url.Parse(postgresAdminDSN)
	if err != nil {
		t.Fatalf("failed to parse admin dsn: %v", err)
	}
	u.Path = "/" + dbName
	return u.String()
}

func randomHex(t *testing.T, bytes int) string {
	t.Helper()
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("failed to read random bytes: %v", err)
	}
	return hex.EncodeToString(b)
}
