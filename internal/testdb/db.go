//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/phrazzld/progressor-api/internal/config"
	"github.com/phrazzld/progressor-api/internal/platform/postgres"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

const (
	containerImage    = "postgres:16-alpine"
	containerUser     = "progressor"
	containerPassword = "progressor"
	containerDB       = "progressor_test"
	startupTimeout    = 90 * time.Second
)

var (
	setupOnce sync.Once
	sharedURL string
	setupErr  error
)

// URLFromEnv returns the database URL configured for tests, or "".
// DATABASE_URL wins over PROGRESSOR_TEST_DB_URL.
func URLFromEnv() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return os.Getenv("PROGRESSOR_TEST_DB_URL")
}

// startContainer launches postgres and returns its connection URL.
// The testcontainers reaper removes the container when the test binary exits.
func startContainer(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        containerImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     containerUser,
			"POSTGRES_PASSWORD": containerPassword,
			"POSTGRES_DB":       containerDB,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(startupTimeout),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := pg.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("host: %w", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return "", fmt.Errorf("mapped port: %w", err)
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		containerUser, containerPassword, host, port.Port(), containerDB), nil
}

// setup resolves the database URL and migrates the schema once.
func setup() (string, error) {
	setupOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout+TestTimeout)
		defer cancel()

		sharedURL = URLFromEnv()
		if sharedURL == "" {
			sharedURL, setupErr = startContainer(ctx)
			if setupErr != nil {
				return
			}
		}

		db, err := postgres.Open(ctx, config.DatabaseConfig{URL: sharedURL})
		if err != nil {
			setupErr = err
			return
		}
		defer func() { _ = db.Close() }()

		setupErr = postgres.Migrate(ctx, db, "up", slog.Default())
	})
	return sharedURL, setupErr
}

// GetTestDBWithT returns a migrated database connection closed at test cleanup.
// It skips the test in -short mode and when no database can be provisioned.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}

	url, err := setup()
	if err != nil {
		t.Skipf("no test database available: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := postgres.Open(ctx, config.DatabaseConfig{
		URL:             url,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	require.NoError(t, err, "failed to open test database")

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close database connection: %v", err)
		}
	})
	return db
}
