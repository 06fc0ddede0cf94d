// Package testutil starts the containers used by integration and e2e tests.
// Containers are removed through t.Cleanup.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/database"
	"github.com/cenkalti/backoff/v4"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "pgvector/pgvector:0.8.1-pg18"
	rustfsImage   = "rustfs/rustfs:latest"

	postgresCredential = "docrag"

	// RustFSAccessKey and RustFSSecretKey are the S3 credentials of the
	// RustFS container.
	RustFSAccessKey = "rustfsadmin"
	RustFSSecretKey = "rustfsadmin"
)

// startContainer runs req and registers its removal.
func startContainer(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if c != nil {
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(c); err != nil {
				t.Logf("terminate %s: %v", req.Image, err)
			}
		})
	}
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	return c
}

func endpoint(ctx context.Context, t *testing.T, c testcontainers.Container, port nat.Port) string {
	t.Helper()
	addr, err := c.PortEndpoint(ctx, port, "")
	if err != nil {
		t.Fatalf("resolve port %s: %v", port, err)
	}
	return addr
}

// PostgresContainer is a pgvector-enabled PostgreSQL server.
type PostgresContainer struct {
	Container testcontainers.Container
	Addr      string
}

// NewPostgresContainer starts PostgreSQL with the pgvector extension available.
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	t.Helper()
	c := startContainer(ctx, t, testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     postgresCredential,
			"POSTGRES_PASSWORD": postgresCredential,
			"POSTGRES_DB":       postgresCredential,
		},
		// The entrypoint restarts the server once after init.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(90 * time.Second),
	})
	return &PostgresContainer{Container: c, Addr: endpoint(ctx, t, c, "5432/tcp")}
}

// ConnectionString returns a pgx URL for the container database.
func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%[1]s:%[1]s@%[2]s/%[1]s?sslmode=disable", postgresCredential, pc.Addr)
}

// RustFSContainer is an S3-compatible object store.
type RustFSContainer struct {
	Container testcontainers.Container
	Addr      string
}

// NewRustFSContainer starts RustFS with the RustFSAccessKey credentials.
func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	t.Helper()
	c := startContainer(ctx, t, testcontainers.ContainerRequest{
		Image:        rustfsImage,
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": RustFSAccessKey,
			"RUSTFS_SECRET_KEY": RustFSSecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(45 * time.Second),
	})
	return &RustFSContainer{Container: c, Addr: endpoint(ctx, t, c, "9000/tcp")}
}

// Endpoint returns the S3 endpoint URL.
func (rc *RustFSContainer) Endpoint() string {
	return "http://" + rc.Addr
}

// NewTestPool connects to the container, retrying while the server finishes
// starting, and applies the embedded migrations. The pool is closed through
// t.Cleanup.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer) *pgxpool.Pool {
	t.Helper()

	connect := func() (*pgxpool.Pool, error) {
		return database.NewPool(ctx, database.Config{URL: pc.ConnectionString(), MaxConns: 8})
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 15 * time.Second

	pool, err := backoff.RetryWithData(connect, backoff.WithContext(b, ctx))
	if err != nil {
		t.Fatalf("connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(pc.ConnectionString()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return pool
}
