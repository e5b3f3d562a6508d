// Package testutils starts the external services the backend talks to in
// containers, for integration tests that run outside -short mode.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"ragchat/internal/config"
	"ragchat/internal/logger"
)

const (
	dbName = "ragchat_test"
	dbUser = "test"
	dbPass = "test"
)

type IntegrationSuite struct {
	T        *testing.T
	DB       *sql.DB
	Weaviate *weaviate.Client
	Redis    *redis.Client
	NSQ      *nsq.Producer

	SkipMigrations bool

	pgHost, pgPort    string
	weaviateAddr      string
	redisAddr         string
	nsqdTCP, nsqdHTTP string

	// Containers
	pgContainer       *postgres.PostgresContainer
	weaviateContainer testcontainers.Container
	redisContainer    testcontainers.Container
	nsqContainer      testcontainers.Container
}

func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	return &IntegrationSuite{T: t}
}

// MigrationPath is the file:// URL of the repository migrations.
func MigrationPath() string {
	_, b, _, _ := runtime.Caller(0)
	return fmt.Sprintf("file://%s", filepath.Join(filepath.Dir(b), "..", "..", "migrations"))
}

func (s *IntegrationSuite) Setup() {
	ctx := context.Background()

	// 1. Postgres
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPass),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	s.DB, err = sql.Open("postgres", connStr)
	require.NoError(s.T, err)

	s.pgHost, err = pgContainer.Host(ctx)
	require.NoError(s.T, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(s.T, err)
	s.pgPort = pgPort.Port()

	if !s.SkipMigrations {
		m, err := migrate.New(MigrationPath(), connStr)
		require.NoError(s.T, err)
		require.NoError(s.T, m.Up())
	}

	// 2. Weaviate
	weaviateC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "semitechnologies/weaviate:1.33.6",
			ExposedPorts: []string{"8080/tcp", "50051/tcp"},
			Env: map[string]string{
				"AUTHENTICATION_ANONYMOUS_ACCESS_ENABLED": "true",
				"DEFAULT_VECTORIZER_MODULE":               "none",
				"PERSISTENCE_DATA_PATH":                   "/var/lib/weaviate",
			},
			WaitingFor: wait.ForHTTP("/v1/.well-known/ready").WithPort("8080/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T, err)
	s.weaviateContainer = weaviateC
	s.weaviateAddr = s.endpoint(ctx, weaviateC, "8080/tcp")

	s.Weaviate, err = weaviate.NewClient(weaviate.Config{Host: s.weaviateAddr, Scheme: "http"})
	require.NoError(s.T, err)

	// 3. Redis
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T, err)
	s.redisContainer = redisC
	s.redisAddr = s.endpoint(ctx, redisC, "6379/tcp")
	s.Redis = redis.NewClient(&redis.Options{Addr: s.redisAddr})

	// 4. NSQ
	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nsqio/nsq:v1.3.0",
			ExposedPorts: []string{"4150/tcp", "4151/tcp"},
			Cmd:          []string{"/nsqd", "--broadcast-address=localhost"},
			WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T, err)
	s.nsqContainer = nsqC
	s.nsqdTCP = s.endpoint(ctx, nsqC, "4150/tcp")
	s.nsqdHTTP = s.endpoint(ctx, nsqC, "4151/tcp")

	s.NSQ, err = nsq.NewProducer(s.nsqdTCP, nsq.NewConfig())
	require.NoError(s.T, err)
}

func (s *IntegrationSuite) endpoint(ctx context.Context, c testcontainers.Container, port nat.Port) string {
	host, err := c.Host(ctx)
	require.NoError(s.T, err)
	mapped, err := c.MappedPort(ctx, port)
	require.NoError(s.T, err)
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

// GetAppConfig points a config at the suite containers. Models default to
// the offline hashing embedder; the generator still needs a provider.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	var port int
	_, _ = fmt.Sscanf(s.pgPort, "%d", &port)

	return &config.Config{
		DBHost:        s.pgHost,
		DBPort:        port,
		DBUser:        dbUser,
		DBPass:        dbPass,
		DBName:        dbName,
		MigrationPath: MigrationPath(),

		VectorBackend:       config.BackendWeaviate,
		WeaviateHost:        s.weaviateAddr,
		WeaviateScheme:      "http",
		CollectionName:      "integration_collection",
		RecreateOnIngest:    true,
		SearchRetryAttempts: 2,

		ConversationBackend:    config.BackendRedis,
		RedisAddr:              s.redisAddr,
		ConversationTTLHours:   1,
		HistoryWindow:          6,
		SerializeConversations: true,

		EmbedProvider:           config.ProviderLocal,
		LLMProvider:             config.ProviderOpenAI,
		OpenAIAPIKey:            "test-key",
		OpenAIChatModel:         "gpt-4o-mini",
		LocalEmbedDimension:     256,
		GeneratorTimeoutSeconds: 5,
		DefaultTopK:             5,

		NSQDHost:            s.nsqdTCP,
		NSQDHTTP:            s.nsqdHTTP,
		NSQLookupd:          "",
		EnableEventConsumer: true,

		ServerPort:      8081,
		MaxUploadSizeMB: 5,

		BootstrapRetryAttempts:     5,
		BootstrapRetryDelaySeconds: 1,
	}
}

func (s *IntegrationSuite) Logger() *slog.Logger {
	return slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.NSQ != nil {
		s.NSQ.Stop()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.DB != nil {
		_ = s.DB.Close()
	}
	for _, c := range []testcontainers.Container{s.nsqContainer, s.redisContainer, s.weaviateContainer} {
		if c != nil {
			_ = c.Terminate(ctx)
		}
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(ctx)
	}
}
