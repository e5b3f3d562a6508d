package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"ragchat/internal/adapter/gemini"
	"ragchat/internal/adapter/local"
	milvusstore "ragchat/internal/adapter/milvus"
	"ragchat/internal/adapter/openai"
	wstore "ragchat/internal/adapter/weaviate"
	"ragchat/internal/config"
	"ragchat/internal/conversation"
	"ragchat/internal/retrieval"
	"ragchat/internal/vector"
)

// Embedder is what ingestion and retrieval both need from a provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

// Dependencies are the external collaborators built from configuration.
// Publisher is nil when the event consumer is disabled.
type Dependencies struct {
	DB            *sql.DB
	Index         vector.Index
	Conversations conversation.Store
	Embedder      Embedder
	Generator     retrieval.Generator
	Publisher     TaskPublisher

	closers []func() error
}

func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dependencies) onClose(fn func() error) {
	d.closers = append(d.closers, fn)
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	fail := func(err error) (*Dependencies, error) {
		if cerr := deps.Close(); cerr != nil {
			slog.Warn("failed to release partially bootstrapped dependencies", "error", cerr)
		}
		return nil, err
	}

	// Database
	db, err := openDatabase(ctx, cfg, retryDelay)
	if err != nil {
		return fail(err)
	}
	deps.DB = db
	deps.onClose(db.Close)

	if err := runMigrations(db, cfg.MigrationPath); err != nil {
		return fail(err)
	}

	// Vector index
	if deps.Index, err = buildIndex(ctx, cfg, deps, retryDelay); err != nil {
		return fail(err)
	}

	// Conversation store
	if deps.Conversations, err = buildConversationStore(ctx, cfg, deps, retryDelay); err != nil {
		return fail(err)
	}

	// Models
	if deps.Embedder, err = buildEmbedder(ctx, cfg, deps); err != nil {
		return fail(err)
	}
	if deps.Generator, err = buildGenerator(ctx, cfg, deps); err != nil {
		return fail(err)
	}

	// NSQ Producer
	if cfg.EnableEventConsumer {
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
		if err != nil {
			return fail(fmt.Errorf("nsq producer error: %w", err))
		}
		deps.Publisher = producer
		deps.onClose(func() error { producer.Stop(); return nil })

		createTopics(cfg.NSQDHTTP)
	}

	return deps, nil
}

func openDatabase(ctx context.Context, cfg *config.Config, retryDelay time.Duration) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := WithRetry(ctx, "postgres", cfg.BootstrapRetryAttempts, retryDelay, db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return db, nil
}

func runMigrations(db *sql.DB, path string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	slog.Info("migrations applied successfully")
	return nil
}

func buildIndex(ctx context.Context, cfg *config.Config, deps *Dependencies, retryDelay time.Duration) (vector.Index, error) {
	var base vector.Index

	switch cfg.VectorBackend {
	case config.BackendMemory:
		base = vector.NewMemoryIndex()
	case config.BackendMilvus:
		var store *milvusstore.Store
		err := WithRetry(ctx, "milvus", cfg.BootstrapRetryAttempts, retryDelay, func(ctx context.Context) error {
			var err error
			store, err = milvusstore.Connect(ctx, milvusstore.Config{
				Address:  cfg.MilvusAddress,
				Username: cfg.MilvusUser,
				Password: cfg.MilvusPass,
				DBName:   cfg.MilvusDB,
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("milvus client error: %w", err)
		}
		deps.onClose(func() error { return store.Close(context.Background()) })
		base = store
	default:
		wClient, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
		if err != nil {
			return nil, fmt.Errorf("weaviate client error: %w", err)
		}
		err = WithRetry(ctx, "weaviate", cfg.BootstrapRetryAttempts, retryDelay, func(ctx context.Context) error {
			ready, err := wClient.Misc().ReadyChecker().Do(ctx)
			if err != nil {
				return err
			}
			if !ready {
				return errors.New("weaviate not ready")
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("weaviate readiness error: %w", err)
		}
		base = wstore.NewStore(wClient)
	}

	return WrapIndex(base, cfg.SearchRetryAttempts), nil
}

// WrapIndex puts search retry and the ingest/search guard in front of a backend.
func WrapIndex(base vector.Index, retryAttempts int) *vector.Guarded {
	return vector.NewGuarded(vector.WithSearchRetry(base, vector.DefaultRetryPolicy(retryAttempts)))
}

func buildConversationStore(ctx context.Context, cfg *config.Config, deps *Dependencies, retryDelay time.Duration) (conversation.Store, error) {
	if cfg.ConversationBackend == config.BackendMemory {
		return conversation.NewMemoryStore(cfg.ConversationTTL()), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	deps.onClose(client.Close)

	store := conversation.NewRedisStore(client, cfg.ConversationTTL())
	if err := WithRetry(ctx, "redis", cfg.BootstrapRetryAttempts, retryDelay, store.Ping); err != nil {
		return nil, fmt.Errorf("redis ping error: %w", err)
	}
	return store, nil
}

func buildEmbedder(ctx context.Context, cfg *config.Config, deps *Dependencies) (Embedder, error) {
	switch cfg.EmbedProvider {
	case config.ProviderLocal:
		return local.NewEmbedder(cfg.LocalEmbedDimension), nil
	case config.ProviderGemini:
		e, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbedModel)
		if err != nil {
			return nil, fmt.Errorf("gemini embedder error: %w", err)
		}
		deps.onClose(e.Close)
		return e, nil
	default:
		e, err := openai.NewEmbedder(openaiConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("openai embedder error: %w", err)
		}
		return e, nil
	}
}

func buildGenerator(ctx context.Context, cfg *config.Config, deps *Dependencies) (retrieval.Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		g, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiChatModel)
		if err != nil {
			return nil, fmt.Errorf("gemini generator error: %w", err)
		}
		deps.onClose(g.Close)
		return g, nil
	default:
		g, err := openai.NewGenerator(openaiConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("openai generator error: %w", err)
		}
		return g, nil
	}
}

func openaiConfig(cfg *config.Config) openai.Config {
	return openai.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		ChatModel:  cfg.OpenAIChatModel,
		EmbedModel: cfg.OpenAIEmbedModel,
	}
}

func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicDocumentIngested)
	}()
}

// WithRetry calls fn until it succeeds, attempts run out or ctx is done,
// waiting delay between calls.
func WithRetry(ctx context.Context, name string, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		return fn(ctx)
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("dependency not ready, retrying...", "dependency", name, "attempt", attempt, "error", err, "wait", wait)
	}
	return backoff.RetryNotify(op, b, notify)
}
