package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

const (
	BackendWeaviate = "weaviate"
	BackendMilvus   = "milvus"
	BackendMemory   = "memory"
	BackendRedis    = "redis"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderLocal  = "local"
)

type Config struct {
	DBHost        string `envconfig:"DB_HOST" default:"postgres"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"ragchat"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"ragchat"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Vector index
	VectorBackend       string `envconfig:"VECTOR_BACKEND" default:"weaviate"`
	WeaviateHost        string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme      string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	MilvusAddress       string `envconfig:"MILVUS_ADDRESS" default:"localhost:19530"`
	MilvusUser          string `envconfig:"MILVUS_USER"`
	MilvusPass          string `envconfig:"MILVUS_PASS"`
	MilvusDB            string `envconfig:"MILVUS_DB"`
	CollectionName      string `envconfig:"COLLECTION_NAME" default:"documents_collection"`
	RecreateOnIngest    bool   `envconfig:"INDEX_RECREATE_ON_INGEST" default:"true"`
	SearchRetryAttempts int    `envconfig:"SEARCH_RETRY_ATTEMPTS" default:"3"`

	// Conversation store
	ConversationBackend    string `envconfig:"CONVERSATION_BACKEND" default:"redis"`
	RedisAddr              string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword          string `envconfig:"REDIS_PASSWORD"`
	RedisDB                int    `envconfig:"REDIS_DB" default:"0"`
	ConversationTTLHours   int    `envconfig:"CONVERSATION_TTL_HOURS" default:"168"`
	HistoryWindow          int    `envconfig:"HISTORY_WINDOW" default:"6"`
	SerializeConversations bool   `envconfig:"SERIALIZE_CONVERSATIONS" default:"true"`

	// Models
	EmbedProvider           string `envconfig:"EMBED_PROVIDER" default:"openai"`
	LLMProvider             string `envconfig:"LLM_PROVIDER" default:"openai"`
	OpenAIAPIKey            string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL           string `envconfig:"OPENAI_BASE_URL"`
	OpenAIChatModel         string `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4o-mini"`
	OpenAIEmbedModel        string `envconfig:"OPENAI_EMBED_MODEL" default:"text-embedding-3-small"`
	GeminiAPIKey            string `envconfig:"GEMINI_API_KEY"`
	GeminiChatModel         string `envconfig:"GEMINI_CHAT_MODEL" default:"gemini-2.0-flash"`
	GeminiEmbedModel        string `envconfig:"GEMINI_EMBED_MODEL" default:"gemini-embedding-001"`
	EmbeddingDimension      int    `envconfig:"EMBEDDING_DIMENSION" default:"0"`
	LocalEmbedDimension     int    `envconfig:"LOCAL_EMBED_DIMENSION" default:"1024"`
	GeneratorTimeoutSeconds int    `envconfig:"GENERATOR_TIMEOUT_SECONDS" default:"60"`
	DefaultTopK             int    `envconfig:"DEFAULT_TOP_K" default:"5"`

	// Messaging
	NSQLookupd          string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost            string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP            string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	EnableEventConsumer bool   `envconfig:"ENABLE_EVENT_CONSUMER" default:"true"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win; a missing .env is fine.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}

	switch c.VectorBackend {
	case "", BackendWeaviate, BackendMilvus, BackendMemory:
	default:
		return fmt.Errorf("%w: VECTOR_BACKEND=%q", ErrInvalidValue, c.VectorBackend)
	}
	switch c.ConversationBackend {
	case "", BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("%w: CONVERSATION_BACKEND=%q", ErrInvalidValue, c.ConversationBackend)
	}

	switch c.EmbedProvider {
	case "", ProviderOpenAI, ProviderGemini, ProviderLocal:
	default:
		return fmt.Errorf("%w: EMBED_PROVIDER=%q", ErrInvalidValue, c.EmbedProvider)
	}
	switch c.LLMProvider {
	case "", ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: LLM_PROVIDER=%q", ErrInvalidValue, c.LLMProvider)
	}

	if c.uses(ProviderOpenAI) && c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingRequired)
	}
	if c.uses(ProviderGemini) && c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
	}

	if c.HistoryWindow < 0 {
		return fmt.Errorf("%w: HISTORY_WINDOW must not be negative", ErrInvalidValue)
	}
	if c.DefaultTopK < 0 {
		return fmt.Errorf("%w: DEFAULT_TOP_K must not be negative", ErrInvalidValue)
	}
	return nil
}

func (c *Config) uses(provider string) bool {
	return c.EmbedProvider == provider || c.LLMProvider == provider
}

// ConversationTTL is the sliding expiry applied on every append.
func (c *Config) ConversationTTL() time.Duration {
	if c.ConversationTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.ConversationTTLHours) * time.Hour
}

func (c *Config) GeneratorTimeout() time.Duration {
	if c.GeneratorTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.GeneratorTimeoutSeconds) * time.Second
}
