package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Redis       RedisConfig       `json:"redis"`
	Embedding   EmbeddingConfig   `json:"embedding"`
	VectorStore VectorStoreConfig `json:"vector_store"`
	LLM         LLMConfig         `json:"llm"`
	OCR         OCRConfig         `json:"ocr"`
	Chunking    ChunkingConfig    `json:"chunking"`
	Retrieval   RetrievalConfig   `json:"retrieval"`
	Cache       CacheConfig       `json:"cache"`
	PII         PIIConfig         `json:"pii"`
	Verifier    VerifierConfig    `json:"verifier"`
	Ingestion   IngestionConfig   `json:"ingestion"`
	Auth        AuthConfig        `json:"auth"`
	RateLimit   RateLimitConfig   `json:"rate_limit"`
}

type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
	MaxUploadMB  int    `json:"max_upload_mb"`
}

type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	SSLMode      string `json:"ssl_mode"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
	MaxLifetime  int    `json:"max_lifetime"`
}

// RedisConfig holds the KV store connection settings. MaxConnections bounds
// the pool; SocketTimeout is the per-operation deadline in seconds.
type RedisConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Password       string `json:"password"`
	DB             int    `json:"db"`
	MaxConnections int    `json:"max_connections"`
	SocketTimeout  int    `json:"socket_timeout"`
}

// EmbeddingConfig holds configuration for the remote embedding service.
type EmbeddingConfig struct {
	BaseURL      string `json:"base_url"`
	APIKey       string `json:"api_key"`
	Timeout      int    `json:"timeout"`
	MaxRetries   int    `json:"max_retries"`
	Dim          int    `json:"dim"`
	ModelVersion string `json:"model_version"`
}

// VectorStoreConfig holds configuration for the vector search API.
type VectorStoreConfig struct {
	BaseURL    string `json:"base_url"`
	APIKey     string `json:"api_key"`
	Timeout    int    `json:"timeout"`
	Collection string `json:"collection"`
	MaxRetries int    `json:"max_retries"`
}

// LLMConfig holds configuration for the generative model endpoint.
type LLMConfig struct {
	BaseURL    string `json:"base_url"`
	APIKey     string `json:"api_key"`
	Timeout    int    `json:"timeout"`
	MaxRetries int    `json:"max_retries"`
}

// OCRConfig holds configuration for the remote GPU OCR service.
type OCRConfig struct {
	BaseURL           string `json:"base_url"`
	APIKey            string `json:"api_key"`
	Timeout           int    `json:"timeout"`
	EnableHandwriting bool   `json:"enable_handwriting"`
}

type ChunkingConfig struct {
	MaxChunkSize int `json:"max_chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

type RetrievalConfig struct {
	DefaultTopK      int     `json:"default_top_k"`
	MaxTopK          int     `json:"max_top_k"`
	DefaultThreshold float64 `json:"default_threshold"`
	MaxSiblings      int     `json:"max_siblings"`
}

type CacheConfig struct {
	Enabled            bool `json:"enabled"`
	QueryResultsTTLSec int  `json:"query_results_ttl_sec"`
}

type PIIConfig struct {
	MappingTTLSec int `json:"mapping_ttl_sec"`
}

type VerifierConfig struct {
	SentenceThreshold  float64 `json:"sentence_threshold"`
	OverallThreshold   float64 `json:"overall_threshold"`
	AutoRetryThreshold float64 `json:"auto_retry_threshold"`
	MaxRetries         int     `json:"max_retries"`
	EmbedCacheSize     int     `json:"embed_cache_size"`
}

type IngestionConfig struct {
	CheckpointRoot     string `json:"checkpoint_root"`
	CorpusDir          string `json:"corpus_dir"`
	EmbeddingBatchSize int    `json:"embedding_batch_size"`
	ChunkBatchSize     int    `json:"chunk_batch_size"`
	BatchTimeoutSec    int    `json:"batch_timeout_sec"`
	DocTimeoutSec      int    `json:"doc_timeout_sec"`
}

type AuthConfig struct {
	JWTSecret      string   `json:"jwt_secret"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type RateLimitConfig struct {
	WindowSec   int `json:"window_sec"`
	MaxRequests int `json:"max_requests"`
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			MaxUploadMB:  getEnvAsInt("SERVER_MAX_UPLOAD_MB", 25),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "lexrag"),
			Password:     getEnv("DB_PASSWORD", ""),
			Name:         getEnv("DB_NAME", "lexrag"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
		},
		Redis: RedisConfig{
			Host:           getEnv("REDIS_HOST", "localhost"),
			Port:           getEnvAsInt("REDIS_PORT", 6379),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			MaxConnections: getEnvAsInt("KV_MAX_CONNECTIONS", 20),
			SocketTimeout:  getEnvAsInt("KV_SOCKET_TIMEOUT", 5),
		},
		Embedding: EmbeddingConfig{
			BaseURL:      getEnv("EMBEDDING_BASE_URL", "http://localhost:8090"),
			APIKey:       getEnv("EMBEDDING_API_KEY", ""),
			Timeout:      getEnvAsInt("EMBEDDING_TIMEOUT", 60),
			MaxRetries:   getEnvAsInt("EMBEDDING_MAX_RETRIES", 3),
			Dim:          getEnvAsInt("EMBEDDING_DIM", 768),
			ModelVersion: getEnv("EMBEDDING_MODEL_VERSION", "legal-embed-v1"),
		},
		VectorStore: VectorStoreConfig{
			BaseURL:    getEnv("VECTOR_STORE_BASE_URL", "http://localhost:8091"),
			APIKey:     getEnv("VECTOR_STORE_API_KEY", ""),
			Timeout:    getEnvAsInt("VECTOR_STORE_TIMEOUT", 30),
			Collection: getEnv("VECTOR_STORE_COLLECTION", "legal_chunks"),
			MaxRetries: getEnvAsInt("VECTOR_STORE_MAX_RETRIES", 3),
		},
		LLM: LLMConfig{
			BaseURL:    getEnv("LLM_BASE_URL", "http://localhost:8092"),
			APIKey:     getEnv("LLM_API_KEY", ""),
			Timeout:    getEnvAsInt("LLM_TIMEOUT", 120),
			MaxRetries: getEnvAsInt("LLM_MAX_RETRIES", 3),
		},
		OCR: OCRConfig{
			BaseURL:           getEnv("OCR_BASE_URL", "http://localhost:8093"),
			APIKey:            getEnv("OCR_API_KEY", ""),
			Timeout:           getEnvAsInt("OCR_TIMEOUT", 300),
			EnableHandwriting: getEnvAsBool("OCR_ENABLE_HANDWRITING", false),
		},
		Chunking: ChunkingConfig{
			MaxChunkSize: getEnvAsInt("MAX_CHUNK_SIZE", 1600),
			ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 100),
		},
		Retrieval: RetrievalConfig{
			DefaultTopK:      getEnvAsInt("DEFAULT_TOP_K", 5),
			MaxTopK:          getEnvAsInt("MAX_TOP_K", 20),
			DefaultThreshold: getEnvAsFloat("DEFAULT_MATCH_THRESHOLD", 0.7),
			MaxSiblings:      getEnvAsInt("MAX_SIBLINGS", 3),
		},
		Cache: CacheConfig{
			Enabled:            getEnvAsBool("CACHE_ENABLED", true),
			QueryResultsTTLSec: getEnvAsInt("CACHE_QUERY_RESULTS_TTL", 3600),
		},
		PII: PIIConfig{
			MappingTTLSec: getEnvAsInt("PII_MAPPING_TTL", 300),
		},
		Verifier: VerifierConfig{
			SentenceThreshold:  getEnvAsFloat("SENTENCE_THRESHOLD", 0.75),
			OverallThreshold:   getEnvAsFloat("OVERALL_THRESHOLD", 0.80),
			AutoRetryThreshold: getEnvAsFloat("AUTO_RETRY_THRESHOLD", 0.0),
			MaxRetries:         getEnvAsInt("VERIFIER_MAX_RETRIES", 2),
			EmbedCacheSize:     getEnvAsInt("VERIFIER_EMBED_CACHE_SIZE", 2048),
		},
		Ingestion: IngestionConfig{
			CheckpointRoot:     getEnv("INGESTION_CHECKPOINT_ROOT", "./checkpoints"),
			CorpusDir:          getEnv("INGESTION_CORPUS_DIR", "./corpus"),
			EmbeddingBatchSize: getEnvAsInt("EMBEDDING_BATCH_SIZE", 1000),
			ChunkBatchSize:     getEnvAsInt("CHUNK_BATCH_SIZE", 1000),
			BatchTimeoutSec:    getEnvAsInt("BATCH_TIMEOUT", 1800),
			DocTimeoutSec:      getEnvAsInt("DOC_TIMEOUT", 300),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		RateLimit: RateLimitConfig{
			WindowSec:   getEnvAsInt("RATE_LIMIT_WINDOW", 60),
			MaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 30),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// QueryResultsTTL returns the query-cache TTL as a duration.
func (c *CacheConfig) QueryResultsTTL() time.Duration {
	return time.Duration(c.QueryResultsTTLSec) * time.Second
}

// MappingTTL returns the PII mapping TTL as a duration.
func (c *PIIConfig) MappingTTL() time.Duration {
	return time.Duration(c.MappingTTLSec) * time.Second
}

func validateConfig(config *Config) error {
	if config.Database.Password == "" {
		return fmt.Errorf("database password is required (DB_PASSWORD)")
	}

	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required (JWT_SECRET)")
	}

	if config.Chunking.ChunkOverlap >= config.Chunking.MaxChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than MAX_CHUNK_SIZE (%d)",
			config.Chunking.ChunkOverlap, config.Chunking.MaxChunkSize)
	}

	if config.Retrieval.DefaultTopK > config.Retrieval.MaxTopK {
		return fmt.Errorf("DEFAULT_TOP_K (%d) must not exceed MAX_TOP_K (%d)",
			config.Retrieval.DefaultTopK, config.Retrieval.MaxTopK)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
