package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Store backends.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds application configuration from an optional TOML file and the environment.
type Config struct {
	HTTPPort      string `toml:"http_port"`
	StoreBackend  string `toml:"store_backend"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
	DatabaseURL   string `toml:"database_url"`
	DBPoolSize    int    `toml:"db_pool_size"`

	RedisURL      string `toml:"redis_url"`
	RedisPoolSize int    `toml:"redis_pool_size"`
	CacheTTL      int    `toml:"cache_ttl_sec"` // seconds

	KafkaBrokers    []string `toml:"kafka_brokers"`
	KafkaTopic      string   `toml:"kafka_todo_topic"`
	KafkaPartitions int      `toml:"kafka_partitions"`
	WorkerEnabled   bool     `toml:"worker_enabled"`

	CORSAllowOrigins []string `toml:"cors_allow_origins"`
	LogLevel         string   `toml:"log_level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTPPort:         "5000",
		StoreBackend:     BackendMongo,
		MongoURI:         "mongodb://mongo:27017/todos",
		DBPoolSize:       20,
		RedisPoolSize:    50,
		CacheTTL:         60,
		KafkaTopic:       "todo-events",
		KafkaPartitions:  8,
		CORSAllowOrigins: []string{"*"},
		LogLevel:         "info",
	}
}

// Load builds the config: defaults, then CONFIG_FILE (TOML) if set, then environment.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", cfg.StoreBackend))
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("MONGO_DATABASE", cfg.MongoDatabase)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBPoolSize = getIntEnv("DB_POOL_SIZE", cfg.DBPoolSize)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RedisPoolSize = getIntEnv("REDIS_POOL_SIZE", cfg.RedisPoolSize)
	cfg.CacheTTL = getIntEnv("CACHE_TTL_SEC", cfg.CacheTTL)
	cfg.KafkaBrokers = getSliceEnv("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = getEnv("KAFKA_TODO_TOPIC", cfg.KafkaTopic)
	cfg.KafkaPartitions = getIntEnv("KAFKA_PARTITIONS", cfg.KafkaPartitions)
	cfg.WorkerEnabled = getBoolEnv("WORKER_ENABLED", cfg.WorkerEnabled)
	cfg.CORSAllowOrigins = getSliceEnv("CORS_ALLOW_ORIGINS", cfg.CORSAllowOrigins)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
}

// Validate checks that the selected store backend has what it needs.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT must not be empty")
	}
	switch c.StoreBackend {
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// CacheEnabled reports whether a Redis URL is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}

// KafkaEnabled reports whether any Kafka broker is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// LoadEnvFile reads a .env file and sets env vars (only if not already set).
func LoadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') && val[len(val)-1] == val[0] {
			val = val[1 : len(val)-1]
		}
		if key != "" && os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getSliceEnv(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
