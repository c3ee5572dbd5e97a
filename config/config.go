// Package config 从环境变量（以及可选的 .env 文件）加载进程配置。
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config 进程级配置，启动时加载一次。
type Config struct {
	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // text / json

	// Merchant rules：优先读文件，其次 Redis，都未配置时使用内置规则
	MerchantRulesPath string   `env:"MERCHANT_RULES_PATH"`
	MerchantIDs       []string `env:"MERCHANT_IDS" envSeparator:","`

	// Redis
	RedisAddr string `env:"REDIS_ADDR"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Learned reranker
	LTRModelPath    string        `env:"LTR_MODEL_PATH" envDefault:"models/ltr_model.txt"`
	LTRModelKind    string        `env:"LTR_MODEL_KIND" envDefault:"lightgbm"`
	LTRModelTimeout time.Duration `env:"LTR_MODEL_TIMEOUT" envDefault:"2s"`
	// LTRMode rerank：融合后按模型分重排；signal：模型分替代启发式信号分参与融合
	LTRMode string `env:"LTR_MODE" envDefault:"rerank"`

	// Embedding & category classifier
	EmbeddingBaseURL       string `env:"EMBEDDING_BASE_URL" envDefault:"https://api.openai.com/v1"`
	EmbeddingAPIKey        string `env:"OPENAI_API_KEY"`
	EmbeddingModel         string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingCacheSize     int    `env:"EMBEDDING_CACHE_SIZE" envDefault:"1024"`
	CategoryEmbeddingsPath string `env:"CATEGORY_EMBEDDINGS_PATH"`

	// Vector index：配置了 Qdrant 时使用 Qdrant，否则从 CATALOG_PATH 加载内存索引
	QdrantAddr             string `env:"QDRANT_ADDR"`
	QdrantCollectionPrefix string `env:"QDRANT_COLLECTION_PREFIX" envDefault:"products_"`
	CatalogPath            string `env:"CATALOG_PATH"`

	// Telemetry
	TelemetryBuffer  int    `env:"TELEMETRY_BUFFER" envDefault:"1024"`
	TelemetryListKey string `env:"TELEMETRY_LIST_KEY" envDefault:"search_interactions"`
}

// Load 加载 .env（不存在则忽略）和环境变量。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LTR 模式。
const (
	LTRModeRerank = "rerank"
	LTRModeSignal = "signal"
)

// Validate 校验取值受限的配置项。
func (c *Config) Validate() error {
	switch strings.ToLower(c.LTRMode) {
	case LTRModeRerank, LTRModeSignal:
	default:
		return fmt.Errorf("invalid LTR_MODE %q: want %q or %q", c.LTRMode, LTRModeRerank, LTRModeSignal)
	}
	if c.TelemetryBuffer < 0 {
		return fmt.Errorf("invalid TELEMETRY_BUFFER %d", c.TelemetryBuffer)
	}
	return nil
}

// ParseLevel 解析日志级别（debug/info/warn/error，大小写不敏感），无法识别时返回 info 和错误。
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger 按配置创建 logger，输出到 w（nil 时为 stderr）。
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := ParseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(c.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	if err != nil {
		logger.Warn("falling back to info log level", "error", err)
	}
	return logger
}
