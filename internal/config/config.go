package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	BrawlAPIKey   string
	InsightAPIKey string
	DBPath        string
	MetricsPort   string
	LogLevel      string

	RedisURL     string
	RedisEnabled bool

	CollectorInterval  time.Duration
	AggregatorInterval time.Duration
	SynergyInterval    time.Duration
	TrendInterval      time.Duration

	MaxPlayersPerBracket int
	CrawlDepth           int
	MinInsightConfidence float64
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		BrawlAPIKey:   getEnv("BRAWL_API_KEY", ""),
		InsightAPIKey: getEnv("INSIGHT_API_KEY", ""),
		DBPath:        getEnv("DB_PATH", "brawlmeta.db"),
		MetricsPort:   getEnv("METRICS_PORT", "9091"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisEnabled: getEnvBool("REDIS_ENABLED", false),

		CollectorInterval:  getEnvDuration("COLLECTOR_INTERVAL", 6*time.Hour),
		AggregatorInterval: getEnvDuration("AGGREGATOR_INTERVAL", time.Hour),
		SynergyInterval:    getEnvDuration("SYNERGY_INTERVAL", 2*time.Hour),
		TrendInterval:      getEnvDuration("TREND_INTERVAL", 6*time.Hour),

		MaxPlayersPerBracket: getEnvInt("MAX_PLAYERS_PER_BRACKET", 100),
		CrawlDepth:           getEnvInt("CRAWL_DEPTH", 2),
		MinInsightConfidence: getEnvFloat("MIN_INSIGHT_CONFIDENCE", 0.7),
	}

	if cfg.BrawlAPIKey == "" {
		return nil, fmt.Errorf("BRAWL_API_KEY is required")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("metrics_port", cfg.MetricsPort).
		Str("log_level", cfg.LogLevel).
		Bool("redis_enabled", cfg.RedisEnabled).
		Dur("collector_interval", cfg.CollectorInterval).
		Dur("aggregator_interval", cfg.AggregatorInterval).
		Dur("synergy_interval", cfg.SynergyInterval).
		Dur("trend_interval", cfg.TrendInterval).
		Int("max_players_per_bracket", cfg.MaxPlayersPerBracket).
		Float64("min_insight_confidence", cfg.MinInsightConfidence).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
