package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	History  HistoryConfig
	Redis    RedisConfig
	Recorder RecorderConfig
	Client   ClientConfig

	// APIKey защищает запись через HTTP. Пустой ключ отключает проверку.
	APIKey string `env:"HISTORY_API_KEY"`
}

type HistoryConfig struct {
	Backend       string        `env:"HISTORY_BACKEND" envDefault:"memory"`
	SQLitePath    string        `env:"HISTORY_SQLITE_PATH" envDefault:"data/history.db"`
	KeyPrefix     string        `env:"HISTORY_KEY_PREFIX" envDefault:"kv:history:"`
	TTL           time.Duration `env:"HISTORY_TTL" envDefault:"720h"`
	IndexLocking  bool          `env:"HISTORY_INDEX_LOCKING" envDefault:"false"`
	SweepSchedule string        `env:"HISTORY_SWEEP_SCHEDULE" envDefault:"@every 10m"`
	RetryAttempts int           `env:"BACKEND_RETRY_ATTEMPTS" envDefault:"3"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type RecorderConfig struct {
	Concurrency int64         `env:"RECORDER_CONCURRENCY" envDefault:"16"`
	Timeout     time.Duration `env:"RECORDER_TIMEOUT" envDefault:"10s"`
}

type ClientConfig struct {
	ServerURL      string        `env:"HISTORY_SERVER_URL" envDefault:"http://localhost:8080"`
	RequestTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"15s"`
}

// Load читает .env (если он есть) и переменные окружения.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{})
}

// FromMap разбирает конфиг из готового набора переменных, без окружения процесса.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.History.Backend = strings.ToLower(strings.TrimSpace(c.History.Backend))
	switch c.History.Backend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("HISTORY_BACKEND: unknown backend %q", c.History.Backend)
	}
	if c.History.TTL <= 0 {
		return fmt.Errorf("HISTORY_TTL must be positive, got %s", c.History.TTL)
	}
	if c.History.RetryAttempts < 1 {
		return fmt.Errorf("BACKEND_RETRY_ATTEMPTS must be >= 1, got %d", c.History.RetryAttempts)
	}
	if c.Recorder.Concurrency < 1 {
		return fmt.Errorf("RECORDER_CONCURRENCY must be >= 1, got %d", c.Recorder.Concurrency)
	}
	return nil
}
