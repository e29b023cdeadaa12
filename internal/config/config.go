package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/paysentry/fraud-engine/internal/domain"
)

// DefaultEnvFile is read when present; its absence is not an error
const DefaultEnvFile = ".env"

// Config is the fraud engine configuration
type Config struct {
	Log         LogConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Inference   InferenceConfig
	Policy      PolicyConfig
	OTP         OTPConfig
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"`
}

// DatabaseConfig selects the ledger store. An empty URL keeps everything
// in memory.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL"`
}

// RedisConfig selects the OTP challenge store. An empty address falls
// back to the ledger store.
type RedisConfig struct {
	Addr      string        `envconfig:"REDIS_ADDR"`
	Password  string        `envconfig:"REDIS_PASSWORD"`
	DB        int           `envconfig:"REDIS_DB" default:"0"`
	Retention time.Duration `envconfig:"OTP_RETENTION" default:"24h"`
}

type InferenceConfig struct {
	WorkerCommand string        `envconfig:"PREDICT_WORKER_CMD" default:"predict-worker"`
	WorkerArgs    []string      `envconfig:"PREDICT_WORKER_ARGS"`
	ModelPath     string        `envconfig:"MODEL_PATH" default:"models/fraud_model.json"`
	Timeout       time.Duration `envconfig:"INFERENCE_TIMEOUT" default:"5s"`
	InProcess     bool          `envconfig:"INFERENCE_IN_PROCESS" default:"false"`
}

type PolicyConfig struct {
	ApproveThreshold float64       `envconfig:"APPROVE_THRESHOLD" default:"0.20"`
	BlockThreshold   float64       `envconfig:"BLOCK_THRESHOLD" default:"0.70"`
	TravelWindow     time.Duration `envconfig:"TRAVEL_WINDOW" default:"60m"`
}

type OTPConfig struct {
	TTL time.Duration `envconfig:"OTP_TTL" default:"5m"`
}

// WorkerConfig is the configuration of the prediction worker binary
type WorkerConfig struct {
	ModelPath string `envconfig:"MODEL_PATH" default:"models/fraud_model.json"`
	LogLevel  string `envconfig:"WORKER_LOG_LEVEL" default:"warn"`
}

// Load reads the optional env files (DefaultEnvFile when none are given),
// then the process environment, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWorker reads the worker configuration from the environment
func LoadWorker() (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse worker configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks values envconfig cannot check on its own
func (c *Config) Validate() error {
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if c.Inference.Timeout <= 0 {
		return fmt.Errorf("INFERENCE_TIMEOUT must be positive, got %s", c.Inference.Timeout)
	}
	if c.OTP.TTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive, got %s", c.OTP.TTL)
	}
	if c.Policy.TravelWindow <= 0 {
		return fmt.Errorf("TRAVEL_WINDOW must be positive, got %s", c.Policy.TravelWindow)
	}
	if !c.Inference.InProcess && c.Inference.WorkerCommand == "" {
		return errors.New("PREDICT_WORKER_CMD is required unless INFERENCE_IN_PROCESS is set")
	}
	return nil
}

// Thresholds returns the configured decision cut points
func (c *Config) Thresholds() domain.Thresholds {
	return domain.Thresholds{
		Approve: c.Policy.ApproveThreshold,
		Block:   c.Policy.BlockThreshold,
	}
}
