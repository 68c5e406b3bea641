package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable of the intake pipeline and its tools.
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Poller    PollerConfig    `mapstructure:"poller"`
	DevServer DevServerConfig `mapstructure:"devserver"`
	Log       LogConfig       `mapstructure:"log"`
}

// BackendConfig points the client at the analysis backend.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"` // per-request timeout
}

// UploadConfig tunes the chunk uploader. The defaults mirror the
// production frontend: 10 MiB chunks, 3 attempts per chunk.
type UploadConfig struct {
	ChunkSize    int64         `mapstructure:"chunk_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"` // base delay, doubled per attempt
}

// PollerConfig tunes the job status poller. MaxConsecutiveErrors of 0
// means transient poll errors never stop the poller.
type PollerConfig struct {
	Interval             time.Duration `mapstructure:"interval"`
	MaxConsecutiveErrors int           `mapstructure:"max_consecutive_errors"`
}

// DevServerConfig configures the local stub backend.
type DevServerConfig struct {
	Port        string        `mapstructure:"port"`
	DBPath      string        `mapstructure:"db_path"` // empty means in-memory
	JobTick     time.Duration `mapstructure:"job_tick"`
	JobDeadline time.Duration `mapstructure:"job_deadline"` // stale queued/running jobs older than this are failed
}

// LogConfig configures zap.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads config.yaml (working dir, ./configs, /etc/matchintake) with
// MATCHINTAKE_* environment overrides. A missing file is not fatal; the
// defaults below describe a complete local setup.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/matchintake/")

	viper.SetEnvPrefix("MATCHINTAKE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("backend.base_url", "http://localhost:8000")
	viper.SetDefault("backend.timeout", 30*time.Second)
	viper.SetDefault("upload.chunk_size", int64(10*1024*1024))
	viper.SetDefault("upload.max_retries", 3)
	viper.SetDefault("upload.retry_backoff", 500*time.Millisecond)
	viper.SetDefault("poller.interval", 2*time.Second)
	viper.SetDefault("poller.max_consecutive_errors", 0)
	viper.SetDefault("devserver.port", "8000")
	viper.SetDefault("devserver.db_path", "")
	viper.SetDefault("devserver.job_tick", time.Second)
	viper.SetDefault("devserver.job_deadline", 30*time.Minute)
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Println("config file not found, using environment variables and defaults")
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
