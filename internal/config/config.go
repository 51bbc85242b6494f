package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/attrition-predictor/internal/artifacts"
)

// Config captures the settings required to boot the prediction service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
}

// ServerConfig controls the shared gRPC/HTTP listener and the metrics listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	// Mode is the gin mode: release, debug or test.
	Mode string `yaml:"mode"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Artifact backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// ArtifactsConfig locates the fitted scaler and classifier.
type ArtifactsConfig struct {
	Backend    string      `yaml:"backend"`
	Dir        string      `yaml:"dir"`
	Scaler     string      `yaml:"scaler"`
	Classifier string      `yaml:"classifier"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig controls the Redis/Valkey artifact backend.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	KeyPrefix   string        `yaml:"keyPrefix"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
	TLS         bool          `yaml:"tls"`
}

// Source converts the settings into the artifacts package's connection options.
func (r RedisConfig) Source() artifacts.RedisConfig {
	return artifacts.RedisConfig{
		Addr:        r.Addr,
		Username:    r.Username,
		Password:    r.Password,
		DB:          r.DB,
		KeyPrefix:   r.KeyPrefix,
		DialTimeout: r.DialTimeout,
		ReadTimeout: r.ReadTimeout,
		TLS:         r.TLS,
	}
}

// OpenStore connects to the configured artifact backend.
func (a ArtifactsConfig) OpenStore(logger *slog.Logger) (*artifacts.BlobStore, error) {
	var source artifacts.BlobSource
	switch a.Backend {
	case BackendFile, "":
		source = artifacts.NewFileSource(a.Dir)
	case BackendRedis:
		rs, err := artifacts.NewRedisSource(a.Redis.Source())
		if err != nil {
			return nil, err
		}
		source = rs
	default:
		return nil, fmt.Errorf("unknown artifacts.backend %q", a.Backend)
	}
	return artifacts.NewBlobStore(logger, source, a.Scaler, a.Classifier), nil
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("ATTRITION_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Artifacts.Backend {
	case BackendFile:
	case BackendRedis:
		if c.Artifacts.Redis.Addr == "" {
			return errors.New("artifacts.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown artifacts.backend %q", c.Artifacts.Backend)
	}
	if c.Artifacts.Scaler == "" || c.Artifacts.Classifier == "" {
		return errors.New("artifacts.scaler and artifacts.classifier are required")
	}
	if c.Server.Address == "" {
		return errors.New("server.address is required")
	}
	switch c.Server.Mode {
	case "release", "debug", "test":
	default:
		return fmt.Errorf("unknown server.mode %q", c.Server.Mode)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			RequestTimeout:  5 * time.Second,
			Mode:            "release",
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Artifacts: ArtifactsConfig{
			Backend:    BackendFile,
			Dir:        "artifacts",
			Scaler:     "scaling.json",
			Classifier: "xgb_classifier.json",
			Redis: RedisConfig{
				KeyPrefix:   "attrition:artifacts:",
				DialTimeout: 2 * time.Second,
				ReadTimeout: time.Second,
			},
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATTRITION_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("ATTRITION_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("ATTRITION_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}
	if v := os.Getenv("ATTRITION_SERVER_MODE"); v != "" {
		cfg.Server.Mode = v
	}
	if v := os.Getenv("ATTRITION_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ATTRITION_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("ATTRITION_ARTIFACTS_BACKEND"); v != "" {
		cfg.Artifacts.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("ATTRITION_ARTIFACTS_DIR"); v != "" {
		cfg.Artifacts.Dir = v
	}
	if v := os.Getenv("ATTRITION_SCALER"); v != "" {
		cfg.Artifacts.Scaler = v
	}
	if v := os.Getenv("ATTRITION_CLASSIFIER"); v != "" {
		cfg.Artifacts.Classifier = v
	}
	if v := os.Getenv("ATTRITION_REDIS_ADDR"); v != "" {
		cfg.Artifacts.Redis.Addr = v
	}
	if v := os.Getenv("ATTRITION_REDIS_USERNAME"); v != "" {
		cfg.Artifacts.Redis.Username = v
	}
	if v := os.Getenv("ATTRITION_REDIS_PASSWORD"); v != "" {
		cfg.Artifacts.Redis.Password = v
	}
	if v := os.Getenv("ATTRITION_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Artifacts.Redis.DB = db
		}
	}
	if v := os.Getenv("ATTRITION_REDIS_KEY_PREFIX"); v != "" {
		cfg.Artifacts.Redis.KeyPrefix = v
	}
	if v := os.Getenv("ATTRITION_REDIS_TLS"); strings.EqualFold(v, "true") || v == "1" {
		cfg.Artifacts.Redis.TLS = true
	}
	if v := os.Getenv("ATTRITION_REDIS_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Artifacts.Redis.DialTimeout = d
		}
	}
	if v := os.Getenv("ATTRITION_REDIS_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Artifacts.Redis.ReadTimeout = d
		}
	}
}
