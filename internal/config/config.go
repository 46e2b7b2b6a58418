// Package config loads shipflow settings from an optional TOML file and
// SHIPFLOW_* environment overrides. A missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"shipflow/internal/core"
	"shipflow/internal/kv"
)

const (
	defaultHTTPAddr   = "127.0.0.1:8080"
	defaultFSRoot     = "./slotdata"
	defaultSQLitePath = "shipflow.db"
	defaultS3Region   = "us-east-1"
)

// Environment variable names.
const (
	EnvConfigPath     = "SHIPFLOW_CONFIG"
	EnvKVDriver       = "SHIPFLOW_KV_DRIVER"
	EnvKVFSRoot       = "SHIPFLOW_KV_FS_ROOT"
	EnvKVSQLitePath   = "SHIPFLOW_KV_SQLITE_PATH"
	EnvKVPostgresDSN  = "SHIPFLOW_KV_POSTGRES_DSN"
	EnvKVS3Bucket     = "SHIPFLOW_KV_S3_BUCKET"
	EnvKVS3Region     = "SHIPFLOW_KV_S3_REGION"
	EnvKVS3Prefix     = "SHIPFLOW_KV_S3_PREFIX"
	EnvKVS3Endpoint   = "SHIPFLOW_KV_S3_ENDPOINT"
	EnvKVS3PathStyle  = "SHIPFLOW_KV_S3_PATH_STYLE"
	EnvHTTPAddr       = "SHIPFLOW_HTTP_ADDR"
	EnvAutoSaveDelay  = "SHIPFLOW_AUTOSAVE_DELAY"
	EnvSaveLatency    = "SHIPFLOW_SAVE_LATENCY"
	EnvLogLevel       = "SHIPFLOW_LOG_LEVEL"
	EnvS3AccessKey    = "SHIPFLOW_KV_S3_ACCESS_KEY_ID"
	EnvS3SecretKey    = "SHIPFLOW_KV_S3_SECRET_ACCESS_KEY"
	EnvS3SessionToken = "SHIPFLOW_KV_S3_SESSION_TOKEN"
)

// Config is the resolved process configuration.
type Config struct {
	HTTPAddr      string
	LogLevel      slog.Level
	AutoSaveDelay time.Duration
	SaveLatency   time.Duration
	KV            kv.Config
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPAddr:      defaultHTTPAddr,
		LogLevel:      slog.LevelInfo,
		AutoSaveDelay: core.DefaultAutoSaveDelay,
		KV: kv.Config{
			Driver:     kv.DriverMemory,
			FSRoot:     defaultFSRoot,
			SQLitePath: defaultSQLitePath,
			S3:         kv.S3Config{Region: defaultS3Region},
		},
	}
}

type fileConfig struct {
	HTTPAddr      string `toml:"http_addr"`
	LogLevel      string `toml:"log_level"`
	AutoSaveDelay string `toml:"autosave_delay"`
	SaveLatency   string `toml:"save_latency"`
	KV            struct {
		Driver      string `toml:"driver"`
		FSRoot      string `toml:"fs_root"`
		SQLitePath  string `toml:"sqlite_path"`
		PostgresDSN string `toml:"postgres_dsn"`
		S3          struct {
			Bucket    string `toml:"bucket"`
			Region    string `toml:"region"`
			Prefix    string `toml:"prefix"`
			Endpoint  string `toml:"endpoint"`
			PathStyle bool   `toml:"path_style"`
		} `toml:"s3"`
	} `toml:"kv"`
}

// Load reads path (or $SHIPFLOW_CONFIG when path is empty) and applies the
// process environment.
func Load(path string) (Config, error) {
	return LoadWith(path, os.Getenv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = getenv(EnvConfigPath)
	}
	if strings.TrimSpace(path) != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString((*string)(&c.KV.Driver), fc.KV.Driver)
	setString(&c.KV.FSRoot, fc.KV.FSRoot)
	setString(&c.KV.SQLitePath, fc.KV.SQLitePath)
	setString(&c.KV.PostgresDSN, fc.KV.PostgresDSN)
	setString(&c.KV.S3.Bucket, fc.KV.S3.Bucket)
	setString(&c.KV.S3.Region, fc.KV.S3.Region)
	setString(&c.KV.S3.Prefix, fc.KV.S3.Prefix)
	setString(&c.KV.S3.Endpoint, fc.KV.S3.Endpoint)
	c.KV.S3.PathStyle = c.KV.S3.PathStyle || fc.KV.S3.PathStyle
	if err := setLevel(&c.LogLevel, fc.LogLevel, "log_level"); err != nil {
		return err
	}
	if err := setDuration(&c.AutoSaveDelay, fc.AutoSaveDelay, "autosave_delay"); err != nil {
		return err
	}
	return setDuration(&c.SaveLatency, fc.SaveLatency, "save_latency")
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString(&c.HTTPAddr, getenv(EnvHTTPAddr))
	setString((*string)(&c.KV.Driver), strings.ToLower(getenv(EnvKVDriver)))
	setString(&c.KV.FSRoot, getenv(EnvKVFSRoot))
	setString(&c.KV.SQLitePath, getenv(EnvKVSQLitePath))
	setString(&c.KV.PostgresDSN, getenv(EnvKVPostgresDSN))
	setString(&c.KV.S3.Bucket, getenv(EnvKVS3Bucket))
	setString(&c.KV.S3.Region, getenv(EnvKVS3Region))
	setString(&c.KV.S3.Prefix, getenv(EnvKVS3Prefix))
	setString(&c.KV.S3.Endpoint, getenv(EnvKVS3Endpoint))
	setString(&c.KV.S3.AccessKeyID, getenv(EnvS3AccessKey))
	setString(&c.KV.S3.SecretAccessKey, getenv(EnvS3SecretKey))
	setString(&c.KV.S3.SessionToken, getenv(EnvS3SessionToken))
	if v := strings.TrimSpace(getenv(EnvKVS3PathStyle)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvKVS3PathStyle, err)
		}
		c.KV.S3.PathStyle = b
	}
	if err := setLevel(&c.LogLevel, getenv(EnvLogLevel), EnvLogLevel); err != nil {
		return err
	}
	if err := setDuration(&c.AutoSaveDelay, getenv(EnvAutoSaveDelay), EnvAutoSaveDelay); err != nil {
		return err
	}
	return setDuration(&c.SaveLatency, getenv(EnvSaveLatency), EnvSaveLatency)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v, name string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if d < 0 {
		return fmt.Errorf("%s: negative duration %s", name, v)
	}
	*dst = d
	return nil
}

func setLevel(dst *slog.Level, v, name string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = lvl
	return nil
}

// SessionOptions returns the session options the configuration implies.
func (c Config) SessionOptions() []core.Option {
	return []core.Option{
		core.WithAutoSaveDelay(c.AutoSaveDelay),
		core.WithSaveLatency(c.SaveLatency),
	}
}

// NewLogger returns a text logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}
