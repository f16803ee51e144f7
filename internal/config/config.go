package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Matching  MatchingConfig  `yaml:"matching"`
	Storage   StorageConfig   `yaml:"storage"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Log       LogConfig       `yaml:"log"`
	Web       WebConfig       `yaml:"web"`
}

type DatabaseConfig struct {
	URL          string `yaml:"-"`              // postgres://... or sqlite://path
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

// SQLitePath returns the database file for sqlite:// URLs and false for anything else.
func (c *DatabaseConfig) SQLitePath() (string, bool) {
	path, ok := strings.CutPrefix(c.URL, "sqlite://")
	if !ok {
		return "", false
	}
	return path, true
}

type EmbeddingConfig struct {
	URL            string `yaml:"url"`             // defaults to http://localhost:8000
	TimeoutSeconds int    `yaml:"timeout_seconds"` // defaults to 30
}

type MatchingConfig struct {
	Threshold           float64 `yaml:"threshold"` // max Euclidean distance, lower is stricter
	GalleryIndex        bool    `yaml:"gallery_index"`
	SubmitRatePerMinute int     `yaml:"submit_rate_per_minute"`
}

type StorageConfig struct {
	Backend   string      `yaml:"backend"` // local or minio
	Dir       string      `yaml:"dir"`
	PublicURL string      `yaml:"public_url"`
	MinIO     MinIOConfig `yaml:"minio"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	PublicURL string `yaml:"public_url"` // base URL objects are reachable under, defaults to the endpoint
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"` // host:port or tcp://host:port, empty disables notifications
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"-"`
	Password    string `yaml:"-"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Enabled reports whether match notifications should be published.
func (c *MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a non-negative finite float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return b
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Defaults returns the configuration embedded in defaults.yaml.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

func Load() *Config {
	cfg := Defaults()

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)

	cfg.Embedding.URL = envString("EMBEDDING_URL", cfg.Embedding.URL)
	cfg.Embedding.TimeoutSeconds = envInt("EMBEDDING_TIMEOUT_SECONDS", cfg.Embedding.TimeoutSeconds)

	cfg.Matching.Threshold = envFloat("MATCH_THRESHOLD", cfg.Matching.Threshold)
	cfg.Matching.GalleryIndex = envBool("GALLERY_INDEX", cfg.Matching.GalleryIndex)
	cfg.Matching.SubmitRatePerMinute = envInt("SUBMIT_RATE_PER_MINUTE", cfg.Matching.SubmitRatePerMinute)

	cfg.Storage.Backend = envString("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Dir = envString("STORAGE_DIR", cfg.Storage.Dir)
	cfg.Storage.PublicURL = envString("STORAGE_PUBLIC_URL", cfg.Storage.PublicURL)
	cfg.Storage.MinIO.Endpoint = envString("MINIO_ENDPOINT", cfg.Storage.MinIO.Endpoint)
	cfg.Storage.MinIO.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
	cfg.Storage.MinIO.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	cfg.Storage.MinIO.Bucket = envString("MINIO_BUCKET", cfg.Storage.MinIO.Bucket)
	cfg.Storage.MinIO.UseSSL = envBool("MINIO_USE_SSL", cfg.Storage.MinIO.UseSSL)
	cfg.Storage.MinIO.PublicURL = envString("MINIO_PUBLIC_URL", cfg.Storage.MinIO.PublicURL)

	cfg.MQTT.Broker = envString("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = envString("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.Username = os.Getenv("MQTT_USERNAME")
	cfg.MQTT.Password = os.Getenv("MQTT_PASSWORD")
	cfg.MQTT.TopicPrefix = envString("MQTT_TOPIC_PREFIX", cfg.MQTT.TopicPrefix)

	cfg.Log.Level = envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envString("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = envString("LOG_FILE", cfg.Log.File)

	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)
	cfg.Web.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS", cfg.Web.AllowedOrigins)

	return cfg
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Embedding.URL == "" {
		errs = append(errs, errors.New("EMBEDDING_URL is required"))
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("STORAGE_DIR is required for the local storage backend"))
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required for the minio storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	if math.IsNaN(c.Matching.Threshold) || c.Matching.Threshold < 0 {
		errs = append(errs, fmt.Errorf("MATCH_THRESHOLD must be a non-negative number, got %v", c.Matching.Threshold))
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("WEB_PORT must be between 1 and 65535, got %d", c.Web.Port))
	}
	return errors.Join(errs...)
}
