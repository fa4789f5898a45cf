package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/example/bikerides/internal/models"
)

// Storage backends for the directory snapshot.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Defaults let the binary run locally with nothing but a writable ./data.
type ServerConfig struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:"127.0.0.1:8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"file"`
	DataDir        string `envconfig:"DATA_DIR" default:"./data"`
	SnapshotKey    string `envconfig:"SNAPSHOT_KEY" default:"bikerides.mvp.v1"`
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	PGDSN          string `envconfig:"PG_DSN"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"ride-activity"`

	GeocoderEndpoint string        `envconfig:"GEOCODER_ENDPOINT" default:"https://api.maptiler.com"`
	GeocoderKey      string        `envconfig:"GEOCODER_KEY"`
	GeocoderLanguage string        `envconfig:"GEOCODER_LANGUAGE" default:"it"`
	GeocoderLimit    int           `envconfig:"GEOCODER_LIMIT" default:"5"`
	SearchDebounce   time.Duration `envconfig:"SEARCH_DEBOUNCE" default:"300ms"`
	GeocodeCacheTTL  time.Duration `envconfig:"GEOCODE_CACHE_TTL" default:"10m"`

	LocatorEndpoint string        `envconfig:"LOCATOR_ENDPOINT"`
	LocatorTimeout  time.Duration `envconfig:"LOCATOR_TIMEOUT" default:"5s"`

	DefaultLat float64 `envconfig:"DEFAULT_LAT" default:"45.4642"`
	DefaultLng float64 `envconfig:"DEFAULT_LNG" default:"9.19"`

	UserID   string `envconfig:"USER_ID" default:"u_demo"`
	UserName string `envconfig:"USER_NAME" default:"Ciclista Demo"`

	SeedFile      string `envconfig:"SEED_FILE"`
	StrictNumbers bool   `envconfig:"STRICT_NUMBERS" default:"false"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

func (c ServerConfig) DefaultCenter() models.Coordinate {
	return models.Coordinate{Lat: c.DefaultLat, Lng: c.DefaultLng}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg, err := ReadServerConfig()
	if err != nil {
		return cfg, err
	}
	cfg.Normalize()
	return cfg, cfg.Validate()
}

// ReadServerConfig loads the environment without validating, so command
// line flags can still override values before Validate runs.
func ReadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("load server config: %w", err)
	}
	return cfg, nil
}

// Normalize canonicalizes case and whitespace of enumerated settings.
func (c *ServerConfig) Normalize() {
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.KafkaBrokers = trimAll(c.KafkaBrokers)
}

// Validate reports every invalid setting at once.
func (c ServerConfig) Validate() error {
	var errs []error
	switch c.StorageBackend {
	case BackendFile:
		if c.DataDir == "" {
			errs = append(errs, errors.New("DATA_DIR is required for the file backend"))
		}
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
		}
	case BackendPostgres:
		if c.PGDSN == "" {
			errs = append(errs, errors.New("PG_DSN is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	if c.SnapshotKey == "" {
		errs = append(errs, errors.New("SNAPSHOT_KEY must not be empty"))
	}
	if c.SearchDebounce < 0 {
		errs = append(errs, errors.New("SEARCH_DEBOUNCE must be >= 0"))
	}
	if c.GeocodeCacheTTL < 0 {
		errs = append(errs, errors.New("GEOCODE_CACHE_TTL must be >= 0"))
	}
	if c.LocatorTimeout <= 0 {
		errs = append(errs, errors.New("LOCATOR_TIMEOUT must be > 0"))
	}
	if c.GeocoderLimit <= 0 {
		errs = append(errs, errors.New("GEOCODER_LIMIT must be > 0"))
	}
	if math.Abs(c.DefaultLat) > 90 || math.Abs(c.DefaultLng) > 180 {
		errs = append(errs, fmt.Errorf("default center (%v, %v) is out of range", c.DefaultLat, c.DefaultLng))
	}
	if strings.TrimSpace(c.UserID) == "" {
		errs = append(errs, errors.New("USER_ID must not be empty"))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ConsumerConfig configures the ride activity consumer.
type ConsumerConfig struct {
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"ride-activity"`
	KafkaGroup   string   `envconfig:"KAFKA_GROUP" default:"bikerides-consumer"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisGeoKey   string `envconfig:"REDIS_GEO_KEY" default:"rides_geo"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":2112"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	var cfg ConsumerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("load consumer config: %w", err)
	}
	cfg.KafkaBrokers = trimAll(cfg.KafkaBrokers)
	var errs []error
	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS must list at least one broker"))
	}
	if cfg.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC must not be empty"))
	}
	return cfg, errors.Join(errs...)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
