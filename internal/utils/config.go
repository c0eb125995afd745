package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/benmeehan/location-tracker/internal/constants"
	"github.com/benmeehan/location-tracker/internal/models"
	"github.com/benmeehan/location-tracker/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Geocoding GeocodingConfig `yaml:"geocoding"`

	Services struct {
		MQTTIngest    MQTTIngestConfig    `yaml:"mqtt_ingest"`
		SystemMetrics SystemMetricsConfig `yaml:"system_metrics"`
	} `yaml:"services"`
}

// ServerConfig configures the HTTP ingest and query API.
type ServerConfig struct {
	Host            string        `yaml:"host"`             // Listen address
	Port            int           `yaml:"port"`             // Listen port
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // Maximum duration for reading a request
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // Maximum duration for writing a response
	IdleTimeout     time.Duration `yaml:"idle_timeout"`     // Keep-alive idle timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Grace period for in-flight requests on stop
	AllowedOrigin   string        `yaml:"allowed_origin"`   // CORS Access-Control-Allow-Origin value
}

// StorageConfig selects and configures the snapshot backend.
type StorageConfig struct {
	Backend  string `yaml:"backend"`   // file, redis, sqlite or postgres
	DataFile string `yaml:"data_file"` // Snapshot path for the file backend

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Key      string `yaml:"key"`
	} `yaml:"redis"`

	SQL struct {
		DSN string `yaml:"dsn"` // File path for sqlite, connection URL for postgres
	} `yaml:"sql"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // zerolog level name
	Format string `yaml:"format"` // json or console
}

// GeocodingConfig configures reverse geocoding of device locations.
type GeocodingConfig struct {
	Enabled    bool          `yaml:"enabled"`
	MapsAPIKey string        `yaml:"maps_api_key"` // Google Maps API key
	Timeout    time.Duration `yaml:"timeout"`      // Timeout per lookup
}

// MQTTIngestConfig configures ingestion of location reports over MQTT.
type MQTTIngestConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Broker        string `yaml:"broker"`         // MQTT broker address
	ClientID      string `yaml:"client_id"`      // MQTT client ID prefix
	Username      string `yaml:"username"`       // Optional broker username
	Password      string `yaml:"password"`       // Optional broker password
	CACertificate string `yaml:"ca_certificate"` // Optional path to the broker CA certificate
	LocationTopic string `yaml:"location_topic"` // Topic carrying JSON location reports
	NMEATopic     string `yaml:"nmea_topic"`     // Topic carrying raw NMEA sentences, device id as last segment
	NMEAEnabled   *bool  `yaml:"nmea_enabled"`   // Subscribe to nmea_topic; defaults to true
	QOS           int    `yaml:"qos"`            // MQTT QoS level for subscriptions
	Workers       int    `yaml:"workers"`        // Number of concurrent message processors
}

// SubscribedNMEATopic returns the NMEA topic to subscribe to, or "" when NMEA ingest is off.
func (m MQTTIngestConfig) SubscribedNMEATopic() string {
	if m.NMEAEnabled != nil && !*m.NMEAEnabled {
		return ""
	}
	return m.NMEATopic
}

// SystemMetricsConfig configures periodic host metric sampling.
type SystemMetricsConfig struct {
	Enabled              bool          `yaml:"enabled"`
	Interval             time.Duration `yaml:"interval"` // Interval between samples
	Timeout              time.Duration `yaml:"timeout"`  // Timeout for one collection round
	models.MetricsConfig `yaml:",inline"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

// LoadConfig loads the YAML configuration from the specified file.
// A missing file is not an error: defaults and environment overrides still apply.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config

	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := fileClient.ReadYamlFile(filename, &config); err != nil {
			return nil, err
		}
	}

	config.applyEnv()
	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.AllowedOrigin == "" {
		c.Server.AllowedOrigin = "*"
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = constants.StorageBackendFile
	}
	if c.Storage.DataFile == "" {
		c.Storage.DataFile = constants.DefaultDataFile
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Redis.Key == "" {
		c.Storage.Redis.Key = constants.DefaultRedisKey
	}
	if c.Storage.SQL.DSN == "" && c.Storage.Backend == constants.StorageBackendSQLite {
		c.Storage.SQL.DSN = "data/locations.db"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Geocoding.Timeout == 0 {
		c.Geocoding.Timeout = 10 * time.Second
	}

	mqtt := &c.Services.MQTTIngest
	if mqtt.ClientID == "" {
		mqtt.ClientID = "location-tracker"
	}
	if mqtt.LocationTopic == "" {
		mqtt.LocationTopic = constants.DefaultLocationTopic
	}
	if mqtt.NMEATopic == "" {
		mqtt.NMEATopic = constants.DefaultNMEATopic
	}
	if mqtt.NMEAEnabled == nil {
		enabled := true
		mqtt.NMEAEnabled = &enabled
	}
	if mqtt.Workers <= 0 {
		mqtt.Workers = constants.DefaultIngestWorkers
	}

	metrics := &c.Services.SystemMetrics
	if metrics.Interval == 0 {
		metrics.Interval = 30 * time.Second
	}
	if metrics.Timeout == 0 {
		metrics.Timeout = 5 * time.Second
	}
	if metrics.DiskPath == "" {
		metrics.DiskPath = "."
	}
}

// applyEnv lets deployment environments override the file without editing it.
func (c *Config) applyEnv() {
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil && port > 0 {
		c.Server.Port = port
	}
	c.Storage.DataFile = getEnv("DATA_FILE", c.Storage.DataFile)
	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Redis.Addr = getEnv("REDIS_ADDR", c.Storage.Redis.Addr)
	c.Storage.SQL.DSN = getEnv("DATABASE_URL", c.Storage.SQL.DSN)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)

	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		c.Services.MQTTIngest.Broker = broker
		c.Services.MQTTIngest.Enabled = true
	}
	if key := os.Getenv("MAPS_API_KEY"); key != "" {
		c.Geocoding.MapsAPIKey = key
		c.Geocoding.Enabled = true
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
