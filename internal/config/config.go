package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the name of the config file looked up in the config directory.
const FileName = "navscore.cfg.json"

var (
	ErrMissingVehicle = errors.New("no vehicle configured")
	ErrMissingGates   = errors.New("no gates configured")
	ErrMissingMarker  = errors.New("gate is missing a marker")
	ErrUnknownFrame   = errors.New("unknown coordinate frame")
)

// Coordinate frames marker and vehicle positions may arrive in.
const (
	FrameLocal = "local"
	FrameWGS84 = "wgs84"
)

// GateConfig names a gate and the two markers delimiting it.
type GateConfig struct {
	Name        string `json:"name" mapstructure:"name"`
	LeftMarker  string `json:"leftMarker" mapstructure:"leftMarker"`
	RightMarker string `json:"rightMarker" mapstructure:"rightMarker"`
}

// CourseConfig is the course a run is scored against.
type CourseConfig struct {
	Name    string       `json:"name" mapstructure:"name"`
	Vehicle string       `json:"vehicle" mapstructure:"vehicle"`
	Frame   string       `json:"frame" mapstructure:"frame"`
	Gates   []GateConfig `json:"gates" mapstructure:"gates"`
}

// Validate checks that the course can be scored.
func (c CourseConfig) Validate() error {
	if c.Vehicle == "" {
		return ErrMissingVehicle
	}
	if len(c.Gates) == 0 {
		return ErrMissingGates
	}
	for i, g := range c.Gates {
		if g.LeftMarker == "" || g.RightMarker == "" {
			return fmt.Errorf("gate %d (%s): %w", i, g.Name, ErrMissingMarker)
		}
	}
	switch c.Frame {
	case "", FrameLocal, FrameWGS84:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFrame, c.Frame)
	}
	return nil
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds InfluxDB storage backend settings
type InfluxConfig struct {
	Protocol string
	Host     string
	Port     string
	Token    string
	Org      string
	Bucket   string
}

// URL returns the server URL of the InfluxDB instance.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./navlogs")
	viper.SetDefault("statusDir", "")
	viper.SetDefault("laneSize", 10000)

	viper.SetDefault("course.name", "course")
	viper.SetDefault("course.vehicle", "")
	viper.SetDefault("course.frame", FrameLocal)

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.upload", false)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./scores")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "navscore")

	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "navscore")
	viper.SetDefault("influx.bucket", "gates")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "navscore")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetCourseConfig returns the validated course definition.
func GetCourseConfig() (CourseConfig, error) {
	c := CourseConfig{
		Name:    viper.GetString("course.name"),
		Vehicle: viper.GetString("course.vehicle"),
		Frame:   viper.GetString("course.frame"),
	}
	if err := viper.UnmarshalKey("course.gates", &c.Gates); err != nil {
		return c, fmt.Errorf("error reading course gates: %w", err)
	}
	for i := range c.Gates {
		if c.Gates[i].Name == "" {
			c.Gates[i].Name = fmt.Sprintf("gate_%d", i)
		}
	}
	return c, c.Validate()
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}
