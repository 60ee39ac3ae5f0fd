package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "PARKING"

type Config struct {
	Port               string
	LayoutPath         string
	DatabasePath       string
	Environment        string
	LogLevel           string
	ServiceName        string
	OTelEndpoint       string
	MetricsInterval    time.Duration
	ShutdownTimeout    time.Duration
	PersistLayout      bool
	DefaultHistorySize int
}

// SetDefaults registers every key so environment variables bind even when no
// flag or file sets them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("layout", "layout.yaml")
	v.SetDefault("database", "data/tickets.db")
	v.SetDefault("environment", "development")
	v.SetDefault("log-level", "info")
	v.SetDefault("service-name", "parking-facility")
	v.SetDefault("otel-endpoint", "http://localhost:4318")
	v.SetDefault("metrics-interval", 5*time.Second)
	v.SetDefault("shutdown-timeout", 10*time.Second)
	v.SetDefault("persist-layout", true)
	v.SetDefault("history-size", 20)
}

// New returns a viper instance reading PARKING_* variables, e.g.
// PARKING_LOG_LEVEL for the log-level key.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

func Load(v *viper.Viper) *Config {
	return &Config{
		Port:               v.GetString("port"),
		LayoutPath:         v.GetString("layout"),
		DatabasePath:       v.GetString("database"),
		Environment:        v.GetString("environment"),
		LogLevel:           v.GetString("log-level"),
		ServiceName:        v.GetString("service-name"),
		OTelEndpoint:       v.GetString("otel-endpoint"),
		MetricsInterval:    v.GetDuration("metrics-interval"),
		ShutdownTimeout:    v.GetDuration("shutdown-timeout"),
		PersistLayout:      v.GetBool("persist-layout"),
		DefaultHistorySize: v.GetInt("history-size"),
	}
}
