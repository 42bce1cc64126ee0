package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrTenantRequired is fatal at initialization: the widget must not render.
var ErrTenantRequired = errors.New("property id is required")

// Config aggregates every setting consumed by the widget core and its tools.
type Config struct {
	Widget    WidgetConfig    `yaml:"widget"`
	Storage   StorageConfig   `yaml:"storage"`
	Transport TransportConfig `yaml:"transport"`
	Server    ServerConfig    `yaml:"server"`
	LogLevel  string          `yaml:"log_level"`
}

// WidgetConfig is the externally supplied embed configuration.
type WidgetConfig struct {
	APIURL      string `yaml:"api_url"`
	PropertyID  string `yaml:"property_id"`
	AccentColor string `yaml:"accent_color"`
	Greeting    string `yaml:"greeting"`
	Title       string `yaml:"title"`
	PrivacyURL  string `yaml:"privacy_url"`
}

// StorageConfig selects where the guest identity is persisted.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// Scope namespaces the persisted keys, standing in for the embedding origin.
	Scope string `yaml:"scope"`
}

// TransportConfig tunes the duplex channel and the fallback call.
type TransportConfig struct {
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
}

// ServerConfig describes the listen address of the stub backend.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

const (
	DefaultAPIURL         = "http://localhost:8000"
	DefaultAccentColor    = "#0F172A"
	DefaultGreeting       = "Hi! 👋 Welcome to our hotel. How can I help you today?"
	DefaultTitle          = "Concierge"
	DefaultPrivacyURL     = "#"
	DefaultReconnectDelay = 5 * time.Second
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	transport, err := loadTransportConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Widget:    loadWidgetConfig(),
		Storage:   loadStorageConfig(),
		Transport: transport,
		Server:    server,
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
	}, nil
}

// Default returns the configuration used when nothing is supplied.
// The property id is left empty on purpose; callers must provide it.
func Default() *Config {
	return &Config{
		Widget: WidgetConfig{
			APIURL:      DefaultAPIURL,
			AccentColor: DefaultAccentColor,
			Greeting:    DefaultGreeting,
			Title:       DefaultTitle,
			PrivacyURL:  DefaultPrivacyURL,
		},
		Storage: StorageConfig{Driver: "memory", Scope: "default"},
		Transport: TransportConfig{
			ReconnectDelay: DefaultReconnectDelay,
			PingInterval:   30 * time.Second,
			DialTimeout:    10 * time.Second,
			HTTPTimeout:    30 * time.Second,
		},
		Server:   ServerConfig{Addr: ":8000"},
		LogLevel: "info",
	}
}

// ApplyFile overlays the YAML document at path onto c. Keys absent from
// the file keep their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports configuration problems that must stop initialization.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Widget.PropertyID) == "" {
		return ErrTenantRequired
	}
	if c.Transport.ReconnectDelay <= 0 {
		return fmt.Errorf("invalid reconnect delay %s", c.Transport.ReconnectDelay)
	}
	return nil
}

func loadWidgetConfig() WidgetConfig {
	return WidgetConfig{
		APIURL:      strings.TrimSuffix(getEnvOrDefault("NOCTURN_API_URL", DefaultAPIURL), "/"),
		PropertyID:  strings.TrimSpace(os.Getenv("NOCTURN_PROPERTY_ID")),
		AccentColor: getEnvOrDefault("NOCTURN_COLOR", DefaultAccentColor),
		Greeting:    getEnvOrDefault("NOCTURN_GREETING", DefaultGreeting),
		Title:       getEnvOrDefault("NOCTURN_TITLE", DefaultTitle),
		PrivacyURL:  getEnvOrDefault("NOCTURN_PRIVACY_URL", DefaultPrivacyURL),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Driver: strings.ToLower(getEnvOrDefault("NOCTURN_STORAGE_DRIVER", "file")),
		DSN:    strings.TrimSpace(os.Getenv("NOCTURN_STORAGE_DSN")),
		Scope:  getEnvOrDefault("NOCTURN_STORAGE_SCOPE", "default"),
	}
}

func loadTransportConfig() (TransportConfig, error) {
	reconnect, err := parseDurationEnv("NOCTURN_RECONNECT_DELAY", DefaultReconnectDelay)
	if err != nil {
		return TransportConfig{}, err
	}

	ping, err := parseDurationEnv("NOCTURN_PING_INTERVAL", 30*time.Second)
	if err != nil {
		return TransportConfig{}, err
	}

	dial, err := parseDurationEnv("NOCTURN_DIAL_TIMEOUT", 10*time.Second)
	if err != nil {
		return TransportConfig{}, err
	}

	httpTimeout, err := parseDurationEnv("NOCTURN_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return TransportConfig{}, err
	}

	return TransportConfig{
		ReconnectDelay: reconnect,
		PingInterval:   ping,
		DialTimeout:    dial,
		HTTPTimeout:    httpTimeout,
	}, nil
}

// loadServerConfig parses the stub listen address.
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// Accept ":8000" or "127.0.0.1:8000" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseDurationEnv accepts Go duration strings ("5s") or bare milliseconds.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
