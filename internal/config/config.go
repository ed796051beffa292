package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream APIs.
	CountriesBaseURL  string
	WeatherBaseURL    string
	IconBaseURL       string
	OpenWeatherAPIKey string
	HTTPClientTimeout time.Duration
	IconCacheSize     int

	// Lookup behaviour.
	SettleDelay time.Duration
	SessionTTL  time.Duration

	// Optional lookup event sink.
	LookupEventsEnabled bool
	KafkaBrokers        []string
	KafkaLookupTopic    string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	clientTimeout, err := parsePositiveDuration("HTTP_CLIENT_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	settleDelay, err := parsePositiveDuration("SETTLE_DELAY", "1s")
	if err != nil {
		return nil, err
	}

	sessionTTL, err := parsePositiveDuration("SESSION_TTL", "30m")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CountriesBaseURL:  sharedcfg.EnvOrDefault("COUNTRIES_BASE_URL", "https://restcountries.com/v3.1"),
		WeatherBaseURL:    sharedcfg.EnvOrDefault("WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
		IconBaseURL:       sharedcfg.EnvOrDefault("ICON_BASE_URL", "https://openweathermap.org/img/wn"),
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		HTTPClientTimeout: clientTimeout,
		IconCacheSize:     parseIconCacheSize(),

		SettleDelay: settleDelay,
		SessionTTL:  sessionTTL,

		LookupEventsEnabled: os.Getenv("LOOKUP_EVENTS_ENABLED") == "true",
		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaLookupTopic:    sharedcfg.EnvOrDefault("KAFKA_LOOKUP_TOPIC", "country-lookups"),
	}

	if cfg.CountriesBaseURL == "" {
		return nil, errors.New("COUNTRIES_BASE_URL is required")
	}
	if cfg.LookupEventsEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("LOOKUP_EVENTS_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.LookupEventsEnabled && cfg.KafkaLookupTopic == "" {
		return nil, errors.New("LOOKUP_EVENTS_ENABLED is true but KAFKA_LOOKUP_TOPIC is empty")
	}

	return cfg, nil
}

// WeatherEnabled reports whether an OpenWeatherMap key is configured.
func (c *Config) WeatherEnabled() bool {
	return c.OpenWeatherAPIKey != ""
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseIconCacheSize() int {
	if s := os.Getenv("ICON_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 64
}
