package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/i474232898/city-weather/internal/common"
	"github.com/i474232898/city-weather/internal/weather"
)

// AppConfig holds process configuration. Values come from the environment,
// optionally seeded from a .env file.
type AppConfig struct {
	// Upstream weather API.
	APIKey     string `envconfig:"OPENWEATHER_API_KEY" validate:"required"`
	BaseURL    string `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org" validate:"required,url"`
	TimeoutMS  int    `envconfig:"WEATHER_TIMEOUT_MS" default:"15000" validate:"min=1"`
	Units      string `envconfig:"WEATHER_UNITS" default:"metric" validate:"oneof=metric imperial"`
	MaxRetries int    `envconfig:"WEATHER_MAX_RETRIES" default:"0" validate:"min=0,max=10"`

	// Geocoding.
	GeocoderProvider string `envconfig:"GEOCODER_PROVIDER" default:"openweather" validate:"oneof=openweather google"`
	GoogleAPIKey     string `envconfig:"GOOGLE_GEOCODING_API_KEY" validate:"required_if=GeocoderProvider google"`

	// Defaults that used to be hard-coded in the app.
	DefaultCity      string `envconfig:"DEFAULT_CITY" default:"Colombo"`
	DefaultFavorites string `envconfig:"DEFAULT_FAVORITES" default:"London,New York,Tokyo"`
	MaxFavorites     int    `envconfig:"MAX_FAVORITES" default:"100" validate:"min=0"`

	// MaxCities bounds how many cities keep cached weather in memory.
	MaxCities int `envconfig:"MAX_CITIES" default:"256" validate:"min=1"`

	// RefreshInterval controls how often favorites are refreshed.
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"15m" validate:"min=1m"`

	// Sequential fetches summary then detail instead of both at once.
	SequentialFetch bool `envconfig:"SEQUENTIAL_FETCH" default:"false"`

	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults. A
// missing .env file is not an error.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv decodes and validates the current environment.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Timeout is the per-request HTTP timeout.
func (c *AppConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Favorites returns the seeded favorite city names.
func (c *AppConfig) Favorites() []string {
	return common.SplitList(c.DefaultFavorites)
}

// ClientConfig maps the upstream settings onto weather.ClientConfig.
func (c *AppConfig) ClientConfig() weather.ClientConfig {
	backoff := weather.DefaultBackoff()
	backoff.MaxRetries = c.MaxRetries
	return weather.ClientConfig{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Units:   weather.Units(c.Units),
		Timeout: c.Timeout(),
		Backoff: backoff,
	}
}

// LogValue implements slog.LogValuer so secrets never reach the logs.
func (c *AppConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base_url", c.BaseURL),
		slog.Int("timeout_ms", c.TimeoutMS),
		slog.String("units", c.Units),
		slog.Int("max_retries", c.MaxRetries),
		slog.String("geocoder", c.GeocoderProvider),
		slog.String("default_city", c.DefaultCity),
		slog.Any("default_favorites", c.Favorites()),
		slog.Int("max_cities", c.MaxCities),
		slog.Duration("refresh_interval", c.RefreshInterval),
		slog.String("port", c.Port),
		slog.Bool("api_key_set", c.APIKey != ""),
	)
}
