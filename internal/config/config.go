package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// PlaceholderAPIKey is the value shipped in sample env files. It is treated as missing.
const PlaceholderAPIKey = "YOUR_REST_API_KEY_HERE"

// ErrInvalidConfig is returned by Validate when the configuration cannot be used to start a run.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the configuration settings for a geocoding run.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Port: The port for the monitoring server, 0 disables it.
// - ProviderType: The type of geocoding provider to use (kakao, google).
// - APIKey: The API key for the geocoding provider.
// - BatchSize: The number of records fetched and committed together.
// - Workers: The number of concurrent provider calls inside a batch.
// - DailyLimit: The maximum number of successful resolutions per run.
// - Database: Configuration settings for the PostgreSQL database.
type Config struct {
	Env            string         // Env is the current environment: local, development, production.
	Port           int            `validate:"gte=0,lte=65535"`             // Port is the monitoring server port.
	ProviderType   string         `validate:"required,oneof=kakao google"` // ProviderType selects the geocoding provider.
	APIKey         string         `validate:"required"`                    // APIKey authenticates against the provider.
	BatchSize      int            `validate:"gt=0"`                        // BatchSize is the number of records per commit.
	Workers        int            `validate:"gt=0"`                        // Workers bounds concurrent provider calls.
	DailyLimit     int            `validate:"gte=0"`                       // DailyLimit caps successful resolutions per run.
	RequestTimeout time.Duration  `validate:"gt=0"`                        // RequestTimeout bounds a single provider call.
	RateLimit      int            `validate:"gte=0"`                       // RateLimit is requests per second, 0 disables pacing.
	MaxAttempts    int            `validate:"gt=0"`                        // MaxAttempts before a record is permanently failed.
	AddrPrefix     string         // AddrPrefix is prepended to addresses for more accurate geocoding.
	PushgatewayURL string         `validate:"omitempty,url"` // PushgatewayURL receives run metrics when set.
	Database       PostgresConfig `validate:"required"`      // Database holds the postgres database configuration.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `validate:"required"` // Host is the database server address.
	Port     string `validate:"required"` // Port is the database server port.
	User     string `validate:"required"` // User is the database user.
	Password string // Password is the database user's password.
	Name     string `validate:"required"` // Name is the name of the database.
}

// Load reads configuration from the environment and an optional dotenv file.
// Environment variables always take precedence over values from the file.
func Load() (*Config, error) {
	vpr := viper.New()
	vpr.AutomaticEnv()

	vpr.SetDefault("storemap_env_file", ".env")
	vpr.SetDefault("storemap_env", "production")
	vpr.SetDefault("storemap_provider_type", "kakao")
	vpr.SetDefault("storemap_batch_size", "5000")
	vpr.SetDefault("storemap_workers", "15")
	vpr.SetDefault("storemap_daily_limit", "100000")
	vpr.SetDefault("storemap_request_timeout", "5s")
	vpr.SetDefault("storemap_rate_limit", "20")
	vpr.SetDefault("storemap_max_attempts", "3")
	vpr.SetDefault("storemap_health_port", "0")
	vpr.SetDefault("postgres_port", "5432")

	if err := readEnvFile(vpr, vpr.GetString("storemap_env_file")); err != nil {
		return nil, err
	}

	batchSize, err := strconv.Atoi(vpr.GetString("storemap_batch_size"))
	if err != nil {
		return nil, errors.New("failed to parse batch size from configuration, must be an integer type")
	}
	workers, err := strconv.Atoi(vpr.GetString("storemap_workers"))
	if err != nil {
		return nil, errors.New("failed to parse workers from configuration, must be an integer type")
	}
	dailyLimit, err := strconv.Atoi(vpr.GetString("storemap_daily_limit"))
	if err != nil {
		return nil, errors.New("failed to parse daily limit from configuration, must be an integer type")
	}
	timeout, err := time.ParseDuration(vpr.GetString("storemap_request_timeout"))
	if err != nil {
		return nil, errors.New("failed to parse request timeout from configuration")
	}
	rateLimit, err := strconv.Atoi(vpr.GetString("storemap_rate_limit"))
	if err != nil {
		return nil, errors.New("failed to parse rate limit from configuration, must be an integer type")
	}
	maxAttempts, err := strconv.Atoi(vpr.GetString("storemap_max_attempts"))
	if err != nil {
		return nil, errors.New("failed to parse max attempts from configuration, must be an integer type")
	}
	healthPort, err := strconv.Atoi(vpr.GetString("storemap_health_port"))
	if err != nil {
		return nil, errors.New("failed to parse port for monitoring server from configuration")
	}

	apiKey := vpr.GetString("storemap_provider_key")
	if apiKey == "" {
		// KAKAO_API_KEY is accepted as a fallback name for the provider key.
		apiKey = vpr.GetString("kakao_api_key")
	}

	return &Config{
		Env:            vpr.GetString("storemap_env"),
		Port:           healthPort,
		ProviderType:   strings.ToLower(vpr.GetString("storemap_provider_type")),
		APIKey:         apiKey,
		BatchSize:      batchSize,
		Workers:        workers,
		DailyLimit:     dailyLimit,
		RequestTimeout: timeout,
		RateLimit:      rateLimit,
		MaxAttempts:    maxAttempts,
		AddrPrefix:     vpr.GetString("storemap_address_prefix"),
		PushgatewayURL: vpr.GetString("storemap_pushgateway_url"),
		Database: PostgresConfig{
			Host:     vpr.GetString("postgres_host"),
			Port:     vpr.GetString("postgres_port"),
			User:     vpr.GetString("postgres_user"),
			Password: vpr.GetString("postgres_password"),
			Name:     vpr.GetString("postgres_db"),
		},
	}, nil
}

// MustLoad loads the configuration and panics if any value cannot be parsed.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

// Validate checks that the configuration is complete enough to start a run.
// A missing or placeholder provider key and a missing connection target are rejected here,
// before any database session or provider request exists.
func (c *Config) Validate() error {
	if c.APIKey == PlaceholderAPIKey {
		return fmt.Errorf("%w: provider API key is a placeholder", ErrInvalidConfig)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// readEnvFile merges a dotenv file into vpr when it exists.
func readEnvFile(vpr *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}

	vpr.SetConfigFile(path)
	vpr.SetConfigType("env")
	if err := vpr.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read env file: %w", err)
	}

	return nil
}
