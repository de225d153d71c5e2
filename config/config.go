package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "PRICELENS"

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Import   ImportConfig   `mapstructure:"import"`
	Dump     DumpConfig     `mapstructure:"dump"`
}

// ServerConfig holds ops server configuration
type ServerConfig struct {
	Port           string     `mapstructure:"port"`
	Environment    string     `mapstructure:"environment"`
	AllowedOrigins []string   `mapstructure:"allowed_origins"`
	CORS           CORSConfig `mapstructure:"cors"`
}

// CORSConfig holds the CORS policy of the ops server
type CORSConfig struct {
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json", "text" or "" for per-environment default
}

// UpstreamConfig holds the Open*Facts client configuration
type UpstreamConfig struct {
	Domains           []string      `mapstructure:"domains"`
	Datasets          []string      `mapstructure:"datasets"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ListingTimeout    time.Duration `mapstructure:"listing_timeout"`
	PageSize          int           `mapstructure:"page_size"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
	// NotFoundTTL keeps "not found" answers cached; 0 disables the cache
	NotFoundTTL       time.Duration `mapstructure:"not_found_ttl"`
}

// CatalogConfig holds catalog storage configuration
type CatalogConfig struct {
	Type         string        `mapstructure:"type"` // "memory", "postgres" or "sqlite"
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	ConnTimeout  time.Duration `mapstructure:"conn_timeout"`
	ConnRetries  int           `mapstructure:"conn_retries"`
	AutoMigrate  bool          `mapstructure:"auto_migrate"`
}

// ImportConfig holds import orchestration configuration
type ImportConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	Workers         int           `mapstructure:"workers"`
	FinalSweep      bool          `mapstructure:"final_sweep"`
	MergePolicy     string        `mapstructure:"merge_policy"`
	PrimaryLog      string        `mapstructure:"primary_log"`
	RetryLog        string        `mapstructure:"retry_log"`
	Languages       []string      `mapstructure:"languages"`
	PrimaryLanguage string        `mapstructure:"primary_language"`
	BrandSimilarity float64       `mapstructure:"brand_similarity"`
	ProgressEvery   int           `mapstructure:"progress_every"`
}

// DumpConfig holds bulk dump import configuration
type DumpConfig struct {
	CountryTags  []string `mapstructure:"country_tags"`
	CountryNames []string `mapstructure:"country_names"`
	Limit        int      `mapstructure:"limit"`
}

// Load loads configuration from environment variables and config files.
// An explicit file path replaces the default search locations.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	if len(paths) > 0 && paths[0] != "" {
		v.SetConfigFile(paths[0])
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/pricelens/")
	}

	// PRICELENS_IMPORT_MAX_ATTEMPTS -> import.max_attempts
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadEnvFile loads variables from .env files into the process environment.
// Variables already set are kept. Missing files are not an error.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("server.cors.allowed_headers", []string{"Content-Type", "X-Requested-With"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.cors.max_age", "1h")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")

	// Upstream defaults
	v.SetDefault("upstream.domains", []string{
		"world.openfoodfacts.org",
		"world.openbeautyfacts.org",
		"world.openpetfoodfacts.org",
		"world.openproductfacts.org",
	})
	v.SetDefault("upstream.datasets", []string{
		"https://world.openfoodfacts.org",
		"https://world.openbeautyfacts.org",
		"https://world.openpetfoodfacts.org",
	})
	v.SetDefault("upstream.timeout", "5s")
	v.SetDefault("upstream.listing_timeout", "60s")
	v.SetDefault("upstream.page_size", 1000)
	v.SetDefault("upstream.user_agent", "PriceLens-Catalog/1.0")
	v.SetDefault("upstream.requests_per_minute", 100)
	v.SetDefault("upstream.burst", 10)
	v.SetDefault("upstream.not_found_ttl", "15m")

	// Catalog defaults
	v.SetDefault("catalog.type", "sqlite")
	v.SetDefault("catalog.dsn", "pricelens.db")
	v.SetDefault("catalog.max_open_conns", 10)
	v.SetDefault("catalog.conn_timeout", "10s")
	v.SetDefault("catalog.conn_retries", 3)
	v.SetDefault("catalog.auto_migrate", true)

	// Import defaults
	v.SetDefault("import.max_attempts", 3)
	v.SetDefault("import.retry_delay", "2s")
	v.SetDefault("import.workers", 1)
	v.SetDefault("import.final_sweep", true)
	v.SetDefault("import.merge_policy", "overwrite")
	v.SetDefault("import.primary_log", "import_log.csv")
	v.SetDefault("import.retry_log", "import_retry_final.csv")
	v.SetDefault("import.languages", []string{"it", "en", "fr"})
	v.SetDefault("import.primary_language", "it")
	v.SetDefault("import.brand_similarity", 0.8)
	v.SetDefault("import.progress_every", 1000)

	// Dump defaults
	v.SetDefault("dump.country_tags", []string{"en:italy", "it:italia"})
	v.SetDefault("dump.country_names", []string{"italia", "italy"})
	v.SetDefault("dump.limit", 0)
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Catalog.Type {
	case "memory":
	case "postgres", "sqlite":
		if config.Catalog.DSN == "" {
			return fmt.Errorf("catalog DSN is required when catalog type is '%s' (set %s_CATALOG_DSN)", config.Catalog.Type, EnvPrefix)
		}
	default:
		return fmt.Errorf("catalog type must be 'memory', 'postgres' or 'sqlite', got: %s", config.Catalog.Type)
	}

	if config.Import.MergePolicy != "overwrite" && config.Import.MergePolicy != "fill_null" {
		return fmt.Errorf("merge policy must be 'overwrite' or 'fill_null', got: %s", config.Import.MergePolicy)
	}

	if config.Import.MaxAttempts < 1 {
		return fmt.Errorf("import max_attempts must be at least 1, got: %d", config.Import.MaxAttempts)
	}

	if config.Import.Workers < 1 {
		return fmt.Errorf("import workers must be at least 1, got: %d", config.Import.Workers)
	}

	if config.Import.BrandSimilarity <= 0 || config.Import.BrandSimilarity > 1 {
		return fmt.Errorf("brand similarity must be in (0, 1], got: %v", config.Import.BrandSimilarity)
	}

	if len(config.Upstream.Domains) == 0 {
		return errors.New("at least one upstream domain is required")
	}

	if config.Dump.Limit < 0 {
		return fmt.Errorf("dump limit must not be negative, got: %d", config.Dump.Limit)
	}

	return nil
}
