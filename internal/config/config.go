package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Matching policies.
const (
	PolicyFirst = "first"
	PolicyBest  = "best"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Matching  MatchingConfig  `yaml:"matching"`
	Geofence  GeofenceConfig  `yaml:"geofence"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Web       WebConfig       `yaml:"web"`
	Log       LogConfig       `yaml:"log"`
}

type DatabaseConfig struct {
	Driver        string        `yaml:"driver"`         // postgres, mysql or sqlite; inferred from URL when empty
	URL           string        `yaml:"-"`              // connection URL or DSN
	MaxOpenConns  int           `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns  int           `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
	QueryTimeout  time.Duration `yaml:"query_timeout"`  // Upper bound for every store call (default 5s)
	HNSWIndexPath string        `yaml:"-"`              // Path to persist the enrollment HNSW index (optional)
}

type MatchingConfig struct {
	EmbeddingDim     int     `yaml:"embedding_dim"`
	VerifyThreshold  float64 `yaml:"verify_threshold"`
	CompareThreshold float64 `yaml:"compare_threshold"`
	Policy           string  `yaml:"policy"`
	// CacheTTL enables the in-process enrollment cache. Only writes made through
	// this process invalidate it, so enable it only when serve is the single
	// writer; enrollments from the CLI or another replica stay invisible for
	// up to one TTL. 0 disables it.
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	ComparisonTTL    time.Duration `yaml:"comparison_ttl"` // lifetime of comparison tokens
	ComparisonSecret string        `yaml:"-"`
}

type GeofenceConfig struct {
	Enabled      bool    `yaml:"enabled"`
	RadiusMeters float64 `yaml:"radius_meters"`
}

type ExtractorConfig struct {
	URL          string        `yaml:"url"`
	MaxImageSize int           `yaml:"max_image_size"` // longest side in pixels before upload
	Timeout      time.Duration `yaml:"timeout"`
}

type WebConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"` // CORS whitelist; localhost is always allowed
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
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

// envFloat reads an environment variable as a float64.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a bool (1/0, true/false, yes/no).
func envBool(key string, defaultVal bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultVal
	}
}

// envDuration reads an environment variable as a time.Duration ("5s", "10m").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
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

// Load returns the embedded defaults overridden by environment variables.
func Load() *Config {
	cfg := Defaults()

	cfg.Database = DatabaseConfig{
		Driver:        envString("DATABASE_DRIVER", cfg.Database.Driver),
		URL:           os.Getenv("DATABASE_URL"),
		MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns),
		MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns),
		QueryTimeout:  envDuration("DATABASE_QUERY_TIMEOUT", cfg.Database.QueryTimeout),
		HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
	}
	cfg.Matching = MatchingConfig{
		EmbeddingDim:     envInt("MATCH_EMBEDDING_DIM", cfg.Matching.EmbeddingDim),
		VerifyThreshold:  envFloat("MATCH_VERIFY_THRESHOLD", cfg.Matching.VerifyThreshold),
		CompareThreshold: envFloat("MATCH_COMPARE_THRESHOLD", cfg.Matching.CompareThreshold),
		Policy:           strings.ToLower(envString("MATCH_POLICY", cfg.Matching.Policy)),
		CacheTTL:         envDuration("MATCH_CACHE_TTL", cfg.Matching.CacheTTL),
		ComparisonTTL:    envDuration("MATCH_COMPARISON_TTL", cfg.Matching.ComparisonTTL),
		ComparisonSecret: os.Getenv("MATCH_COMPARISON_SECRET"),
	}
	cfg.Geofence = GeofenceConfig{
		Enabled:      envBool("GEOFENCE_ENABLED", cfg.Geofence.Enabled),
		RadiusMeters: envFloat("GEOFENCE_RADIUS_METERS", cfg.Geofence.RadiusMeters),
	}
	cfg.Extractor = ExtractorConfig{
		URL:          envString("EXTRACTOR_URL", cfg.Extractor.URL),
		MaxImageSize: envInt("EXTRACTOR_MAX_IMAGE_SIZE", cfg.Extractor.MaxImageSize),
		Timeout:      envDuration("EXTRACTOR_TIMEOUT", cfg.Extractor.Timeout),
	}
	cfg.Web = WebConfig{
		Host:           envString("WEB_HOST", cfg.Web.Host),
		Port:           envInt("WEB_PORT", cfg.Web.Port),
		RequestTimeout: envDuration("WEB_REQUEST_TIMEOUT", cfg.Web.RequestTimeout),
		AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", cfg.Web.AllowedOrigins),
	}
	cfg.Log = LogConfig{
		Level:  envString("LOG_LEVEL", cfg.Log.Level),
		Format: envString("LOG_FORMAT", cfg.Log.Format),
	}

	return cfg
}

// ResolveDriver returns the configured driver or infers it from the URL scheme.
func (c *DatabaseConfig) ResolveDriver() string {
	if c.Driver != "" {
		return strings.ToLower(c.Driver)
	}
	switch {
	case strings.HasPrefix(c.URL, "postgres://"), strings.HasPrefix(c.URL, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(c.URL, "file:"), strings.HasSuffix(c.URL, ".db"),
		strings.HasSuffix(c.URL, ".sqlite"), c.URL == ":memory:":
		return DriverSQLite
	default:
		return DriverMySQL
	}
}

// Validate rejects settings the engine cannot work with.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	switch c.Database.ResolveDriver() {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.QueryTimeout <= 0 {
		errs = append(errs, errors.New("database query timeout must be positive"))
	}
	if c.Matching.EmbeddingDim <= 0 {
		errs = append(errs, errors.New("embedding dimension must be positive"))
	}
	for name, v := range map[string]float64{
		"verify threshold":  c.Matching.VerifyThreshold,
		"compare threshold": c.Matching.CompareThreshold,
	} {
		switch {
		case v == 0:
			// The engine reads 0 as "use the built-in default".
			errs = append(errs, fmt.Errorf("%s must not be 0", name))
		case v < -1 || v > 1:
			errs = append(errs, fmt.Errorf("%s %v outside [-1, 1]", name, v))
		}
	}
	if c.Matching.CacheTTL < 0 {
		errs = append(errs, errors.New("cache TTL must not be negative"))
	}
	if c.Matching.Policy != PolicyFirst && c.Matching.Policy != PolicyBest {
		errs = append(errs, fmt.Errorf("unknown matching policy %q", c.Matching.Policy))
	}
	if c.Geofence.RadiusMeters < 0 {
		errs = append(errs, errors.New("geofence radius must not be negative"))
	}

	return errors.Join(errs...)
}
