package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Matching.EmbeddingDim != 128 {
		t.Errorf("expected embedding dim 128, got %d", cfg.Matching.EmbeddingDim)
	}
	if cfg.Matching.VerifyThreshold != 0.95 {
		t.Errorf("expected verify threshold 0.95, got %v", cfg.Matching.VerifyThreshold)
	}
	if cfg.Matching.CompareThreshold != 0.8 {
		t.Errorf("expected compare threshold 0.8, got %v", cfg.Matching.CompareThreshold)
	}
	if cfg.Matching.Policy != PolicyFirst {
		t.Errorf("expected first-match policy, got %q", cfg.Matching.Policy)
	}
	if cfg.Database.QueryTimeout != 5*time.Second {
		t.Errorf("expected 5s query timeout, got %v", cfg.Database.QueryTimeout)
	}
	if cfg.Geofence.Enabled {
		t.Error("expected geofence to be disabled by default")
	}
	if cfg.Geofence.RadiusMeters != 15 {
		t.Errorf("expected 15m radius, got %v", cfg.Geofence.RadiusMeters)
	}
	if cfg.Matching.ComparisonTTL != 10*time.Minute {
		t.Errorf("expected 10m comparison TTL, got %v", cfg.Matching.ComparisonTTL)
	}
	if cfg.Matching.CacheTTL != 0 {
		t.Errorf("expected enrollment cache disabled by default, got %v", cfg.Matching.CacheTTL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/faces?sslmode=disable")
	t.Setenv("DATABASE_QUERY_TIMEOUT", "2s")
	t.Setenv("MATCH_VERIFY_THRESHOLD", "0.9")
	t.Setenv("MATCH_POLICY", "BEST")
	t.Setenv("MATCH_EMBEDDING_DIM", "512")
	t.Setenv("GEOFENCE_ENABLED", "true")
	t.Setenv("GEOFENCE_RADIUS_METERS", "50")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://gate.example.com, ,https://kiosk.example.com")

	cfg := Load()

	if cfg.Database.QueryTimeout != 2*time.Second {
		t.Errorf("expected 2s, got %v", cfg.Database.QueryTimeout)
	}
	if cfg.Matching.VerifyThreshold != 0.9 {
		t.Errorf("expected 0.9, got %v", cfg.Matching.VerifyThreshold)
	}
	if cfg.Matching.Policy != PolicyBest {
		t.Errorf("expected best policy, got %q", cfg.Matching.Policy)
	}
	if cfg.Matching.EmbeddingDim != 512 {
		t.Errorf("expected 512, got %d", cfg.Matching.EmbeddingDim)
	}
	if !cfg.Geofence.Enabled || cfg.Geofence.RadiusMeters != 50 {
		t.Errorf("unexpected geofence config %+v", cfg.Geofence)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "https://kiosk.example.com" {
		t.Errorf("unexpected allowed origins %v", cfg.Web.AllowedOrigins)
	}
	if cfg.Database.ResolveDriver() != DriverPostgres {
		t.Errorf("expected postgres driver, got %q", cfg.Database.ResolveDriver())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "-3")
	t.Setenv("DATABASE_QUERY_TIMEOUT", "soon")
	t.Setenv("GEOFENCE_ENABLED", "maybe")

	cfg := Load()

	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default 25, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.QueryTimeout != 5*time.Second {
		t.Errorf("expected default 5s, got %v", cfg.Database.QueryTimeout)
	}
	if cfg.Geofence.Enabled {
		t.Error("expected default disabled geofence")
	}
}

func TestResolveDriver(t *testing.T) {
	tests := []struct {
		name   string
		cfg    DatabaseConfig
		expect string
	}{
		{"postgres url", DatabaseConfig{URL: "postgres://localhost/db"}, DriverPostgres},
		{"postgresql url", DatabaseConfig{URL: "postgresql://localhost/db"}, DriverPostgres},
		{"mysql dsn", DatabaseConfig{URL: "root:root@tcp(localhost:3306)/faces"}, DriverMySQL},
		{"sqlite file", DatabaseConfig{URL: "faces.db"}, DriverSQLite},
		{"sqlite uri", DatabaseConfig{URL: "file:faces?mode=memory"}, DriverSQLite},
		{"explicit driver wins", DatabaseConfig{Driver: "SQLite", URL: "postgres://x"}, DriverSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ResolveDriver(); got != tt.expect {
				t.Errorf("ResolveDriver() = %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL is required") {
		t.Fatalf("expected missing URL error, got %v", err)
	}

	cfg.Database.URL = "faces.db"
	cfg.Matching.VerifyThreshold = 1.5
	cfg.Matching.Policy = "random"
	cfg.Geofence.RadiusMeters = -1

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"verify threshold", "unknown matching policy", "geofence radius"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestValidate_Thresholds(t *testing.T) {
	tests := []struct {
		name    string
		verify  float64
		compare float64
		wantErr string
	}{
		{"defaults", 0.95, 0.8, ""},
		{"negative allowed", -0.5, 0.1, ""},
		{"zero verify", 0, 0.8, "verify threshold must not be 0"},
		{"zero compare", 0.95, 0, "compare threshold must not be 0"},
		{"above one", 0.95, 1.01, "compare threshold 1.01 outside [-1, 1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Database.URL = "faces.db"
			cfg.Matching.VerifyThreshold = tt.verify
			cfg.Matching.CompareThreshold = tt.compare

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_ZeroThresholdFromEnvIsRejected(t *testing.T) {
	t.Setenv("DATABASE_URL", "faces.db")
	t.Setenv("MATCH_VERIFY_THRESHOLD", "0")

	cfg := Load()
	if cfg.Matching.VerifyThreshold != 0 {
		t.Fatalf("expected threshold 0 from env, got %v", cfg.Matching.VerifyThreshold)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected zero verify threshold to be rejected")
	}
}

func TestValidate_NegativeCacheTTL(t *testing.T) {
	cfg := Defaults()
	cfg.Database.URL = "faces.db"
	cfg.Matching.CacheTTL = -time.Second

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "cache TTL") {
		t.Fatalf("expected cache TTL error, got %v", err)
	}
}
