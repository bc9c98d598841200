package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chdirTemp moves the test into an empty directory so no stray config.yaml
// or .env is picked up
func chdirTemp(t *testing.T) string {
	t.Helper()
	originalDir, _ := os.Getwd()
	tempDir := t.TempDir()
	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	t.Cleanup(func() { os.Chdir(originalDir) })
	return tempDir
}

func TestLoad(t *testing.T) {
	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		chdirTemp(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		// Check defaults
		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "chrome-extension://*" {
			t.Errorf("Server.AllowedOrigins = %v, want [chrome-extension://*]", cfg.Server.AllowedOrigins)
		}
		if cfg.OpenFoodFacts.BaseURL != "https://world.openfoodfacts.net" {
			t.Errorf("OpenFoodFacts.BaseURL = %s, want https://world.openfoodfacts.net", cfg.OpenFoodFacts.BaseURL)
		}
		if cfg.Cache.Type != "memory" {
			t.Errorf("Cache.Type = %s, want memory", cfg.Cache.Type)
		}
		if cfg.Cache.TTL != 24*time.Hour {
			t.Errorf("Cache.TTL = %v, want 24h", cfg.Cache.TTL)
		}
		if cfg.Detection.NavigationDelay != 1500*time.Millisecond {
			t.Errorf("Detection.NavigationDelay = %v, want 1.5s", cfg.Detection.NavigationDelay)
		}
		if cfg.Detection.DebounceDelay != 500*time.Millisecond {
			t.Errorf("Detection.DebounceDelay = %v, want 500ms", cfg.Detection.DebounceDelay)
		}
		if cfg.Detection.RetryDelay != 2*time.Second {
			t.Errorf("Detection.RetryDelay = %v, want 2s", cfg.Detection.RetryDelay)
		}
		if cfg.Detection.MaxRetries != 5 {
			t.Errorf("Detection.MaxRetries = %d, want 5", cfg.Detection.MaxRetries)
		}
		if !cfg.Detection.AutoPopup {
			t.Error("Detection.AutoPopup = false, want true")
		}
		if cfg.Matching.CategoryThreshold != 0.8 || cfg.Matching.DescriptionThreshold != 0.7 {
			t.Errorf("Matching thresholds = %v/%v, want 0.8/0.7",
				cfg.Matching.CategoryThreshold, cfg.Matching.DescriptionThreshold)
		}
		if cfg.RateLimit.PerIP != 100 {
			t.Errorf("RateLimit.PerIP = %d, want 100", cfg.RateLimit.PerIP)
		}
		if cfg.Log.Level != "info" {
			t.Errorf("Log.Level = %s, want info", cfg.Log.Level)
		}
		if cfg.FileUsed() != "" {
			t.Errorf("FileUsed() = %q, want empty", cfg.FileUsed())
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("ECOLENS_SERVER_PORT", "9090")
		t.Setenv("ECOLENS_SERVER_ENVIRONMENT", "production")
		t.Setenv("ECOLENS_OPENFOODFACTS_BASE_URL", "https://custom.api.com")
		t.Setenv("ECOLENS_CACHE_TYPE", "redis")
		t.Setenv("ECOLENS_CACHE_REDIS_URL", "redis://localhost:6379/2")
		t.Setenv("ECOLENS_CACHE_TTL", "1h")
		t.Setenv("ECOLENS_DETECTION_AUTO_POPUP", "false")
		t.Setenv("ECOLENS_DETECTION_RETRY_DELAY", "3s")
		t.Setenv("ECOLENS_RATELIMIT_PER_IP", "200")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
		if cfg.OpenFoodFacts.BaseURL != "https://custom.api.com" {
			t.Errorf("OpenFoodFacts.BaseURL = %s, want https://custom.api.com", cfg.OpenFoodFacts.BaseURL)
		}
		if cfg.Cache.Type != "redis" {
			t.Errorf("Cache.Type = %s, want redis", cfg.Cache.Type)
		}
		if cfg.Cache.RedisURL != "redis://localhost:6379/2" {
			t.Errorf("Cache.RedisURL = %s, want redis://localhost:6379/2", cfg.Cache.RedisURL)
		}
		if cfg.Cache.TTL != time.Hour {
			t.Errorf("Cache.TTL = %v, want 1h", cfg.Cache.TTL)
		}
		if cfg.Detection.AutoPopup {
			t.Error("Detection.AutoPopup = true, want false")
		}
		if cfg.Detection.RetryDelay != 3*time.Second {
			t.Errorf("Detection.RetryDelay = %v, want 3s", cfg.Detection.RetryDelay)
		}
		if cfg.RateLimit.PerIP != 200 {
			t.Errorf("RateLimit.PerIP = %d, want 200", cfg.RateLimit.PerIP)
		}
	})

	t.Run("reads a config file", func(t *testing.T) {
		dir := chdirTemp(t)
		content := `
server:
  port: "7070"
detection:
  slow_render_hosts: ["amazon.", "walmart."]
  max_retries: 3
matching:
  category_threshold: 0.9
`
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create config file: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "7070" {
			t.Errorf("Server.Port = %s, want 7070", cfg.Server.Port)
		}
		if strings.Join(cfg.Detection.SlowRenderHosts, ",") != "amazon.,walmart." {
			t.Errorf("Detection.SlowRenderHosts = %v, want [amazon. walmart.]", cfg.Detection.SlowRenderHosts)
		}
		if cfg.Detection.MaxRetries != 3 {
			t.Errorf("Detection.MaxRetries = %d, want 3", cfg.Detection.MaxRetries)
		}
		if cfg.Matching.CategoryThreshold != 0.9 {
			t.Errorf("Matching.CategoryThreshold = %v, want 0.9", cfg.Matching.CategoryThreshold)
		}
		if !strings.HasSuffix(cfg.FileUsed(), "config.yaml") {
			t.Errorf("FileUsed() = %q, want config.yaml", cfg.FileUsed())
		}
	})

	t.Run("fails when an explicit config file is missing", func(t *testing.T) {
		dir := chdirTemp(t)

		if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
			t.Error("LoadFile() error = nil, want error for missing file")
		}
	})

	t.Run("fails validation for invalid cache type", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("ECOLENS_CACHE_TYPE", "invalid")

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for invalid cache type")
		}
	})

	t.Run("fails validation when redis URL missing for redis cache", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("ECOLENS_CACHE_TYPE", "redis")

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error when redis URL is missing")
		}
	})

	t.Run("env file values apply", func(t *testing.T) {
		dir := chdirTemp(t)
		os.Unsetenv("ECOLENS_LOG_LEVEL")
		t.Cleanup(func() { os.Unsetenv("ECOLENS_LOG_LEVEL") })
		if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ECOLENS_LOG_LEVEL=debug\n"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Log.Level != "debug" {
			t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
		}
	})
}

func TestWatch(t *testing.T) {
	t.Run("returns false without a config file", func(t *testing.T) {
		chdirTemp(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Watch(func(*Config, error) {}) {
			t.Error("Watch() = true, want false when no file is used")
		}
	})

	t.Run("reports config file changes", func(t *testing.T) {
		dir := chdirTemp(t)
		path := filepath.Join(dir, "config.yaml")
		if err := os.WriteFile(path, []byte("detection:\n  auto_popup: true\n"), 0644); err != nil {
			t.Fatalf("Failed to create config file: %v", err)
		}

		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}

		changes := make(chan *Config, 4)
		if !cfg.Watch(func(next *Config, err error) {
			if err == nil {
				changes <- next
			}
		}) {
			t.Fatal("Watch() = false, want true")
		}

		if err := os.WriteFile(path, []byte("detection:\n  auto_popup: false\n"), 0644); err != nil {
			t.Fatalf("Failed to rewrite config file: %v", err)
		}

		select {
		case next := <-changes:
			if next.Detection.AutoPopup {
				t.Error("reloaded Detection.AutoPopup = true, want false")
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no config change reported")
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		chdirTemp(t)

		err := loadEnvFile()
		if err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("skips empty lines and comments", func(t *testing.T) {
		chdirTemp(t)

		envContent := `
# This is a comment
   # This is also a comment

TEST_SKIP_1=value1

TEST_SKIP_2=value2
# TEST_COMMENTED=should_not_load
`
		err := os.WriteFile(".env", []byte(envContent), 0644)
		if err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		os.Unsetenv("TEST_SKIP_1")
		os.Unsetenv("TEST_SKIP_2")
		os.Unsetenv("TEST_COMMENTED")
		defer os.Unsetenv("TEST_SKIP_1")
		defer os.Unsetenv("TEST_SKIP_2")

		err = loadEnvFile()
		if err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_SKIP_1") != "value1" {
			t.Errorf("TEST_SKIP_1 not loaded correctly")
		}
		if os.Getenv("TEST_SKIP_2") != "value2" {
			t.Errorf("TEST_SKIP_2 not loaded correctly")
		}
		if os.Getenv("TEST_COMMENTED") != "" {
			t.Errorf("TEST_COMMENTED should not be loaded from comment")
		}
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("TEST_OVERRIDE", "existing-value")

		err := os.WriteFile(".env", []byte("TEST_OVERRIDE=new-value"), 0644)
		if err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		err = loadEnvFile()
		if err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_OVERRIDE") != "existing-value" {
			t.Errorf("TEST_OVERRIDE = %s, want existing-value (should not override)", os.Getenv("TEST_OVERRIDE"))
		}
	})
}

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Port: "8080"},
		Cache:     CacheConfig{Type: "memory"},
		Detection: DetectionConfig{MaxRetries: 5},
		Matching:  MatchingConfig{CategoryThreshold: 0.8, DescriptionThreshold: 0.7},
		Log:       LogConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"validates successfully with all required fields", func(*Config) {}, false},
		{"fails when port is empty", func(c *Config) { c.Server.Port = "" }, true},
		{"fails for invalid cache type", func(c *Config) { c.Cache.Type = "memcached" }, true},
		{"validates redis cache type with URL", func(c *Config) {
			c.Cache.Type = "redis"
			c.Cache.RedisURL = "redis://localhost:6379"
		}, false},
		{"fails for redis cache without URL", func(c *Config) { c.Cache.Type = "redis" }, true},
		{"fails for zero threshold", func(c *Config) { c.Matching.CategoryThreshold = 0 }, true},
		{"fails for threshold above one", func(c *Config) { c.Matching.DescriptionThreshold = 1.2 }, true},
		{"fails without retries", func(c *Config) { c.Detection.MaxRetries = 0 }, true},
		{"fails for negative rate limit", func(c *Config) { c.RateLimit.PerIP = -1 }, true},
		{"fails for unknown log level", func(c *Config) { c.Log.Level = "chatty" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
