package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// RetryPolicy is the yaml shape of a bounded exponential backoff.
type RetryPolicy struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		PublicOrigin    string        `yaml:"public_origin"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Preview struct {
		PingInterval   time.Duration `yaml:"ping_interval"`
		PongTimeout    time.Duration `yaml:"pong_timeout"`
		MaxFrameBytes  int64         `yaml:"max_frame_bytes"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"preview"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled        bool    `yaml:"enabled"`
		JaegerEndpoint string  `yaml:"jaeger_endpoint"`
		SampleRate     float64 `yaml:"sample_rate"`
		Environment    string  `yaml:"environment"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled   bool   `yaml:"enabled"`
		Address   string `yaml:"address"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		PoolSize  int    `yaml:"pool_size"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret         string        `yaml:"jwt_secret"`
		ClientTokenTTL    time.Duration `yaml:"client_token_ttl"`
		CookieSecure      bool          `yaml:"cookie_secure"`
		UserSessionTTL    time.Duration `yaml:"user_session_ttl"`
		AdminSessionTTL   time.Duration `yaml:"admin_session_ttl"`
		AdminPasswordHash string        `yaml:"admin_password_hash"`
		// Per-tenant bcrypt hashes keyed by tenant id; they win over AdminPasswordHash.
		TenantAdminPasswordHashes map[string]string `yaml:"tenant_admin_password_hashes"`
		SeedDemoUsers             bool              `yaml:"seed_demo_users"`
	} `yaml:"auth"`

	Tenancy struct {
		BaseDomain    string   `yaml:"base_domain"`
		ReservedSlugs []string `yaml:"reserved_slugs"`
		DemoEnabled   bool     `yaml:"demo_enabled"`
	} `yaml:"tenancy"`

	Camera struct {
		IdealWidth     int           `yaml:"ideal_width"`
		IdealHeight    int           `yaml:"ideal_height"`
		ReadyTimeout   time.Duration `yaml:"ready_timeout"`
		ReleaseTimeout time.Duration `yaml:"release_timeout"`
		IdleTimeout    time.Duration `yaml:"idle_timeout"`
		Restart        RetryPolicy   `yaml:"restart"`
	} `yaml:"camera"`

	Geocoding struct {
		Enabled           bool          `yaml:"enabled"`
		Endpoint          string        `yaml:"endpoint"`
		UserAgent         string        `yaml:"user_agent"`
		Language          string        `yaml:"language"`
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		CacheTTL          time.Duration `yaml:"cache_ttl"`
		Breaker           struct {
			MaxFailures  int           `yaml:"max_failures"`
			ResetTimeout time.Duration `yaml:"reset_timeout"`
		} `yaml:"breaker"`
	} `yaml:"geocoding"`

	Assets struct {
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
		MaxBytes     int64         `yaml:"max_bytes"`
		CacheTTL     time.Duration `yaml:"cache_ttl"`
	} `yaml:"assets"`

	Backup struct {
		Enabled       bool          `yaml:"enabled"`
		Directory     string        `yaml:"directory"`
		Interval      time.Duration `yaml:"interval"`
		RetentionDays int           `yaml:"retention_days"`
		// RestoreOnStart loads the newest backup into an empty store.
		RestoreOnStart bool `yaml:"restore_on_start"`
	} `yaml:"backup"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		Login struct {
			AttemptsPerMinute int `yaml:"attempts_per_minute"`
			Burst             int `yaml:"burst"`
		} `yaml:"login"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Preview
	if c.Preview.PingInterval <= 0 {
		return fmt.Errorf("preview.ping_interval must be > 0")
	}
	if c.Preview.PongTimeout <= c.Preview.PingInterval {
		return fmt.Errorf("preview.pong_timeout must be > preview.ping_interval")
	}
	if c.Preview.MaxFrameBytes <= 0 {
		return fmt.Errorf("preview.max_frame_bytes must be > 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerEndpoint == "" {
			return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0,1]")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.ClientTokenTTL <= 0 {
		return fmt.Errorf("auth.client_token_ttl must be > 0")
	}
	if c.Auth.UserSessionTTL <= 0 {
		return fmt.Errorf("auth.user_session_ttl must be > 0")
	}
	if c.Auth.AdminSessionTTL <= 0 {
		return fmt.Errorf("auth.admin_session_ttl must be > 0")
	}

	// Camera
	if c.Camera.IdealWidth <= 0 || c.Camera.IdealHeight <= 0 {
		return fmt.Errorf("camera.ideal_width and camera.ideal_height must be > 0")
	}
	if c.Camera.ReadyTimeout <= 0 {
		return fmt.Errorf("camera.ready_timeout must be > 0")
	}
	if c.Camera.ReleaseTimeout <= 0 {
		return fmt.Errorf("camera.release_timeout must be > 0")
	}
	if c.Camera.IdleTimeout < 0 {
		return fmt.Errorf("camera.idle_timeout must be >= 0")
	}
	if err := c.Camera.Restart.validate("camera.restart"); err != nil {
		return err
	}

	// Geocoding
	if c.Geocoding.Enabled {
		if c.Geocoding.Endpoint == "" {
			return fmt.Errorf("geocoding.endpoint must not be empty when geocoding.enabled=true")
		}
		if c.Geocoding.UserAgent == "" {
			return fmt.Errorf("geocoding.user_agent must not be empty when geocoding.enabled=true")
		}
		if c.Geocoding.Timeout <= 0 {
			return fmt.Errorf("geocoding.timeout must be > 0")
		}
		if c.Geocoding.RequestsPerSecond <= 0 {
			return fmt.Errorf("geocoding.requests_per_second must be > 0")
		}
		if c.Geocoding.Breaker.MaxFailures <= 0 {
			return fmt.Errorf("geocoding.breaker.max_failures must be > 0")
		}
	}

	// Assets
	if c.Assets.FetchTimeout <= 0 {
		return fmt.Errorf("assets.fetch_timeout must be > 0")
	}
	if c.Assets.MaxBytes <= 0 {
		return fmt.Errorf("assets.max_bytes must be > 0")
	}

	// Backup
	if c.Backup.Enabled {
		if c.Backup.Directory == "" {
			return fmt.Errorf("backup.directory must not be empty when backup.enabled=true")
		}
		if c.Backup.Interval < time.Minute {
			return fmt.Errorf("backup.interval must be >= 1m")
		}
		if c.Backup.RetentionDays <= 0 {
			return fmt.Errorf("backup.retention_days must be > 0")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Login.AttemptsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.login.attempts_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Login.Burst <= 0 {
			return fmt.Errorf("rate_limiting.login.burst must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

func (p RetryPolicy) validate(section string) error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("%s.max_attempts must be > 0", section)
	}
	if p.InitialDelay <= 0 {
		return fmt.Errorf("%s.initial_delay must be > 0", section)
	}
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("%s.max_delay must be >= initial_delay", section)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("%s.multiplier must be >= 1", section)
	}
	return nil
}

// DefaultPaths lists where the booth looks for its yaml file, in order.
var DefaultPaths = []string{
	"configs/config.yaml",
	"./configs/config.yaml",
	"/etc/selfiebooth/config.yaml",
	"config.yaml",
}

// LoadFirst tries every path and returns the first configuration that loads.
// When none exists the defaults (plus env overrides) are returned.
func LoadFirst(paths ...string) (*Config, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	return cfg, cfg.Validate()
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.PublicOrigin = "http://localhost:8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Preview.PingInterval = 30 * time.Second
	cfg.Preview.PongTimeout = 60 * time.Second
	cfg.Preview.MaxFrameBytes = 4 << 20
	cfg.Preview.AllowedOrigins = []string{"*"}

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 0.1
	cfg.Tracing.Environment = "development"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.KeyPrefix = "booth:"

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.ClientTokenTTL = 30 * 24 * time.Hour
	cfg.Auth.UserSessionTTL = 24 * time.Hour
	cfg.Auth.AdminSessionTTL = 8 * time.Hour
	cfg.Auth.TenantAdminPasswordHashes = map[string]string{}
	cfg.Auth.SeedDemoUsers = true

	cfg.Tenancy.BaseDomain = "localhost"
	cfg.Tenancy.ReservedSlugs = []string{"admin", "demo"}
	cfg.Tenancy.DemoEnabled = true

	cfg.Camera.IdealWidth = 640
	cfg.Camera.IdealHeight = 480
	cfg.Camera.ReadyTimeout = 10 * time.Second
	cfg.Camera.ReleaseTimeout = 2 * time.Second
	cfg.Camera.IdleTimeout = 10 * time.Minute
	cfg.Camera.Restart = RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 300 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}

	cfg.Geocoding.Enabled = true
	cfg.Geocoding.Endpoint = "https://nominatim.openstreetmap.org/reverse"
	cfg.Geocoding.UserAgent = "selfiebooth/1.0"
	cfg.Geocoding.Language = "de"
	cfg.Geocoding.Timeout = 5 * time.Second
	cfg.Geocoding.RequestsPerSecond = 1
	cfg.Geocoding.CacheTTL = 24 * time.Hour
	cfg.Geocoding.Breaker.MaxFailures = 5
	cfg.Geocoding.Breaker.ResetTimeout = 30 * time.Second

	cfg.Assets.FetchTimeout = 5 * time.Second
	cfg.Assets.MaxBytes = 8 << 20
	cfg.Assets.CacheTTL = 10 * time.Minute

	cfg.Backup.Enabled = false
	cfg.Backup.Directory = "data/backups"
	cfg.Backup.Interval = 6 * time.Hour
	cfg.Backup.RetentionDays = 14
	cfg.Backup.RestoreOnStart = true

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.Login.AttemptsPerMinute = 10
	cfg.RateLimiting.Login.Burst = 5

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("BOOTH_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if origin := os.Getenv("BOOTH_PUBLIC_ORIGIN"); origin != "" {
		c.Server.PublicOrigin = origin
	}
	if level := os.Getenv("BOOTH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("BOOTH_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if hash := os.Getenv("BOOTH_ADMIN_PASSWORD_HASH"); hash != "" {
		c.Auth.AdminPasswordHash = hash
	}
	if addr := os.Getenv("BOOTH_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
	if dir := os.Getenv("BOOTH_BACKUP_DIR"); dir != "" {
		c.Backup.Directory = dir
		c.Backup.Enabled = true
	}
	if seed := os.Getenv("BOOTH_SEED_DEMO_USERS"); seed != "" {
		if v, err := strconv.ParseBool(seed); err == nil {
			c.Auth.SeedDemoUsers = v
		}
	}
}
