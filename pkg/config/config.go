package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/adminkit/pkg/observability"
)

// EnvPrefix starts every environment variable read by LoadConfig.
const EnvPrefix = "ADMINKIT_"

// FileEnv names the optional YAML overlay.
const FileEnv = EnvPrefix + "CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	App           AppConfig           `yaml:"app"`
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	JWT           JWTConfig           `yaml:"jwt"`
	CORS          CORSConfig          `yaml:"cors"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Cache         CacheConfig         `yaml:"cache"`
	S3            S3Config            `yaml:"s3"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// AppConfig describes the running application
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
	Env         string `yaml:"env"`
	Debug       bool   `yaml:"debug"`
	APIPrefix   string `yaml:"api_prefix"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	// TrustedProxies are CIDRs or addresses allowed to set the client IP
	// through X-Forwarded-For and X-Real-IP.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// DatabaseConfig holds PostgreSQL settings. URL wins over the discrete
// fields.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	ReplicaURLs     []string      `yaml:"replica_urls"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN returns URL, or a postgres URL assembled from the discrete fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Host == "" || d.Name == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	if d.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(d.SSLMode)
	}
	return u.String()
}

// RedisConfig holds Redis settings. An empty URL disables Redis.
type RedisConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
	DB       int    `yaml:"db"`
}

// JWTConfig holds access token settings
type JWTConfig struct {
	Secret        string `yaml:"secret"`
	Algorithm     string `yaml:"algorithm"`
	ExpireMinutes int    `yaml:"expire_minutes"`
}

// TTL returns the token lifetime.
func (j JWTConfig) TTL() time.Duration {
	return time.Duration(j.ExpireMinutes) * time.Minute
}

// CORSConfig lists allowed browser origins
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// RateLimitConfig holds request limits. The limiter is shared through Redis
// when Redis is configured.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Burst    int           `yaml:"burst"`
}

// CacheConfig holds response cache settings
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	L1Size  int           `yaml:"l1_size"`
}

// S3Config holds avatar storage settings. An empty bucket disables uploads.
type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
	PublicURL    string `yaml:"public_url"`
}

// MQTTConfig holds event broker settings. An empty broker disables events.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// AuditConfig holds request audit settings
type AuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BufferSize    int           `yaml:"buffer_size"`
	Retention     time.Duration `yaml:"retention"`
	PruneSchedule string        `yaml:"prune_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level.
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "adminkit",
			Version:     "1.0.0",
			Description: "user, role and permission administration API",
			Env:         "production",
			APIPrefix:   "/api/v1",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{PoolSize: 10},
		JWT: JWTConfig{
			Algorithm:     "HS256",
			ExpireMinutes: 15,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 100,
			Window:   time.Minute,
			Burst:    10,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     60 * time.Second,
			L1Size:  1024,
		},
		S3:   S3Config{Region: "us-east-1"},
		MQTT: MQTTConfig{ClientID: "adminkit", TopicPrefix: "adminkit"},
		Audit: AuditConfig{
			Enabled:       true,
			BufferSize:    1024,
			Retention:     30 * 24 * time.Hour,
			PruneSchedule: "@daily",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "adminkit",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// ADMINKIT_CONFIG_FILE (if any) and ADMINKIT_* environment variables, in
// that order of precedence from lowest to highest.
func LoadConfig() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Load is LoadConfig without validation, for tools that only need part of
// the configuration.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	a := &c.App
	a.Name = getEnv("APP_NAME", a.Name)
	a.Version = getEnv("APP_VERSION", a.Version)
	a.Env = getEnv("ENV", a.Env)
	a.Debug = getEnvBool("DEBUG", a.Debug)
	a.APIPrefix = getEnv("API_PREFIX", a.APIPrefix)

	s := &c.Server
	s.Host = getEnv("HOST", s.Host)
	s.Port = getEnv("PORT", s.Port)
	s.HealthPort = getEnv("HEALTH_PORT", s.HealthPort)
	s.ReadTimeout = getEnvDuration("READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.TrustedProxies = getEnvList("TRUSTED_PROXIES", s.TrustedProxies)

	d := &c.Database
	d.URL = getEnv("DATABASE_URL", d.URL)
	d.Host = getEnv("DATABASE_HOST", d.Host)
	d.Port = getEnvInt("DATABASE_PORT", d.Port)
	d.User = getEnv("DATABASE_USER", d.User)
	d.Password = getEnv("DATABASE_PASSWORD", d.Password)
	d.Name = getEnv("DATABASE_NAME", d.Name)
	d.SSLMode = getEnv("DATABASE_SSLMODE", d.SSLMode)
	d.ReplicaURLs = getEnvList("DATABASE_REPLICA_URLS", d.ReplicaURLs)
	d.MaxOpenConns = getEnvInt("DATABASE_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvInt("DATABASE_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getEnvDuration("DATABASE_CONN_MAX_LIFETIME", d.ConnMaxLifetime)

	r := &c.Redis
	r.URL = getEnv("REDIS_URL", r.URL)
	r.PoolSize = getEnvInt("REDIS_POOL_SIZE", r.PoolSize)
	r.DB = getEnvInt("REDIS_DB", r.DB)

	j := &c.JWT
	j.Secret = getEnv("JWT_SECRET", j.Secret)
	j.Algorithm = getEnv("JWT_ALGORITHM", j.Algorithm)
	j.ExpireMinutes = getEnvInt("JWT_EXPIRE_MINUTES", j.ExpireMinutes)

	c.CORS.Origins = getEnvList("CORS_ORIGINS", c.CORS.Origins)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool("RATE_LIMIT_ENABLED", rl.Enabled)
	rl.Requests = getEnvInt("RATE_LIMIT_REQUESTS", rl.Requests)
	rl.Window = getEnvDuration("RATE_LIMIT_WINDOW", rl.Window)
	rl.Burst = getEnvInt("RATE_LIMIT_BURST", rl.Burst)

	ca := &c.Cache
	ca.Enabled = getEnvBool("CACHE_ENABLED", ca.Enabled)
	ca.TTL = getEnvDuration("CACHE_TTL", ca.TTL)
	ca.L1Size = getEnvInt("L1_CACHE_SIZE", ca.L1Size)

	s3 := &c.S3
	s3.Endpoint = getEnv("S3_ENDPOINT", s3.Endpoint)
	s3.Region = getEnv("S3_REGION", s3.Region)
	s3.Bucket = getEnv("S3_BUCKET", s3.Bucket)
	s3.AccessKey = getEnv("S3_ACCESS_KEY", s3.AccessKey)
	s3.SecretKey = getEnv("S3_SECRET_KEY", s3.SecretKey)
	s3.UsePathStyle = getEnvBool("S3_USE_PATH_STYLE", s3.UsePathStyle)
	s3.PublicURL = getEnv("S3_PUBLIC_URL", s3.PublicURL)

	m := &c.MQTT
	m.Broker = getEnv("MQTT_BROKER", m.Broker)
	m.ClientID = getEnv("MQTT_CLIENT_ID", m.ClientID)
	m.Username = getEnv("MQTT_USERNAME", m.Username)
	m.Password = getEnv("MQTT_PASSWORD", m.Password)
	m.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", m.TopicPrefix)

	au := &c.Audit
	au.Enabled = getEnvBool("AUDIT_ENABLED", au.Enabled)
	au.BufferSize = getEnvInt("AUDIT_BUFFER_SIZE", au.BufferSize)
	au.Retention = getEnvDuration("AUDIT_RETENTION", au.Retention)
	au.PruneSchedule = getEnv("AUDIT_PRUNE_SCHEDULE", au.PruneSchedule)

	o := &c.Observability
	o.LogLevel = getEnv("LOG_LEVEL", o.LogLevel)
	o.LogFile = getEnv("LOG_FILE", o.LogFile)
	o.MetricsEnabled = getEnvBool("METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("OTEL_INSECURE", o.OTelInsecure)
}

var jwtAlgorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	for _, proxy := range c.Server.TrustedProxies {
		if !validProxy(proxy) {
			return fmt.Errorf("invalid trusted proxy %q", proxy)
		}
	}
	if c.App.APIPrefix != "" && !strings.HasPrefix(c.App.APIPrefix, "/") {
		return fmt.Errorf("api prefix must start with /")
	}

	if c.Database.DSN() == "" {
		return fmt.Errorf("database URL or host and name are required")
	}

	// Validate JWT config
	if c.JWT.Secret == "" && !c.App.Debug {
		return fmt.Errorf("JWT secret is required outside debug mode")
	}
	if !jwtAlgorithms[c.JWT.Algorithm] {
		return fmt.Errorf("invalid JWT algorithm: %s (must be HS256, HS384 or HS512)", c.JWT.Algorithm)
	}
	if c.JWT.ExpireMinutes <= 0 {
		return fmt.Errorf("JWT expiry must be positive")
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate limit requests and window must be positive")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.Audit.Enabled && c.Audit.Retention <= 0 {
		return fmt.Errorf("audit retention must be positive")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func validProxy(entry string) bool {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		_, _, err := net.ParseCIDR(entry)
		return err == nil
	}
	return net.ParseIP(entry) != nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
