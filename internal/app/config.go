package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognivue/cognivue-backend/internal/data/db"
	"github.com/cognivue/cognivue-backend/internal/observability"
	"github.com/cognivue/cognivue-backend/internal/platform/envutil"
	"github.com/cognivue/cognivue-backend/internal/platform/gcp"
	"github.com/cognivue/cognivue-backend/internal/platform/gemini"
	"github.com/cognivue/cognivue-backend/internal/platform/redisx"
	"github.com/cognivue/cognivue-backend/internal/services"
)

type AuthConfig struct {
	JWTSecretKey       string        `yaml:"-"`
	SessionTTL         time.Duration `yaml:"session_ttl"`
	GoogleClientID     string        `yaml:"google_client_id"`
	GoogleClientSecret string        `yaml:"-"`
	GoogleRedirectURI  string        `yaml:"google_redirect_uri"`
	FrontendURL        string        `yaml:"frontend_url"`
	CORSOrigins        []string      `yaml:"cors_origins"`
	CookieDomain       string        `yaml:"cookie_domain"`
	CookieSecure       bool          `yaml:"cookie_secure"`
}

type Config struct {
	Port            string        `yaml:"port"`
	LogMode         string        `yaml:"log_mode"`
	ServiceName     string        `yaml:"service_name"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TokenCleanupInterval controls how often expired session tokens are
	// purged. Zero disables the sweep.
	TokenCleanupInterval time.Duration `yaml:"token_cleanup_interval"`

	Database      db.Config                   `yaml:"database"`
	Redis         redisx.Config               `yaml:"redis"`
	Auth          AuthConfig                  `yaml:"auth"`
	Gemini        gemini.Config               `yaml:"gemini"`
	Storage       gcp.ObjectStorageConfig     `yaml:"storage"`
	Document      gcp.DocumentConfig          `yaml:"document_ai"`
	MaxUploadSize int64                       `yaml:"max_upload_size"`
	Metrics       observability.MetricsConfig `yaml:"metrics"`
	Otel          observability.OtelConfig    `yaml:"otel"`
}

func defaultConfig() Config {
	return Config{
		Port:                 "8000",
		LogMode:              "development",
		ServiceName:          "cognivue-backend",
		ShutdownTimeout:      15 * time.Second,
		TokenCleanupInterval: time.Hour,
		Database: db.Config{
			SQLitePath: "cognivue.db",
		},
		Redis: redisx.Config{Prefix: "cognivue:oauth_state:"},
		Auth: AuthConfig{
			SessionTTL:  services.DefaultSessionTTL,
			FrontendURL: "http://localhost:5173",
		},
		Gemini:        gemini.Config{Model: gemini.DefaultModel, Timeout: gemini.DefaultTimeout},
		Storage:       gcp.ObjectStorageConfig{LocalDir: "uploads"},
		Document:      gcp.DocumentConfig{Location: "us"},
		MaxUploadSize: services.DefaultMaxUploadSize,
		Metrics:       observability.MetricsConfig{Addr: ":9090", ScrapeInterval: 10 * time.Second},
		Otel:          observability.OtelConfig{ServiceName: "cognivue-backend", SampleRatio: 1},
	}
}

// LoadConfig layers defaults, the optional YAML file at path, then the
// environment. Secrets are only read from the environment.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.ServiceName = envutil.String("SERVICE_NAME", cfg.ServiceName)
	cfg.ShutdownTimeout = envutil.Seconds("SHUTDOWN_TIMEOUT_SECONDS", cfg.ShutdownTimeout)
	cfg.TokenCleanupInterval = envutil.Seconds("TOKEN_CLEANUP_INTERVAL_SECONDS", cfg.TokenCleanupInterval)

	d := &cfg.Database
	d.URL = envutil.String("DATABASE_URL", d.URL)
	d.Host = envutil.String("POSTGRES_HOST", d.Host)
	d.Port = envutil.String("POSTGRES_PORT", d.Port)
	d.User = envutil.String("POSTGRES_USER", d.User)
	d.Password = envutil.String("POSTGRES_PASSWORD", d.Password)
	d.Name = envutil.String("POSTGRES_DB", d.Name)
	d.SSLMode = envutil.String("POSTGRES_SSLMODE", d.SSLMode)
	d.SQLitePath = envutil.String("SQLITE_PATH", d.SQLitePath)
	d.MaxOpenConns = envutil.Int("DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = envutil.Int("DB_MAX_IDLE_CONNS", d.MaxIdleConns)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)

	a := &cfg.Auth
	a.JWTSecretKey = envutil.String("JWT_SECRET_KEY", a.JWTSecretKey)
	a.SessionTTL = envutil.Seconds("SESSION_TTL", a.SessionTTL)
	a.GoogleClientID = envutil.String("GOOGLE_OAUTH_CLIENT_ID", a.GoogleClientID)
	a.GoogleClientSecret = envutil.String("GOOGLE_OAUTH_CLIENT_SECRET", a.GoogleClientSecret)
	a.GoogleRedirectURI = envutil.String("GOOGLE_REDIRECT_URI", a.GoogleRedirectURI)
	a.FrontendURL = envutil.String("FRONTEND_URL", a.FrontendURL)
	a.CORSOrigins = envutil.List("CORS_ORIGINS", a.CORSOrigins)
	a.CookieDomain = envutil.String("SESSION_COOKIE_DOMAIN", a.CookieDomain)
	a.CookieSecure = envutil.Bool("SESSION_COOKIE_SECURE", a.CookieSecure)

	g := &cfg.Gemini
	g.APIKey = envutil.String("GEMINI_API_KEY", g.APIKey)
	g.Model = envutil.String("GEMINI_MODEL", g.Model)
	g.Timeout = envutil.Seconds("GEMINI_TIMEOUT_SECONDS", g.Timeout)
	g.Vertex = envutil.Bool("GEMINI_USE_VERTEX", g.Vertex)
	g.Project = envutil.String("GEMINI_PROJECT", g.Project)
	g.Location = envutil.String("GEMINI_LOCATION", g.Location)

	s := &cfg.Storage
	s.Mode = gcp.ObjectStorageMode(envutil.String("OBJECT_STORAGE_MODE", string(s.Mode)))
	s.Bucket = envutil.String("RESUME_GCS_BUCKET_NAME", s.Bucket)
	s.EmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", s.EmulatorHost)
	s.LocalDir = envutil.String("UPLOAD_DIR", s.LocalDir)
	s.Credentials = envutil.String("GOOGLE_CLOUD_CREDENTIALS", s.Credentials)
	cfg.MaxUploadSize = envutil.Int64("MAX_UPLOAD_SIZE", cfg.MaxUploadSize)

	doc := &cfg.Document
	doc.ProjectID = envutil.String("DOCUMENTAI_PROJECT_ID", doc.ProjectID)
	doc.Location = envutil.String("DOCUMENTAI_LOCATION", doc.Location)
	doc.ProcessorID = envutil.String("DOCUMENTAI_PROCESSOR_ID", doc.ProcessorID)
	doc.ProcessorVersion = envutil.String("DOCUMENTAI_PROCESSOR_VERSION", doc.ProcessorVersion)
	doc.Credentials = s.Credentials

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = envutil.String("METRICS_ADDR", cfg.Metrics.Addr)

	o := &cfg.Otel
	o.Enabled = envutil.Bool("OTEL_ENABLED", o.Enabled)
	o.ServiceName = envutil.String("OTEL_SERVICE_NAME", o.ServiceName)
	o.Environment = envutil.String("OTEL_ENVIRONMENT", o.Environment)
	o.Version = envutil.String("OTEL_SERVICE_VERSION", o.Version)
	o.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", o.Endpoint)
	o.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", o.Insecure)
	if h := observability.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")); h != nil {
		o.Headers = h
	}
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecretKey) == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY is required"))
	}
	if strings.TrimSpace(c.Auth.GoogleClientID) == "" || strings.TrimSpace(c.Auth.GoogleClientSecret) == "" {
		errs = append(errs, errors.New("GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET are required"))
	}
	if strings.TrimSpace(c.Auth.GoogleRedirectURI) == "" {
		errs = append(errs, errors.New("GOOGLE_REDIRECT_URI is required"))
	}
	if !c.Gemini.Vertex && strings.TrimSpace(c.Gemini.APIKey) == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.MaxUploadSize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize))
	}
	return errors.Join(errs...)
}

func (c Config) ListenAddr() string {
	port := strings.TrimSpace(c.Port)
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}
