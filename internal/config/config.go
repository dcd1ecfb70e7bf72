package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/marketplace/pkg/config"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the marketplace service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort           int      `env:"HTTP_PORT" envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	LoginRateRPS       float64  `env:"LOGIN_RATE_RPS" envDefault:"1"`
	LoginRateBurst     int      `env:"LOGIN_RATE_BURST" envDefault:"5"`
	MaxUploadBytes     int64    `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"marketplace"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"marketplace_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"marketplace"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns         int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime  time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime  time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQueryThreshold int           `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Redis
	RedisHost       string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort       int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	RedisEnabled    bool          `env:"REDIS_ENABLED" envDefault:"true"`
	ListingCacheTTL time.Duration `env:"LISTING_CACHE_TTL" envDefault:"30s"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"true"`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Sessions and verification links
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	VerificationTTL time.Duration `env:"VERIFICATION_TTL" envDefault:"1h"`
	BaseURL         string        `env:"BASE_URL" envDefault:"http://localhost:3000"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"12"`

	// Assets
	AssetBackend      string `env:"ASSET_BACKEND" envDefault:"filesystem"`
	AssetDir          string `env:"ASSET_DIR" envDefault:"./images"`
	AssetPublicPrefix string `env:"ASSET_PUBLIC_PREFIX" envDefault:"/images"`
	AssetMaxBytes     int64  `env:"ASSET_MAX_BYTES" envDefault:"5242880"`
	AssetPlaceholder  string `env:"ASSET_PLACEHOLDER" envDefault:"/uploads/placeholder.jpg"`

	S3Endpoint  string `env:"S3_ENDPOINT" envDefault:""`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3AccessKey string `env:"S3_ACCESS_KEY" envDefault:""`
	S3SecretKey string `env:"S3_SECRET_KEY" envDefault:""`
	S3Bucket    string `env:"S3_BUCKET" envDefault:"marketplace-images"`
	S3PublicURL string `env:"S3_PUBLIC_URL" envDefault:""`

	// Mail
	MailBackend  string `env:"MAIL_BACKEND" envDefault:"log"`
	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER" envDefault:""`
	SMTPPassword string `env:"SMTP_PASSWORD" envDefault:""`
	MailFrom     string `env:"MAIL_FROM" envDefault:"no-reply@marketplace.local"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load marketplace config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	if c.SessionTTL <= 0 || c.VerificationTTL <= 0 {
		return fmt.Errorf("SESSION_TTL and VERIFICATION_TTL must be positive")
	}
	if c.AssetMaxBytes <= 0 {
		return fmt.Errorf("ASSET_MAX_BYTES must be positive, got %d", c.AssetMaxBytes)
	}

	switch c.AssetBackend {
	case "filesystem", "memory":
	case "s3":
		if c.S3Bucket == "" || c.S3PublicURL == "" {
			return fmt.Errorf("ASSET_BACKEND=s3 requires S3_BUCKET and S3_PUBLIC_URL")
		}
	default:
		return fmt.Errorf("unknown ASSET_BACKEND %q (want filesystem, s3 or memory)", c.AssetBackend)
	}

	switch c.MailBackend {
	case "smtp", "log":
	default:
		return fmt.Errorf("unknown MAIL_BACKEND %q (want smtp or log)", c.MailBackend)
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// SlowQueryDuration returns the slow query threshold as a duration.
func (c *Config) SlowQueryDuration() time.Duration {
	return time.Duration(c.SlowQueryThreshold) * time.Millisecond
}
