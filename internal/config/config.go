// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	RateLimitMax    int           `mapstructure:"RATE_LIMIT_MAX"`
	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`

	DBDriver                      string `mapstructure:"DB_DRIVER"`
	DBDSN                         string `mapstructure:"DB_DSN"`
	DBHost                        string `mapstructure:"DB_HOST"`
	DBPort                        string `mapstructure:"DB_PORT"`
	DBUser                        string `mapstructure:"DB_USER"`
	DBPassword                    string `mapstructure:"DB_PASSWORD"`
	DBName                        string `mapstructure:"DB_NAME"`
	DBSSLMode                     string `mapstructure:"DB_SSLMODE"`
	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	DBMaxOpenConns                int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisURL string `mapstructure:"REDIS_URL"`

	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	JWTIssuer       string        `mapstructure:"JWT_ISSUER"`
	JWTAudience     string        `mapstructure:"JWT_AUDIENCE"`
	AccessTokenTTL  time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`

	KafkaBrokers      string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic        string `mapstructure:"KAFKA_TOPIC"`
	KafkaRequiredAcks string `mapstructure:"KAFKA_REQUIRED_ACKS"`

	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`

	ImageUploadDir       string `mapstructure:"IMAGE_UPLOAD_DIR"`
	ImageMaxUploadSizeMB int    `mapstructure:"IMAGE_MAX_UPLOAD_SIZE_MB"`

	OTelEnabled      bool    `mapstructure:"OTEL_ENABLED"`
	OTelExporter     string  `mapstructure:"OTEL_EXPORTER"`
	OTelEndpoint     string  `mapstructure:"OTEL_ENDPOINT"`
	OTelSamplerRatio float64 `mapstructure:"OTEL_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; env vars alone are a valid configuration.
	_ = viper.ReadInConfig()

	env := strings.ToLower(strings.TrimSpace(viper.GetString("APP_ENV")))
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "image_uploads=on,realtime_stream=on")
	viper.SetDefault("RATE_LIMIT_MAX", 100)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")

	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_DSN", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "agora")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)

	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_ISSUER", "agora-api")
	viper.SetDefault("JWT_AUDIENCE", "agora-client")
	viper.SetDefault("ACCESS_TOKEN_TTL", "15m")
	viper.SetDefault("REFRESH_TOKEN_TTL", "168h")

	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_TOPIC", "agora.engagement")
	viper.SetDefault("KAFKA_REQUIRED_ACKS", "one")

	viper.SetDefault("MINIO_ENDPOINT", "")
	viper.SetDefault("MINIO_BUCKET", "agora-images")
	viper.SetDefault("MINIO_USE_SSL", false)

	viper.SetDefault("IMAGE_UPLOAD_DIR", "/tmp/agora/uploads/images")
	viper.SetDefault("IMAGE_MAX_UPLOAD_SIZE_MB", 10)

	viper.SetDefault("OTEL_ENABLED", false)
	viper.SetDefault("OTEL_EXPORTER", "stdout")
	viper.SetDefault("OTEL_ENDPOINT", "localhost:4318")
	viper.SetDefault("OTEL_SAMPLER_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.KafkaRequiredAcks = strings.ToLower(strings.TrimSpace(c.KafkaRequiredAcks))
}

// IsProduction reports whether the config targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// KafkaBrokerList splits KAFKA_BROKERS into trimmed, non-empty addresses.
func (c *Config) KafkaBrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "", "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.ImageMaxUploadSizeMB < 0 {
		return errors.New("IMAGE_MAX_UPLOAD_SIZE_MB must not be negative")
	}
	if c.AccessTokenTTL < 0 || c.RefreshTokenTTL < 0 {
		return errors.New("token TTLs must not be negative")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver != "sqlite" && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if (c.DBDriver == "" || c.DBDriver == "postgres") && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
