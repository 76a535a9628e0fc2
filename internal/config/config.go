package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/envutil"
)

const (
	ExecutorInline  = "inline"
	ExecutorProcess = "process"

	StorageLocal = "local"
	StorageGCS   = "gcs"
)

type DatabaseConfig struct {
	Driver       string        `env:"DATABASE_DRIVER" validate:"oneof=postgres sqlite"`
	DSN          string        `env:"DATABASE_URL" validate:"required"`
	MaxOpenConns int           `env:"DATABASE_MAX_OPEN_CONNS" validate:"min=1"`
	MaxIdleConns int           `env:"DATABASE_MAX_IDLE_CONNS" validate:"min=0"`
	SlowQuery    time.Duration `env:"DATABASE_SLOW_QUERY"`
}

type OpenAIConfig struct {
	APIKey     string `env:"OPENAI_API_KEY"`
	BaseURL    string `env:"OPENAI_BASE_URL" validate:"omitempty,url"`
	Model      string `env:"OPENAI_MODEL"`
	ImageModel string `env:"OPENAI_IMAGE_MODEL"`
	MaxRetries int    `env:"OPENAI_MAX_RETRIES" validate:"min=0,max=10"`
}

// Enabled reports whether an API key was supplied. Without one the generators
// stay on their template fallbacks.
func (c OpenAIConfig) Enabled() bool { return strings.TrimSpace(c.APIKey) != "" }

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" validate:"min=0"`
	TTL      time.Duration `env:"PROGRESS_TTL"`
}

type StorageConfig struct {
	Mode            string `env:"OBJECT_STORAGE_MODE" validate:"oneof=local gcs"`
	BackupDir       string `env:"BACKUP_DIR" validate:"required_if=Mode local"`
	PublicBaseURL   string `env:"OBJECT_PUBLIC_BASE_URL" validate:"omitempty,url"`
	GCSBucket       string `env:"GCS_BUCKET" validate:"required_if=Mode gcs"`
	GCSPrefix       string `env:"GCS_PREFIX"`
	GCSEmulatorHost string `env:"STORAGE_EMULATOR_HOST"`
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	BackupsEnabled  bool   `env:"BACKUPS_ENABLED"`
	MediaDir        string `env:"MEDIA_DIR"`
}

type CascadeConfig struct {
	Executor     string        `env:"CASCADE_EXECUTOR" validate:"oneof=inline process"`
	GeneratorBin string        `env:"CASCADE_GENERATOR_BIN" validate:"required_if=Executor process"`
	StageTimeout time.Duration `env:"CASCADE_STAGE_TIMEOUT" validate:"min=1s"`
	Concurrency  int           `env:"GENERATOR_CONCURRENCY" validate:"min=1,max=64"`
}

type TelemetryConfig struct {
	MetricsEnabled bool    `env:"METRICS_ENABLED"`
	MetricsPrefix  string  `env:"METRICS_PREFIX" validate:"omitempty,alphanum"`
	OTelEnabled    bool    `env:"OTEL_ENABLED"`
	ServiceName    string  `env:"OTEL_SERVICE_NAME"`
	Endpoint       string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Headers        string  `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	Insecure       bool    `env:"OTEL_EXPORTER_OTLP_INSECURE"`
	SampleRatio    float64 `env:"OTEL_TRACES_SAMPLER_RATIO" validate:"min=0,max=1"`
}

// Config is the whole process environment, decoded and validated once.
type Config struct {
	Environment string   `env:"APP_ENV"`
	Version     string   `env:"APP_VERSION"`
	LogMode     string   `env:"LOG_MODE" validate:"oneof=development production test"`
	Port        string   `env:"PORT" validate:"required,numeric"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS"`

	Database  DatabaseConfig
	OpenAI    OpenAIConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Cascade   CascadeConfig
	Telemetry TelemetryConfig
}

// Getenv matches os.Getenv; tests substitute a map lookup.
type Getenv func(string) string

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(nil)
}

// FromEnv decodes and validates the configuration. A nil getenv reads the
// process environment.
func FromEnv(getenv Getenv) (Config, error) {
	src := envutil.Source(getenv)
	cfg := Config{
		Environment: src.String("APP_ENV", "development"),
		Version:     src.String("APP_VERSION", "dev"),
		LogMode:     src.String("LOG_MODE", "development"),
		Port:        src.String("PORT", "8080"),
		CORSOrigins: src.List("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		Database: DatabaseConfig{
			Driver:       strings.ToLower(src.String("DATABASE_DRIVER", "postgres")),
			DSN:          databaseDSN(src),
			MaxOpenConns: src.Int("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: src.Int("DATABASE_MAX_IDLE_CONNS", 5),
			SlowQuery:    src.Duration("DATABASE_SLOW_QUERY", time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:     src.String("OPENAI_API_KEY", ""),
			BaseURL:    src.String("OPENAI_BASE_URL", ""),
			Model:      src.String("OPENAI_MODEL", "gpt-4o-mini"),
			ImageModel: src.String("OPENAI_IMAGE_MODEL", "dall-e-3"),
			MaxRetries: src.Int("OPENAI_MAX_RETRIES", 2),
		},
		Redis: RedisConfig{
			Addr:     src.String("REDIS_ADDR", ""),
			Password: src.String("REDIS_PASSWORD", ""),
			DB:       src.Int("REDIS_DB", 0),
			TTL:      src.Duration("PROGRESS_TTL", 24*time.Hour),
		},
		Storage: StorageConfig{
			Mode:            strings.ToLower(src.String("OBJECT_STORAGE_MODE", StorageLocal)),
			BackupDir:       src.String("BACKUP_DIR", "./data/objects"),
			PublicBaseURL:   src.String("OBJECT_PUBLIC_BASE_URL", ""),
			GCSBucket:       src.String("GCS_BUCKET", ""),
			GCSPrefix:       src.String("GCS_PREFIX", ""),
			GCSEmulatorHost: src.String("STORAGE_EMULATOR_HOST", ""),
			CredentialsFile: src.String("GOOGLE_APPLICATION_CREDENTIALS", ""),
			BackupsEnabled:  src.Bool("BACKUPS_ENABLED", true),
			MediaDir:        src.String("MEDIA_DIR", "./data/media"),
		},
		Cascade: CascadeConfig{
			Executor:     strings.ToLower(src.String("CASCADE_EXECUTOR", ExecutorInline)),
			GeneratorBin: src.String("CASCADE_GENERATOR_BIN", ""),
			StageTimeout: src.Duration("CASCADE_STAGE_TIMEOUT", 10*time.Minute),
			Concurrency:  src.Int("GENERATOR_CONCURRENCY", 4),
		},
		Telemetry: TelemetryConfig{
			MetricsEnabled: src.Bool("METRICS_ENABLED", true),
			MetricsPrefix:  src.String("METRICS_PREFIX", "pf"),
			OTelEnabled:    src.Bool("OTEL_ENABLED", false),
			ServiceName:    src.String("OTEL_SERVICE_NAME", "personaforge-backend"),
			Endpoint:       src.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        src.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
			Insecure:       src.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio:    src.Float("OTEL_TRACES_SAMPLER_RATIO", 0.1),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// databaseDSN prefers DATABASE_URL and otherwise assembles a Postgres DSN from
// the POSTGRES_* variables.
func databaseDSN(src envutil.Source) string {
	if dsn := src.String("DATABASE_URL", ""); dsn != "" {
		return dsn
	}
	host := src.String("POSTGRES_HOST", "")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(src.String("POSTGRES_USER", "postgres"), src.String("POSTGRES_PASSWORD", "")),
		Host:     host + ":" + src.String("POSTGRES_PORT", "5432"),
		Path:     "/" + src.String("POSTGRES_DB", "personaforge"),
		RawQuery: "sslmode=" + src.String("POSTGRES_SSLMODE", "disable"),
	}
	return u.String()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate reports every problem at once as a *domain.ConfigurationError.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &domain.ConfigurationError{Problems: []string{err.Error()}}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	sort.Strings(problems)
	return &domain.ConfigurationError{Problems: problems}
}

func describe(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required when %s", name, strings.Replace(fe.Param(), " ", "=", 1))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", name, fe.Param(), fmt.Sprint(fe.Value()))
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
	}
}
