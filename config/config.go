package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultPath = "./config/config.yaml"

type HTTP struct {
	Addr            string        `yaml:"addr"`            // ":10000"
	ReadTimeout     time.Duration `yaml:"readTimeout"`     // "15s"
	IdleTimeout     time.Duration `yaml:"idleTimeout"`     // "60s"
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"` // "10s"
}

type GRPC struct {
	Addr string `yaml:"addr"` // пусто: gRPC-порт не поднимается
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // chat-relay
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"maxConns"`
	MinConns        int32         `yaml:"minConns"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime"`
	ApplicationName string        `yaml:"applicationName"`
}

type Badger struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"inMemory"`
}

const (
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

type Store struct {
	Driver   string   `yaml:"driver"` // postgres|badger
	Postgres Postgres `yaml:"postgres"`
	Badger   Badger   `yaml:"badger"`
}

type JWT struct {
	Secret         string        `yaml:"secret"`
	PublicKeyPath  string        `yaml:"publicKeyPath"`  // RS256, приоритет над secret
	PrivateKeyPath string        `yaml:"privateKeyPath"` // только для команды token
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	ClockSkew      time.Duration `yaml:"clockSkew"`
	TokenTTL       time.Duration `yaml:"tokenTTL"`
}

type Auth struct {
	JWT JWT `yaml:"jwt"`
}

type Chat struct {
	RequireJoin      *bool         `yaml:"requireJoin"` // default true
	MaxContentLength int           `yaml:"maxContentLength"`
	PersistTimeout   time.Duration `yaml:"persistTimeout"`
	SendBuffer       int           `yaml:"sendBuffer"`
	MaxFrameBytes    int64         `yaml:"maxFrameBytes"`
	PingEvery        time.Duration `yaml:"pingEvery"`
}

// JoinRequired: значение requireJoin с учётом дефолта.
func (c Chat) JoinRequired() bool {
	return c.RequireJoin == nil || *c.RequireJoin
}

// DefaultFrontendOrigin: единственный разрешённый origin, если список пуст.
const DefaultFrontendOrigin = "http://localhost:5173"

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Tracing struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

type Config struct {
	HTTP    HTTP    `yaml:"http"`
	GRPC    GRPC    `yaml:"grpc"`
	Logging Logging `yaml:"logging"`
	Store   Store   `yaml:"store"`
	Auth    Auth    `yaml:"auth"`
	Chat    Chat    `yaml:"chat"`
	CORS    CORS    `yaml:"cors"`
	Tracing Tracing `yaml:"tracing"`
}

// overrides: переменные окружения поверх yaml (в том числе из .env).
type overrides struct {
	Port          string  `env:"PORT"`
	GRPCAddr      string  `env:"GRPC_ADDR"`
	FrontendURL   string  `env:"FRONTEND_URL"`
	DatabaseURL   string  `env:"DATABASE_URL"`
	StoreDriver   string  `env:"STORE_DRIVER"`
	BadgerPath    string  `env:"BADGER_PATH"`
	JWTSecret     string  `env:"JWT_SECRET"`
	JWTPublicKey  string  `env:"JWT_PUBLIC_KEY_PATH"`
	JWTPrivateKey string  `env:"JWT_PRIVATE_KEY_PATH"`
	AppEnv        string  `env:"APP_ENV"`
	LogBackend    string  `env:"LOG_BACKEND"`
	LogDebug      *bool   `env:"LOG_DEBUG"`
	RequireJoin   *bool   `env:"CHAT_REQUIRE_JOIN"`
	OTLPEndpoint  string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SampleRatio   float64 `env:"OTEL_SAMPLE_RATIO"`
}

// Load: yaml из CONFIG_PATH (по умолчанию ./config/config.yaml, его отсутствие
// не ошибка), затем .env и переменные окружения, затем дефолты и проверка.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultPath
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var o overrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.Port != "" {
		c.HTTP.Addr = ":" + strings.TrimPrefix(o.Port, ":")
	}
	if o.GRPCAddr != "" {
		c.GRPC.Addr = o.GRPCAddr
	}
	if o.FrontendURL != "" {
		c.CORS.AllowedOrigins = append(c.CORS.AllowedOrigins, o.FrontendURL)
	}
	if o.DatabaseURL != "" {
		c.Store.Postgres.DSN = o.DatabaseURL
	}
	if o.StoreDriver != "" {
		c.Store.Driver = o.StoreDriver
	}
	if o.BadgerPath != "" {
		c.Store.Badger.Path = o.BadgerPath
	}
	if o.JWTSecret != "" {
		c.Auth.JWT.Secret = o.JWTSecret
	}
	if o.JWTPublicKey != "" {
		c.Auth.JWT.PublicKeyPath = o.JWTPublicKey
	}
	if o.JWTPrivateKey != "" {
		c.Auth.JWT.PrivateKeyPath = o.JWTPrivateKey
	}
	if o.AppEnv != "" {
		c.Logging.Env = o.AppEnv
	}
	if o.LogBackend != "" {
		c.Logging.Backend = o.LogBackend
	}
	if o.LogDebug != nil {
		c.Logging.Debug = *o.LogDebug
	}
	if o.RequireJoin != nil {
		c.Chat.RequireJoin = o.RequireJoin
	}
	if o.OTLPEndpoint != "" {
		c.Tracing.Endpoint = o.OTLPEndpoint
	}
	if o.SampleRatio > 0 {
		c.Tracing.SampleRatio = o.SampleRatio
	}
	return nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":10000"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}

	switch c.Store.Driver {
	case "":
		if c.Store.Postgres.DSN != "" {
			c.Store.Driver = DriverPostgres
		} else {
			c.Store.Driver = DriverBadger
		}
	case DriverPostgres, DriverBadger:
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	if c.Store.Driver == DriverPostgres && c.Store.Postgres.DSN == "" {
		return errors.New("store.postgres.dsn is required")
	}
	if c.Store.Driver == DriverBadger && c.Store.Badger.Path == "" && !c.Store.Badger.InMemory {
		c.Store.Badger.Path = "./data/chat"
	}
	if c.Store.Postgres.ApplicationName == "" {
		c.Store.Postgres.ApplicationName = "chat-relay"
	}

	if c.Auth.JWT.Secret == "" && c.Auth.JWT.PublicKeyPath == "" {
		return errors.New("auth.jwt.secret or auth.jwt.publicKeyPath is required")
	}
	if c.Auth.JWT.TokenTTL == 0 {
		c.Auth.JWT.TokenTTL = 24 * time.Hour
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{DefaultFrontendOrigin}
	}

	if c.Chat.MaxContentLength < 0 || c.Chat.SendBuffer < 0 {
		return errors.New("chat limits must not be negative")
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sampleRatio must be in [0,1], got %v", c.Tracing.SampleRatio)
	}

	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "chat-relay"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	return nil
}
