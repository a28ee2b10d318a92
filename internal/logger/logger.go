package logger

import (
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
)

var def atomic.Pointer[slog.Logger]

// Init собирает slog-логгер под среду и бекенд и делает его логгером по умолчанию.
// Все записи несут service/env/version/instance_id.
func Init(cfg Config) *slog.Logger {
	cfg = cfg.withDefaults()

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}

	l := slog.New(h.WithAttrs([]slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
	}))
	slog.SetDefault(l)
	def.Store(l)
	return l
}

// L: текущий логгер; до Init инициализирует логгер по умолчанию.
func L() *slog.Logger {
	if l := def.Load(); l != nil {
		return l
	}
	return Init(Config{})
}

func (c Config) withDefaults() Config {
	if c.Env == "" {
		c.Env = DetectEnv()
	}
	if c.Service == "" {
		c.Service = "chat-relay"
	}
	if c.Output == nil {
		c.Output = os.Stdout
	}
	if c.InstanceID == "" {
		hn, _ := os.Hostname()
		c.InstanceID = hn + "-" + uuid.NewString()[:8]
	}
	if c.Backend == "" {
		c.Backend = BackendStd
		if c.Env != EnvDev {
			c.Backend = BackendZap
		}
	}
	return c
}
