// Package app собирает релей из конфигурации: хранилище, верификатор токенов,
// сервисы, реестр комнат и транспорты.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cwrk-planet/chat-relay/config"
	"github.com/cwrk-planet/chat-relay/internal/badgerstore"
	"github.com/cwrk-planet/chat-relay/internal/postgres"
	"github.com/cwrk-planet/chat-relay/internal/security"
	"github.com/cwrk-planet/chat-relay/internal/service"
	"github.com/cwrk-planet/chat-relay/internal/telemetry"
	grpcx "github.com/cwrk-planet/chat-relay/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-relay/internal/transport/http"
	"github.com/cwrk-planet/chat-relay/internal/transport/ws"
)

// badger-профили пополняются атрибутами из токена
var _ service.ProfileWriter = (*badgerstore.ProfileRepository)(nil)

type App struct {
	cfg *config.Config

	registry *ws.Registry
	wsServer *ws.Server
	router   http.Handler
	httpSrv  *httpx.Server
	grpcSrv  *grpcx.Server

	closers []func() error
}

// New открывает хранилище (с проверкой доступности) и собирает зависимости.
// Ошибка здесь: повод завершить процесс.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	verifier, err := NewVerifier(cfg.Auth.JWT)
	if err != nil {
		return nil, fmt.Errorf("token verifier: %w", err)
	}

	store, profiles, err := a.openStore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	// --- services ---
	prof := service.NewProfiles(profiles)
	chatSvc := service.NewChatService(store, prof, service.ChatConfig{
		MaxContentLength: cfg.Chat.MaxContentLength,
		PersistTimeout:   cfg.Chat.PersistTimeout,
	})
	historySvc := service.NewHistoryService(store, prof)

	// --- WS ---
	a.registry = ws.NewRegistry()
	a.wsServer = ws.NewServer(a.registry, verifier, chatSvc, ws.Config{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequireJoin:    cfg.Chat.JoinRequired(),
		SendBuffer:     cfg.Chat.SendBuffer,
		MaxFrameBytes:  cfg.Chat.MaxFrameBytes,
		PingEvery:      cfg.Chat.PingEvery,
	})

	// --- HTTP ---
	a.router = httpx.NewRouter(httpx.Deps{
		Handler:        httpx.NewHandler(historySvc),
		WS:             a.wsServer,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})
	a.httpSrv = httpx.NewServer(httpx.ServerConfig{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, a.router)

	// --- gRPC ---
	if cfg.GRPC.Addr != "" {
		a.grpcSrv = grpcx.NewServer(cfg.HTTP.ShutdownTimeout)
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context) (service.MessageStore, service.ProfileSource, error) {
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		pg := a.cfg.Store.Postgres
		db, err := postgres.New(ctx, postgres.Config{
			DSN:             pg.DSN,
			MaxConns:        pg.MaxConns,
			MinConns:        pg.MinConns,
			MaxConnLifetime: pg.MaxConnLifetime,
			ApplicationName: pg.ApplicationName,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })
		slog.Info("store ready", "driver", config.DriverPostgres)
		return postgres.NewMessageRepository(db.Pool), postgres.NewProfileRepository(db.Pool), nil

	case config.DriverBadger:
		bc := a.cfg.Store.Badger
		db, err := badgerstore.Open(badgerstore.Config{Path: bc.Path, InMemory: bc.InMemory})
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)
		slog.Info("store ready", "driver", config.DriverBadger, "path", bc.Path, "in_memory", bc.InMemory)
		return badgerstore.NewMessageRepository(db, slog.Default()), badgerstore.NewProfileRepository(db), nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

// NewVerifier: RS256 при заданном publicKeyPath, иначе HS256 с общим секретом.
func NewVerifier(cfg config.JWT) (*security.Verifier, error) {
	opts := security.Options{
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
		ClockSkew: cfg.ClockSkew,
	}
	if cfg.PublicKeyPath != "" {
		pub, err := security.LoadRSAPublicKeyFromPEM(cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		return security.NewRSAVerifier(pub, opts)
	}
	return security.NewHMACVerifier([]byte(cfg.Secret), opts)
}

// NewSigner: для команды token: RS256 при заданном privateKeyPath, иначе HS256.
func NewSigner(cfg config.JWT) (*security.Signer, error) {
	if cfg.PrivateKeyPath != "" {
		priv, err := security.LoadRSAPrivateKeyFromPEM(cfg.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		return security.NewRSASigner(priv, cfg.Issuer, cfg.Audience, cfg.TokenTTL)
	}
	return security.NewHMACSigner([]byte(cfg.Secret), cfg.Issuer, cfg.Audience, cfg.TokenTTL)
}

func (a *App) Handler() http.Handler { return a.router }
func (a *App) Registry() *ws.Registry { return a.registry }
func (a *App) WSServer() *ws.Server { return a.wsServer }

// Run поднимает HTTP и gRPC и блокирует до отмены ctx или ошибки сервера.
// При остановке: gRPC уходит в NOT_SERVING, закрываются ws-сессии, HTTP гасится.
func (a *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	var grpcLis net.Listener
	if a.grpcSrv != nil {
		grpcLis, err = net.Listen("tcp", a.cfg.GRPC.Addr)
		if err != nil {
			_ = lis.Close()
			return fmt.Errorf("grpc listen: %w", err)
		}
	}
	return a.Serve(ctx, lis, grpcLis)
}

// Serve: то же, что Run, на готовых listener'ах (grpcLis может быть nil).
func (a *App) Serve(ctx context.Context, lis, grpcLis net.Listener) error {
	// серверы гасятся после закрытия ws-сессий, а не вместе с ctx
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	errCh := make(chan error, 2)
	running := 1
	go func() { errCh <- a.httpSrv.Serve(runCtx, lis) }()
	if a.grpcSrv != nil && grpcLis != nil {
		running++
		go func() { errCh <- a.grpcSrv.Serve(runCtx, grpcLis) }()
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown requested")
	case runErr = <-errCh:
		running--
		if runErr != nil {
			slog.Error("server error", "err", runErr)
		}
	}

	// http.Server.Shutdown не ждёт hijacked-соединений, поэтому ws закрываем сами
	shCtx, shCancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
	defer shCancel()
	if err := a.wsServer.Shutdown(shCtx); err != nil {
		slog.Warn("ws shutdown", "err", err)
	}

	cancel()
	for ; running > 0; running-- {
		if err := <-errCh; err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// Close освобождает хранилище.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// SetupTracing: обёртка над telemetry.Setup с параметрами из конфига.
func SetupTracing(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	return telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
		ServiceName: cfg.Logging.Service,
		Version:     cfg.Logging.Version,
	})
}

// WaitShutdown ограничивает время на остановку трассировки.
func WaitShutdown(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Warn("tracing shutdown", "err", err)
	}
}
