package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/config"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/httpapi"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/jobs"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/notify"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/otpstore"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/repository/sqlite"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/service"
)

type App struct {
	version   string
	buildDate string
	cfg       config.Config
	logger    *log.Logger
	server    *http.Server
	sweeper   otpstore.Sweeper
	closers   []io.Closer
}

func New(version, buildDate string, logger *log.Logger) (*App, error) {
	return NewWithConfig(version, buildDate, config.Load(), logger)
}

// NewWithConfig builds the service from cfg. Codes live in redis when
// cfg.RedisAddr is set and in the sqlite database otherwise.
func NewWithConfig(version, buildDate string, cfg config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	repo, err := sqlite.New(cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	a := &App{version: version, buildDate: buildDate, cfg: cfg, logger: logger, closers: []io.Closer{repo}}

	var otps otpstore.Store = repo
	a.sweeper = repo
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			_ = repo.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		otps = otpstore.NewRedis(client)
		a.sweeper = nil
		a.closers = append(a.closers, client)
	}

	services := service.NewServices(repo, otps, notify.NewLog(logger), cfg, logger)
	router := httpapi.NewRouter(services, logger, httpapi.Options{
		MaxRequestBytes: cfg.MaxRequestBytes,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		PhotoDir:        cfg.PhotoDir,
	})
	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

// Handler exposes the router, for tests.
func (a *App) Handler() http.Handler { return a.server.Handler }

func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() { _ = a.Close() }()

	jobs.StartOTPSweepJob(ctx, a.cfg.OTPSweepInterval, a.sweeper, a.logger)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Printf("http server error: %v", err)
		}
	}()

	a.logger.Printf("meetflow server %s (%s) listening on %s", a.version, a.buildDate, a.server.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}
