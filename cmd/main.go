package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/validate"

	"go-snake/config"
	"go-snake/domain/room"
	"go-snake/server"
	"go-snake/utils"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(2)
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := room.NewInMemoryService(
		room.WithGridSize(cfg.GridSize),
		room.WithIdleTimeout(cfg.IdleTimeout),
		room.WithLogger(logger.With(slog.String("component", "room"))),
	)
	driver := room.NewDriver(svc, cfg.TickInterval, nil)
	go func() { _ = driver.Run(ctx) }()

	validateInterceptor, err := validate.NewInterceptor()
	if err != nil {
		slog.Error("error creating interceptor",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv := server.New(svc, logger.With(slog.String("component", "server")))
	mux := http.NewServeMux()
	srv.Register(mux, connect.WithInterceptors(validateInterceptor))
	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			mux.Handle("/", server.StaticHandler(cfg.StaticDir))
		} else {
			slog.Warn("static directory not found, frontend disabled", slog.String("dir", cfg.StaticDir))
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           utils.WithCORS(utils.WithRequestLog(logger, mux)),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	httpServer.RegisterOnShutdown(srv.Close)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", slog.String("error", err.Error()))
		}
	}()

	slog.Info("server running",
		slog.String("addr", cfg.Addr),
		slog.Int("grid", cfg.GridSize),
		slog.Duration("tick", cfg.TickInterval),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("server stopped")
}
