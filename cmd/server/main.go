package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/champsdual-dev/champsdual/internal/battle"
	"github.com/champsdual-dev/champsdual/internal/codes"
	"github.com/champsdual-dev/champsdual/internal/config"
	"github.com/champsdual-dev/champsdual/internal/coop"
	"github.com/champsdual-dev/champsdual/internal/duel"
	"github.com/champsdual-dev/champsdual/internal/httpapi"
	"github.com/champsdual-dev/champsdual/internal/hub"
	"github.com/champsdual-dev/champsdual/internal/ws"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	log, err := buildLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coopHub := hub.New[*coop.Room](ctx, codes.NewGenerator('C'), log.Named("coop"))
	duelHub := hub.New[*duel.Room](ctx, codes.NewGenerator('D'), log.Named("duel"))
	battleHub := hub.New[*battle.Room](ctx, codes.NewGenerator('B'), log.Named("battle"))

	dispatcher := ws.NewDispatcher(ctx, cfg, coopHub, duelHub, battleHub, log)
	handler := httpapi.SetupRoutes(dispatcher.Handler(), cfg.Server.StaticDir)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		coopHub.Shutdown()
		duelHub.Shutdown()
		battleHub.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func buildLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
