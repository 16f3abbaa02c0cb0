package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Ameer8055/PIQUI-sub000/internal/auth"
	"github.com/Ameer8055/PIQUI-sub000/internal/battle"
	"github.com/Ameer8055/PIQUI-sub000/internal/config"
	"github.com/Ameer8055/PIQUI-sub000/internal/httpapi"
	"github.com/Ameer8055/PIQUI-sub000/internal/hub"
	"github.com/Ameer8055/PIQUI-sub000/internal/queue"
	"github.com/Ameer8055/PIQUI-sub000/internal/store"
	"github.com/Ameer8055/PIQUI-sub000/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := buildLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	st, err := store.Open(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("store init failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := hub.NewHub(ctx, battle.DefaultConfig(), st, st, log)
	q := queue.NewManager(ctx, h.Pair, log)
	authSvc := auth.NewService(st)

	handler := httpapi.SetupRoutes(ws.Deps{Hub: h, Queue: q, Auth: authSvc, Log: log}, st)

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	h.Inbox() <- hub.ShutdownHub{}
	q.Inbox() <- queue.Shutdown{}
	_ = srv.Shutdown(context.Background())
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
