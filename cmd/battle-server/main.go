package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kodzimk/head2head/internal/battle"
	appcfg "github.com/kodzimk/head2head/internal/config"
	"github.com/kodzimk/head2head/internal/msgcat"
	"github.com/kodzimk/head2head/internal/obslog"
	"github.com/kodzimk/head2head/internal/quizgen"
	"github.com/kodzimk/head2head/internal/transport"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis url error: %v", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("redis connect error: %v", err)
	}
	cancel()

	repo, err := battle.NewRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("repository init error: %v", err)
	}

	gen := quizgen.NewClient(cfg.QuizAPIURL)
	registry := battle.NewRegistry()
	questions := battle.NewQuestionCache(rdb, gen, cfg.QuestionTTL, cfg.QuestionCount)

	engine := battle.NewEngine(battle.Config{
		PacingDelay:   cfg.PacingDelay,
		RecheckDelay:  cfg.RecheckDelay,
		StaleWaitCap:  cfg.StaleWaitCap,
		BattleTimeCap: cfg.BattleTimeCap,
		MinBattleAge:  cfg.MinBattleAge,
		InactivityCap: cfg.InactivityCap,
	}, registry, questions, repo, repo)

	if cat, err := msgcat.New(cfg.MsgCatalogDir); err != nil {
		obslog.L().Warn("message_catalog_unavailable", zap.Error(err))
	} else {
		engine.SetNotices(msgcat.NewBattleNotices(cat))
	}

	sweeper, err := battle.NewSweeper(engine, cfg.SweepPeriod, cfg.InactivitySweepPeriod)
	if err != nil {
		log.Fatalf("sweeper init error: %v", err)
	}
	sweeper.Start()

	handler := transport.NewHandler(engine)
	mux := http.NewServeMux()
	handler.Register(mux)
	handler.RegisterHTTP(mux)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("battle_server_listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	obslog.L().Info("battle_server_stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obslog.L().Warn("server shutdown error", zap.Error(err))
	}
	sweeper.Stop()
	_ = repo.Close()
	_ = rdb.Close()
}
