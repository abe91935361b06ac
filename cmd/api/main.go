package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/config"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/database"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/logger"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/observability"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/repos"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/server"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Mode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	if err := database.Migrate(cfg.DB.DSN()); err != nil {
		log.Fatal("Postgres migration failed", "error", err)
	}
	db, err := database.Open(cfg.DB, cfg.Mode, log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	defer db.Close()

	isolation, err := cfg.Votes.IsolationLevel()
	if err != nil {
		log.Fatal("Invalid vote isolation", "error", err)
	}

	// Vote engine
	gormDB := db.GetDB()
	metrics := observability.NewMetrics()
	engine := votes.NewService(votes.Deps{
		Directory: repos.NewDirectory(gormDB),
		Ledger:    repos.NewVoteRepo(gormDB),
		Counters:  repos.NewCounterRepo(gormDB),
		Runner:    votes.NewGormTxRunner(gormDB, isolation),
		Hooks:     observability.NewVoteHooks(metrics),
		Log:       log.With("component", "votes"),
	}, votes.Options{
		MaxAttempts:    cfg.Votes.MaxAttempts,
		AttemptTimeout: cfg.Votes.AttemptTimeout,
		InitialBackoff: cfg.Votes.InitialBackoff,
		MaxBackoff:     cfg.Votes.MaxBackoff,
	})

	srv := server.NewServer(server.Deps{
		Config:  cfg,
		DB:      db,
		Votes:   engine,
		Metrics: metrics,
		Log:     log.With("component", "http"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("Server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	log.Info("Server exited")
}
