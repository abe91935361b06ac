// Command reconcile audits post/comment vote counters against the vote
// ledger and, with -repair, rewrites drifted counters from the ledger.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/config"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/database"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/logger"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/repos"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
)

func main() {
	kindFlag := flag.String("kind", "all", "content kind to audit: post, comment or all")
	repair := flag.Bool("repair", false, "overwrite drifted counters with the ledger tally")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

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

	var kinds []votes.ContentKind
	switch *kindFlag {
	case "all":
		kinds = []votes.ContentKind{votes.KindPost, votes.KindComment}
	default:
		k := votes.ContentKind(*kindFlag)
		if !k.Valid() {
			log.Fatal("Unknown content kind", "kind", *kindFlag)
		}
		kinds = []votes.ContentKind{k}
	}

	db, err := database.Open(cfg.DB, cfg.Mode, log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	defer db.Close()

	// the audit compares two tables and must see one snapshot
	gormDB := db.GetDB()
	rec := votes.NewReconciler(votes.Deps{
		Ledger:   repos.NewVoteRepo(gormDB),
		Counters: repos.NewCounterRepo(gormDB),
		Runner:   votes.NewGormTxRunner(gormDB, sql.LevelSerializable),
		Log:      log.With("component", "reconcile"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	total := 0
	for _, kind := range kinds {
		drifts, err := rec.Reconcile(ctx, kind, *repair)
		if err != nil {
			log.Error("Reconcile failed", "kind", kind, "error", err)
			os.Exit(1)
		}
		for _, d := range drifts {
			log.Info("Counter drift",
				"content", d.Content.String(),
				"stored_up", d.Stored.Upvotes,
				"stored_down", d.Stored.Downvotes,
				"ledger_up", d.Tallied.Upvotes,
				"ledger_down", d.Tallied.Downvotes,
			)
		}
		total += len(drifts)
	}

	log.Info("Reconcile finished", "drifted", total, "repaired", *repair)
	if total > 0 && !*repair {
		os.Exit(2)
	}
}
