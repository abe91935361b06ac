package votes

import (
	"context"
	"sort"
	"time"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/logger"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/pkg/dbctx"
)

const opReconcile = "votes.reconcile"

// Drift is one content row whose stored counters disagree with the ledger.
type Drift struct {
	Content ContentRef `json:"content"`
	Stored  Counters   `json:"stored"`
	Tallied Counters   `json:"tallied"`
}

// Reconciler audits materialized counters against the vote ledger.
type Reconciler struct {
	ledger   Ledger
	counters CounterStore
	runner   TxRunner
	hooks    Hooks
	log      *logger.Logger
}

func NewReconciler(deps Deps) *Reconciler {
	if deps.Hooks == nil {
		deps.Hooks = noopHooks{}
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	return &Reconciler{
		ledger:   deps.Ledger,
		counters: deps.Counters,
		runner:   deps.Runner,
		hooks:    deps.Hooks,
		log:      deps.Log,
	}
}

// Reconcile compares every content row of kind with the ledger tally in a
// single transaction. With repair set, drifted rows are overwritten with the
// tally before commit. Drifts are returned ordered by content id.
func (r *Reconciler) Reconcile(ctx context.Context, kind ContentKind, repair bool) ([]Drift, error) {
	if !kind.Valid() {
		return nil, Wrap(CodeValidation, opReconcile, ErrInvalidContentKind)
	}
	start := time.Now()

	var drifts []Drift
	err := r.runner.InTx(ctx, func(dbc dbctx.Context) error {
		drifts = nil
		stored, err := r.counters.Snapshot(dbc, kind)
		if err != nil {
			return err
		}
		tallied, err := r.ledger.Tally(dbc, kind)
		if err != nil {
			return err
		}

		for id, have := range stored {
			want := tallied[id]
			if have != want {
				drifts = append(drifts, Drift{Content: ContentRef{Kind: kind, ID: id}, Stored: have, Tallied: want})
			}
		}
		for id, want := range tallied {
			if _, ok := stored[id]; !ok {
				// ledger rows for content that no longer exists; cannot repair
				drifts = append(drifts, Drift{Content: ContentRef{Kind: kind, ID: id}, Tallied: want})
			}
		}
		sort.Slice(drifts, func(i, j int) bool { return drifts[i].Content.ID < drifts[j].Content.ID })

		if !repair {
			return nil
		}
		for _, d := range drifts {
			if _, ok := stored[d.Content.ID]; !ok {
				continue
			}
			if err := r.counters.Overwrite(dbc, d.Content, d.Tallied); err != nil {
				return err
			}
		}
		return nil
	})
	err = MapError(opReconcile, err)
	r.hooks.ObserveOperation(opReconcile, statusOf(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	if len(drifts) > 0 {
		r.log.Warn("counter drift detected",
			"content_kind", kind, "rows", len(drifts), "repaired", repair)
	} else {
		r.log.Info("counters consistent with ledger", "content_kind", kind)
	}
	return drifts, nil
}
