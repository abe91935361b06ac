package votes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/logger"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/pkg/dbctx"
)

const (
	opCastVote   = "votes.cast"
	opVoteStates = "votes.states"

	// MaxStateLookup caps the number of ids one VoteStates call may ask for.
	MaxStateLookup = 100
)

// Options bounds the retry loop around one CastVote call.
type Options struct {
	MaxAttempts    uint
	AttemptTimeout time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 2 * time.Second
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 20 * time.Millisecond
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = o.InitialBackoff
	}
	return o
}

type Deps struct {
	Directory Directory
	Ledger    Ledger
	Counters  CounterStore
	Runner    TxRunner
	Hooks     Hooks
	Log       *logger.Logger
}

// Service is the vote engine. It is safe for concurrent use; all
// coordination between callers happens in the database.
type Service struct {
	dir      Directory
	ledger   Ledger
	counters CounterStore
	runner   TxRunner
	hooks    Hooks
	log      *logger.Logger
	opts     Options
}

func NewService(deps Deps, opts Options) *Service {
	if deps.Hooks == nil {
		deps.Hooks = noopHooks{}
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	return &Service{
		dir:      deps.Directory,
		ledger:   deps.Ledger,
		counters: deps.Counters,
		runner:   deps.Runner,
		hooks:    deps.Hooks,
		log:      deps.Log,
		opts:     opts.withDefaults(),
	}
}

// CastVote applies one vote request for voterID on content. Casting the
// polarity already held removes the vote; casting the opposite one switches
// it. The ledger row and the content counters change together or not at all.
func (s *Service) CastVote(ctx context.Context, voterID int, content ContentRef, polarity Polarity) (*Result, error) {
	start := time.Now()
	res, err := s.castVote(ctx, voterID, content, polarity)

	if IsCode(err, CodeConflict) {
		s.hooks.IncConflict(opCastVote)
	}
	s.hooks.ObserveOperation(opCastVote, statusOf(err), time.Since(start))

	if err != nil {
		switch CodeOf(err) {
		case CodeValidation, CodeNotFound:
			s.log.Debug("vote rejected",
				"voter_id", voterID, "content_kind", content.Kind, "content_id", content.ID, "error", err)
		default:
			s.log.Error("vote failed",
				"voter_id", voterID, "content_kind", content.Kind, "content_id", content.ID, "error", err)
		}
		return nil, err
	}
	s.log.Debug("vote applied",
		"voter_id", voterID,
		"content_kind", content.Kind,
		"content_id", content.ID,
		"from", res.Transition.From,
		"to", res.Transition.To,
		"effect", res.Transition.Effect.String(),
	)
	return res, nil
}

func (s *Service) castVote(ctx context.Context, voterID int, content ContentRef, polarity Polarity) (*Result, error) {
	if err := validate(voterID, content, polarity); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, NewError(CodeUnavailable, opCastVote, "request cancelled", err)
	}

	if err := s.checkPreconditions(ctx, voterID, content); err != nil {
		return nil, s.finalize(ctx, err)
	}

	attempt := 0
	res, err := backoff.Retry(ctx, func() (*Result, error) {
		attempt++
		return s.attempt(ctx, voterID, content, polarity)
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(s.opts.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.hooks.IncRetry(opCastVote)
			s.log.Warn("vote attempt failed, retrying",
				"voter_id", voterID,
				"content_kind", content.Kind,
				"content_id", content.ID,
				"attempt", attempt,
				"backoff", next,
				"error", err,
			)
		}),
	)
	if err != nil {
		return nil, s.finalize(ctx, err)
	}
	return res, nil
}

func validate(voterID int, content ContentRef, polarity Polarity) error {
	switch {
	case voterID <= 0:
		return NewError(CodeValidation, opCastVote, "voter id must be positive", nil)
	case !content.Kind.Valid():
		return Wrap(CodeValidation, opCastVote, ErrInvalidContentKind)
	case content.ID <= 0:
		return NewError(CodeValidation, opCastVote, "content id must be positive", nil)
	case !polarity.Valid():
		return Wrap(CodeValidation, opCastVote, ErrInvalidPolarity)
	}
	return nil
}

func (s *Service) checkPreconditions(ctx context.Context, voterID int, content ContentRef) error {
	if err := s.dir.GetActiveUser(ctx, voterID); err != nil {
		return MapError(opCastVote, err)
	}
	if err := s.dir.GetActiveContent(ctx, content); err != nil {
		return MapError(opCastVote, err)
	}
	return nil
}

// attempt runs one read-decide-write transaction. Errors that must not be
// retried come back wrapped in backoff.Permanent.
func (s *Service) attempt(ctx context.Context, voterID int, content ContentRef, polarity Polarity) (*Result, error) {
	actx, cancel := context.WithTimeout(ctx, s.opts.AttemptTimeout)
	defer cancel()

	var out *Result
	err := s.runner.InTx(actx, func(dbc dbctx.Context) error {
		rec, err := s.ledger.Find(dbc, voterID, content)
		if err != nil {
			return err
		}
		tr, err := Decide(StateOf(rec), polarity)
		if err != nil {
			return err
		}

		switch tr.Effect {
		case EffectInsert:
			err = s.ledger.Insert(dbc, &Record{VoterID: voterID, Content: content, Polarity: tr.Polarity})
		case EffectUpdate:
			err = s.ledger.SetPolarity(dbc, rec.ID, rec.Polarity, tr.Polarity)
		case EffectDelete:
			err = s.ledger.Delete(dbc, rec.ID)
		}
		if err != nil {
			return err
		}

		counters, err := s.counters.Apply(dbc, content, tr.Delta)
		if err != nil {
			return err
		}
		out = &Result{State: tr.To, Transition: tr, Counters: counters}
		return nil
	})
	if err == nil {
		return out, nil
	}

	if cerr := ctx.Err(); cerr != nil {
		return nil, backoff.Permanent(NewError(CodeUnavailable, opCastVote, "request cancelled", cerr))
	}
	mapped := MapError(opCastVote, err)
	if !isRetryable(mapped) {
		return nil, backoff.Permanent(mapped)
	}
	return nil, mapped
}

// VoteStates reports voterID's current state on each of ids, NoVote included.
// It is a plain read outside the retry loop; clients use it to sync their
// view of the ledger.
func (s *Service) VoteStates(ctx context.Context, voterID int, kind ContentKind, ids []int) (map[int]State, error) {
	start := time.Now()
	out, err := s.voteStates(ctx, voterID, kind, ids)
	s.hooks.ObserveOperation(opVoteStates, statusOf(err), time.Since(start))
	if err != nil && !IsCode(err, CodeValidation) {
		s.log.Error("vote state lookup failed", "voter_id", voterID, "content_kind", kind, "error", err)
	}
	return out, err
}

func (s *Service) voteStates(ctx context.Context, voterID int, kind ContentKind, ids []int) (map[int]State, error) {
	switch {
	case voterID <= 0:
		return nil, NewError(CodeValidation, opVoteStates, "voter id must be positive", nil)
	case !kind.Valid():
		return nil, Wrap(CodeValidation, opVoteStates, ErrInvalidContentKind)
	case len(ids) == 0:
		return nil, NewError(CodeValidation, opVoteStates, "at least one content id is required", nil)
	case len(ids) > MaxStateLookup:
		return nil, NewError(CodeValidation, opVoteStates, fmt.Sprintf("at most %d content ids per lookup", MaxStateLookup), nil)
	}
	for _, id := range ids {
		if id <= 0 {
			return nil, NewError(CodeValidation, opVoteStates, "content id must be positive", nil)
		}
	}

	found, err := s.ledger.StatesFor(dbctx.Context{Ctx: ctx}, voterID, kind, ids)
	if err != nil {
		err = MapError(opVoteStates, err)
		if IsCode(err, CodeRetryable) {
			return nil, NewError(CodeUnavailable, opVoteStates, "vote states could not be read, try again", err)
		}
		return nil, err
	}
	out := make(map[int]State, len(ids))
	for _, id := range ids {
		st, ok := found[id]
		if !ok {
			st = NoVote
		}
		out[id] = st
	}
	return out, nil
}

func (s *Service) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialBackoff
	b.MaxInterval = s.opts.MaxBackoff
	return b
}

// finalize converts the last attempt's error into what callers see.
func (s *Service) finalize(ctx context.Context, err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if cerr := ctx.Err(); cerr != nil && !IsCode(err, CodeUnavailable) {
		return NewError(CodeUnavailable, opCastVote, "request cancelled", cerr)
	}
	err = MapError(opCastVote, err)
	if IsCode(err, CodeRetryable) {
		return NewError(CodeUnavailable, opCastVote, "vote could not be applied, try again", err)
	}
	return err
}
