package votes

// Effect is the single ledger mutation a transition applies.
type Effect int

const (
	EffectInsert Effect = iota + 1
	EffectUpdate
	EffectDelete
)

func (e Effect) String() string {
	switch e {
	case EffectInsert:
		return "insert"
	case EffectUpdate:
		return "update"
	case EffectDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Delta is the signed change applied to a content row's counters.
type Delta struct {
	Upvotes   int
	Downvotes int
}

// Transition describes one step of the per-pair state machine.
type Transition struct {
	From   State
	To     State
	Effect Effect
	// Polarity is the polarity written to the ledger for insert and update.
	// It is zero for delete.
	Polarity Polarity
	Delta    Delta
}

// Decide returns the transition for casting requested on a pair currently in
// state current:
//   - NoVote -> insert a record with the requested polarity
//   - same polarity as current -> delete the record (toggle off)
//   - opposite polarity -> flip the record in place (switch)
func Decide(current State, requested Polarity) (Transition, error) {
	if !requested.Valid() {
		return Transition{}, ErrInvalidPolarity
	}
	target := Upvoted
	if requested == Negative {
		target = Downvoted
	}

	switch current {
	case NoVote:
		return Transition{
			From:     NoVote,
			To:       target,
			Effect:   EffectInsert,
			Polarity: requested,
			Delta:    deltaFor(requested, 1),
		}, nil
	case Upvoted, Downvoted:
		held := Positive
		if current == Downvoted {
			held = Negative
		}
		if held == requested {
			return Transition{
				From:   current,
				To:     NoVote,
				Effect: EffectDelete,
				Delta:  deltaFor(held, -1),
			}, nil
		}
		d := deltaFor(held, -1)
		add := deltaFor(requested, 1)
		return Transition{
			From:     current,
			To:       target,
			Effect:   EffectUpdate,
			Polarity: requested,
			Delta:    Delta{Upvotes: d.Upvotes + add.Upvotes, Downvotes: d.Downvotes + add.Downvotes},
		}, nil
	default:
		return Transition{}, NewError(CodeInternal, "votes.decide", "unknown vote state "+string(current), nil)
	}
}

func deltaFor(p Polarity, n int) Delta {
	if p == Positive {
		return Delta{Upvotes: n}
	}
	return Delta{Downvotes: n}
}
