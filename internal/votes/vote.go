package votes

import (
	"fmt"
	"strings"
	"time"
)

// Polarity is the direction of a single vote. The numeric values match the
// vote_type column in the ledger table.
type Polarity int8

const (
	Negative Polarity = -1
	Positive Polarity = 1
)

func (p Polarity) Valid() bool {
	return p == Positive || p == Negative
}

func (p Polarity) String() string {
	switch p {
	case Positive:
		return "upvote"
	case Negative:
		return "downvote"
	default:
		return fmt.Sprintf("polarity(%d)", int8(p))
	}
}

// ParsePolarity accepts "upvote"/"downvote" (and the short forms "up"/"down").
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upvote", "up":
		return Positive, nil
	case "downvote", "down":
		return Negative, nil
	default:
		return 0, ErrInvalidPolarity
	}
}

// PolarityFromInt maps the +1/-1 wire form to a Polarity.
func PolarityFromInt(v int) (Polarity, error) {
	p := Polarity(v)
	if v < -1 || v > 1 || !p.Valid() {
		return 0, ErrInvalidPolarity
	}
	return p, nil
}

// State is the logical vote state of one (voter, content) pair.
type State string

const (
	NoVote    State = "none"
	Upvoted   State = "upvoted"
	Downvoted State = "downvoted"
)

// ContentKind names the table that owns the counters for a piece of content.
type ContentKind string

const (
	KindPost    ContentKind = "post"
	KindComment ContentKind = "comment"
)

func (k ContentKind) Valid() bool {
	return k == KindPost || k == KindComment
}

// ContentRef identifies a votable content row.
type ContentRef struct {
	Kind ContentKind `json:"content_kind"`
	ID   int         `json:"content_id"`
}

func (r ContentRef) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// Record is one row of the vote ledger. VoterID and Content never change
// after insert; Polarity flips in place on a switch.
type Record struct {
	ID        int
	VoterID   int
	Content   ContentRef
	Polarity  Polarity
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StateOf reports the state implied by the ledger row for a pair, where a
// nil record means no row exists.
func StateOf(rec *Record) State {
	if rec == nil {
		return NoVote
	}
	if rec.Polarity == Positive {
		return Upvoted
	}
	return Downvoted
}

// Counters is the materialized tally stored on the content row.
type Counters struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

func (c Counters) Add(d Delta) Counters {
	return Counters{Upvotes: c.Upvotes + d.Upvotes, Downvotes: c.Downvotes + d.Downvotes}
}

// Result is what CastVote reports back to the caller after commit.
type Result struct {
	State      State      `json:"state"`
	Transition Transition `json:"-"`
	Counters   Counters   `json:"counters"`
}
