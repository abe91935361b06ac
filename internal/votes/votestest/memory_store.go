package votestest

import (
	"context"
	"sync"
	"time"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/pkg/dbctx"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
	"github.com/jackc/pgx/v5/pgconn"
)

type pairKey struct {
	voter   int
	content votes.ContentRef
}

type contentRow struct {
	active   bool
	counters votes.Counters
}

// MemoryStore is an in-process stand-in for the Postgres tables behind the
// engine. It implements Directory, Ledger, CounterStore and TxRunner.
// Transactions are fully serialized and a failed one restores the state it
// started from.
type MemoryStore struct {
	txMu sync.Mutex

	mu      sync.Mutex
	users   map[int]bool
	content map[votes.ContentRef]*contentRow
	records map[int]*votes.Record
	byPair  map[pairKey]int
	nextID  int
	faults  map[string][]error

	// DirectoryCalls counts Directory lookups; TxCalls counts InTx calls.
	DirectoryCalls int
	TxCalls        int
}

var (
	_ votes.Directory    = (*MemoryStore)(nil)
	_ votes.Ledger       = (*MemoryStore)(nil)
	_ votes.CounterStore = (*MemoryStore)(nil)
	_ votes.TxRunner     = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   map[int]bool{},
		content: map[votes.ContentRef]*contentRow{},
		records: map[int]*votes.Record{},
		byPair:  map[pairKey]int{},
		faults:  map[string][]error{},
	}
}

// UniqueViolation is the error the store raises for a duplicate pair,
// shaped like the one Postgres returns.
func UniqueViolation() error {
	return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint \"idx_votes_user_content\""}
}

// SerializationFailure mimics a Postgres serializable abort.
func SerializationFailure() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
}

func (m *MemoryStore) AddUser(id int, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = active
}

func (m *MemoryStore) AddContent(ref votes.ContentRef, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[ref] = &contentRow{active: active}
}

// SetCounters overwrites stored counters directly, bypassing the ledger.
func (m *MemoryStore) SetCounters(ref votes.ContentRef, c votes.Counters) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.content[ref]; ok {
		row.counters = c
	}
}

func (m *MemoryStore) CountersOf(ref votes.ContentRef) votes.Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.content[ref]; ok {
		return row.counters
	}
	return votes.Counters{}
}

// RecordOf returns a copy of the ledger row for the pair, or nil.
func (m *MemoryStore) RecordOf(voterID int, ref votes.ContentRef) *votes.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byPair[pairKey{voter: voterID, content: ref}]
	if !ok {
		return nil
	}
	rec := *m.records[id]
	return &rec
}

func (m *MemoryStore) RecordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// TallyOf counts ledger rows for one piece of content.
func (m *MemoryStore) TallyOf(ref votes.ContentRef) votes.Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c votes.Counters
	for _, rec := range m.records {
		if rec.Content != ref {
			continue
		}
		if rec.Polarity == votes.Positive {
			c.Upvotes++
		} else {
			c.Downvotes++
		}
	}
	return c
}

// Inject queues err to be returned by the next call of method (one of
// Find, Insert, SetPolarity, Delete, Apply, StatesFor). A nil entry lets one call pass.
func (m *MemoryStore) Inject(method string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[method] = append(m.faults[method], errs...)
}

// fault must be called with mu held.
func (m *MemoryStore) fault(method string) error {
	q := m.faults[method]
	if len(q) == 0 {
		return nil
	}
	m.faults[method] = q[1:]
	return q[0]
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.TxCalls++
	snap := m.snapshot()
	m.mu.Unlock()

	if err := fn(dbctx.Context{Ctx: ctx}); err != nil {
		m.restore(snap)
		return err
	}
	if err := ctx.Err(); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	content map[votes.ContentRef]contentRow
	records map[int]votes.Record
	nextID  int
}

func (m *MemoryStore) snapshot() memSnapshot {
	s := memSnapshot{
		content: make(map[votes.ContentRef]contentRow, len(m.content)),
		records: make(map[int]votes.Record, len(m.records)),
		nextID:  m.nextID,
	}
	for k, v := range m.content {
		s.content[k] = *v
	}
	for k, v := range m.records {
		s.records[k] = *v
	}
	return s
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = make(map[votes.ContentRef]*contentRow, len(s.content))
	for k, v := range s.content {
		row := v
		m.content[k] = &row
	}
	m.records = make(map[int]*votes.Record, len(s.records))
	m.byPair = make(map[pairKey]int, len(s.records))
	for k, v := range s.records {
		rec := v
		m.records[k] = &rec
		m.byPair[pairKey{voter: rec.VoterID, content: rec.Content}] = k
	}
	m.nextID = s.nextID
}

func (m *MemoryStore) GetActiveUser(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DirectoryCalls++
	if !m.users[id] {
		return votes.ErrUserNotFound
	}
	return nil
}

func (m *MemoryStore) GetActiveContent(ctx context.Context, ref votes.ContentRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DirectoryCalls++
	row, ok := m.content[ref]
	if !ok || !row.active {
		return votes.ErrContentNotFound
	}
	return nil
}

func (m *MemoryStore) Find(dbc dbctx.Context, voterID int, content votes.ContentRef) (*votes.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("Find"); err != nil {
		return nil, err
	}
	id, ok := m.byPair[pairKey{voter: voterID, content: content}]
	if !ok {
		return nil, nil
	}
	rec := *m.records[id]
	return &rec, nil
}

func (m *MemoryStore) Insert(dbc dbctx.Context, rec *votes.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("Insert"); err != nil {
		return err
	}
	key := pairKey{voter: rec.VoterID, content: rec.Content}
	if _, exists := m.byPair[key]; exists {
		return UniqueViolation()
	}
	m.nextID++
	now := time.Now().UTC()
	rec.ID = m.nextID
	rec.CreatedAt = now
	rec.UpdatedAt = now
	stored := *rec
	m.records[stored.ID] = &stored
	m.byPair[key] = stored.ID
	return nil
}

func (m *MemoryStore) SetPolarity(dbc dbctx.Context, id int, from, to votes.Polarity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("SetPolarity"); err != nil {
		return err
	}
	rec, ok := m.records[id]
	if !ok || rec.Polarity != from {
		return votes.ConflictError("votes.ledger.set_polarity", "vote changed concurrently")
	}
	rec.Polarity = to
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) Delete(dbc dbctx.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("Delete"); err != nil {
		return err
	}
	rec, ok := m.records[id]
	if !ok {
		return votes.ConflictError("votes.ledger.delete", "vote already removed")
	}
	delete(m.byPair, pairKey{voter: rec.VoterID, content: rec.Content})
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) Tally(dbc dbctx.Context, kind votes.ContentKind) (map[int]votes.Counters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]votes.Counters{}
	for _, rec := range m.records {
		if rec.Content.Kind != kind {
			continue
		}
		c := out[rec.Content.ID]
		if rec.Polarity == votes.Positive {
			c.Upvotes++
		} else {
			c.Downvotes++
		}
		out[rec.Content.ID] = c
	}
	return out, nil
}

func (m *MemoryStore) StatesFor(dbc dbctx.Context, voterID int, kind votes.ContentKind, ids []int) (map[int]votes.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("StatesFor"); err != nil {
		return nil, err
	}
	out := map[int]votes.State{}
	for _, id := range ids {
		if recID, ok := m.byPair[pairKey{voter: voterID, content: votes.ContentRef{Kind: kind, ID: id}}]; ok {
			out[id] = votes.StateOf(m.records[recID])
		}
	}
	return out, nil
}

func (m *MemoryStore) Apply(dbc dbctx.Context, content votes.ContentRef, delta votes.Delta) (votes.Counters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("Apply"); err != nil {
		return votes.Counters{}, err
	}
	row, ok := m.content[content]
	if !ok {
		return votes.Counters{}, votes.ErrContentNotFound
	}
	next := row.counters.Add(delta)
	if next.Upvotes < 0 || next.Downvotes < 0 {
		return votes.Counters{}, votes.ConflictError("votes.counters.apply", "counter would go negative")
	}
	row.counters = next
	return next, nil
}

func (m *MemoryStore) Snapshot(dbc dbctx.Context, kind votes.ContentKind) (map[int]votes.Counters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]votes.Counters{}
	for ref, row := range m.content {
		if ref.Kind == kind {
			out[ref.ID] = row.counters
		}
	}
	return out, nil
}

func (m *MemoryStore) Overwrite(dbc dbctx.Context, content votes.ContentRef, c votes.Counters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.content[content]
	if !ok {
		return votes.ErrContentNotFound
	}
	row.counters = c
	return nil
}
