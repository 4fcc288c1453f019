// Package session holds the per-conversation cache of already-resolved
// skill content. A session tracks which overviews and references have been
// disclosed and how much of the context budget they consumed, so repeated
// activations return cache-hit markers instead of duplicating content.
//
// Sessions live for exactly one agent conversation: created empty at
// conversation start, mutated only by the disclosure resolver, discarded at
// conversation end. They are never persisted and never shared between
// conversations.
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrInvalidated is returned when a session is used after a corpus reload
// invalidated it. Cached content may no longer match the corpus, so the
// session is unusable; callers start a fresh one.
var ErrInvalidated = errors.New("session invalidated by corpus reload")

// Outcome classifies one attempted consumption against the session cache
// and a budget.
type Outcome int

const (
	// Recorded means the item was not cached and fit the budget; its cost
	// is now part of the consumed total.
	Recorded Outcome = iota
	// CacheHit means the item was already loaded in this session; nothing
	// was consumed.
	CacheHit
	// BudgetExceeded means loading the item would overflow the budget;
	// nothing was recorded.
	BudgetExceeded
)

// Session is the mutable per-conversation cache. All methods are safe for
// concurrent use; the check-and-record operations hold one lock across the
// read-modify-write of budget and cache membership so concurrent resolves
// never double-count an identical load.
type Session struct {
	id string

	mu          sync.Mutex
	skills      map[string]struct{}
	references  map[string]struct{}
	consumed    int
	invalidated bool
}

// New creates an empty session with a fresh unique id.
func New() *Session {
	return &Session{
		id:         uuid.NewString(),
		skills:     make(map[string]struct{}),
		references: make(map[string]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// HasSkill reports whether the skill's overview is already loaded.
func (s *Session) HasSkill(skillID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.skills[skillID]
	return ok
}

// HasReference reports whether a reference document is already loaded.
func (s *Session) HasReference(skillID, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.references[refKey(skillID, path)]
	return ok
}

// Consumed returns the total budget consumed so far, in the corpus unit.
func (s *Session) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed
}

// ConsumeSkill atomically records the skill's overview load unless it is
// already cached or its cost would push the consumed total past budget.
func (s *Session) ConsumeSkill(skillID string, itemCost, budget int) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalidated {
		return BudgetExceeded, ErrInvalidated
	}
	if _, ok := s.skills[skillID]; ok {
		return CacheHit, nil
	}
	if s.consumed+itemCost > budget {
		return BudgetExceeded, nil
	}
	s.skills[skillID] = struct{}{}
	s.consumed += itemCost
	return Recorded, nil
}

// ConsumeReference atomically records a reference load unless it is already
// cached or its cost would push the consumed total past budget.
func (s *Session) ConsumeReference(skillID, path string, itemCost, budget int) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalidated {
		return BudgetExceeded, ErrInvalidated
	}
	key := refKey(skillID, path)
	if _, ok := s.references[key]; ok {
		return CacheHit, nil
	}
	if s.consumed+itemCost > budget {
		return BudgetExceeded, nil
	}
	s.references[key] = struct{}{}
	s.consumed += itemCost
	return Recorded, nil
}

// Reset discards all cached state, returning the session to its initial
// empty state without changing its id.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skills = make(map[string]struct{})
	s.references = make(map[string]struct{})
	s.consumed = 0
}

// Invalidate marks the session unusable. Every subsequent consume returns
// ErrInvalidated. Used when the corpus is reloaded out from under the
// session.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = true
}

// Invalidated reports whether the session has been invalidated.
func (s *Session) Invalidated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidated
}

func refKey(skillID, path string) string {
	return skillID + "\x00" + path
}

// Tx stages consumptions without applying them to the session. Begin takes
// the session lock and holds it until Commit or Rollback, so a whole
// resolve pass runs as one serialized unit: either every staged item
// commits, or the session is left exactly as it was. Staged items observe
// committed state and each other for cache hits and budget accounting.
type Tx struct {
	s          *Session
	skills     map[string]struct{}
	references map[string]struct{}
	consumed   int
	done       bool
}

// Begin starts a transaction. The session lock is held until Commit or
// Rollback is called; exactly one of them must be.
func (s *Session) Begin() (*Tx, error) {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return nil, ErrInvalidated
	}
	return &Tx{
		s:          s,
		skills:     make(map[string]struct{}),
		references: make(map[string]struct{}),
	}, nil
}

// ConsumeSkill stages the skill's overview load unless it is already cached
// (committed or staged) or its cost would push the total past budget.
func (t *Tx) ConsumeSkill(skillID string, itemCost, budget int) Outcome {
	if _, ok := t.s.skills[skillID]; ok {
		return CacheHit
	}
	if _, ok := t.skills[skillID]; ok {
		return CacheHit
	}
	if t.s.consumed+t.consumed+itemCost > budget {
		return BudgetExceeded
	}
	t.skills[skillID] = struct{}{}
	t.consumed += itemCost
	return Recorded
}

// ConsumeReference stages a reference load unless it is already cached
// (committed or staged) or its cost would push the total past budget.
func (t *Tx) ConsumeReference(skillID, path string, itemCost, budget int) Outcome {
	key := refKey(skillID, path)
	if _, ok := t.s.references[key]; ok {
		return CacheHit
	}
	if _, ok := t.references[key]; ok {
		return CacheHit
	}
	if t.s.consumed+t.consumed+itemCost > budget {
		return BudgetExceeded
	}
	t.references[key] = struct{}{}
	t.consumed += itemCost
	return Recorded
}

// Consumed returns the session's committed total plus this transaction's
// staged total.
func (t *Tx) Consumed() int {
	return t.s.consumed + t.consumed
}

// Commit applies the staged items to the session and releases the lock.
func (t *Tx) Commit() {
	if t.done {
		return
	}
	t.done = true
	for id := range t.skills {
		t.s.skills[id] = struct{}{}
	}
	for key := range t.references {
		t.s.references[key] = struct{}{}
	}
	t.s.consumed += t.consumed
	t.s.mu.Unlock()
}

// Rollback discards the staged items and releases the lock. Calling it
// after Commit is a no-op, so it is safe to defer.
func (t *Tx) Rollback() {
	if t.done {
		return
	}
	t.done = true
	t.s.mu.Unlock()
}
