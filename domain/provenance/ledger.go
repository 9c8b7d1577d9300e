package provenance

import (
	"context"
	"sync"

	"loanaudit/domain/core"
)

// Filter narrows a ledger listing. Zero values match everything.
type Filter struct {
	Action ActionKind
	RunID  core.RunID
	Limit  int
}

func (f Filter) matches(e Entry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	return true
}

// Ledger is an append-only, ordered in-memory provenance log
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Append validates and stores an entry at the end of the log
func (l *Ledger) Append(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

// Entries returns a copy of every entry in append order
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// List returns matching entries in append order
func (l *Ledger) List(ctx context.Context, f Filter) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if !f.matches(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}
