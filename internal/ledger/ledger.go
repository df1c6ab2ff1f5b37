// Package ledger tracks which voucher ids have already been consumed.
// Entries are never deleted or mutated; marking is once-only.
package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
)

// ErrAlreadyMarked is returned by MarkRedeemed when the id was consumed
// earlier. Callers that checked HasBeenRedeemed first under their own lock
// should never see it; it exists so a racing duplicate mark cannot pass
// silently.
var ErrAlreadyMarked = errors.New("voucher already marked redeemed")

// Ledger is the set of consumed voucher ids. Unmark exists solely for the
// engine's rollback path: a mark whose surrounding redemption failed before
// committing must not leave the id consumed.
type Ledger interface {
	HasBeenRedeemed(ctx context.Context, id *big.Int) (bool, error)
	MarkRedeemed(ctx context.Context, id *big.Int) error
	Unmark(ctx context.Context, id *big.Int) error
}

// Memory is a hash-set ledger for local mode and tests. O(1) lookup.
type Memory struct {
	mu       sync.Mutex
	redeemed map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{redeemed: make(map[string]struct{})}
}

func (m *Memory) HasBeenRedeemed(_ context.Context, id *big.Int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.redeemed[id.String()]
	return ok, nil
}

func (m *Memory) MarkRedeemed(_ context.Context, id *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := id.String()
	if _, ok := m.redeemed[key]; ok {
		return ErrAlreadyMarked
	}
	m.redeemed[key] = struct{}{}
	return nil
}

// Unmark removes an entry. Only the engine's rollback path may call it, to
// undo a mark whose surrounding redemption failed before committing.
func (m *Memory) Unmark(_ context.Context, id *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.redeemed, id.String())
	return nil
}
