package registry

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Memory is an in-process Registry keyed by the decimal token id.
type Memory struct {
	mu       sync.Mutex
	owners   map[string]common.Address
	observer Observer
}

func NewMemory() *Memory {
	return &Memory{owners: make(map[string]common.Address)}
}

// SetObserver registers a change-notification callback. Pass nil to clear.
func (m *Memory) SetObserver(obs Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = obs
}

func (m *Memory) Create(_ context.Context, owner common.Address, id *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := id.String()
	if _, ok := m.owners[key]; ok {
		return ErrExists
	}
	m.owners[key] = owner
	if m.observer != nil {
		m.observer(Event{Kind: "created", ID: new(big.Int).Set(id), To: owner})
	}
	return nil
}

func (m *Memory) Exists(_ context.Context, id *big.Int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.owners[id.String()]
	return ok, nil
}

func (m *Memory) OwnerOf(_ context.Context, id *big.Int) (common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[id.String()]
	if !ok {
		return common.Address{}, ErrNotFound
	}
	return owner, nil
}

func (m *Memory) Transfer(_ context.Context, from, to common.Address, id *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := id.String()
	owner, ok := m.owners[key]
	if !ok {
		return ErrNotFound
	}
	if owner != from {
		return ErrNotOwner
	}
	m.owners[key] = to
	if m.observer != nil {
		m.observer(Event{Kind: "transferred", ID: new(big.Int).Set(id), From: from, To: to})
	}
	return nil
}

// Count returns the number of tokens ever created.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.owners)
}
