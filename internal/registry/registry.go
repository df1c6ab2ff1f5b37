// Package registry defines the asset-registry boundary the redemption engine
// drives. The engine only ever originates create + immediate-transfer pairs;
// ownership storage itself lives behind this interface (in-process for local
// mode and tests, on-chain via internal/chain in production).
package registry

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrExists is returned by Create when the token id is already taken.
	ErrExists = errors.New("token already exists")
	// ErrNotFound is returned when a token id has never been created.
	ErrNotFound = errors.New("token not found")
	// ErrNotOwner is returned by Transfer when from is not the current owner.
	ErrNotOwner = errors.New("not token owner")
)

// Registry stores owner-of-token and token-exists facts.
type Registry interface {
	Create(ctx context.Context, owner common.Address, id *big.Int) error
	Exists(ctx context.Context, id *big.Int) (bool, error)
	OwnerOf(ctx context.Context, id *big.Int) (common.Address, error)
	Transfer(ctx context.Context, from, to common.Address, id *big.Int) error
}

// Event is a change notification fired by the in-process registry.
type Event struct {
	Kind string // "created" | "transferred"
	ID   *big.Int
	From common.Address // zero for created
	To   common.Address
}

// Observer receives registry change notifications. Calls happen synchronously
// inside the mutating call, so implementations must not call back into the
// registry.
type Observer func(Event)
