// Package engine implements the voucher redemption orchestrator: one
// externally-triggered transition that validates a signed voucher, consumes
// it, and drives the asset registry through the create + transfer sequence.
//
// All state-mutating entry points serialize on a single mutex, so every
// transition observes a consistent pre-state and either commits fully or
// leaves nothing behind.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/dropforge/lazymint/internal/ledger"
	"github.com/dropforge/lazymint/internal/registry"
	"github.com/dropforge/lazymint/internal/voucher"
)

// Authorizer is the live capability check consulted on every call; decisions
// are never cached across transitions.
type Authorizer interface {
	IsAuthorizedIssuer(principal common.Address) bool
	IsAdmin(principal common.Address) bool
}

// Params fixes the engine's policy at construction time.
type Params struct {
	ChainID      *big.Int
	ContractAddr common.Address
	Policy       voucher.PricePolicy
	// FixedUnitPrice applies under PolicyExact; ignored under PolicyFloor.
	FixedUnitPrice *big.Int
	MaxSupply      uint64
	BatchLimit     uint64
	// ReservedCap bounds the administrative range, which occupies ids
	// MaxSupply+1 .. MaxSupply+ReservedCap (disjoint from the public range).
	ReservedCap uint64
	// EnabledAtStart opens the redemption path immediately. Default off:
	// an admin must enable it explicitly.
	EnabledAtStart bool
}

// Engine is the redemption orchestrator.
type Engine struct {
	mu     sync.Mutex
	params Params
	reg    registry.Registry
	auth   Authorizer
	ldg    ledger.Ledger
	log    *zap.Logger

	enabled   bool
	issued    uint64 // public ids handed out; monotonic
	reserved  uint64 // reserved ids handed out; monotonic
	collected *big.Int
}

func New(params Params, reg registry.Registry, auth Authorizer, ldg ledger.Ledger, log *zap.Logger) *Engine {
	if params.FixedUnitPrice == nil {
		params.FixedUnitPrice = new(big.Int)
	}
	return &Engine{
		params:    params,
		reg:       reg,
		auth:      auth,
		ldg:       ldg,
		log:       log,
		enabled:   params.EnabledAtStart,
		collected: new(big.Int),
	}
}

// Redeem applies the single redemption transition. On success it returns the
// newly created token ids (sequential, owned by the redeemer after the
// provenance transfer). Any failure leaves counters, the ledger, the treasury
// and the registry untouched.
func (e *Engine) Redeem(ctx context.Context, v *voucher.MintVoucher, payment *big.Int, redeemer common.Address) ([]*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return nil, ErrRedemptionDisabled
	}

	// A voucher whose fields cannot occupy the schema's uint256 slots cannot
	// carry a verifiable signature.
	if err := voucher.CheckWire(v); err != nil {
		return nil, ErrInvalidSignature
	}
	digest := voucher.Digest(v, e.params.Policy, e.params.ChainID, e.params.ContractAddr)
	signer, err := voucher.RecoverSigner(digest, v.Signature)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	// Authority is checked live, not baked into the voucher: a revoked
	// issuer's outstanding vouchers stop working here.
	if !e.auth.IsAuthorizedIssuer(signer) {
		return nil, ErrUnauthorized
	}

	if err := CheckBatch(v.Quantity, e.params.BatchLimit); err != nil {
		return nil, err
	}
	quantity := v.Quantity.Uint64()

	if err := CheckSupply(quantity, e.issued, e.params.MaxSupply); err != nil {
		return nil, err
	}
	if err := CheckPayment(payment, quantity, e.params.Policy, e.params.FixedUnitPrice, v.UnitPrice); err != nil {
		return nil, err
	}

	redeemed, err := e.ldg.HasBeenRedeemed(ctx, v.VoucherID)
	if err != nil {
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}
	if redeemed {
		return nil, ErrAlreadyRedeemed
	}

	// Pre-validate the whole target id range before any mutation. With
	// consistent counters this never fires; it keeps the mint loop below
	// conflict-free so the transition cannot half-apply.
	ids := make([]*big.Int, quantity)
	for i := uint64(0); i < quantity; i++ {
		ids[i] = new(big.Int).SetUint64(e.issued + i + 1)
		exists, err := e.reg.Exists(ctx, ids[i])
		if err != nil {
			return nil, fmt.Errorf("registry exists: %w", err)
		}
		if exists {
			return nil, ErrRegistryConflict
		}
	}

	if err := e.ldg.MarkRedeemed(ctx, v.VoucherID); err != nil {
		if errors.Is(err, ledger.ErrAlreadyMarked) {
			return nil, ErrAlreadyRedeemed
		}
		return nil, fmt.Errorf("ledger mark: %w", err)
	}

	// Mint loop: create owned by the signer first (provenance: the asset
	// originates from the issuer), then hand it to the redeemer.
	for i, id := range ids {
		if err := e.reg.Create(ctx, signer, id); err != nil {
			e.rollbackRedeem(ctx, v.VoucherID, signer, redeemer, ids[:i])
			return nil, fmt.Errorf("%w: create %s: %v", ErrRegistryConflict, id, err)
		}
		if err := e.reg.Transfer(ctx, signer, redeemer, id); err != nil {
			e.rollbackRedeem(ctx, v.VoucherID, signer, redeemer, ids[:i+1])
			return nil, fmt.Errorf("registry transfer %s: %w", id, err)
		}
	}

	// Commit point: counters and treasury move only once every step landed.
	e.issued += quantity
	if payment != nil {
		e.collected.Add(e.collected, payment)
	}

	e.log.Info("voucher redeemed",
		zap.String("voucher_id", v.VoucherID.String()),
		zap.Uint64("quantity", quantity),
		zap.String("signer", signer.Hex()),
		zap.String("redeemer", redeemer.Hex()),
	)
	return ids, nil
}

// rollbackRedeem unwinds a partially applied mint loop: the ledger mark is
// removed and any already-created assets are parked back with the signer so
// the redeemer never observes a partial batch. Failures here are logged, not
// returned; the transition is already failing.
func (e *Engine) rollbackRedeem(ctx context.Context, voucherID *big.Int, signer, redeemer common.Address, created []*big.Int) {
	if err := e.ldg.Unmark(ctx, voucherID); err != nil {
		e.log.Error("rollback: unmark ledger", zap.String("voucher_id", voucherID.String()), zap.Error(err))
	}
	for _, id := range created {
		owner, err := e.reg.OwnerOf(ctx, id)
		if err != nil {
			continue
		}
		if owner == redeemer {
			if err := e.reg.Transfer(ctx, redeemer, signer, id); err != nil {
				e.log.Error("rollback: reclaim token", zap.String("token_id", id.String()), zap.Error(err))
			}
		}
	}
}

// MintReserved allocates count sequential ids from the reserved range and
// creates them directly owned by to. Admin-gated; no voucher, no signature,
// no payment. Reserved ids can be pre-populated out of band, so each target
// id is checked for conflicts before anything is created.
func (e *Engine) MintReserved(ctx context.Context, caller, to common.Address, count uint64) ([]*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.auth.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}
	if count == 0 {
		return nil, ErrZeroQuantity
	}
	if count > e.params.ReservedCap-e.reserved {
		return nil, ErrSupplyExceeded
	}

	ids := make([]*big.Int, count)
	for i := uint64(0); i < count; i++ {
		ids[i] = new(big.Int).SetUint64(e.params.MaxSupply + e.reserved + i + 1)
		exists, err := e.reg.Exists(ctx, ids[i])
		if err != nil {
			return nil, fmt.Errorf("registry exists: %w", err)
		}
		if exists {
			return nil, ErrRegistryConflict
		}
	}

	for _, id := range ids {
		if err := e.reg.Create(ctx, to, id); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", ErrRegistryConflict, id, err)
		}
	}
	e.reserved += count

	e.log.Info("reserved mint",
		zap.Uint64("count", count),
		zap.String("to", to.Hex()),
		zap.Uint64("reserved_total", e.reserved),
	)
	return ids, nil
}

// SetRedemptionEnabled toggles the public redemption path. Admin-gated.
func (e *Engine) SetRedemptionEnabled(caller common.Address, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.auth.IsAdmin(caller) {
		return ErrUnauthorized
	}
	e.enabled = enabled
	e.log.Info("redemption toggled", zap.Bool("enabled", enabled), zap.String("by", caller.Hex()))
	return nil
}

// Withdraw moves amount out of the collected balance. Admin-gated.
func (e *Engine) Withdraw(caller, to common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.auth.IsAdmin(caller) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(e.collected) > 0 {
		return ErrInsufficientFunds
	}
	e.collected.Sub(e.collected, amount)
	e.log.Info("withdrawal",
		zap.String("amount", amount.String()),
		zap.String("to", to.Hex()),
		zap.String("remaining", e.collected.String()),
	)
	return nil
}

// RedemptionEnabled reports the toggle state.
func (e *Engine) RedemptionEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Issued returns the public issued count.
func (e *Engine) Issued() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.issued
}

// Reserved returns the reserved issued count.
func (e *Engine) Reserved() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reserved
}

// Balance returns a copy of the withdrawable collected balance.
func (e *Engine) Balance() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.collected)
}
