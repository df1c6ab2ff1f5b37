package engine

import (
	"math/big"

	"github.com/dropforge/lazymint/internal/voucher"
)

// CheckBatch validates a voucher quantity against [1, limit].
func CheckBatch(quantity *big.Int, limit uint64) error {
	if quantity == nil || quantity.Sign() <= 0 {
		return ErrZeroQuantity
	}
	if quantity.Cmp(new(big.Int).SetUint64(limit)) > 0 {
		return ErrBatchTooLarge
	}
	return nil
}

// CheckSupply rejects a request that would push the issued count past the
// cap. Quantity is all-or-nothing: a partial fill is never offered. The
// subtraction form stays correct for requests near the uint64 ceiling.
func CheckSupply(requested, issued, cap uint64) error {
	if issued > cap || requested > cap-issued {
		return ErrSupplyExceeded
	}
	return nil
}

// CheckPayment enforces the configured price policy.
//
// PolicyExact: paid must equal fixedUnit * quantity; overpayment is rejected
// too, so funds cannot be accidentally stranded.
// PolicyFloor: paid must be at least floorUnit * quantity.
func CheckPayment(paid *big.Int, quantity uint64, policy voucher.PricePolicy, fixedUnit, floorUnit *big.Int) error {
	if paid == nil {
		paid = new(big.Int)
	}
	q := new(big.Int).SetUint64(quantity)
	switch policy {
	case voucher.PolicyFloor:
		unit := floorUnit
		if unit == nil {
			unit = new(big.Int)
		}
		owed := new(big.Int).Mul(unit, q)
		if paid.Cmp(owed) < 0 {
			return ErrInsufficientFunds
		}
	default:
		owed := new(big.Int).Mul(fixedUnit, q)
		if paid.Cmp(owed) != 0 {
			return ErrInsufficientFunds
		}
	}
	return nil
}
