package voucher

import (
	"math/big"
)

// PricePolicy selects how a voucher's price is interpreted and which
// typed-data schema the digest commits to.
type PricePolicy uint8

const (
	// PolicyExact: a system-wide fixed unit price. The voucher carries no
	// price field and payment must equal fixedUnitPrice * quantity.
	PolicyExact PricePolicy = iota
	// PolicyFloor: the issuer sets a per-voucher minimum unit price. Payment
	// must be at least UnitPrice * quantity; overpayment is accepted.
	PolicyFloor
)

func (p PricePolicy) String() string {
	switch p {
	case PolicyExact:
		return "exact"
	case PolicyFloor:
		return "floor"
	default:
		return "unknown"
	}
}

// MintVoucher is the signed, off-ledger intent record authorizing future
// issuance. VoucherID is globally unique and never reused. UnitPrice is part
// of the signed payload only under PolicyFloor; under PolicyExact the
// engine's configured price applies and the field is ignored. The redeemer
// identity and paid amount are deliberately not signed: any bearer of a
// valid voucher may redeem it to an address of their choosing.
//
// JSON encoding is the stable wire form (0x-hex integers, hex signature);
// see json.go.
type MintVoucher struct {
	VoucherID *big.Int
	Quantity  *big.Int
	UnitPrice *big.Int
	Signature []byte
}

// Redis key templates
const (
	RedeemedSetKeyFmt = "lazymint:redeemed:%s" // %s = verifying contract (checksummed)
	AuthNonceKeyFmt   = "lazymint:authnonce:%s"
)
