package engine

import "errors"

// Every error below rejects the whole transition; no partial effects are ever
// observable. Callers match with errors.Is.
var (
	ErrRedemptionDisabled = errors.New("redemption disabled")
	ErrInvalidSignature   = errors.New("invalid voucher signature")
	ErrUnauthorized       = errors.New("signer lacks issuer authority")
	ErrSupplyExceeded     = errors.New("supply cap exceeded")
	ErrInsufficientFunds  = errors.New("payment does not satisfy price policy")
	ErrZeroQuantity       = errors.New("quantity must be at least 1")
	ErrBatchTooLarge      = errors.New("quantity exceeds batch limit")
	ErrAlreadyRedeemed    = errors.New("voucher already redeemed")
	ErrRegistryConflict   = errors.New("target token id already exists")
)
