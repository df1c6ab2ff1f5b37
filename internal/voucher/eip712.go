package voucher

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned when a signature is malformed or does not
// recover to any public key.
var ErrInvalidSignature = errors.New("invalid signature")

// ErrValueOutOfRange is returned when a numeric voucher field cannot occupy
// a 256-bit unsigned slot of the typed-data schema.
var ErrValueOutOfRange = errors.New("value outside uint256 range")

// CheckWire rejects a voucher whose numeric fields cannot be encoded in the
// schema's uint256 slots. Digest assumes this has passed; callers outside
// this package go through Sign or the engine, which both enforce it.
func CheckWire(v *MintVoucher) error {
	if v.VoucherID == nil || !fitsUint256(v.VoucherID) {
		return fmt.Errorf("%w: voucher id", ErrValueOutOfRange)
	}
	if v.Quantity == nil || !fitsUint256(v.Quantity) {
		return fmt.Errorf("%w: quantity", ErrValueOutOfRange)
	}
	if v.UnitPrice != nil && !fitsUint256(v.UnitPrice) {
		return fmt.Errorf("%w: unit price", ErrValueOutOfRange)
	}
	return nil
}

func fitsUint256(n *big.Int) bool {
	return n.Sign() >= 0 && n.BitLen() <= 256
}

// Type strings per price policy. The floor variant binds the issuer-chosen
// unit price into the signed payload; the exact variant does not (the fixed
// system price applies regardless of what the voucher claims).
var (
	exactTypeHash = crypto.Keccak256Hash([]byte(
		"MintVoucher(uint256 voucherId,uint256 quantity)",
	))
	floorTypeHash = crypto.Keccak256Hash([]byte(
		"MintVoucher(uint256 voucherId,uint256 quantity,uint256 unitPrice)",
	))
)

// domainSeparator computes the EIP-712 domain separator. Binding the chain ID
// and verifying contract into the digest is what stops a voucher signed for
// one deployment from being replayed against another.
func domainSeparator(chainID *big.Int, contractAddr common.Address) [32]byte {
	domainTypeHash := crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))
	nameHash := crypto.Keccak256Hash([]byte("LazyMint"))
	versionHash := crypto.Keccak256Hash([]byte("1"))

	// ABI-encode: (bytes32, bytes32, bytes32, uint256, address)
	encoded := make([]byte, 5*32)
	copy(encoded[0:32], domainTypeHash[:])
	copy(encoded[32:64], nameHash[:])
	copy(encoded[64:96], versionHash[:])
	chainID.FillBytes(encoded[96:128])
	copy(encoded[140:160], contractAddr.Bytes()) // addr is right-aligned in 32-byte slot

	return crypto.Keccak256Hash(encoded)
}

// Digest computes the EIP-712 digest a signature over this voucher must
// cover: keccak256(0x1901 || domainSeparator || structHash). Pure function of
// the voucher's semantic fields plus the system identity; the signature
// itself is never part of the digest.
func Digest(v *MintVoucher, policy PricePolicy, chainID *big.Int, contractAddr common.Address) [32]byte {
	var encoded []byte
	switch policy {
	case PolicyFloor:
		encoded = make([]byte, 4*32)
		copy(encoded[0:32], floorTypeHash[:])
		v.VoucherID.FillBytes(encoded[32:64])
		v.Quantity.FillBytes(encoded[64:96])
		price := v.UnitPrice
		if price == nil {
			price = new(big.Int)
		}
		price.FillBytes(encoded[96:128])
	default:
		encoded = make([]byte, 3*32)
		copy(encoded[0:32], exactTypeHash[:])
		v.VoucherID.FillBytes(encoded[32:64])
		v.Quantity.FillBytes(encoded[64:96])
	}

	structHash := crypto.Keccak256Hash(encoded)
	sep := domainSeparator(chainID, contractAddr)

	msg := make([]byte, 2+32+32)
	msg[0] = 0x19
	msg[1] = 0x01
	copy(msg[2:34], sep[:])
	copy(msg[34:66], structHash[:])
	return crypto.Keccak256Hash(msg)
}

// RecoverSigner extracts the principal that produced sig over digest.
// Fails closed: any malformed signature yields ErrInvalidSignature, never a
// zero address treated as a signer. V is accepted in 0/1 or 27/28 form.
func RecoverSigner(digest [32]byte, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, ErrInvalidSignature
	}
	sigCopy := make([]byte, 65)
	copy(sigCopy, sig)
	if sigCopy[64] >= 27 {
		sigCopy[64] -= 27
	}
	pub, err := crypto.SigToPub(digest[:], sigCopy)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Sign signs the voucher in-place with the issuer's private key.
// V is converted to 27/28 for compatibility with Solidity ecrecover tooling.
func Sign(v *MintVoucher, privKey *ecdsa.PrivateKey, policy PricePolicy, chainID *big.Int, contractAddr common.Address) error {
	if err := CheckWire(v); err != nil {
		return err
	}
	digest := Digest(v, policy, chainID, contractAddr)
	sig, err := crypto.Sign(digest[:], privKey)
	if err != nil {
		return err
	}
	sig[64] += 27
	v.Signature = sig
	return nil
}
