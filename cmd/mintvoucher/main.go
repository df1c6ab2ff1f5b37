// cmd/mintvoucher/main.go — signs and inspects lazy-mint vouchers.
//
// Usage examples:
//
//	# Sign a floor-price voucher for 5 tokens at 0.01 ether each
//	go run ./cmd/mintvoucher/ sign --key <hex> --chain-id 16602 \
//	  --contract 0x... --policy floor --id 17 --quantity 5 --unit-price 10000000000000000
//
//	# Recover and print the signer of a voucher JSON file
//	go run ./cmd/mintvoucher/ verify --chain-id 16602 --contract 0x... \
//	  --policy floor --voucher voucher.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dropforge/lazymint/internal/voucher"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "sign":
		runSign(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mintvoucher <sign|verify> [flags]")
	os.Exit(1)
}

func parsePolicy(s string) voucher.PricePolicy {
	switch s {
	case "exact":
		return voucher.PolicyExact
	case "floor":
		return voucher.PolicyFloor
	default:
		fmt.Fprintf(os.Stderr, "error: --policy must be \"exact\" or \"floor\", got %q\n", s)
		os.Exit(1)
		return 0
	}
}

func mustBig(s, name string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		fmt.Fprintf(os.Stderr, "error: invalid %s %q\n", name, s)
		os.Exit(1)
	}
	return n
}

func runSign(args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	keyHex := fs.String("key", "", "issuer private key (hex, required)")
	chainID := fs.Int64("chain-id", 0, "chain ID (required)")
	contract := fs.String("contract", "", "verifying contract address (required)")
	policyStr := fs.String("policy", "exact", "price policy: exact | floor")
	id := fs.String("id", "", "voucher id (required)")
	quantity := fs.String("quantity", "1", "number of tokens to authorize")
	unitPrice := fs.String("unit-price", "0", "per-unit floor price (floor policy only)")
	fs.Parse(args) //nolint:errcheck

	if *keyHex == "" || *chainID == 0 || *contract == "" || *id == "" {
		fmt.Fprintln(os.Stderr, "error: --key, --chain-id, --contract and --id are required")
		os.Exit(1)
	}

	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(*keyHex, "0x"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: parse key: %v\n", err)
		os.Exit(1)
	}
	policy := parsePolicy(*policyStr)

	v := &voucher.MintVoucher{
		VoucherID: mustBig(*id, "id"),
		Quantity:  mustBig(*quantity, "quantity"),
		UnitPrice: mustBig(*unitPrice, "unit-price"),
	}
	if err := voucher.Sign(v, privKey, policy, big.NewInt(*chainID), common.HexToAddress(*contract)); err != nil {
		fmt.Fprintf(os.Stderr, "error: sign: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
	fmt.Fprintf(os.Stderr, "signer: %s\n", crypto.PubkeyToAddress(privKey.PublicKey).Hex())
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	chainID := fs.Int64("chain-id", 0, "chain ID (required)")
	contract := fs.String("contract", "", "verifying contract address (required)")
	policyStr := fs.String("policy", "exact", "price policy: exact | floor")
	path := fs.String("voucher", "", "voucher JSON file (required)")
	fs.Parse(args) //nolint:errcheck

	if *chainID == 0 || *contract == "" || *path == "" {
		fmt.Fprintln(os.Stderr, "error: --chain-id, --contract and --voucher are required")
		os.Exit(1)
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: read voucher: %v\n", err)
		os.Exit(1)
	}
	var v voucher.MintVoucher
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Fprintf(os.Stderr, "error: parse voucher: %v\n", err)
		os.Exit(1)
	}

	policy := parsePolicy(*policyStr)
	if err := voucher.CheckWire(&v); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	digest := voucher.Digest(&v, policy, big.NewInt(*chainID), common.HexToAddress(*contract))
	signer, err := voucher.RecoverSigner(digest, v.Signature)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: recover signer: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("voucher id: %s\n", v.VoucherID)
	fmt.Printf("quantity:   %s\n", v.Quantity)
	if policy == voucher.PolicyFloor {
		fmt.Printf("unit price: %s\n", v.UnitPrice)
	}
	fmt.Printf("signer:     %s\n", signer.Hex())
}
