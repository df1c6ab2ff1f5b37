// Package chain backs the registry boundary with a deployed ERC-721-style
// contract. The ABI is held inline and bound by hand; regenerate with abigen
// once the contract source is in-tree.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// registryABI covers the four registry entry points the engine drives.
const registryABI = `[
	{
		"inputs": [
			{"name": "owner",   "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		],
		"name": "mint",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "exists",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "ownerOf",
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "from",    "type": "address"},
			{"name": "to",      "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		],
		"name": "transferFrom",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// Registry implements the engine's registry boundary against an on-chain
// contract. Every write waits for its receipt so the engine's pre-validation
// observes committed state.
type Registry struct {
	eth         *ethclient.Client
	contract    *bind.BoundContract
	addr        common.Address
	chainID     *big.Int
	operatorKey *ecdsa.PrivateKey
}

func NewRegistry(rpcURL, contractAddr, operatorKeyHex string, chainID int64) (*Registry, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(operatorKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}

	addr := common.HexToAddress(contractAddr)
	bound := bind.NewBoundContract(addr, parsed, eth, eth, eth)

	return &Registry{
		eth:         eth,
		contract:    bound,
		addr:        addr,
		chainID:     big.NewInt(chainID),
		operatorKey: key,
	}, nil
}

// Operator returns the address submitting registry transactions.
func (r *Registry) Operator() common.Address {
	return crypto.PubkeyToAddress(r.operatorKey.PublicKey)
}

func (r *Registry) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(r.operatorKey, r.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func (r *Registry) Create(ctx context.Context, owner common.Address, id *big.Int) error {
	opts, err := r.transactOpts(ctx)
	if err != nil {
		return fmt.Errorf("registry mint: %w", err)
	}
	tx, err := r.contract.Transact(opts, "mint", owner, id)
	if err != nil {
		return fmt.Errorf("registry mint %s: %w", id, err)
	}
	receipt, err := bind.WaitMined(ctx, r.eth, tx)
	if err != nil {
		return fmt.Errorf("registry mint %s: wait mined: %w", id, err)
	}
	if receipt.Status == 0 {
		return fmt.Errorf("registry mint %s: transaction reverted", id)
	}
	return nil
}

func (r *Registry) Exists(ctx context.Context, id *big.Int) (bool, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := r.contract.Call(opts, &out, "exists", id); err != nil {
		return false, fmt.Errorf("registry exists %s: %w", id, err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (r *Registry) OwnerOf(ctx context.Context, id *big.Int) (common.Address, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := r.contract.Call(opts, &out, "ownerOf", id); err != nil {
		return common.Address{}, fmt.Errorf("registry ownerOf %s: %w", id, err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (r *Registry) Transfer(ctx context.Context, from, to common.Address, id *big.Int) error {
	opts, err := r.transactOpts(ctx)
	if err != nil {
		return fmt.Errorf("registry transfer: %w", err)
	}
	tx, err := r.contract.Transact(opts, "transferFrom", from, to, id)
	if err != nil {
		return fmt.Errorf("registry transfer %s: %w", id, err)
	}
	receipt, err := bind.WaitMined(ctx, r.eth, tx)
	if err != nil {
		return fmt.Errorf("registry transfer %s: wait mined: %w", id, err)
	}
	if receipt.Status == 0 {
		return fmt.Errorf("registry transfer %s: transaction reverted", id)
	}
	return nil
}
