package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/redis/go-redis/v9"

	"github.com/dropforge/lazymint/internal/voucher"
)

// Redis is a durable ledger backed by a Redis set, one set per verifying
// contract so two deployments sharing an instance cannot collide.
type Redis struct {
	rdb *redis.Client
	key string
}

func NewRedis(rdb *redis.Client, contractAddr string) *Redis {
	return &Redis{
		rdb: rdb,
		key: fmt.Sprintf(voucher.RedeemedSetKeyFmt, contractAddr),
	}
}

func (r *Redis) HasBeenRedeemed(ctx context.Context, id *big.Int) (bool, error) {
	ok, err := r.rdb.SIsMember(ctx, r.key, id.String()).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: sismember: %w", err)
	}
	return ok, nil
}

// MarkRedeemed adds the id to the consumed set. SADD reports how many members
// were actually added, so a duplicate mark is detected in the same round trip.
func (r *Redis) MarkRedeemed(ctx context.Context, id *big.Int) error {
	added, err := r.rdb.SAdd(ctx, r.key, id.String()).Result()
	if err != nil {
		return fmt.Errorf("ledger: sadd: %w", err)
	}
	if added == 0 {
		return ErrAlreadyMarked
	}
	return nil
}

func (r *Redis) Unmark(ctx context.Context, id *big.Int) error {
	if err := r.rdb.SRem(ctx, r.key, id.String()).Err(); err != nil {
		return fmt.Errorf("ledger: srem: %w", err)
	}
	return nil
}
