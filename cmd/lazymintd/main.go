package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropforge/lazymint/internal/api"
	"github.com/dropforge/lazymint/internal/auth"
	"github.com/dropforge/lazymint/internal/chain"
	"github.com/dropforge/lazymint/internal/config"
	"github.com/dropforge/lazymint/internal/engine"
	"github.com/dropforge/lazymint/internal/ledger"
	"github.com/dropforge/lazymint/internal/metadata"
	"github.com/dropforge/lazymint/internal/registry"
	"github.com/dropforge/lazymint/internal/roles"
	"github.com/dropforge/lazymint/internal/voucher"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis (durable ledger + admin auth nonce dedup) ───────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Collaborators ─────────────────────────────────────────────────────────
	tbl := roles.NewTableWithAdmin(common.HexToAddress(cfg.Drop.AdminAddress))

	var reg registry.Registry
	switch cfg.Drop.RegistryMode {
	case "chain":
		onchain, err := chain.NewRegistry(cfg.Chain.RPCURL, cfg.Chain.RegistryAddress, cfg.Chain.OperatorKey, cfg.Chain.ChainID)
		if err != nil {
			log.Fatal("chain registry init failed", zap.Error(err))
		}
		log.Info("using on-chain registry",
			zap.String("contract", cfg.Chain.RegistryAddress),
			zap.String("operator", onchain.Operator().Hex()),
		)
		reg = onchain
	default:
		mem := registry.NewMemory()
		mem.SetObserver(func(e registry.Event) {
			log.Info("registry event",
				zap.String("kind", e.Kind),
				zap.String("token_id", e.ID.String()),
				zap.String("to", e.To.Hex()),
			)
		})
		reg = mem
	}

	var ldg ledger.Ledger
	if cfg.Drop.LedgerMode == "redis" {
		ldg = ledger.NewRedis(rdb, common.HexToAddress(cfg.Chain.ContractAddress).Hex())
	} else {
		ldg = ledger.NewMemory()
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	fixedUnitPrice, ok := new(big.Int).SetString(cfg.Drop.FixedUnitPrice, 10)
	if !ok {
		log.Fatal("invalid FIXED_UNIT_PRICE")
	}
	policy := voucher.PolicyExact
	if cfg.Drop.PricePolicy == "floor" {
		policy = voucher.PolicyFloor
	}

	eng := engine.New(engine.Params{
		ChainID:        big.NewInt(cfg.Chain.ChainID),
		ContractAddr:   common.HexToAddress(cfg.Chain.ContractAddress),
		Policy:         policy,
		FixedUnitPrice: fixedUnitPrice,
		MaxSupply:      cfg.Drop.MaxSupply,
		BatchLimit:     cfg.Drop.BatchLimit,
		ReservedCap:    cfg.Drop.ReservedCap,
		EnabledAtStart: cfg.Drop.EnabledAtStart,
	}, reg, tbl, ldg, log)

	var resolver *metadata.Resolver
	if cfg.Metadata.ReservedBaseURI != "" {
		resolver = metadata.NewRangeResolver(cfg.Metadata.BaseURI, cfg.Metadata.ReservedBaseURI,
			new(big.Int).SetUint64(cfg.Drop.MaxSupply))
	} else {
		resolver = metadata.NewResolver(cfg.Metadata.BaseURI)
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	pub := r.Group("/api")
	adm := r.Group("/admin", auth.Middleware(rdb))
	api.NewHandler(eng, resolver, tbl, log).Register(pub, adm)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("price_policy", policy.String()),
			zap.Uint64("max_supply", cfg.Drop.MaxSupply),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
