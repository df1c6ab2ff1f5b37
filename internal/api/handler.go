// Package api exposes the redemption engine over HTTP. The public surface is
// the redeem path plus read-only queries; everything administrative sits
// behind the wallet-signature middleware.
package api

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dropforge/lazymint/internal/auth"
	"github.com/dropforge/lazymint/internal/engine"
	"github.com/dropforge/lazymint/internal/metadata"
	"github.com/dropforge/lazymint/internal/roles"
	"github.com/dropforge/lazymint/internal/voucher"
)

// Minter is satisfied by engine.Engine. Decoupled here so handler tests can
// swap in a fixture without chain or redis wiring.
type Minter interface {
	Redeem(ctx context.Context, v *voucher.MintVoucher, payment *big.Int, redeemer common.Address) ([]*big.Int, error)
	MintReserved(ctx context.Context, caller, to common.Address, count uint64) ([]*big.Int, error)
	SetRedemptionEnabled(caller common.Address, enabled bool) error
	Withdraw(caller, to common.Address, amount *big.Int) error
	RedemptionEnabled() bool
	Issued() uint64
	Reserved() uint64
	Balance() *big.Int
}

// Handler wires the mint routes onto a Gin engine.
type Handler struct {
	minter   Minter
	resolver *metadata.Resolver
	tbl      *roles.Table
	log      *zap.Logger
}

func NewHandler(minter Minter, resolver *metadata.Resolver, tbl *roles.Table, log *zap.Logger) *Handler {
	return &Handler{minter: minter, resolver: resolver, tbl: tbl, log: log}
}

// Register mounts public routes on pub and admin routes on adm. The auth
// middleware should already be applied to adm.
func (h *Handler) Register(pub, adm *gin.RouterGroup) {
	pub.POST("/redeem", h.handleRedeem)
	pub.GET("/status", h.handleStatus)
	pub.GET("/tokens/:id/uri", h.handleTokenURI)

	adm.POST("/redemption", h.handleSetRedemption)
	adm.POST("/reserved/mint", h.handleMintReserved)
	adm.POST("/roles/grant", h.handleGrant)
	adm.POST("/roles/revoke", h.handleRevoke)
	adm.POST("/withdraw", h.handleWithdraw)
}

// ── Public ─────────────────────────────────────────────────────────────────

// redeemRequest carries the voucher in its wire form, so the signing CLI's
// JSON output drops straight into the "voucher" field.
type redeemRequest struct {
	Voucher  *voucher.MintVoucher `json:"voucher" binding:"required"`
	Payment  string               `json:"payment"`
	Redeemer string               `json:"redeemer" binding:"required"`
}

func (h *Handler) handleRedeem(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	payment := new(big.Int)
	if req.Payment != "" {
		var ok bool
		if payment, ok = parseBig(req.Payment); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment"})
			return
		}
	}
	if !common.IsHexAddress(req.Redeemer) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid redeemer address"})
		return
	}

	ids, err := h.minter.Redeem(c.Request.Context(), req.Voucher, payment, common.HexToAddress(req.Redeemer))
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	c.JSON(http.StatusOK, gin.H{"token_ids": out})
}

func (h *Handler) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"redemption_enabled": h.minter.RedemptionEnabled(),
		"issued":             h.minter.Issued(),
		"reserved":           h.minter.Reserved(),
		"collected_balance":  h.minter.Balance().String(),
	})
}

func (h *Handler) handleTokenURI(c *gin.Context) {
	id, ok := parseBig(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uri": h.resolver.TokenURI(id)})
}

// ── Admin ──────────────────────────────────────────────────────────────────

func (h *Handler) caller(c *gin.Context) (common.Address, bool) {
	addr := c.GetString(auth.ContextKey)
	if !common.IsHexAddress(addr) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing wallet identity"})
		return common.Address{}, false
	}
	return common.HexToAddress(addr), true
}

func (h *Handler) handleSetRedemption(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.minter.SetRedemptionEnabled(caller, req.Enabled); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"redemption_enabled": req.Enabled})
}

func (h *Handler) handleMintReserved(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req struct {
		To    string `json:"to" binding:"required"`
		Count uint64 `json:"count" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !common.IsHexAddress(req.To) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to address"})
		return
	}
	ids, err := h.minter.MintReserved(c.Request.Context(), caller, common.HexToAddress(req.To), req.Count)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	c.JSON(http.StatusOK, gin.H{"token_ids": out})
}

type roleRequest struct {
	Principal string `json:"principal" binding:"required"`
	Role      string `json:"role" binding:"required"`
}

func (r *roleRequest) validate(c *gin.Context) bool {
	if !common.IsHexAddress(r.Principal) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid principal address"})
		return false
	}
	if r.Role != roles.RoleAdmin && r.Role != roles.RoleMinter {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return false
	}
	return true
}

func (h *Handler) handleGrant(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !req.validate(c) {
		return
	}
	if !h.tbl.IsAdmin(caller) {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}
	h.tbl.Grant(common.HexToAddress(req.Principal), req.Role)
	h.log.Info("role granted",
		zap.String("principal", req.Principal),
		zap.String("role", req.Role),
		zap.String("by", caller.Hex()),
	)
	c.JSON(http.StatusOK, gin.H{"granted": true})
}

func (h *Handler) handleRevoke(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !req.validate(c) {
		return
	}
	if !h.tbl.IsAdmin(caller) {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}
	h.tbl.Revoke(common.HexToAddress(req.Principal), req.Role)
	h.log.Info("role revoked",
		zap.String("principal", req.Principal),
		zap.String("role", req.Role),
		zap.String("by", caller.Hex()),
	)
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

func (h *Handler) handleWithdraw(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req struct {
		To     string `json:"to" binding:"required"`
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	amount, ok2 := parseBig(req.Amount)
	if !ok2 || !common.IsHexAddress(req.To) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid withdraw parameters"})
		return
	}
	if err := h.minter.Withdraw(caller, common.HexToAddress(req.To), amount); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"remaining": h.minter.Balance().String()})
}

// ── Helpers ────────────────────────────────────────────────────────────────

// parseBig accepts a non-negative integer in 0x-hex or decimal form, bounded
// to 256 bits so oversized input can never reach the typed-data encoder.
func parseBig(s string) (*big.Int, bool) {
	var n *big.Int
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := hexutil.DecodeBig(s)
		if err != nil {
			return nil, false
		}
		n = v
	} else {
		var ok bool
		if n, ok = new(big.Int).SetString(s, 10); !ok {
			return nil, false
		}
	}
	if n.Sign() < 0 || n.BitLen() > 256 {
		return nil, false
	}
	return n, true
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
func (h *Handler) writeEngineError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrRedemptionDisabled):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrInvalidSignature),
		errors.Is(err, engine.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, engine.ErrZeroQuantity),
		errors.Is(err, engine.ErrBatchTooLarge):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, engine.ErrSupplyExceeded),
		errors.Is(err, engine.ErrAlreadyRedeemed),
		errors.Is(err, engine.ErrRegistryConflict):
		status = http.StatusConflict
	default:
		h.log.Error("redeem failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
