package api

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dropforge/lazymint/internal/auth"
	"github.com/dropforge/lazymint/internal/engine"
	"github.com/dropforge/lazymint/internal/ledger"
	"github.com/dropforge/lazymint/internal/metadata"
	"github.com/dropforge/lazymint/internal/registry"
	"github.com/dropforge/lazymint/internal/roles"
	"github.com/dropforge/lazymint/internal/voucher"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	testChainID  = big.NewInt(16602)
	testContract = common.HexToAddress("0xDeAdBeEfDeAdBeEfDeAdBeEfDeAdBeEfDeAdBeEf")
	redeemer     = "0x4444444444444444444444444444444444444444"
)

type apiFixture struct {
	router *gin.Engine
	issuer common.Address
	key    *ecdsa.PrivateKey
	tbl    *roles.Table
}

// identityMiddleware stands in for the wallet-signature middleware in handler
// tests: the caller identity comes straight from a header.
func identityMiddleware(c *gin.Context) {
	if w := c.GetHeader("X-Test-Wallet"); w != "" {
		c.Set(auth.ContextKey, w)
	}
	c.Next()
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	issuer := crypto.PubkeyToAddress(key.PublicKey)
	tbl := roles.NewTableWithAdmin(issuer)

	e := engine.New(engine.Params{
		ChainID:        testChainID,
		ContractAddr:   testContract,
		Policy:         voucher.PolicyExact,
		FixedUnitPrice: big.NewInt(100),
		MaxSupply:      100,
		BatchLimit:     10,
		ReservedCap:    5,
		EnabledAtStart: true,
	}, registry.NewMemory(), tbl, ledger.NewMemory(), zap.NewNop())

	h := NewHandler(e, metadata.NewResolver("ipfs://QmBase/"), tbl, zap.NewNop())

	r := gin.New()
	pub := r.Group("/api")
	adm := r.Group("/admin", identityMiddleware)
	h.Register(pub, adm)

	return &apiFixture{router: r, issuer: issuer, key: key, tbl: tbl}
}

func (f *apiFixture) signedRedeemBody(t *testing.T, id, qty, payment int64) []byte {
	t.Helper()
	v := &voucher.MintVoucher{VoucherID: big.NewInt(id), Quantity: big.NewInt(qty)}
	if err := voucher.Sign(v, f.key, voucher.PolicyExact, testChainID, testContract); err != nil {
		t.Fatal(err)
	}
	body, _ := json.Marshal(map[string]any{
		"voucher":  v,
		"payment":  big.NewInt(payment).String(),
		"redeemer": redeemer,
	})
	return body
}

func (f *apiFixture) do(method, path string, body []byte, wallet string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if wallet != "" {
		req.Header.Set("X-Test-Wallet", wallet)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// ── POST /api/redeem ───────────────────────────────────────────────────────

func TestRedeemEndpoint_Success(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/api/redeem", f.signedRedeemBody(t, 1, 3, 300), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		TokenIDs []string `json:"token_ids"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.TokenIDs) != 3 || resp.TokenIDs[0] != "1" || resp.TokenIDs[2] != "3" {
		t.Errorf("unexpected token ids: %v", resp.TokenIDs)
	}
}

func TestRedeemEndpoint_Replay(t *testing.T) {
	f := newAPIFixture(t)
	body := f.signedRedeemBody(t, 1, 1, 100)

	if w := f.do(http.MethodPost, "/api/redeem", body, ""); w.Code != http.StatusOK {
		t.Fatalf("first redeem: %d: %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodPost, "/api/redeem", body, ""); w.Code != http.StatusConflict {
		t.Fatalf("replay: expected 409, got %d", w.Code)
	}
}

func TestRedeemEndpoint_WrongPayment(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/api/redeem", f.signedRedeemBody(t, 1, 2, 199), "")
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRedeemEndpoint_BadBody(t *testing.T) {
	f := newAPIFixture(t)

	for name, body := range map[string]string{
		"no voucher":      `{"redeemer":"` + redeemer + `"}`,
		"decimal fields":  `{"voucher":{"voucherId":"1","quantity":"1"},"redeemer":"` + redeemer + `"}`,
		"bad payment":     `{"voucher":{"voucherId":"0x1","quantity":"0x1"},"payment":"x","redeemer":"` + redeemer + `"}`,
		"bad redeemer":    `{"voucher":{"voucherId":"0x1","quantity":"0x1"},"redeemer":"nope"}`,
		"not even object": `[]`,
	} {
		if w := f.do(http.MethodPost, "/api/redeem", []byte(body), ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", name, w.Code, w.Body.String())
		}
	}
}

// An integer wider than 256 bits must come back as a plain 400, whichever
// side of the request it rides in on.
func TestRedeemEndpoint_OversizedInteger(t *testing.T) {
	f := newAPIFixture(t)
	over := "0x1" + strings.Repeat("0", 64)

	body := `{"voucher":{"voucherId":"0x1","quantity":"` + over + `","signature":"0xab"},"redeemer":"` + redeemer + `"}`
	if w := f.do(http.MethodPost, "/api/redeem", []byte(body), ""); w.Code != http.StatusBadRequest {
		t.Errorf("voucher quantity: expected 400, got %d: %s", w.Code, w.Body.String())
	}

	body = `{"voucher":{"voucherId":"0x1","quantity":"0x1","signature":"0xab"},"payment":"` + over + `","redeemer":"` + redeemer + `"}`
	if w := f.do(http.MethodPost, "/api/redeem", []byte(body), ""); w.Code != http.StatusBadRequest {
		t.Errorf("hex payment: expected 400, got %d: %s", w.Code, w.Body.String())
	}

	decimalOver := new(big.Int).Lsh(big.NewInt(1), 300).String()
	body = `{"voucher":{"voucherId":"0x1","quantity":"0x1","signature":"0xab"},"payment":"` + decimalOver + `","redeemer":"` + redeemer + `"}`
	if w := f.do(http.MethodPost, "/api/redeem", []byte(body), ""); w.Code != http.StatusBadRequest {
		t.Errorf("decimal payment: expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

// ── GET /api/status and /api/tokens/:id/uri ────────────────────────────────

func TestStatusEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/api/status", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["redemption_enabled"] != true {
		t.Errorf("unexpected status: %v", resp)
	}
}

func TestTokenURIEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/api/tokens/42/uri", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["uri"] != "ipfs://QmBase/42" {
		t.Errorf("uri: got %q", resp["uri"])
	}
}

// ── Admin surface ──────────────────────────────────────────────────────────

func TestAdmin_ToggleRedemption(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/admin/redemption", []byte(`{"enabled":false}`), f.issuer.Hex())
	if w.Code != http.StatusOK {
		t.Fatalf("toggle: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Redemption now fails with 403.
	if w := f.do(http.MethodPost, "/api/redeem", f.signedRedeemBody(t, 1, 1, 100), ""); w.Code != http.StatusForbidden {
		t.Fatalf("redeem while disabled: expected 403, got %d", w.Code)
	}
}

func TestAdmin_ToggleRequiresAdmin(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/admin/redemption", []byte(`{"enabled":false}`), redeemer)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAdmin_MintReserved(t *testing.T) {
	f := newAPIFixture(t)

	body := []byte(`{"to":"` + f.issuer.Hex() + `","count":2}`)
	w := f.do(http.MethodPost, "/admin/reserved/mint", body, f.issuer.Hex())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		TokenIDs []string `json:"token_ids"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.TokenIDs) != 2 || resp.TokenIDs[0] != "101" {
		t.Errorf("unexpected reserved ids: %v", resp.TokenIDs)
	}
}

func TestAdmin_GrantThenRedeemNewIssuer(t *testing.T) {
	f := newAPIFixture(t)

	newKey, _ := crypto.GenerateKey()
	newIssuer := crypto.PubkeyToAddress(newKey.PublicKey)

	body := []byte(`{"principal":"` + newIssuer.Hex() + `","role":"minter"}`)
	if w := f.do(http.MethodPost, "/admin/roles/grant", body, f.issuer.Hex()); w.Code != http.StatusOK {
		t.Fatalf("grant: %d: %s", w.Code, w.Body.String())
	}

	v := &voucher.MintVoucher{VoucherID: big.NewInt(9), Quantity: big.NewInt(1)}
	if err := voucher.Sign(v, newKey, voucher.PolicyExact, testChainID, testContract); err != nil {
		t.Fatal(err)
	}
	redeemBody, _ := json.Marshal(map[string]any{
		"voucher":  v,
		"payment":  "100",
		"redeemer": redeemer,
	})
	if w := f.do(http.MethodPost, "/api/redeem", redeemBody, ""); w.Code != http.StatusOK {
		t.Fatalf("redeem with new issuer: %d: %s", w.Code, w.Body.String())
	}
}

func TestAdmin_Withdraw(t *testing.T) {
	f := newAPIFixture(t)

	if w := f.do(http.MethodPost, "/api/redeem", f.signedRedeemBody(t, 1, 2, 200), ""); w.Code != http.StatusOK {
		t.Fatal("setup redeem failed")
	}

	body := []byte(`{"to":"` + f.issuer.Hex() + `","amount":"150"}`)
	w := f.do(http.MethodPost, "/admin/withdraw", body, f.issuer.Hex())
	if w.Code != http.StatusOK {
		t.Fatalf("withdraw: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["remaining"] != "50" {
		t.Errorf("remaining: got %q want \"50\"", resp["remaining"])
	}
}

func TestAdmin_NoIdentity(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/admin/withdraw", []byte(`{"to":"`+redeemer+`","amount":"1"}`), "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
