package voucher

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

// ── JSON wire form ─────────────────────────────────────────────────────────

func TestJSON_HexEncoding(t *testing.T) {
	v := testVoucher(255, 2, 100)
	v.Signature = []byte{0xab, 0xcd}

	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Unmarshal into map: %v", err)
	}
	want := map[string]string{
		"voucherId": "0xff",
		"quantity":  "0x2",
		"unitPrice": "0x64",
		"signature": "0xabcd",
	}
	for k, w := range want {
		if fields[k] != w {
			t.Errorf("%s = %q, want %q", k, fields[k], w)
		}
	}
}

func TestJSON_RoundTripPreservesSignature(t *testing.T) {
	privKey, _ := crypto.GenerateKey()
	expected := crypto.PubkeyToAddress(privKey.PublicKey)

	v := testVoucher(42, 5, 250)
	if err := Sign(v, privKey, PolicyFloor, testChainID, testContractAddr); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back MintVoucher
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	digest := Digest(&back, PolicyFloor, testChainID, testContractAddr)
	signer, err := RecoverSigner(digest, back.Signature)
	if err != nil {
		t.Fatalf("RecoverSigner: %v", err)
	}
	if signer != expected {
		t.Errorf("recovered %s after round trip, want %s", signer.Hex(), expected.Hex())
	}
}

func TestJSON_OmitsOptionalFields(t *testing.T) {
	v := &MintVoucher{VoucherID: big.NewInt(1), Quantity: big.NewInt(1)}
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(raw), "unitPrice") || strings.Contains(string(raw), "signature") {
		t.Errorf("unset optional fields should be omitted, got %s", raw)
	}

	var back MintVoucher
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.UnitPrice != nil || back.Signature != nil {
		t.Error("optional fields should stay nil after round trip")
	}
}

func TestJSON_RejectsOversizedInteger(t *testing.T) {
	// 65 hex digits = 260 bits, one nibble past the schema's slot width.
	over := "0x1" + strings.Repeat("0", 64)
	var v MintVoucher
	err := json.Unmarshal([]byte(`{"voucherId":"`+over+`","quantity":"0x1"}`), &v)
	if err == nil {
		t.Fatal("expected error for 260-bit voucher id")
	}
}

func TestJSON_RejectsDecimalAndMissingFields(t *testing.T) {
	for name, body := range map[string]string{
		"decimal":       `{"voucherId":"17","quantity":"0x1"}`,
		"missing id":    `{"quantity":"0x1"}`,
		"missing qty":   `{"voucherId":"0x11"}`,
		"bad sig hex":   `{"voucherId":"0x11","quantity":"0x1","signature":"zz"}`,
		"bad price hex": `{"voucherId":"0x11","quantity":"0x1","unitPrice":"10"}`,
	} {
		var v MintVoucher
		if err := json.Unmarshal([]byte(body), &v); err == nil {
			t.Errorf("%s: expected error for %s", name, body)
		}
	}
}
