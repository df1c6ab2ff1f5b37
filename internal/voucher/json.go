package voucher

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// voucherJSON is the wire form of a MintVoucher: 0x-hex big integers and a
// 0x-hex signature. hexutil caps decoded integers at 256 bits, matching the
// typed-data schema.
type voucherJSON struct {
	VoucherID string `json:"voucherId"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unitPrice,omitempty"`
	Signature string `json:"signature,omitempty"`
}

func (v MintVoucher) MarshalJSON() ([]byte, error) {
	out := voucherJSON{
		VoucherID: "0x0",
		Quantity:  "0x0",
	}
	if v.VoucherID != nil {
		out.VoucherID = hexutil.EncodeBig(v.VoucherID)
	}
	if v.Quantity != nil {
		out.Quantity = hexutil.EncodeBig(v.Quantity)
	}
	if v.UnitPrice != nil {
		out.UnitPrice = hexutil.EncodeBig(v.UnitPrice)
	}
	if len(v.Signature) > 0 {
		out.Signature = hexutil.Encode(v.Signature)
	}
	return json.Marshal(out)
}

func (v *MintVoucher) UnmarshalJSON(data []byte) error {
	var in voucherJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	id, err := hexutil.DecodeBig(in.VoucherID)
	if err != nil {
		return fmt.Errorf("voucher id: %w", err)
	}
	qty, err := hexutil.DecodeBig(in.Quantity)
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	v.VoucherID, v.Quantity = id, qty
	v.UnitPrice = nil
	if in.UnitPrice != "" {
		price, err := hexutil.DecodeBig(in.UnitPrice)
		if err != nil {
			return fmt.Errorf("unit price: %w", err)
		}
		v.UnitPrice = price
	}
	v.Signature = nil
	if in.Signature != "" {
		sig, err := hexutil.Decode(in.Signature)
		if err != nil {
			return fmt.Errorf("signature: %w", err)
		}
		v.Signature = sig
	}
	return nil
}
