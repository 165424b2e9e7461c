package jupiter

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/kirarisk/JupLimits/internal/orders"
)

type openOrder struct {
	PublicKey string       `json:"publicKey"`
	Account   orderAccount `json:"account"`
}

// orderAccount mirrors the on-chain order account; makingAmount/takingAmount are what is left to fill.
type orderAccount struct {
	Maker           string  `json:"maker"`
	InputMint       string  `json:"inputMint"`
	OutputMint      string  `json:"outputMint"`
	MakingAmount    flexInt `json:"makingAmount"`
	TakingAmount    flexInt `json:"takingAmount"`
	OriMakingAmount flexInt `json:"oriMakingAmount"`
	OriTakingAmount flexInt `json:"oriTakingAmount"`
	CreatedAt       flexInt `json:"createdAt"`
}

func (o openOrder) toOrder() orders.Order {
	making := uint64(o.Account.OriMakingAmount)
	if making == 0 {
		making = uint64(o.Account.MakingAmount)
	}
	taking := uint64(o.Account.OriTakingAmount)
	if taking == 0 {
		taking = uint64(o.Account.TakingAmount)
	}
	var created time.Time
	if o.Account.CreatedAt > 0 {
		created = time.Unix(int64(o.Account.CreatedAt), 0).UTC()
	}
	return orders.Order{
		ID:                    o.PublicKey,
		Maker:                 o.Account.Maker,
		InputMint:             o.Account.InputMint,
		OutputMint:            o.Account.OutputMint,
		MakingAmount:          making,
		TakingAmount:          taking,
		RemainingMakingAmount: uint64(o.Account.MakingAmount),
		RemainingTakingAmount: uint64(o.Account.TakingAmount),
		Status:                orders.Open,
		CreatedAt:             created,
	}
}

// flexInt accepts integers encoded as JSON numbers or strings, and RFC 3339 timestamps.
type flexInt uint64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	if s == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*f = flexInt(ts.Unix())
	return nil
}
