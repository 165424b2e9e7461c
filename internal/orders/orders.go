// Package orders models aggregator limit orders and watches for their removal after cancellation.
package orders

import (
	"context"
	"time"
)

// Status is the aggregator's view of an order.
type Status string

const (
	// Open orders are still fillable.
	Open Status = "open"
	// Cancelled orders have been closed by their maker.
	Cancelled Status = "cancelled"
)

// Order is one open limit order as reported by the aggregator. Amounts are in base units of their mints.
type Order struct {
	ID                    string    `json:"id"`
	Maker                 string    `json:"maker"`
	InputMint             string    `json:"inputMint"`
	OutputMint            string    `json:"outputMint"`
	MakingAmount          uint64    `json:"makingAmount"`
	TakingAmount          uint64    `json:"takingAmount"`
	RemainingMakingAmount uint64    `json:"remainingMakingAmount"`
	RemainingTakingAmount uint64    `json:"remainingTakingAmount"`
	Status                Status    `json:"status"`
	CreatedAt             time.Time `json:"createdAt"`
}

// Lister fetches a wallet's open orders.
type Lister interface {
	OpenOrders(ctx context.Context, wallet string) ([]Order, error)
}

// Contains reports which of ids are still present in list.
func Contains(list []Order, ids []string) []string {
	present := make(map[string]struct{}, len(list))
	for _, o := range list {
		present[o.ID] = struct{}{}
	}
	var out []string
	for _, id := range ids {
		if _, ok := present[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
