package bundle

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultFeeBps is the 1% service fee.
const DefaultFeeBps = 100

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// Fee returns floor(makingAmount * bps / 10000).
func Fee(makingAmount uint64, bps int64) uint64 {
	if bps <= 0 {
		return 0
	}
	amount := decimal.NewFromBigInt(new(big.Int).SetUint64(makingAmount), 0)
	return amount.Mul(decimal.NewFromInt(bps)).Shift(-4).Floor().BigInt().Uint64()
}

// LegacyLamportFallback is the lamport amount sent when an SPL fee transfer cannot be built and
// the legacy policy is on. It divides a token amount by 1000 without regard to decimals or price.
func LegacyLamportFallback(fee uint64) uint64 {
	return fee / 1000
}

// parseAmount turns a caller-supplied amount into base units.
func parseAmount(d decimal.Decimal) (uint64, error) {
	if d.IsNegative() {
		return 0, ValidationErr.New("makingAmount must not be negative")
	}
	if !d.IsInteger() {
		return 0, ValidationErr.New("makingAmount must be an integer number of base units")
	}
	if d.GreaterThan(maxUint64) {
		return 0, ValidationErr.New("makingAmount out of range")
	}
	return d.BigInt().Uint64(), nil
}
