package pool

import (
	"fmt"
	"math/big"
)

// mulDiv returns floor(a*b/c). Nil inputs are treated as zero and a zero
// divisor yields zero.
func mulDiv(a, b, c *big.Int) *big.Int {
	if a == nil || b == nil || c == nil || c.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, c)
}

// mulDivCeil returns ceil(a*b/c) with the same zero handling as mulDiv.
func mulDivCeil(a, b, c *big.Int) *big.Int {
	if a == nil || b == nil || c == nil || c.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	q, r := new(big.Int).QuoRem(product, c, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return newBigInt(a)
	}
	return newBigInt(b)
}

// saturatingSub returns max(0, a-b).
func saturatingSub(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(a, b)
}

// decrease subtracts amount from v, failing instead of letting a bucket turn
// negative.
func decrease(v, amount *big.Int, bucket string) (*big.Int, error) {
	if v.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: %s %s < %s", ErrAccountingUnderflow, bucket, v, amount)
	}
	return new(big.Int).Sub(v, amount), nil
}

func increase(v, amount *big.Int) *big.Int {
	return new(big.Int).Add(v, amount)
}

func isPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
