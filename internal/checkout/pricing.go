// Package checkout holds the settlement core: the cart pricing
// calculator, the gateway discount allocation, and the reconciler that
// serializes redirect and webhook confirmations into exactly one order
// per successful payment.
package checkout

import (
	"strconv"
	"strings"

	"github.com/amalikprincem05/e-bazzari/internal/models"
	"github.com/shopspring/decimal"
)

// Quote is the priced view of a cart for a given points request.
type Quote struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	PointsApplied int             `json:"points_applied"`
	Payable       decimal.Decimal `json:"payable"`
}

// Subtotal sums price*quantity over the cart lines exactly.
func Subtotal(lines []models.CartLine) decimal.Decimal {
	var subtotal decimal.Decimal
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return subtotal
}

// MaxRedeemable is the redemption ceiling: the user cannot apply more
// points than they hold, nor more than the whole-unit part of the
// subtotal.
func MaxRedeemable(balance int, subtotal decimal.Decimal) int {
	if balance < 0 {
		return 0
	}
	ceiling := int(subtotal.IntPart())
	if ceiling < 0 {
		ceiling = 0
	}
	if balance < ceiling {
		return balance
	}
	return ceiling
}

// Price computes the quote for a cart. The requested points amount is
// clamped into [0, min(balance, floor(subtotal))]; a negative request
// never errors, it just applies nothing.
func Price(lines []models.CartLine, balance, requestedPoints int) Quote {
	subtotal := Subtotal(lines)

	applied := requestedPoints
	if applied < 0 {
		applied = 0
	}
	if ceiling := MaxRedeemable(balance, subtotal); applied > ceiling {
		applied = ceiling
	}

	payable := subtotal.Sub(decimal.NewFromInt(int64(applied)))
	if payable.IsNegative() {
		payable = decimal.Zero
	}

	return Quote{
		Subtotal:      subtotal,
		PointsApplied: applied,
		Payable:       payable,
	}
}

// ParsePointsParam reads a points_to_use query value. Malformed input
// clamps to zero; checkout never fails on a bad points parameter.
func ParsePointsParam(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
