package checkout

import (
	"sort"

	"github.com/amalikprincem05/e-bazzari/internal/models"
	"github.com/shopspring/decimal"
)

// AllocatedLine is a cart line with its share of the points discount
// applied, in gateway cents. AmountCents always equals
// UnitAmountCents * Quantity, and the AmountCents over all lines sum
// exactly to the quote's payable amount.
type AllocatedLine struct {
	ProductID       int64
	Name            string
	Quantity        int
	UnitAmountCents int64
	AmountCents     int64
}

var oneHundred = decimal.NewFromInt(100)

func toCents(d decimal.Decimal) int64 {
	return d.Mul(oneHundred).IntPart()
}

// AllocateDiscount distributes the points discount across cart lines by
// largest remainder, so the allocated line totals reproduce the payable
// amount to the cent instead of drifting under awkward price/quantity
// combinations. When a line's discounted total does not divide evenly by
// its quantity, the quantity is folded into a single line so the
// gateway-side sum stays exact.
func AllocateDiscount(lines []models.CartLine, q Quote) []AllocatedLine {
	if len(lines) == 0 {
		return nil
	}

	allocated := make([]AllocatedLine, len(lines))

	if q.PointsApplied == 0 {
		for i, line := range lines {
			unit := toCents(line.UnitPrice)
			allocated[i] = AllocatedLine{
				ProductID:       line.ProductID,
				Name:            line.ProductName,
				Quantity:        line.Quantity,
				UnitAmountCents: unit,
				AmountCents:     unit * int64(line.Quantity),
			}
		}
		return allocated
	}

	payableCents := toCents(q.Payable)
	subtotalCents := decimal.NewFromInt(toCents(q.Subtotal))

	// Exact integer division per line: quotient is the floor share,
	// remainder decides who absorbs the leftover cents.
	type share struct {
		index     int
		remainder decimal.Decimal
	}

	floors := make([]int64, len(lines))
	remainders := make([]share, len(lines))
	var allocatedCents int64

	for i, line := range lines {
		extended := decimal.NewFromInt(toCents(line.UnitPrice) * int64(line.Quantity))
		numerator := extended.Mul(decimal.NewFromInt(payableCents))
		quotient, remainder := numerator.QuoRem(subtotalCents, 0)

		floors[i] = quotient.IntPart()
		allocatedCents += floors[i]
		remainders[i] = share{index: i, remainder: remainder}
	}

	leftover := payableCents - allocatedCents
	sort.SliceStable(remainders, func(a, b int) bool {
		return remainders[a].remainder.GreaterThan(remainders[b].remainder)
	})
	for i := int64(0); i < leftover; i++ {
		floors[remainders[i%int64(len(lines))].index]++
	}

	for i, line := range lines {
		amount := floors[i]
		quantity := line.Quantity
		unit := amount / int64(quantity)
		if unit*int64(quantity) != amount {
			// Not evenly divisible: collapse to a single line item so
			// the extended amount survives unchanged.
			quantity = 1
			unit = amount
		}
		allocated[i] = AllocatedLine{
			ProductID:       line.ProductID,
			Name:            line.ProductName,
			Quantity:        quantity,
			UnitAmountCents: unit,
			AmountCents:     amount,
		}
	}

	return allocated
}
