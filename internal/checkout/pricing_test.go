package checkout

import (
	"testing"

	"github.com/amalikprincem05/e-bazzari/internal/models"
	"github.com/shopspring/decimal"
)

func line(productID int64, name string, price string, quantity int) models.CartLine {
	l := models.CartLine{
		ProductName: name,
		UnitPrice:   decimal.RequireFromString(price),
	}
	l.ProductID = productID
	l.Quantity = quantity
	l.LineTotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	return l
}

func TestSubtotalExact(t *testing.T) {
	lines := []models.CartLine{
		line(1, "Tea", "19.99", 3),
		line(2, "Mug", "7.45", 2),
		line(3, "Spoon", "0.10", 7),
	}

	subtotal := Subtotal(lines)

	expected := decimal.RequireFromString("75.57")
	if !subtotal.Equal(expected) {
		t.Errorf("Expected subtotal %s, got %s", expected, subtotal)
	}
}

func TestSubtotalEmpty(t *testing.T) {
	if got := Subtotal(nil); !got.Equal(decimal.Zero) {
		t.Errorf("Expected zero subtotal for empty cart, got %s", got)
	}
}

func TestMaxRedeemable(t *testing.T) {
	tests := []struct {
		name     string
		balance  int
		subtotal string
		want     int
	}{
		{"balance below subtotal", 30, "100.00", 30},
		{"balance above subtotal", 500, "100.00", 100},
		{"fractional subtotal floors", 500, "99.99", 99},
		{"zero balance", 0, "100.00", 0},
		{"negative balance", -5, "100.00", 0},
		{"sub-unit subtotal", 10, "0.75", 0},
		{"huge balance", 1 << 30, "12.00", 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxRedeemable(tt.balance, decimal.RequireFromString(tt.subtotal))
			if got != tt.want {
				t.Errorf("MaxRedeemable(%d, %s) = %d, want %d", tt.balance, tt.subtotal, got, tt.want)
			}
		})
	}
}

func TestPriceAppliesRequestedPoints(t *testing.T) {
	lines := []models.CartLine{
		line(1, "Lamp", "60.00", 1),
		line(2, "Bulb", "10.00", 4),
	}

	q := Price(lines, 200, 30)

	if !q.Subtotal.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("Expected subtotal 100.00, got %s", q.Subtotal)
	}
	if q.PointsApplied != 30 {
		t.Errorf("Expected 30 points applied, got %d", q.PointsApplied)
	}
	if !q.Payable.Equal(decimal.RequireFromString("70.00")) {
		t.Errorf("Expected payable 70.00, got %s", q.Payable)
	}
}

func TestPriceClampsToBalance(t *testing.T) {
	lines := []models.CartLine{line(1, "Lamp", "100.00", 1)}

	q := Price(lines, 15, 50)

	if q.PointsApplied != 15 {
		t.Errorf("Expected points clamped to balance 15, got %d", q.PointsApplied)
	}
	if !q.Payable.Equal(decimal.RequireFromString("85.00")) {
		t.Errorf("Expected payable 85.00, got %s", q.Payable)
	}
}

func TestPriceClampsToSubtotal(t *testing.T) {
	lines := []models.CartLine{line(1, "Pen", "12.50", 1)}

	q := Price(lines, 1000, 1000)

	if q.PointsApplied != 12 {
		t.Errorf("Expected points clamped to 12, got %d", q.PointsApplied)
	}
	if !q.Payable.Equal(decimal.RequireFromString("0.50")) {
		t.Errorf("Expected payable 0.50, got %s", q.Payable)
	}
}

func TestPriceNegativeRequest(t *testing.T) {
	lines := []models.CartLine{line(1, "Pen", "12.50", 2)}

	q := Price(lines, 100, -7)

	if q.PointsApplied != 0 {
		t.Errorf("Expected zero points for negative request, got %d", q.PointsApplied)
	}
	if !q.Payable.Equal(q.Subtotal) {
		t.Errorf("Expected payable to equal subtotal, got %s vs %s", q.Payable, q.Subtotal)
	}
}

func TestPriceFullCoverage(t *testing.T) {
	lines := []models.CartLine{line(1, "Sticker", "25.00", 1)}

	q := Price(lines, 25, 25)

	if q.PointsApplied != 25 {
		t.Errorf("Expected 25 points applied, got %d", q.PointsApplied)
	}
	if !q.Payable.Equal(decimal.Zero) {
		t.Errorf("Expected zero payable, got %s", q.Payable)
	}
}

func TestParsePointsParam(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"  ", 0},
		{"30", 30},
		{" 30 ", 30},
		{"-5", 0},
		{"abc", 0},
		{"12.5", 0},
		{"0", 0},
	}

	for _, tt := range tests {
		if got := ParsePointsParam(tt.raw); got != tt.want {
			t.Errorf("ParsePointsParam(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
