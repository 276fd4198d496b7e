package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"USD", USD(850000), 850000, "usd", "$8500.00"},
		{"USD cents", USD(1003000), 1003000, "usd", "$10030.00"},
		{"Cents", Cents(19900, "EUR"), 19900, "eur", "€199.00"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := USD(850000)
	b := USD(153000)

	if got := a.Add(b); got.Amount != 1003000 {
		t.Errorf("Add: got %d, want 1003000", got.Amount)
	}
	if got := a.Subtract(b); got.Amount != 697000 {
		t.Errorf("Subtract: got %d, want 697000", got.Amount)
	}
	if got := b.Negate(); got.Amount != -153000 {
		t.Errorf("Negate: got %d, want -153000", got.Amount)
	}
}

func TestMoneyCurrencyMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on currency mismatch")
		}
	}()
	USD(100).Add(Cents(100, "eur"))
}

func TestMoneyCovers(t *testing.T) {
	total := USD(1003000)

	tests := []struct {
		name  string
		paid  Money
		slack int64
		want  bool
	}{
		{"exact", USD(1003000), 1, true},
		{"over", USD(1003001), 1, true},
		{"one cent short within slack", USD(1002999), 1, true},
		{"two cents short", USD(1002998), 1, false},
		{"zero slack exact", USD(1003000), 0, true},
		{"zero slack short", USD(1002999), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.paid.Covers(total, tt.slack); got != tt.want {
				t.Errorf("Covers: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMoneyComparisons(t *testing.T) {
	a := USD(100)
	b := USD(200)

	if !a.LessThan(b) || b.LessThan(a) {
		t.Error("LessThan misordered")
	}
	if !b.GreaterThan(a) || a.GreaterThan(b) {
		t.Error("GreaterThan misordered")
	}
	if !a.Equal(USD(100)) || a.Equal(b) {
		t.Error("Equal mismatch")
	}
	if !Zero("usd").IsZero() || !a.IsPositive() || !a.Negate().IsNegative() {
		t.Error("sign predicates mismatch")
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	m := USD(153000)

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Money
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Equal(m) {
		t.Errorf("round trip: got %+v, want %+v", decoded, m)
	}
}

func TestMoneyFormatNegative(t *testing.T) {
	if got := USD(-4950).FormatMajor(); got != "-49.50" {
		t.Errorf("FormatMajor: got %s, want -49.50", got)
	}
}

func TestSum(t *testing.T) {
	got := Sum(USD(100), USD(250), USD(50))
	if got.Amount != 400 {
		t.Errorf("Sum: got %d, want 400", got.Amount)
	}
	if !Sum().IsZero() {
		t.Error("empty Sum should be zero")
	}
}
