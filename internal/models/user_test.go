package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSetHolding(t *testing.T) {
	u := &User{ID: 1, Username: "alice"}

	u.SetHolding(Holding{Symbol: "AAPL", Quantity: 2, AvgPrice: decimal.NewFromInt(175)})
	u.SetHolding(Holding{Symbol: "MSFT", Quantity: 1, AvgPrice: decimal.NewFromInt(380)})
	if len(u.Holdings) != 2 {
		t.Fatalf("Expected 2 holdings, got %d", len(u.Holdings))
	}

	u.SetHolding(Holding{Symbol: "AAPL", Quantity: 5, AvgPrice: decimal.NewFromInt(177)})
	h, ok := u.Holding("aapl")
	if !ok || h.Quantity != 5 || len(u.Holdings) != 2 {
		t.Errorf("Expected AAPL to be replaced in place, got %+v", u.Holdings)
	}

	u.SetHolding(Holding{Symbol: "AAPL", Quantity: 0})
	if _, ok := u.Holding("AAPL"); ok {
		t.Error("Expected zero quantity to remove the holding")
	}
	if len(u.Holdings) != 1 || u.Holdings[0].Symbol != "MSFT" {
		t.Errorf("Expected only MSFT left, got %+v", u.Holdings)
	}

	// removing an absent holding is a no-op
	u.SetHolding(Holding{Symbol: "TSLA"})
	if len(u.Holdings) != 1 {
		t.Errorf("Expected 1 holding, got %d", len(u.Holdings))
	}
}

func TestClone(t *testing.T) {
	u := User{ID: 1, Holdings: []Holding{{Symbol: "AAPL", Quantity: 2}}}
	c := u.Clone()
	c.Holdings[0].Quantity = 99
	c.SetHolding(Holding{Symbol: "MSFT", Quantity: 1})

	if u.Holdings[0].Quantity != 2 || len(u.Holdings) != 1 {
		t.Errorf("Clone shares storage with the original: %+v", u.Holdings)
	}
}

func TestHoldingCostAndTotal(t *testing.T) {
	h := Holding{Quantity: 3, AvgPrice: decimal.NewFromInt(177)}
	if !h.Cost().Equal(decimal.NewFromInt(531)) {
		t.Errorf("Expected cost 531, got %s", h.Cost())
	}
	tx := Transaction{Quantity: 4, Price: decimal.RequireFromString("175.50")}
	if !tx.Total().Equal(decimal.NewFromInt(702)) {
		t.Errorf("Expected total 702, got %s", tx.Total())
	}
}

func TestParseSide(t *testing.T) {
	for in, want := range map[string]Side{"BUY": SideBuy, "sell": SideSell, " Buy ": SideBuy} {
		got, err := ParseSide(in)
		if err != nil || got != want {
			t.Errorf("ParseSide(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseSide("HOLD"); err == nil {
		t.Error("Expected error for HOLD")
	}
}
