package store

import (
	"context"
	"errors"
	"testing"

	"github.com/atharvakonge/trading-ledger/internal/models"
	"github.com/shopspring/decimal"
)

func snapshot(balance int64, holdings ...string) Snapshot {
	u := models.User{ID: 1, Username: "alice", Balance: decimal.NewFromInt(balance)}
	for _, s := range holdings {
		u.Holdings = append(u.Holdings, models.Holding{Symbol: s, Quantity: 1})
	}
	return Snapshot{
		Users:        []models.User{u},
		Instruments:  []models.Instrument{{Symbol: "AAPL", Price: decimal.NewFromInt(balance)}},
		Transactions: []models.Transaction{{ID: int(balance)}},
	}
}

func TestMemory_SavesOnlySelectedParts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(snapshot(100, "AAPL"))

	if err := m.Save(ctx, snapshot(50, "MSFT", "V"), Users); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Load(ctx)
	u := got.Users[0]
	if !u.Balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected user row to be saved, balance %s", u.Balance)
	}
	if len(u.Holdings) != 1 || u.Holdings[0].Symbol != "AAPL" {
		t.Errorf("Holdings were not selected but changed: %+v", u.Holdings)
	}
	if got.Transactions[0].ID != 100 || !got.Instruments[0].Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Unselected parts changed: %+v", got)
	}

	if err := m.Save(ctx, snapshot(10, "MSFT", "V"), Holdings|Transactions); err != nil {
		t.Fatal(err)
	}
	got, _ = m.Load(ctx)
	u = got.Users[0]
	if !u.Balance.Equal(decimal.NewFromInt(50)) || len(u.Holdings) != 2 {
		t.Errorf("Expected balance 50 with 2 holdings, got %+v", u)
	}
	if got.Transactions[0].ID != 10 {
		t.Errorf("Expected transactions to be replaced, got %+v", got.Transactions)
	}
}

func TestMemory_Isolation(t *testing.T) {
	ctx := context.Background()
	snap := snapshot(100, "AAPL")
	m := NewMemory(snap)

	snap.Users[0].Holdings[0].Quantity = 7
	loaded, _ := m.Load(ctx)
	loaded.Users[0].Holdings[0].Quantity = 9

	again, _ := m.Load(ctx)
	if q := again.Users[0].Holdings[0].Quantity; q != 1 {
		t.Errorf("Stored snapshot aliased by a caller, quantity %d", q)
	}
}

func TestMemory_SaveErr(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(snapshot(100))
	m.SaveErr = errors.New("disk full")

	if err := m.Save(ctx, snapshot(1), All); err == nil {
		t.Fatal("Expected SaveErr to be returned")
	}
	got, _ := m.Load(ctx)
	if !got.Users[0].Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Failed save changed the stored state: %+v", got.Users[0])
	}
}

func TestPartHas(t *testing.T) {
	p := Users | Transactions
	if !p.Has(Users) || !p.Has(Transactions) || p.Has(Holdings) || p.Has(Instruments) {
		t.Errorf("Unexpected membership for %b", p)
	}
	if !All.Has(Instruments) {
		t.Error("All should include Instruments")
	}
}
