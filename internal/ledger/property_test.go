package ledger

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/atharvakonge/trading-ledger/internal/models"
	"github.com/atharvakonge/trading-ledger/internal/quotes"
	"github.com/atharvakonge/trading-ledger/internal/store"
	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

var symbols = []string{"AAPL", "MSFT", "V", "WMT"}

func newPropertyEngine(t *rapid.T, balanceCents int64) (*Engine, int) {
	e := New(store.NewMemory(store.Snapshot{}), quotes.NewRegistry(quotes.SampleInstruments()...),
		WithLogger(log.New(io.Discard, "", 0)))
	u, err := e.RegisterUser(context.Background(), "prop", decimal.New(balanceCents, -2))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return e, u.ID
}

func heldQuantity(u models.User, symbol string) int {
	h, _ := u.Holding(symbol)
	return h.Quantity
}

// A successful buy moves exactly q×price out of cash and q shares into the holding.
func TestProperty_BuyConservesValue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e, id := newPropertyEngine(t, rapid.Int64Range(0, 10_000_000).Draw(t, "balanceCents"))
		symbol := rapid.SampledFrom(symbols).Draw(t, "symbol")
		qty := rapid.IntRange(-3, 50).Draw(t, "qty")

		before, _ := e.User(id)
		in, _ := e.Quotes().FindBySymbol(symbol)
		cost := in.Price.Mul(decimal.NewFromInt(int64(qty)))

		tx, err := e.Buy(context.Background(), id, symbol, qty)
		after, _ := e.User(id)

		switch {
		case qty <= 0:
			if !errors.Is(err, ErrInvalidQuantity) {
				t.Fatalf("expected ErrInvalidQuantity for qty %d, got %v", qty, err)
			}
		case before.Balance.LessThan(cost):
			if !errors.Is(err, ErrInsufficientFunds) {
				t.Fatalf("expected ErrInsufficientFunds, got %v", err)
			}
		default:
			if err != nil {
				t.Fatalf("buy failed: %v", err)
			}
			if !after.Balance.Equal(before.Balance.Sub(cost)) {
				t.Fatalf("balance %s, want %s", after.Balance, before.Balance.Sub(cost))
			}
			if heldQuantity(after, symbol) != heldQuantity(before, symbol)+qty {
				t.Fatalf("holding %d, want %d", heldQuantity(after, symbol), heldQuantity(before, symbol)+qty)
			}
			if !tx.Total().Equal(cost) {
				t.Fatalf("transaction total %s, want %s", tx.Total(), cost)
			}
			return
		}
		if !after.Balance.Equal(before.Balance) || len(after.Holdings) != len(before.Holdings) {
			t.Fatalf("failed buy changed state: %+v -> %+v", before, after)
		}
	})
}

// Random trade sequences never drive cash or holdings negative, never keep
// empty holdings, and produce one transaction per successful trade.
func TestProperty_TradeSequenceInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e, id := newPropertyEngine(t, rapid.Int64Range(0, 500_000).Draw(t, "balanceCents"))
		ctx := context.Background()
		succeeded := 0

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			symbol := rapid.SampledFrom(symbols).Draw(t, "symbol")
			qty := rapid.IntRange(1, 10).Draw(t, "qty")
			before, _ := e.User(id)

			var err error
			if rapid.Bool().Draw(t, "buy") {
				_, err = e.Buy(ctx, id, symbol, qty)
			} else {
				_, err = e.Sell(ctx, id, symbol, qty)
				if err == nil {
					after, _ := e.User(id)
					_, stillHeld := after.Holding(symbol)
					if stillHeld == (qty == heldQuantity(before, symbol)) {
						t.Fatalf("holding removal mismatch: sold %d of %d, still held %v", qty, heldQuantity(before, symbol), stillHeld)
					}
				}
			}
			if err == nil {
				succeeded++
			}

			u, _ := e.User(id)
			if u.Balance.IsNegative() {
				t.Fatalf("negative balance %s", u.Balance)
			}
			for _, h := range u.Holdings {
				if h.Quantity <= 0 {
					t.Fatalf("holding %s with quantity %d", h.Symbol, h.Quantity)
				}
			}
		}

		txs := e.Transactions(id)
		if len(txs) != succeeded {
			t.Fatalf("%d transactions for %d successful trades", len(txs), succeeded)
		}
		for i := 1; i < len(txs); i++ {
			if txs[i].ID <= txs[i-1].ID {
				t.Fatalf("transaction ids not increasing: %d then %d", txs[i-1].ID, txs[i].ID)
			}
		}

		perf, _ := e.PortfolioPerformance(id)
		u, _ := e.User(id)
		invested := decimal.Zero
		for _, h := range u.Holdings {
			invested = invested.Add(h.Cost())
		}
		if !perf.TotalInvestment.Equal(invested) {
			t.Fatalf("total investment %s, want %s", perf.TotalInvestment, invested)
		}
	})
}
