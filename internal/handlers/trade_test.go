package handlers

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/atharvakonge/trading-ledger/internal/ledger"
	"github.com/atharvakonge/trading-ledger/internal/quotes"
	"github.com/atharvakonge/trading-ledger/internal/store"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.Local)

type testEnv struct {
	*Env
	mem    *store.Memory
	out    bytes.Buffer
	errOut bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemory(store.Snapshot{})
	e := ledger.New(mem, quotes.NewRegistry(quotes.SampleInstruments()...),
		ledger.WithClock(func() time.Time { return testNow }),
		ledger.WithLogger(log.New(io.Discard, "", 0)),
	)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Failed to load engine: %v", err)
	}
	te := &testEnv{mem: mem}
	te.Env = &Env{
		Engine:  e,
		In:      strings.NewReader(""),
		Out:     &te.out,
		Err:     &te.errOut,
		Perturb: func(string) float64 { return 5 },
	}
	return te
}

// run executes one command line through a commander, the way main does
func (te *testEnv) run(t *testing.T, args ...string) subcommands.ExitStatus {
	t.Helper()
	te.out.Reset()
	te.errOut.Reset()

	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	cmdr := subcommands.NewCommander(fs, "ledger")
	cmdr.Output = io.Discard
	cmdr.Error = io.Discard
	Register(cmdr)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Failed to parse %v: %v", args, err)
	}
	return cmdr.Execute(context.Background(), te.Env)
}

func (te *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	if status := te.run(t, args...); status != subcommands.ExitSuccess {
		t.Fatalf("%v exited with %d: %s", args, status, te.errOut.String())
	}
	return te.out.String()
}

func assertContains(t *testing.T, output string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(output, w) {
			t.Errorf("Expected output to contain %q, got:\n%s", w, output)
		}
	}
}

func TestRegisterAndBuy(t *testing.T) {
	te := newTestEnv(t)

	out := te.mustRun(t, "register", "-name", "alice", "-balance", "1000")
	assertContains(t, out, "Account created successfully!", "User ID: 1", "Welcome, alice!")

	out = te.mustRun(t, "buy", "-user", "ALICE", "-symbol", "aapl", "-qty", "2")
	assertContains(t, out, "Purchase successful!", "Transaction ID: 1",
		"Bought 2 AAPL @ $175.50, total $351.00", "New balance: $649.00")

	u, _ := te.Engine.UserByName("alice")
	if !u.Balance.Equal(decimal.RequireFromString("649")) {
		t.Errorf("Expected balance 649, got %s", u.Balance)
	}
	if h, ok := u.Holding("AAPL"); !ok || h.Quantity != 2 {
		t.Errorf("Expected 2 AAPL shares, got %+v", u.Holdings)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	te := newTestEnv(t)
	te.mustRun(t, "register", "-name", "alice", "-balance", "10")

	if status := te.run(t, "register", "-name", "Alice"); status != subcommands.ExitFailure {
		t.Errorf("Expected failure, got %d", status)
	}
	assertContains(t, te.errOut.String(), "username already exists")

	if status := te.run(t, "register", "-name", "bob", "-balance", "ten"); status != subcommands.ExitUsageError {
		t.Errorf("Expected usage error for bad balance, got %d", status)
	}
}

func TestBuy_Failures(t *testing.T) {
	te := newTestEnv(t)
	te.mustRun(t, "register", "-name", "alice", "-balance", "100")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"insufficient funds", []string{"buy", "-user", "alice", "-symbol", "AAPL", "-qty", "1"}, "insufficient funds"},
		{"unknown symbol", []string{"buy", "-user", "alice", "-symbol", "XYZ", "-qty", "1"}, "stock symbol not found"},
		{"zero quantity", []string{"buy", "-user", "alice", "-symbol", "AAPL"}, "quantity must be positive"},
		{"unknown user", []string{"buy", "-user", "ghost", "-symbol", "AAPL", "-qty", "1"}, "user not found"},
		{"missing user", []string{"buy", "-symbol", "AAPL", "-qty", "1"}, "-user is required"},
		{"nothing to sell", []string{"sell", "-user", "alice", "-symbol", "AAPL", "-qty", "1"}, "no shares held"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status := te.run(t, tt.args...); status != subcommands.ExitFailure {
				t.Errorf("Expected failure, got %d", status)
			}
			assertContains(t, te.errOut.String(), tt.want)
		})
	}

	u, _ := te.Engine.UserByName("alice")
	if !u.Balance.Equal(decimal.NewFromInt(100)) || len(u.Holdings) != 0 {
		t.Errorf("Failed trades changed the account: %+v", u)
	}
}

func TestSell_ClosesPosition(t *testing.T) {
	te := newTestEnv(t)
	te.mustRun(t, "register", "-name", "alice", "-balance", "1000")
	te.mustRun(t, "buy", "-user", "alice", "-symbol", "AAPL", "-qty", "2")

	if status := te.run(t, "sell", "-user", "alice", "-symbol", "AAPL", "-qty", "3"); status != subcommands.ExitFailure {
		t.Errorf("Expected overselling to fail, got %d", status)
	}
	assertContains(t, te.errOut.String(), "insufficient shares")

	out := te.mustRun(t, "sell", "-user", "alice", "-symbol", "AAPL", "-qty", "2")
	assertContains(t, out, "Sale successful!", "Transaction ID: 2", "New balance: $1,000.00")

	out = te.mustRun(t, "portfolio", "-user", "alice")
	assertContains(t, out, "No holdings yet")
}

func TestPortfolio(t *testing.T) {
	te := newTestEnv(t)
	te.mustRun(t, "register", "-name", "alice", "-balance", "1000")
	te.mustRun(t, "buy", "-user", "alice", "-symbol", "AAPL", "-qty", "2")

	in, _ := te.Engine.Quotes().FindBySymbol("AAPL")
	in.PreviousPrice, in.Price = in.Price, decimal.NewFromInt(190)
	te.Engine.Quotes().Add(in)

	out := te.mustRun(t, "portfolio", "-user", "alice")
	assertContains(t, out,
		"Portfolio of alice",
		"Account Balance:     $649.00",
		"Total Investment:    $351.00",
		"Current Value:       $380.00",
		"Profit/Loss:         $29.00",
		"Return:              +8.26%",
		"Total Net Worth:     $1,029.00",
		"2025-03-14",
	)
}

func TestHistory(t *testing.T) {
	te := newTestEnv(t)
	te.mustRun(t, "register", "-name", "alice", "-balance", "1000")

	out := te.mustRun(t, "history", "-user", "alice")
	assertContains(t, out, "No transactions yet")

	te.mustRun(t, "buy", "-user", "alice", "-symbol", "MSFT", "-qty", "1")
	te.mustRun(t, "sell", "-user", "alice", "-symbol", "MSFT", "-qty", "1")

	out = te.mustRun(t, "history", "-user", "alice")
	assertContains(t, out, "BUY", "SELL", "$380.75", "2025-03-14 10:30")
	if strings.Index(out, "BUY") > strings.Index(out, "SELL") {
		t.Errorf("Expected transactions in execution order:\n%s", out)
	}
}

func TestMarket(t *testing.T) {
	te := newTestEnv(t)

	out := te.mustRun(t, "market")
	assertContains(t, out, "Apple Inc.", "$175.50", "0.00%")

	out = te.mustRun(t, "market", "-update")
	assertContains(t, out, "$184.28", "+5.00%")

	in, _ := te.Engine.Quotes().FindBySymbol("AAPL")
	if !in.PreviousPrice.Equal(decimal.RequireFromString("175.50")) {
		t.Errorf("Expected previous price 175.50, got %s", in.PreviousPrice)
	}
}

func TestDepositWithdraw(t *testing.T) {
	te := newTestEnv(t)
	te.mustRun(t, "register", "-name", "alice", "-balance", "100")

	out := te.mustRun(t, "deposit", "-user", "alice", "-amount", "$1,250.50")
	assertContains(t, out, "Deposit successful!", "New balance: $1,350.50")

	out = te.mustRun(t, "withdraw", "-user", "alice", "-amount", "350.50")
	assertContains(t, out, "Withdrawal successful!", "New balance: $1,000.00")

	if status := te.run(t, "withdraw", "-user", "alice", "-amount", "1000.01"); status != subcommands.ExitFailure {
		t.Errorf("Expected overdraft to fail, got %d", status)
	}
	assertContains(t, te.errOut.String(), "invalid amount")

	if status := te.run(t, "deposit", "-user", "alice", "-amount", "0"); status != subcommands.ExitFailure {
		t.Errorf("Expected zero deposit to fail, got %d", status)
	}
}

func TestSaveFailureIsReported(t *testing.T) {
	te := newTestEnv(t)
	te.mustRun(t, "register", "-name", "alice", "-balance", "100")
	te.mem.SaveErr = errors.New("disk full")

	if status := te.run(t, "deposit", "-user", "alice", "-amount", "50"); status != subcommands.ExitFailure {
		t.Errorf("Expected failure status, got %d", status)
	}
	assertContains(t, te.out.String(), "Deposit successful!", "New balance: $150.00")
	assertContains(t, te.errOut.String(), "Warning: changes could not be saved", "disk full")
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"649", "$649.00"},
		{"1234567.891", "$1,234,567.89"},
		{"0.005", "$0.01"},
		{"-29.5", "-$29.50"},
	}
	for _, tt := range tests {
		if got := formatMoney(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("formatMoney(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
