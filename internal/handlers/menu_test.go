package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// session feeds lines to the menu command and returns what it printed
func (te *testEnv) session(t *testing.T, lines ...string) string {
	t.Helper()
	te.In = strings.NewReader(strings.Join(lines, "\n") + "\n")
	if status := te.run(t, "menu"); status != subcommands.ExitSuccess {
		t.Fatalf("menu exited with %d", status)
	}
	return te.out.String()
}

func TestMenu_RegisterBuyAndExit(t *testing.T) {
	te := newTestEnv(t)

	out := te.session(t,
		"2", "bob", "500", // register
		"2", "aapl", "2", "yes", "", // buy
		"4", "", // portfolio
		"8",
	)

	assertContains(t, out,
		"Welcome to Stock Trading Platform",
		"Account created successfully!",
		"Current price of AAPL: $175.50",
		"Total cost: $351.00",
		"Purchase successful!",
		"New balance: $149.00",
		"Total Net Worth:     $500.00",
		"Thank you for using Stock Trading Platform!",
	)

	u, ok := te.Engine.UserByName("bob")
	if !ok || !u.Balance.Equal(decimal.NewFromInt(149)) {
		t.Errorf("Expected bob with $149, got %+v", u)
	}
}

func TestMenu_LoginUnknownUser(t *testing.T) {
	te := newTestEnv(t)

	out := te.session(t, "1", "ghost", "1", "", "9", "3")
	assertContains(t, out, "User not found.", "Username cannot be empty.", "Invalid option.", "Exiting system. Goodbye!")
	if strings.Contains(out, "Thank you for using") {
		t.Errorf("Main menu should not be reached:\n%s", out)
	}
}

func TestMenu_SellFlow(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	u, err := te.Engine.RegisterUser(ctx, "alice", decimal.NewFromInt(1000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := te.Engine.Buy(ctx, u.ID, "AAPL", 2); err != nil {
		t.Fatal(err)
	}

	out := te.session(t,
		"1", "alice",
		"3", "MSFT", "", // not held
		"3", "AAPL", "abc", "", // bad quantity
		"3", "AAPL", "1", "no", "", // cancelled
		"3", "AAPL", "2", "yes", "", // sold out
		"3", "", // nothing left
	)

	assertContains(t, out,
		"Login successful! Welcome, alice",
		"You don't own any shares of MSFT.",
		"Invalid input.",
		"Sale cancelled.",
		"You own 2 shares of AAPL",
		"Profit/Loss: $0.00",
		"Sale successful!",
		"New balance: $1,000.00",
		"You don't own any stocks.",
		"Goodbye!",
	)

	u, _ = te.Engine.User(u.ID)
	if len(u.Holdings) != 0 {
		t.Errorf("Expected the position to be closed, got %+v", u.Holdings)
	}
	if got := len(te.Engine.Transactions(u.ID)); got != 2 {
		t.Errorf("Expected 2 transactions, got %d", got)
	}
}

func TestMenu_CashFlows(t *testing.T) {
	te := newTestEnv(t)
	if _, err := te.Engine.RegisterUser(context.Background(), "carol", decimal.NewFromInt(10)); err != nil {
		t.Fatal(err)
	}

	out := te.session(t,
		"1", "carol",
		"6", "-5", "", // rejected deposit
		"6", "abc", "", // not a number
		"6", "90", "",
		"7", "150", "", // overdraft
		"7", "25.25", "",
		"5", "",
		"1", "",
		"8",
	)

	assertContains(t, out,
		"Deposit failed. Amount must be positive.",
		"Invalid amount.",
		"Deposit successful!",
		"New balance: $100.00",
		"Withdrawal failed.",
		"Withdrawal successful!",
		"New balance: $74.75",
		"No transactions yet",
		"--- Updating Market Data ---",
		"+5.00%",
	)
}
