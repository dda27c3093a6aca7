package handlers

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atharvakonge/trading-ledger/internal/models"
	"github.com/google/subcommands"
)

type menuCmd struct{}

func (*menuCmd) Name() string     { return "menu" }
func (*menuCmd) Synopsis() string { return "start an interactive trading session" }
func (*menuCmd) Usage() string {
	return `menu

  Logs in or registers, then loops over the main menu until Exit or end of
  input.
`
}
func (*menuCmd) SetFlags(*flag.FlagSet) {}

func (*menuCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env := envFrom(args)
	if env == nil {
		return subcommands.ExitFailure
	}
	s := &session{ctx: ctx, env: env, in: bufio.NewScanner(env.In), out: env.Out}
	s.run()
	return subcommands.ExitSuccess
}

// session is one interactive login. It ends on Exit or when input runs out.
type session struct {
	ctx    context.Context
	env    *Env
	in     *bufio.Scanner
	out    io.Writer
	userID int
	closed bool
}

func (s *session) readLine(prompt string) (string, bool) {
	fmt.Fprint(s.out, prompt)
	if s.closed || !s.in.Scan() {
		s.closed = true
		fmt.Fprintln(s.out)
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *session) waitForEnter() {
	s.readLine("\nPress Enter to return to menu...")
}

func (s *session) user() models.User {
	u, _ := s.env.Engine.User(s.userID)
	return u
}

func (s *session) run() {
	fmt.Fprintln(s.out, "  Welcome to Stock Trading Platform")

	if !s.loginOrRegister() {
		fmt.Fprintln(s.out, "Exiting system. Goodbye!")
		return
	}

	for !s.closed {
		s.showMainMenu()
		choice, ok := s.readLine("Choose an option: ")
		if !ok {
			break
		}
		switch choice {
		case "1":
			s.marketFlow()
		case "2":
			s.buyFlow()
		case "3":
			s.sellFlow()
		case "4":
			s.portfolioFlow()
		case "5":
			s.historyFlow()
		case "6":
			s.depositFlow()
		case "7":
			s.withdrawFlow()
		case "8":
			s.closed = true
		default:
			fmt.Fprintln(s.out, "Invalid option. Please try again.")
		}
	}

	fmt.Fprintln(s.out, "\nThank you for using Stock Trading Platform!")
	fmt.Fprintln(s.out, "Goodbye!")
}

func (s *session) loginOrRegister() bool {
	for {
		fmt.Fprintln(s.out, "\n1. Login")
		fmt.Fprintln(s.out, "2. Register New Account")
		fmt.Fprintln(s.out, "3. Exit")
		choice, ok := s.readLine("Choose an option: ")
		if !ok {
			return false
		}

		switch choice {
		case "1":
			if s.loginFlow() {
				return true
			}
		case "2":
			if s.registerFlow() {
				return true
			}
		case "3":
			return false
		default:
			fmt.Fprintln(s.out, "Invalid option.")
		}
		if s.closed {
			return false
		}
	}
}

func (s *session) loginFlow() bool {
	fmt.Fprintln(s.out, "\n--- Login ---")
	name, ok := s.readLine("Enter username: ")
	if !ok {
		return false
	}
	if name == "" {
		fmt.Fprintln(s.out, "Username cannot be empty.")
		return false
	}

	u, found := s.env.Engine.UserByName(name)
	if !found {
		fmt.Fprintln(s.out, "User not found.")
		return false
	}
	s.userID = u.ID
	fmt.Fprintf(s.out, "Login successful! Welcome, %s\n", u.Username)
	return true
}

func (s *session) registerFlow() bool {
	fmt.Fprintln(s.out, "\n--- Register New Account ---")
	name, ok := s.readLine("Enter username: ")
	if !ok {
		return false
	}
	if name == "" {
		fmt.Fprintln(s.out, "Username cannot be empty.")
		return false
	}
	text, ok := s.readLine("Enter initial deposit amount: $")
	if !ok {
		return false
	}
	amount, err := parseAmount(text)
	if err != nil {
		fmt.Fprintln(s.out, "Invalid amount.")
		return false
	}

	u, err := s.env.Engine.RegisterUser(s.ctx, name, amount)
	if !applied(err) {
		printError(s.out, err)
		return false
	}
	s.userID = u.ID
	fmt.Fprintln(s.out, "\nAccount created successfully!")
	fmt.Fprintf(s.out, "User ID: %d\n", u.ID)
	fmt.Fprintf(s.out, "Welcome, %s!\n", u.Username)
	printSaveWarning(s.out, err)
	return true
}

func (s *session) showMainMenu() {
	u := s.user()
	fmt.Fprintln(s.out, "\n"+rule)
	fmt.Fprintln(s.out, "   Stock Trading Platform")
	fmt.Fprintf(s.out, "   User: %s\n", u.Username)
	fmt.Fprintln(s.out, rule)
	fmt.Fprintln(s.out, "  1. View Market Data")
	fmt.Fprintln(s.out, "  2. Buy Stock")
	fmt.Fprintln(s.out, "  3. Sell Stock")
	fmt.Fprintln(s.out, "  4. View Portfolio")
	fmt.Fprintln(s.out, "  5. View Transaction History")
	fmt.Fprintln(s.out, "  6. Deposit Funds")
	fmt.Fprintln(s.out, "  7. Withdraw Funds")
	fmt.Fprintln(s.out, "  8. Exit")
	fmt.Fprintln(s.out, rule)
	fmt.Fprintf(s.out, "Current Balance: %s\n", formatMoney(u.Balance))
}

func (s *session) marketFlow() {
	fmt.Fprintln(s.out, "\n--- Updating Market Data ---")
	err := updateMarket(s.ctx, s.env)
	writeMarket(s.out, s.env.Engine.Quotes().List())
	printSaveWarning(s.out, err)
	s.waitForEnter()
}

func (s *session) buyFlow() {
	fmt.Fprintln(s.out, "\n--- Buy Stock ---")
	writeMarket(s.out, s.env.Engine.Quotes().List())

	symbol, ok := s.readLine("\nEnter stock symbol: ")
	if !ok {
		return
	}
	in, found := s.env.Engine.Quotes().FindBySymbol(symbol)
	if !found {
		fmt.Fprintln(s.out, "Stock symbol not found.")
		s.waitForEnter()
		return
	}

	fmt.Fprintf(s.out, "Current price of %s: %s\n", in.Symbol, formatMoney(in.Price))
	qty, ok := s.readQuantity("Enter quantity to buy: ")
	if !ok {
		return
	}

	fmt.Fprintln(s.out, "\n"+rule)
	fmt.Fprintf(s.out, "Stock: %s\n", in.Symbol)
	fmt.Fprintf(s.out, "Quantity: %d shares\n", qty)
	fmt.Fprintf(s.out, "Price per share: %s\n", formatMoney(in.Price))
	fmt.Fprintf(s.out, "Total cost: %s\n", formatMoney(in.Price.Mul(decimalQty(qty))))
	fmt.Fprintf(s.out, "Your balance: %s\n", formatMoney(s.user().Balance))
	fmt.Fprintln(s.out, rule)

	if !s.confirm("Confirm purchase? (yes/no): ") {
		fmt.Fprintln(s.out, "Purchase cancelled.")
		s.waitForEnter()
		return
	}

	tx, err := s.env.Engine.Buy(s.ctx, s.userID, in.Symbol, qty)
	if !applied(err) {
		printError(s.out, err)
		fmt.Fprintln(s.out, "Purchase failed.")
		s.waitForEnter()
		return
	}
	fmt.Fprintln(s.out, "\nPurchase successful!")
	fmt.Fprintf(s.out, "Transaction ID: %d\n", tx.ID)
	fmt.Fprintf(s.out, "New balance: %s\n", formatMoney(s.user().Balance))
	printSaveWarning(s.out, err)
	s.waitForEnter()
}

func (s *session) sellFlow() {
	fmt.Fprintln(s.out, "\n--- Sell Stock ---")

	u := s.user()
	if len(u.Holdings) == 0 {
		fmt.Fprintln(s.out, "You don't own any stocks.")
		s.waitForEnter()
		return
	}

	fmt.Fprintln(s.out, "\nYour holdings:")
	fmt.Fprintln(s.out, rule)
	writeHoldings(s.out, s.env.Engine.Quotes(), u.Holdings)
	fmt.Fprintln(s.out, rule)

	symbol, ok := s.readLine("\nEnter stock symbol to sell: ")
	if !ok {
		return
	}
	h, held := u.Holding(symbol)
	if !held {
		fmt.Fprintf(s.out, "You don't own any shares of %s.\n", strings.ToUpper(symbol))
		s.waitForEnter()
		return
	}
	in, found := s.env.Engine.Quotes().FindBySymbol(h.Symbol)
	if !found {
		fmt.Fprintln(s.out, "Stock not found in market.")
		s.waitForEnter()
		return
	}

	fmt.Fprintf(s.out, "You own %d shares of %s\n", h.Quantity, h.Symbol)
	fmt.Fprintf(s.out, "Current market price: %s\n", formatMoney(in.Price))
	qty, ok := s.readQuantity("Enter quantity to sell: ")
	if !ok {
		return
	}

	fmt.Fprintln(s.out, "\n"+rule)
	fmt.Fprintf(s.out, "Stock: %s\n", h.Symbol)
	fmt.Fprintf(s.out, "Quantity: %d shares\n", qty)
	fmt.Fprintf(s.out, "Price per share: %s\n", formatMoney(in.Price))
	fmt.Fprintf(s.out, "Total value: %s\n", formatMoney(in.Price.Mul(decimalQty(qty))))
	fmt.Fprintf(s.out, "Average cost: %s\n", formatMoney(h.AvgPrice))
	fmt.Fprintf(s.out, "Profit/Loss: %s\n", formatMoney(in.Price.Sub(h.AvgPrice).Mul(decimalQty(qty))))
	fmt.Fprintln(s.out, rule)

	if !s.confirm("Confirm sale? (yes/no): ") {
		fmt.Fprintln(s.out, "Sale cancelled.")
		s.waitForEnter()
		return
	}

	tx, err := s.env.Engine.Sell(s.ctx, s.userID, h.Symbol, qty)
	if !applied(err) {
		printError(s.out, err)
		fmt.Fprintln(s.out, "Sale failed.")
		s.waitForEnter()
		return
	}
	fmt.Fprintln(s.out, "\nSale successful!")
	fmt.Fprintf(s.out, "Transaction ID: %d\n", tx.ID)
	fmt.Fprintf(s.out, "New balance: %s\n", formatMoney(s.user().Balance))
	printSaveWarning(s.out, err)
	s.waitForEnter()
}

func (s *session) portfolioFlow() {
	fmt.Fprintln(s.out)
	if err := writePortfolio(s.out, s.env.Engine, s.userID); err != nil {
		printError(s.out, err)
	}
	s.waitForEnter()
}

func (s *session) historyFlow() {
	fmt.Fprintln(s.out, "\n"+rule)
	fmt.Fprintln(s.out, "       Transaction History")
	fmt.Fprintln(s.out, rule)
	writeHistory(s.out, s.env.Engine.Transactions(s.userID))
	fmt.Fprintln(s.out, rule)
	s.waitForEnter()
}

func (s *session) depositFlow() {
	fmt.Fprintln(s.out, "\n--- Deposit Funds ---")
	fmt.Fprintf(s.out, "Current balance: %s\n", formatMoney(s.user().Balance))
	text, ok := s.readLine("Enter amount to deposit: $")
	if !ok {
		return
	}
	amount, err := parseAmount(text)
	if err != nil {
		fmt.Fprintln(s.out, "Invalid amount.")
		s.waitForEnter()
		return
	}

	u, err := s.env.Engine.Deposit(s.ctx, s.userID, amount)
	if !applied(err) {
		fmt.Fprintln(s.out, "Deposit failed. Amount must be positive.")
		s.waitForEnter()
		return
	}
	fmt.Fprintln(s.out, "\nDeposit successful!")
	fmt.Fprintf(s.out, "New balance: %s\n", formatMoney(u.Balance))
	printSaveWarning(s.out, err)
	s.waitForEnter()
}

func (s *session) withdrawFlow() {
	fmt.Fprintln(s.out, "\n--- Withdraw Funds ---")
	fmt.Fprintf(s.out, "Current balance: %s\n", formatMoney(s.user().Balance))
	text, ok := s.readLine("Enter amount to withdraw: $")
	if !ok {
		return
	}
	amount, err := parseAmount(text)
	if err != nil {
		fmt.Fprintln(s.out, "Invalid amount.")
		s.waitForEnter()
		return
	}

	u, err := s.env.Engine.Withdraw(s.ctx, s.userID, amount)
	if !applied(err) {
		printError(s.out, err)
		fmt.Fprintln(s.out, "Withdrawal failed.")
		s.waitForEnter()
		return
	}
	fmt.Fprintln(s.out, "\nWithdrawal successful!")
	fmt.Fprintf(s.out, "New balance: %s\n", formatMoney(u.Balance))
	printSaveWarning(s.out, err)
	s.waitForEnter()
}

// readQuantity reads a share count. Invalid or non-positive input is
// reported and returns false.
func (s *session) readQuantity(prompt string) (int, bool) {
	text, ok := s.readLine(prompt)
	if !ok {
		return 0, false
	}
	qty, err := strconv.Atoi(text)
	if err != nil {
		fmt.Fprintln(s.out, "Invalid input.")
		s.waitForEnter()
		return 0, false
	}
	if qty <= 0 {
		fmt.Fprintln(s.out, "Quantity must be positive.")
		s.waitForEnter()
		return 0, false
	}
	return qty, true
}

func (s *session) confirm(prompt string) bool {
	answer, ok := s.readLine(prompt)
	return ok && strings.EqualFold(answer, "yes")
}
