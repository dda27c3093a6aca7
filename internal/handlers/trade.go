package handlers

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type registerCmd struct {
	name    string
	balance string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "open a new account with an initial deposit" }
func (*registerCmd) Usage() string {
	return `register -name <username> [-balance <amount>]

  Creates an account. Usernames are unique regardless of case.
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "username of the new account")
	f.StringVar(&c.balance, "balance", "0", "initial deposit")
}

func (c *registerCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env := envFrom(args)
	if env == nil {
		return subcommands.ExitFailure
	}
	amount, err := parseAmount(c.balance)
	if err != nil {
		printError(env.Err, err)
		return subcommands.ExitUsageError
	}

	u, err := env.Engine.RegisterUser(ctx, c.name, amount)
	if !applied(err) {
		printError(env.Err, err)
		return subcommands.ExitFailure
	}

	fmt.Fprintln(env.Out, "Account created successfully!")
	fmt.Fprintf(env.Out, "User ID: %d\n", u.ID)
	fmt.Fprintf(env.Out, "Welcome, %s!\n", u.Username)
	return finish(env, err)
}

type depositCmd struct {
	user   string
	amount string
}

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "add cash to an account" }
func (*depositCmd) Usage() string    { return "deposit -user <username> -amount <amount>\n" }

func (c *depositCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "account username")
	f.StringVar(&c.amount, "amount", "", "amount to deposit")
}

func (c *depositCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env := envFrom(args)
	if env == nil {
		return subcommands.ExitFailure
	}
	u, err := lookupUser(env.Engine, c.user)
	if err != nil {
		printError(env.Err, err)
		return subcommands.ExitFailure
	}
	amount, err := parseAmount(c.amount)
	if err != nil {
		printError(env.Err, err)
		return subcommands.ExitUsageError
	}

	u, err = env.Engine.Deposit(ctx, u.ID, amount)
	if !applied(err) {
		printError(env.Err, err)
		return subcommands.ExitFailure
	}

	fmt.Fprintln(env.Out, "Deposit successful!")
	fmt.Fprintf(env.Out, "New balance: %s\n", formatMoney(u.Balance))
	return finish(env, err)
}

type withdrawCmd struct {
	user   string
	amount string
}

func (*withdrawCmd) Name() string     { return "withdraw" }
func (*withdrawCmd) Synopsis() string { return "take cash out of an account" }
func (*withdrawCmd) Usage() string    { return "withdraw -user <username> -amount <amount>\n" }

func (c *withdrawCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "account username")
	f.StringVar(&c.amount, "amount", "", "amount to withdraw")
}

func (c *withdrawCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env := envFrom(args)
	if env == nil {
		return subcommands.ExitFailure
	}
	u, err := lookupUser(env.Engine, c.user)
	if err != nil {
		printError(env.Err, err)
		return subcommands.ExitFailure
	}
	amount, err := parseAmount(c.amount)
	if err != nil {
		printError(env.Err, err)
		return subcommands.ExitUsageError
	}

	u, err = env.Engine.Withdraw(ctx, u.ID, amount)
	if !applied(err) {
		printError(env.Err, err)
		return subcommands.ExitFailure
	}

	fmt.Fprintln(env.Out, "Withdrawal successful!")
	fmt.Fprintf(env.Out, "New balance: %s\n", formatMoney(u.Balance))
	return finish(env, err)
}

type buyCmd struct {
	user   string
	symbol string
	qty    int
}

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "buy shares at the current price" }
func (*buyCmd) Usage() string {
	return `buy -user <username> -symbol <symbol> -qty <shares>

  Buys at the last quoted price. Buying more of a held stock reweights its
  average cost.
`
}

func (c *buyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "account username")
	f.StringVar(&c.symbol, "symbol", "", "stock symbol")
	f.IntVar(&c.qty, "qty", 0, "number of shares")
}

func (c *buyCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env := envFrom(args)
	if env == nil {
		return subcommands.ExitFailure
	}
	u, err := lookupUser(env.Engine, c.user)
	if err != nil {
		printError(env.Err, err)
		return subcommands.ExitFailure
	}

	tx, err := env.Engine.Buy(ctx, u.ID, c.symbol, c.qty)
	if !applied(err) {
		printError(env.Err, err)
		return subcommands.ExitFailure
	}

	u, _ = env.Engine.User(u.ID)
	fmt.Fprintln(env.Out, "Purchase successful!")
	fmt.Fprintf(env.Out, "Transaction ID: %d\n", tx.ID)
	fmt.Fprintf(env.Out, "Bought %d %s @ %s, total %s\n", tx.Quantity, tx.Symbol, formatMoney(tx.Price), formatMoney(tx.Total()))
	fmt.Fprintf(env.Out, "New balance: %s\n", formatMoney(u.Balance))
	return finish(env, err)
}

type sellCmd struct {
	user   string
	symbol string
	qty    int
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "sell held shares at the current price" }
func (*sellCmd) Usage() string {
	return `sell -user <username> -symbol <symbol> -qty <shares>

  Sells at the last quoted price. Selling every share closes the position.
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "account username")
	f.StringVar(&c.symbol, "symbol", "", "stock symbol")
	f.IntVar(&c.qty, "qty", 0, "number of shares")
}

func (c *sellCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env := envFrom(args)
	if env == nil {
		return subcommands.ExitFailure
	}
	u, err := lookupUser(env.Engine, c.user)
	if err != nil {
		printError(env.Err, err)
		return subcommands.ExitFailure
	}

	tx, err := env.Engine.Sell(ctx, u.ID, c.symbol, c.qty)
	if !applied(err) {
		printError(env.Err, err)
		return subcommands.ExitFailure
	}

	u, _ = env.Engine.User(u.ID)
	fmt.Fprintln(env.Out, "Sale successful!")
	fmt.Fprintf(env.Out, "Transaction ID: %d\n", tx.ID)
	fmt.Fprintf(env.Out, "Sold %d %s @ %s, total %s\n", tx.Quantity, tx.Symbol, formatMoney(tx.Price), formatMoney(tx.Total()))
	fmt.Fprintf(env.Out, "New balance: %s\n", formatMoney(u.Balance))
	return finish(env, err)
}

// finish reports a save failure after the result has been printed
func finish(env *Env, err error) subcommands.ExitStatus {
	if err != nil {
		printSaveWarning(env.Err, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
