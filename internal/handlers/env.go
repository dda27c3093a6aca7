// Package handlers implements the console commands of the ledger: one
// subcommand per operation plus the interactive menu session.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/atharvakonge/trading-ledger/internal/ledger"
	"github.com/atharvakonge/trading-ledger/internal/models"
	"github.com/atharvakonge/trading-ledger/internal/quotes"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// Env is passed to every command through Commander.Execute
type Env struct {
	Engine *ledger.Engine
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	// Perturb drives market updates
	Perturb quotes.Perturbation
}

// Register adds the ledger commands and the built-in help commands to c
func Register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")

	c.Register(&registerCmd{}, "account")
	c.Register(&depositCmd{}, "account")
	c.Register(&withdrawCmd{}, "account")
	c.Register(&buyCmd{}, "trading")
	c.Register(&sellCmd{}, "trading")
	c.Register(&marketCmd{}, "trading")
	c.Register(&portfolioCmd{}, "reports")
	c.Register(&historyCmd{}, "reports")
	c.Register(&menuCmd{}, "")
}

func envFrom(args []interface{}) *Env {
	if len(args) > 0 {
		if env, ok := args[0].(*Env); ok && env.Engine != nil {
			if env.Out == nil {
				env.Out = os.Stdout
			}
			if env.Err == nil {
				env.Err = os.Stderr
			}
			if env.In == nil {
				env.In = os.Stdin
			}
			return env
		}
	}
	fmt.Fprintln(os.Stderr, "internal error: command started without a ledger")
	return nil
}

// applied reports whether an operation took effect. A save failure leaves
// the change applied in memory.
func applied(err error) bool {
	return err == nil || errors.Is(err, ledger.ErrPersistence)
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
}

func printSaveWarning(w io.Writer, err error) {
	if err != nil {
		fmt.Fprintf(w, "Warning: changes could not be saved: %v\n", err)
	}
}

// lookupUser resolves a user name given on the command line
func lookupUser(e *ledger.Engine, name string) (models.User, error) {
	if strings.TrimSpace(name) == "" {
		return models.User{}, errors.New("-user is required")
	}
	u, ok := e.UserByName(name)
	if !ok {
		return models.User{}, fmt.Errorf("%w: %s", ledger.ErrUnknownUser, name)
	}
	return u, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

var usd = money.GetCurrency(money.USD)

// formatMoney renders an amount in dollars, rounded to cents
func formatMoney(d decimal.Decimal) string {
	return usd.Formatter().Format(d.Shift(int32(usd.Fraction)).Round(0).IntPart())
}

func formatPercent(d decimal.Decimal) string {
	d = d.Round(2)
	s := d.StringFixed(2) + "%"
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

func decimalQty(q int) decimal.Decimal { return decimal.NewFromInt(int64(q)) }
