package handlers

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/atharvakonge/trading-ledger/internal/ledger"
	"github.com/atharvakonge/trading-ledger/internal/models"
	"github.com/atharvakonge/trading-ledger/internal/quotes"
	"github.com/google/subcommands"
)

const rule = "─────────────────────────────────────────"

type portfolioCmd struct {
	user string
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "show holdings, performance and net worth" }
func (*portfolioCmd) Usage() string    { return "portfolio -user <username>\n" }

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "account username")
}

func (c *portfolioCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env := envFrom(args)
	if env == nil {
		return subcommands.ExitFailure
	}
	u, err := lookupUser(env.Engine, c.user)
	if err != nil {
		printError(env.Err, err)
		return subcommands.ExitFailure
	}
	if err := writePortfolio(env.Out, env.Engine, u.ID); err != nil {
		printError(env.Err, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type historyCmd struct {
	user string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list a user's transactions in execution order" }
func (*historyCmd) Usage() string    { return "history -user <username>\n" }

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "account username")
}

func (c *historyCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env := envFrom(args)
	if env == nil {
		return subcommands.ExitFailure
	}
	u, err := lookupUser(env.Engine, c.user)
	if err != nil {
		printError(env.Err, err)
		return subcommands.ExitFailure
	}
	writeHistory(env.Out, env.Engine.Transactions(u.ID))
	return subcommands.ExitSuccess
}

type marketCmd struct {
	update bool
}

func (*marketCmd) Name() string     { return "market" }
func (*marketCmd) Synopsis() string { return "show quotes, optionally after a simulated price move" }
func (*marketCmd) Usage() string {
	return `market [-update]

  Lists every instrument with its price and change since the previous quote.
  With -update, every price first moves by a random -5% to +5%.
`
}

func (c *marketCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.update, "update", false, "simulate one price move before listing")
}

func (c *marketCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env := envFrom(args)
	if env == nil {
		return subcommands.ExitFailure
	}
	var saveErr error
	if c.update {
		saveErr = updateMarket(ctx, env)
	}
	writeMarket(env.Out, env.Engine.Quotes().List())
	return finish(env, saveErr)
}

// updateMarket moves prices with env.Perturb and returns the save error, if any
func updateMarket(ctx context.Context, env *Env) error {
	perturb := env.Perturb
	if perturb == nil {
		perturb = func(string) float64 { return 0 }
	}
	return env.Engine.UpdatePrices(ctx, perturb)
}

func writeMarket(w io.Writer, instruments []models.Instrument) {
	if len(instruments) == 0 {
		fmt.Fprintln(w, "No stocks available")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Symbol\tName\tPrice\tChange\t")
	for _, in := range instruments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
			in.Symbol, in.Name, formatMoney(in.Price), formatPercent(quotes.PercentChange(in)))
	}
	tw.Flush()
}

func writeHoldings(w io.Writer, reg *quotes.Registry, holdings []models.Holding) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Symbol\tShares\tAvg Cost\tCurrent\tValue\tSince\t")
	for _, h := range holdings {
		current, value := "n/a", "n/a"
		if in, ok := reg.FindBySymbol(h.Symbol); ok {
			current = formatMoney(in.Price)
			value = formatMoney(in.Price.Mul(decimalQty(h.Quantity)))
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t\n",
			h.Symbol, h.Quantity, formatMoney(h.AvgPrice), current, value, h.PurchaseDate.Format("2006-01-02"))
	}
	tw.Flush()
}

func writePortfolio(w io.Writer, e *ledger.Engine, userID int) error {
	u, err := e.User(userID)
	if err != nil {
		return err
	}
	perf, err := e.PortfolioPerformance(userID)
	if err != nil {
		return err
	}
	netWorth, err := e.NetWorth(userID)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "         Portfolio of %s\n", u.Username)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Account Balance:     %s\n", formatMoney(u.Balance))
	fmt.Fprintln(w, rule)

	if len(u.Holdings) == 0 {
		fmt.Fprintln(w, "No holdings yet")
		fmt.Fprintln(w, rule)
		return nil
	}

	writeHoldings(w, e.Quotes(), u.Holdings)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total Investment:    %s\n", formatMoney(perf.TotalInvestment))
	fmt.Fprintf(w, "Current Value:       %s\n", formatMoney(perf.CurrentValue))
	fmt.Fprintf(w, "Profit/Loss:         %s\n", formatMoney(perf.ProfitLoss))
	fmt.Fprintf(w, "Return:              %s\n", formatPercent(perf.ProfitLossPercent))
	if len(perf.Unpriced) > 0 {
		fmt.Fprintf(w, "Not quoted:          %s (valued at zero)\n", strings.Join(perf.Unpriced, ", "))
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total Net Worth:     %s\n", formatMoney(netWorth))
	fmt.Fprintln(w, rule)
	return nil
}

func writeHistory(w io.Writer, txs []models.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(w, "No transactions yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tSymbol\tType\tQty\tPrice\tTotal\tDate\t")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t\n",
			tx.ID, tx.Symbol, tx.Side, tx.Quantity, formatMoney(tx.Price), formatMoney(tx.Total()),
			tx.Timestamp.Format("2006-01-02 15:04"))
	}
	tw.Flush()
}
