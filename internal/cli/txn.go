package cli

import (
	"fmt"
	"os"
	"strings"

	"threeStopJournal/internal/app"
	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/ports"

	"github.com/spf13/cobra"
)

func newTxnCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "txn",
		Aliases: []string{"transaction"},
		Short:   "Record and manage exit transactions",
	}
	cmd.AddCommand(
		newTxnAddCmd(rc),
		newTxnListCmd(rc),
		newTxnShowCmd(rc),
		newTxnEditCmd(rc),
		newTxnDeleteCmd(rc),
		newTxnImportCmd(rc),
	)
	return cmd
}

func parseAction(s string) (domain.ExitAction, error) {
	a, err := domain.ParseExitAction(s)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, ports.ErrInvalidRequest)
	}
	return a, nil
}

func newTxnAddCmd(rc *RootConfig) *cobra.Command {
	var (
		tradeID, date, action, price string
		shares                       int64
		fees, ticker, notes          string
	)
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Record an exit against a trade",
		Example: "  journal txn add --trade AAPL-001 --date 2024-03-05 --action TP1 --shares 50 --price 105 --fees 1",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := app.NewTransaction{TradeID: tradeID, Ticker: ticker, Shares: shares, Notes: notes}
			var err error
			if in.ExitDate, err = parseDate("date", date); err != nil {
				return err
			}
			if in.Action, err = parseAction(action); err != nil {
				return err
			}
			if in.Price, err = requireDec("price", price); err != nil {
				return err
			}
			fee, err := parseDec("fees", fees)
			if err != nil {
				return err
			}
			if fee != nil {
				in.Fees = *fee
			}

			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			res, err := journal.CreateTransaction(cmd.Context(), in)
			if err != nil {
				return err
			}
			printf(cmd, "Recorded %s: %d %s @ %s (proceeds %s)\n", res.Transaction.ID,
				res.Transaction.Shares, res.Transaction.Action, res.Transaction.Price.String(),
				res.Transaction.Proceeds.StringFixed(2))
			printTradeLine(cmd, res.Trade)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&tradeID, "trade", "", "trade id")
	f.StringVar(&date, "date", "", "exit date (YYYY-MM-DD)")
	f.StringVar(&action, "action", "", fmt.Sprintf("exit action %v", domain.ExitActions()))
	f.Int64Var(&shares, "shares", 0, "shares exited")
	f.StringVar(&price, "price", "", "exit price")
	f.StringVar(&fees, "fees", "", "fees paid")
	f.StringVar(&ticker, "ticker", "", "ticker (defaults to the trade's)")
	f.StringVar(&notes, "notes", "", "free-form notes")
	for _, name := range []string{"trade", "date", "action", "shares", "price"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func printTradeLine(cmd *cobra.Command, t *domain.Trade) {
	ro := t.Derived.Rollup
	printf(cmd, "Trade %s is %s: %d shares left, realized %s, unrealized %s\n",
		t.ID, ro.Status, ro.SharesRemaining, ro.RealizedPnL.StringFixed(2), ro.UnrealizedPnL.StringFixed(2))
}

func newTxnListCmd(rc *RootConfig) *cobra.Command {
	var tradeID string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, optionally for one trade",
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			txns, err := journal.ListTransactions(cmd.Context(), tradeID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out(cmd), txns)
			}
			return printTransactions(out(cmd), txns)
		},
	}
	cmd.Flags().StringVar(&tradeID, "trade", "", "only transactions of this trade")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newTxnShowCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			txn, err := journal.GetTransaction(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(out(cmd), txn)
		},
	}
}

func newTxnEditCmd(rc *RootConfig) *cobra.Command {
	var (
		date, action, price, fees, ticker, notes string
		shares                                   int64
	)
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of a transaction and recalculate its trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			var upd app.TransactionUpdate
			if f.Changed("date") {
				d, err := parseDate("date", date)
				if err != nil {
					return err
				}
				upd.ExitDate = &d
			}
			if f.Changed("action") {
				a, err := parseAction(action)
				if err != nil {
					return err
				}
				upd.Action = &a
			}
			if f.Changed("shares") {
				upd.Shares = &shares
			}
			if f.Changed("price") {
				p, err := requireDec("price", price)
				if err != nil {
					return err
				}
				upd.Price = &p
			}
			if f.Changed("fees") {
				v, err := requireDec("fees", fees)
				if err != nil {
					return err
				}
				upd.Fees = &v
			}
			if f.Changed("ticker") {
				t := strings.TrimSpace(ticker)
				upd.Ticker = &t
			}
			if f.Changed("notes") {
				upd.Notes = &notes
			}

			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			res, err := journal.UpdateTransaction(cmd.Context(), args[0], upd)
			if err != nil {
				return err
			}
			printf(cmd, "Updated %s\n", res.Transaction.ID)
			printTradeLine(cmd, res.Trade)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&date, "date", "", "exit date (YYYY-MM-DD)")
	f.StringVar(&action, "action", "", "exit action")
	f.Int64Var(&shares, "shares", 0, "shares exited")
	f.StringVar(&price, "price", "", "exit price")
	f.StringVar(&fees, "fees", "", "fees paid")
	f.StringVar(&ticker, "ticker", "", "ticker")
	f.StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func newTxnDeleteCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a transaction and recalculate its trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			trade, err := journal.DeleteTransaction(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printf(cmd, "Deleted transaction %s\n", args[0])
			printTradeLine(cmd, trade)
			return nil
		},
	}
}

func newTxnImportCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import exits from CSV; all rows are stored or none are",
		Long: `Import exit transactions from a CSV file with a header row. Required columns:
trade_id, exit_date, action, shares, price. Optional: ticker, fees, notes.
Any invalid row or over-exit rejects the whole file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			res, err := journal.ImportTransactionsCSV(cmd.Context(), file)
			if err != nil {
				return err
			}
			printf(cmd, "Imported %d transactions across %d trades\n", len(res.Transactions), len(res.Trades))
			for _, t := range res.Trades {
				printTradeLine(cmd, t)
			}
			return nil
		},
	}
}
