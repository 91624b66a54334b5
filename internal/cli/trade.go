package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"threeStopJournal/internal/app"
	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/marketdata"
	"threeStopJournal/internal/ports"
	"threeStopJournal/internal/utils"

	"github.com/spf13/cobra"
)

func newTradeCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Record, inspect and refresh trades",
	}
	cmd.AddCommand(
		newTradeAddCmd(rc),
		newTradeListCmd(rc),
		newTradeShowCmd(rc),
		newTradeEditCmd(rc),
		newTradeRefreshCmd(rc),
		newTradeDeleteCmd(rc),
		newTradeExportCmd(rc),
	)
	return cmd
}

func newTradeAddCmd(rc *RootConfig) *cobra.Command {
	var (
		id, ticker, date, price string
		shares                  int64
		low, stop, portfolio    string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new trade",
		Example: `  journal trade add --id AAPL-001 --ticker AAPL --date 2024-03-01 \
      --price 100 --shares 100 --low 98`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := app.NewTrade{ID: id, Ticker: ticker, Shares: shares}
			var err error
			if in.PurchaseDate, err = parseDate("date", date); err != nil {
				return err
			}
			if in.PurchasePrice, err = requireDec("price", price); err != nil {
				return err
			}
			if in.EntryDayLow, err = parseDec("low", low); err != nil {
				return err
			}
			if in.StopOverride, err = parseDec("stop", stop); err != nil {
				return err
			}
			if in.PortfolioSize, err = parseDec("portfolio", portfolio); err != nil {
				return err
			}

			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			res, err := journal.CreateTrade(cmd.Context(), in)
			if err != nil {
				return err
			}
			printf(cmd, "Created trade %s (market data: current %s, entry %s)\n\n",
				res.Trade.ID, res.CurrentStatus, res.EntryStatus)
			return printTrade(out(cmd), res.Trade)
		},
	}
	f := cmd.Flags()
	f.StringVar(&id, "id", "", "trade id, e.g. AAPL-001")
	f.StringVar(&ticker, "ticker", "", "equity ticker")
	f.StringVar(&date, "date", "", "purchase date (YYYY-MM-DD)")
	f.StringVar(&price, "price", "", "purchase price")
	f.Int64Var(&shares, "shares", 0, "shares bought")
	f.StringVar(&low, "low", "", "low of the entry day")
	f.StringVar(&stop, "stop", "", "manual Stop3 override")
	f.StringVar(&portfolio, "portfolio", "", "portfolio size (defaults to DEFAULT_PORTFOLIO_SIZE)")
	for _, name := range []string{"id", "ticker", "date", "price", "shares"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newTradeListCmd(rc *RootConfig) *cobra.Command {
	var status, ticker string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ports.TradeFilter{Ticker: strings.ToUpper(strings.TrimSpace(ticker))}
			if status != "" {
				st, err := domain.ParseTradeStatus(strings.ToUpper(status))
				if err != nil {
					return fmt.Errorf("%v: %w", err, ports.ErrInvalidRequest)
				}
				filter.Status = st
			}
			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			trades, err := journal.ListTrades(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out(cmd), trades)
			}
			return printTrades(out(cmd), trades)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "OPEN, PARTIAL or CLOSED")
	cmd.Flags().StringVar(&ticker, "ticker", "", "only trades in this ticker")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newTradeShowCmd(rc *RootConfig) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a trade with every derived field and its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			trade, err := journal.GetTrade(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			txns, err := journal.ListTransactions(cmd.Context(), trade.ID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out(cmd), struct {
					Trade        *domain.Trade
					Transactions []*domain.Transaction
				}{trade, txns})
			}
			if err := printTrade(out(cmd), trade); err != nil {
				return err
			}
			if len(txns) > 0 {
				printf(cmd, "\n")
				return printTransactions(out(cmd), txns)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newTradeEditCmd(rc *RootConfig) *cobra.Command {
	var low, stop, portfolio string
	var clearStop bool
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change the entry-day low, Stop3 override or portfolio size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upd := app.TradeUpdate{ClearStopOverride: clearStop}
			var err error
			if upd.EntryDayLow, err = parseDec("low", low); err != nil {
				return err
			}
			if upd.StopOverride, err = parseDec("stop", stop); err != nil {
				return err
			}
			if upd.PortfolioSize, err = parseDec("portfolio", portfolio); err != nil {
				return err
			}
			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			trade, err := journal.UpdateTrade(cmd.Context(), args[0], upd)
			if err != nil {
				return err
			}
			return printTrade(out(cmd), trade)
		},
	}
	f := cmd.Flags()
	f.StringVar(&low, "low", "", "low of the entry day")
	f.StringVar(&stop, "stop", "", "manual Stop3 override")
	f.BoolVar(&clearStop, "clear-stop", false, "remove the Stop3 override")
	f.StringVar(&portfolio, "portfolio", "", "portfolio size")
	cmd.MarkFlagsMutuallyExclusive("stop", "clear-stop")
	return cmd
}

func newTradeRefreshCmd(rc *RootConfig) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "refresh [ID]",
		Short: "Fetch fresh market data and recalculate",
		Long:  "Refresh one trade by id, or every OPEN and PARTIAL trade with --all.",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("give a trade id or --all, not both: %w", ports.ErrInvalidRequest)
			}
			if !all && len(args) != 1 {
				return fmt.Errorf("a trade id or --all is required: %w", ports.ErrInvalidRequest)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			if !all {
				res, err := journal.RefreshMarketData(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printRefresh(cmd, *res)
				return nil
			}

			report, err := journal.RefreshOpenTrades(cmd.Context())
			if err != nil {
				return err
			}
			for _, res := range report.Results {
				printRefresh(cmd, res)
			}
			counts := report.Counts()
			printf(cmd, "Refreshed %d trades in %s (fetched %d, partial %d, unavailable %d, errors %d)\n",
				len(report.Results), report.Duration.Round(time.Millisecond),
				counts[string(marketdata.Fetched)], counts[string(marketdata.Partial)],
				counts[string(marketdata.Unavailable)], counts["error"])
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "refresh every OPEN and PARTIAL trade")
	return cmd
}

func printRefresh(cmd *cobra.Command, res app.RefreshResult) {
	switch {
	case res.Err != nil:
		printf(cmd, "%s: error: %v\n", res.TradeID, res.Err)
	case res.FetchErr != nil:
		printf(cmd, "%s: %s (%v)\n", res.TradeID, res.Status, res.FetchErr)
	default:
		printf(cmd, "%s: %s\n", res.TradeID, res.Status)
	}
}

func newTradeDeleteCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a trade and all of its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			if err := journal.DeleteTrade(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd, "Deleted trade %s\n", args[0])
			return nil
		},
	}
}

func newTradeExportCmd(rc *RootConfig) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write every trade with its derived fields to CSV (- for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ports.TradeFilter{}
			if status != "" {
				st, err := domain.ParseTradeStatus(strings.ToUpper(status))
				if err != nil {
					return fmt.Errorf("%v: %w", err, ports.ErrInvalidRequest)
				}
				filter.Status = st
			}
			journal, err := rc.Journal()
			if err != nil {
				return err
			}
			trades, err := journal.ListTrades(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if args[0] == "-" {
				return utils.WriteTradesCSV(out(cmd), trades)
			}
			file, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := utils.WriteTradesCSV(file, trades); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			printf(cmd, "Exported %d trades to %s\n", len(trades), args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "OPEN, PARTIAL or CLOSED")
	return cmd
}
