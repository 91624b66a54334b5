package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"threeStopJournal/internal/app"
	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/money"
	"threeStopJournal/internal/ports"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

func parseDate(flag, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s '%s' must be YYYY-MM-DD: %w", flag, s, ports.ErrInvalidRequest)
	}
	return t, nil
}

// parseDec reads an optional decimal flag; blank yields nil.
func parseDec(flag, s string) (*decimal.Decimal, error) {
	d, err := money.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("--%s: %v: %w", flag, err, ports.ErrInvalidRequest)
	}
	return d, nil
}

func requireDec(flag, s string) (decimal.Decimal, error) {
	d, err := parseDec(flag, s)
	if err != nil {
		return decimal.Zero, err
	}
	if d == nil {
		return decimal.Zero, fmt.Errorf("--%s is required: %w", flag, ports.ErrInvalidRequest)
	}
	return *d, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTrades(w io.Writer, trades []*domain.Trade) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTICKER\tBOUGHT\tPRICE\tSHARES\tLEFT\tSTATUS\tSTOP3\tCURRENT\tTOTAL P&L\tR\tDAYS")
	for _, t := range trades {
		ro := t.Derived.Rollup
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			t.ID, t.Ticker, t.PurchaseDate.Format(dateLayout), t.PurchasePrice.StringFixed(2),
			t.Shares, ro.SharesRemaining, ro.Status,
			money.String(t.Derived.Stops.Stop3), money.String(t.Market.CurrentPrice),
			ro.TotalPnL.StringFixed(2), money.String(t.Derived.Metrics.RMultiple),
			t.Derived.Metrics.TradingDaysOpen)
	}
	return tw.Flush()
}

func printTrade(w io.Writer, t *domain.Trade) error {
	s, ro, m := t.Derived.Stops, t.Derived.Rollup, t.Derived.Metrics
	updated := "-"
	if t.Market.UpdatedAt != nil {
		updated = t.Market.UpdatedAt.Format(time.RFC3339)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Trade", t.ID},
		{"Ticker", t.Ticker},
		{"Bought", fmt.Sprintf("%d @ %s on %s", t.Shares, t.PurchasePrice.StringFixed(2), t.PurchaseDate.Format(dateLayout))},
		{"Status", string(ro.Status)},
		{"Entry-day low", money.String(t.EntryDayLow)},
		{"Stop override", money.String(t.StopOverride)},
		{"Portfolio size", money.String(t.PortfolioSize)},
		{"", ""},
		{"Stop3 / Stop2 / Stop1", fmt.Sprintf("%s / %s / %s", money.String(s.Stop3), money.String(s.Stop2), money.String(s.Stop1))},
		{"1R", money.String(s.OneR)},
		{"TP1R / TP2R / TP3R", fmt.Sprintf("%s / %s / %s", money.String(s.TP1R), money.String(s.TP2R), money.String(s.TP3R))},
		{"Entry % above Stop3", money.String(s.EntryPctAboveStop3)},
		{"", ""},
		{"Current price", money.String(t.Market.CurrentPrice)},
		{"ATR14 / SMA50 / SMA10", fmt.Sprintf("%s / %s / %s", money.String(t.Market.ATR14), money.String(t.Market.SMA50), money.String(t.Market.SMA10))},
		{"ATR14 / SMA50 at entry", fmt.Sprintf("%s / %s", money.String(t.Entry.ATR14), money.String(t.Entry.SMA50))},
		{"Market updated", updated},
		{"", ""},
		{"Shares exited / left", fmt.Sprintf("%d / %d", ro.SharesExited, ro.SharesRemaining)},
		{"Proceeds / fees", fmt.Sprintf("%s / %s", ro.TotalProceeds.StringFixed(2), ro.TotalFees.StringFixed(2))},
		{"Avg exit price", money.String(ro.AvgExitPrice)},
		{"Realized / unrealized P&L", fmt.Sprintf("%s / %s", ro.RealizedPnL.StringFixed(2), ro.UnrealizedPnL.StringFixed(2))},
		{"Total P&L", ro.TotalPnL.StringFixed(2)},
		{"", ""},
		{"Day % moved", money.String(m.DayPctMoved)},
		{"CP diff from entry", money.String(m.CPPctDiffFromEntry)},
		{"Sold price", money.String(m.SoldPrice)},
		{"Gain/loss on trade", money.String(m.PctGainLossTrade)},
		{"% portfolio at entry / now", fmt.Sprintf("%s / %s", money.String(m.PctPortfolioAtEntry), money.String(m.PctPortfolioCurrent))},
		{"Portfolio impact", money.String(m.GainLossPortfolioImpact)},
		{"Risk in ATR", money.String(m.RiskATRRUnits)},
		{"ATR multiple from MA entry / now", fmt.Sprintf("%s / %s", money.String(m.ATRPctMultipleFromMAAtEntry), money.String(m.ATRPctMultipleFromMACurrent))},
		{"R-multiple", money.String(m.RMultiple)},
		{"Trading days open", fmt.Sprint(m.TradingDaysOpen)},
	}
	for _, r := range rows {
		if r[0] == "" {
			fmt.Fprintln(tw)
			continue
		}
		fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}

func printTransactions(w io.Writer, txns []*domain.Transaction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTRADE\tDATE\tACTION\tSHARES\tPRICE\tFEES\tPROCEEDS\tNOTES")
	for _, t := range txns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			t.ID, t.TradeID, t.ExitDate.Format(dateLayout), t.Action, t.Shares,
			t.Price.String(), t.Fees.StringFixed(2), t.Proceeds.StringFixed(2), t.Notes)
	}
	return tw.Flush()
}

func printSummary(w io.Writer, s *app.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Trades:\t%d (open %d, partial %d, closed %d)\n", s.TotalTrades, s.OpenTrades, s.PartialTrades, s.ClosedTrades)
	fmt.Fprintf(tw, "Realized P&L:\t%s\n", s.TotalRealizedPnL.StringFixed(2))
	fmt.Fprintf(tw, "Unrealized P&L:\t%s\n", s.TotalUnrealizedPnL.StringFixed(2))
	fmt.Fprintf(tw, "Total P&L:\t%s\n", s.TotalPnL.StringFixed(2))
	fmt.Fprintf(tw, "Average R (closed):\t%s\n", money.String(s.AvgRMultiple))
	fmt.Fprintf(tw, "Position value:\t%s\n", s.TotalPositionValue.StringFixed(2))
	fmt.Fprintf(tw, "%% portfolio invested:\t%s\n", s.PctPortfolioInvested.String())
	fmt.Fprintf(tw, "Winners / losers:\t%d / %d\n", s.Winners, s.Losers)
	fmt.Fprintf(tw, "Win rate %%:\t%s\n", money.String(s.WinRate))
	fmt.Fprintf(tw, "Average win / loss:\t%s / %s\n", money.String(s.AvgWin), money.String(s.AvgLoss))
	fmt.Fprintf(tw, "Profit factor:\t%s\n", money.String(s.ProfitFactor))
	fmt.Fprintf(tw, "Default portfolio size:\t%s\n", money.String(s.DefaultPortfolioSize))
	fmt.Fprintf(tw, "Stop3 buffer:\t%s\n", s.StopBuffer.String())
	return tw.Flush()
}
