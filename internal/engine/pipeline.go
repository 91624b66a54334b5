// Package engine turns a trade's inputs and exit transactions into its derived fields.
//
// Every function here is pure: no shared state, no I/O. Recalculate runs the formula groups
// in dependency order and either returns a complete Derived record or an error, never a
// partially filled one.
package engine

import (
	"fmt"
	"time"

	"threeStopJournal/internal/domain"
	"threeStopJournal/internal/money"
	"threeStopJournal/internal/ports"

	"github.com/shopspring/decimal"
)

// Options carries the pass-wide parameters.
type Options struct {
	StopBuffer decimal.Decimal // fraction below the entry-day low for Stop3
	AsOf       time.Time       // "today" for trading-days-open
}

// pass is the scratch state threaded through the stages.
type pass struct {
	trade  *domain.Trade
	txns   []*domain.Transaction
	opts   Options
	out    domain.Derived
	prices PriceMetrics
}

type stage struct {
	name  string
	after []string
	run   func(p *pass) error
}

// stages declares each formula group and what it reads from earlier groups.
var stages = []stage{
	{name: "rollups", run: runRollups},
	{name: "stops", after: []string{"rollups"}, run: runStops},
	{name: "price", after: []string{"rollups"}, run: runPrice},
	{name: "portfolio", after: []string{"rollups", "price"}, run: runPortfolio},
	{name: "atr", after: []string{"stops"}, run: runVolatility},
	{name: "rmultiple", after: []string{"rollups", "stops"}, run: runRMultiple},
	{name: "tradingdays", after: []string{"rmultiple"}, run: runTradingDays},
}

var pipeline = mustOrder(stages)

// Order returns the stage names in execution order.
func Order() []string {
	names := make([]string, len(pipeline))
	for i, s := range pipeline {
		names[i] = s.name
	}
	return names
}

// Recalculate runs every stage against the trade and its transactions.
// The trade is not modified. Same inputs always give the same output.
func Recalculate(trade *domain.Trade, txns []*domain.Transaction, opts Options) (domain.Derived, error) {
	if err := validate(trade, opts); err != nil {
		return domain.Derived{}, err
	}
	p := &pass{trade: trade, txns: txns, opts: opts}
	for _, s := range pipeline {
		if err := s.run(p); err != nil {
			return domain.Derived{}, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return p.out, nil
}

// Apply recalculates and, only on success, stores the result on the trade.
func Apply(trade *domain.Trade, txns []*domain.Transaction, opts Options) error {
	derived, err := Recalculate(trade, txns, opts)
	if err != nil {
		return err
	}
	trade.Derived = derived
	return nil
}

func validate(t *domain.Trade, opts Options) error {
	if t == nil {
		return fmt.Errorf("nil trade: %w", ports.ErrInvalidRequest)
	}
	if !t.PurchasePrice.IsPositive() {
		return fmt.Errorf("purchase price %s: %w", t.PurchasePrice, ports.ErrNonPositiveInput)
	}
	if t.Shares <= 0 {
		return fmt.Errorf("shares %d: %w", t.Shares, ports.ErrNonPositiveInput)
	}
	if t.PortfolioSize != nil && !t.PortfolioSize.IsPositive() {
		return fmt.Errorf("portfolio size %s: %w", t.PortfolioSize, ports.ErrNonPositiveInput)
	}
	if opts.StopBuffer.IsNegative() || opts.StopBuffer.GreaterThanOrEqual(money.One) {
		return fmt.Errorf("stop buffer %s outside [0,1): %w", opts.StopBuffer, ports.ErrInvalidRequest)
	}
	return nil
}

func runRollups(p *pass) error {
	r, err := Rollups(p.trade.Shares, p.trade.PurchasePrice, p.trade.Market.CurrentPrice, p.txns)
	if err != nil {
		return err
	}
	p.out.Rollup = r
	return nil
}

func runStops(p *pass) error {
	levels, err := Stops(p.trade.PurchasePrice, p.trade.EntryDayLow, p.trade.StopOverride, p.opts.StopBuffer)
	if err != nil {
		return err
	}
	p.out.Stops = levels
	return nil
}

func runPrice(p *pass) error {
	p.prices = Prices(p.trade.PurchasePrice, p.trade.Market.CurrentPrice, p.trade.EntryDayLow, p.out.Rollup)
	m := &p.out.Metrics
	m.DayPctMoved = p.prices.DayPctMoved
	m.CPPctDiffFromEntry = p.prices.CPPctDiffFromEntry
	m.SoldPrice = p.prices.SoldPrice
	m.PctGainLossTrade = p.prices.PctGainLossTrade
	return nil
}

func runPortfolio(p *pass) error {
	pm := Portfolio(p.trade.Shares, p.trade.PurchasePrice, p.trade.Market.CurrentPrice,
		p.trade.PortfolioSize, p.out.Rollup.SharesRemaining, p.prices.PctGainLossTrade)
	m := &p.out.Metrics
	m.PctPortfolioAtEntry = pm.PctPortfolioAtEntry
	m.PctPortfolioCurrent = pm.PctPortfolioCurrent
	m.GainLossPortfolioImpact = pm.GainLossPortfolioImpact
	return nil
}

func runVolatility(p *pass) error {
	t := p.trade
	vm := Volatility(t.PurchasePrice, t.Market.CurrentPrice, p.out.Stops.OneR,
		t.Entry.ATR14, t.Entry.SMA50, t.Market.ATR14, t.Market.SMA50)
	m := &p.out.Metrics
	m.RiskATRRUnits = vm.RiskATRRUnits
	m.ATRPctMultipleFromMAAtEntry = vm.ATRPctMultipleFromMAAtEntry
	m.ATRPctMultipleFromMACurrent = vm.ATRPctMultipleFromMACurrent
	return nil
}

func runRMultiple(p *pass) error {
	p.out.Metrics.RMultiple = RMultiple(p.out.Rollup.TotalPnL, p.trade.Shares, p.out.Stops.OneR)
	return nil
}

func runTradingDays(p *pass) error {
	p.out.Metrics.TradingDaysOpen = TradingDaysOpen(p.trade.PurchaseDate, p.opts.AsOf)
	return nil
}

// mustOrder topologically sorts stages, preferring declaration order among ready stages.
// It panics on unknown dependencies or cycles since the table is static.
func mustOrder(defs []stage) []stage {
	index := make(map[string]int, len(defs))
	for i, s := range defs {
		if _, dup := index[s.name]; dup {
			panic(fmt.Sprintf("engine: duplicate stage %q", s.name))
		}
		index[s.name] = i
	}

	pending := make([]int, len(defs))
	dependents := make([][]int, len(defs))
	for i, s := range defs {
		for _, dep := range s.after {
			j, ok := index[dep]
			if !ok {
				panic(fmt.Sprintf("engine: stage %q depends on unknown stage %q", s.name, dep))
			}
			pending[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	ordered := make([]stage, 0, len(defs))
	done := make([]bool, len(defs))
	for len(ordered) < len(defs) {
		next := -1
		for i := range defs {
			if !done[i] && pending[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			panic("engine: stage dependency cycle")
		}
		done[next] = true
		ordered = append(ordered, defs[next])
		for _, d := range dependents[next] {
			pending[d]--
		}
	}
	return ordered
}
