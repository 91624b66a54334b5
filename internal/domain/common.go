package domain

import "fmt"

// TradeStatus is derived from shares remaining on every recalculation pass.
type TradeStatus string

const (
	StatusOpen    TradeStatus = "OPEN"    // nothing exited yet
	StatusPartial TradeStatus = "PARTIAL" // some shares exited
	StatusClosed  TradeStatus = "CLOSED"  // every share exited
)

// ParseTradeStatus accepts OPEN, PARTIAL or CLOSED.
func ParseTradeStatus(s string) (TradeStatus, error) {
	switch st := TradeStatus(s); st {
	case StatusOpen, StatusPartial, StatusClosed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown trade status '%s'", s)
	}
}

// ExitAction tags why a transaction exited shares.
type ExitAction string

const (
	ActionStop1  ExitAction = "Stop1"
	ActionStop2  ExitAction = "Stop2"
	ActionStop3  ExitAction = "Stop3"
	ActionTP1    ExitAction = "TP1"
	ActionTP2    ExitAction = "TP2"
	ActionTP3    ExitAction = "TP3"
	ActionManual ExitAction = "Manual"
	ActionOther  ExitAction = "Other"
)

var exitActions = []ExitAction{
	ActionStop1, ActionStop2, ActionStop3,
	ActionTP1, ActionTP2, ActionTP3,
	ActionManual, ActionOther,
}

// ExitActions lists every valid action in display order.
func ExitActions() []ExitAction {
	out := make([]ExitAction, len(exitActions))
	copy(out, exitActions)
	return out
}

// Valid reports whether a is one of the known actions.
func (a ExitAction) Valid() bool {
	for _, known := range exitActions {
		if a == known {
			return true
		}
	}
	return false
}

// ParseExitAction validates an action tag. Matching is exact.
func ParseExitAction(s string) (ExitAction, error) {
	a := ExitAction(s)
	if !a.Valid() {
		return "", fmt.Errorf("action '%s' must be one of %v", s, exitActions)
	}
	return a, nil
}
