package wishlist

import (
	"time"

	"github.com/shopspring/decimal"
)

// Priority tiers are routing hints for the notification dispatcher; they never
// influence trigger logic.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// RearmPolicy governs whether a fired entry returns to armed on its own once
// the price rises back above every configured target, or only on an explicit
// user edit.
type RearmPolicy string

const (
	RearmAuto   RearmPolicy = "auto"
	RearmManual RearmPolicy = "manual"
)

// Entry is a user's standing alert configuration for one item. Exactly one
// entry exists per (user, item) pair; creation is get-or-create at the
// storage layer. Notified is the only field the matcher transitions.
type Entry struct {
	UserID      string
	ItemID      string
	TargetTotal *int64
	DropPercent *decimal.Decimal
	Priority    Priority
	Notified    bool
	CreatedAt   time.Time
}

// Armed reports whether the entry can still fire.
func (e Entry) Armed() bool {
	return !e.Notified
}

// Decision is the outcome of evaluating one entry against a current total.
// When Transition is set the caller must apply the flag change as a
// compare-and-set (expected = the Notified value it evaluated, next =
// NextNotified) and only dispatch a notification if the CAS wins; two
// concurrent passes racing on the same entry then cannot both fire.
type Decision struct {
	Fire         bool
	Transition   bool
	NextNotified bool
}

// Evaluate decides whether an entry should fire for the given current total.
//
// The absolute target fires when currentTotal <= TargetTotal. The percentage
// target fires when the drop from baselineTotal reaches DropPercent. When
// both are configured either one suffices.
// A fired entry never re-fires; under RearmAuto it transitions back to armed
// on the first check where no target is met.
func Evaluate(e Entry, currentTotal, baselineTotal int64, policy RearmPolicy) Decision {
	met := targetMet(e, currentTotal, baselineTotal)

	if met && e.Armed() {
		return Decision{Fire: true, Transition: true, NextNotified: true}
	}
	if !met && !e.Armed() && policy == RearmAuto {
		return Decision{Transition: true, NextNotified: false}
	}
	return Decision{}
}

func targetMet(e Entry, currentTotal, baselineTotal int64) bool {
	if e.TargetTotal != nil && currentTotal <= *e.TargetTotal {
		return true
	}
	if e.DropPercent != nil && baselineTotal > 0 {
		baseline := decimal.NewFromInt(baselineTotal)
		drop := baseline.Sub(decimal.NewFromInt(currentTotal)).
			Div(baseline).
			Mul(decimal.NewFromInt(100))
		if drop.GreaterThanOrEqual(*e.DropPercent) {
			return true
		}
	}
	return false
}
