// internal/prep/estimate.go
//
// Kitchen prep-time estimator.
//
// Context
// -------
// When an order is placed the order flow needs one number: how many
// minutes until the food is ready.  The rules are:
//
//   - Each line item costs its prep time (item override, then menu value,
//     then DefaultMinutes) plus a batching buffer of two minutes per extra
//     unit, capped at five minutes.
//   - Distinct items cook in parallel, so the order estimate is the
//     maximum line cost, never the sum.
//   - An empty order takes zero minutes.
//
// Everything here is pure.  Input validation (Validate) runs before
// estimation; Estimate itself never fails and never returns a negative
// value.
package prep

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultMinutes applies to items with no prep time configured.
const DefaultMinutes = 10

const (
	minutesPerExtraUnit = 2
	maxBatchBuffer      = 5
)

// ErrInvalidOrderItem marks estimator input the order flow must reject.
var ErrInvalidOrderItem = errors.New("invalid order item")

// Item is one order line as the estimator sees it.
type Item struct {
	MenuItemID      uint64
	Quantity        int
	PrepTimeMinutes *int // per-line override; nil falls through
}

// Validate rejects lines with a missing menu item reference, a quantity
// below one, or a negative prep override.  The error wraps
// ErrInvalidOrderItem and names the first offending line.
func Validate(items []Item) error {
	for i, it := range items {
		switch {
		case it.MenuItemID == 0:
			return fmt.Errorf("%w: line %d: missing menu item", ErrInvalidOrderItem, i)
		case it.Quantity < 1:
			return fmt.Errorf("%w: line %d: quantity %d", ErrInvalidOrderItem, i, it.Quantity)
		case it.PrepTimeMinutes != nil && *it.PrepTimeMinutes < 0:
			return fmt.Errorf("%w: line %d: prep time %d", ErrInvalidOrderItem, i, *it.PrepTimeMinutes)
		}
	}
	return nil
}

// Estimate returns the promised prep duration in minutes using only the
// per-line overrides.
func Estimate(items []Item, defaultMinutes int) int {
	return EstimateWithLookup(items, nil, defaultMinutes)
}

// EstimateWithLookup resolves each line's base time as override, then
// prepTimes[MenuItemID], then defaultMinutes.  Unknown ids and nil values
// in prepTimes fall back to defaultMinutes.
func EstimateWithLookup(items []Item, prepTimes map[uint64]*int, defaultMinutes int) int {
	longest := 0
	for _, it := range items {
		if adj := adjusted(base(it, prepTimes, defaultMinutes), it.Quantity); adj > longest {
			longest = adj
		}
	}
	return longest
}

// ReadyTime returns start plus minutes.  Durations beyond what
// time.Duration can hold saturate.
func ReadyTime(minutes int, start time.Time) time.Time {
	if int64(minutes) > math.MaxInt64/int64(time.Minute) {
		return start.Add(time.Duration(math.MaxInt64))
	}
	return start.Add(time.Duration(minutes) * time.Minute)
}

// ReadyTimeFrom is ReadyTime with an optional start; nil means now.
func ReadyTimeFrom(minutes int, start *time.Time) time.Time {
	if start == nil {
		return ReadyTime(minutes, time.Now())
	}
	return ReadyTime(minutes, *start)
}

func base(it Item, prepTimes map[uint64]*int, defaultMinutes int) int {
	if it.PrepTimeMinutes != nil {
		return *it.PrepTimeMinutes
	}
	if v, ok := prepTimes[it.MenuItemID]; ok && v != nil {
		return *v
	}
	return defaultMinutes
}

func adjusted(base, quantity int) int {
	// Compare extra units before multiplying so huge quantities cannot wrap.
	buffer := 0
	switch {
	case quantity <= 1:
	case quantity-1 >= maxBatchBuffer:
		buffer = maxBatchBuffer
	default:
		buffer = min((quantity-1)*minutesPerExtraUnit, maxBatchBuffer)
	}
	if base > math.MaxInt-buffer {
		return math.MaxInt
	}
	return max(base+buffer, 0)
}
