// Package fees implements the surcharge computation engine.
// Calculate is a pure function: it touches no storage and no clocks beyond
// the ones handed to it, so identical inputs always yield identical output.
// Callers persist the result separately through a ledger fee operation.
package fees

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// GlobalCapPercent caps the summed surcharge at a fraction of the base
// amount. Individual rules keep their own caps; only the total is clamped.
const GlobalCapPercent = 25

// Context carries the booking attributes the rules inspect.
// Now defaults to the wall clock; Location defaults to UTC — peak-hour and
// weekend detection use the booking start time in that location.
type Context struct {
	StartAt         time.Time
	Now             time.Time
	Location        *time.Location
	Category        string
	TransactionType string
	Requirements    string
	Urgent          bool
	Equipment       bool
	CrossCircle     bool
	Guaranteed      bool
}

// LineItem is one applied surcharge rule.
// Percent is recomputed from the final amount, not the rule's nominal rate,
// so display numbers stay consistent after per-rule caps.
type LineItem struct {
	RuleID   string  `json:"rule_id"`
	Label    string  `json:"label"`
	Percent  float64 `json:"percent"`
	Amount   int64   `json:"amount"`
	priority int
}

// Calculation is the complete fee breakdown for a base amount.
type Calculation struct {
	BaseAmount     int64      `json:"base_amount"`
	Items          []LineItem `json:"items"`
	TotalSurcharge int64      `json:"total_surcharge"`
	FinalAmount    int64      `json:"final_amount"`
	Capped         bool       `json:"capped"`
	CapReason      string     `json:"cap_reason,omitempty"`
}

// rule is one named surcharge: a nominal percentage, a per-rule credit cap,
// and a fixed priority used only for display ordering.
type rule struct {
	id       string
	label    string
	percent  int64
	cap      int64
	priority int
	applies  func(c Context, start time.Time) bool
}

// specializedCategories attract the specialized-skill surcharge.
var specializedCategories = map[string]bool{
	"TECH_SUPPORT": true,
	"TUTORING":     true,
	"ELDERCARE":    true,
	"CHILDCARE":    true,
}

var equipmentWords = []string{"equipment", "supplies", "tools"}

var rules = []rule{
	{
		id: "urgent", label: "Urgent booking", percent: 15, cap: 50, priority: 1,
		applies: func(c Context, start time.Time) bool {
			return c.Urgent || start.Sub(c.Now) < 24*time.Hour
		},
	},
	{
		id: "peak_hours", label: "Peak hours", percent: 10, cap: 30, priority: 2,
		applies: func(c Context, start time.Time) bool {
			h := start.Hour()
			if isWeekend(start) {
				return h >= 9 && h < 18
			}
			return h >= 17 && h < 20
		},
	},
	{
		id: "guaranteed", label: "Guaranteed completion", percent: 12, cap: 40, priority: 3,
		applies: func(c Context, start time.Time) bool { return c.Guaranteed },
	},
	{
		id: "equipment", label: "Equipment required", percent: 8, cap: 25, priority: 4,
		applies: func(c Context, start time.Time) bool {
			if c.Equipment {
				return true
			}
			req := strings.ToLower(c.Requirements)
			for _, w := range equipmentWords {
				if strings.Contains(req, w) {
					return true
				}
			}
			return false
		},
	},
	{
		id: "specialized", label: "Specialized skill", percent: 7, cap: 30, priority: 5,
		applies: func(c Context, start time.Time) bool { return specializedCategories[c.Category] },
	},
	{
		id: "weekend", label: "Weekend booking", percent: 6, cap: 20, priority: 6,
		applies: func(c Context, start time.Time) bool { return isWeekend(start) },
	},
	{
		id: "cross_circle", label: "Cross-circle booking", percent: 5, cap: 20, priority: 7,
		applies: func(c Context, start time.Time) bool { return c.CrossCircle },
	},
	{
		// Applies unconditionally. Plus-tier waivers strip the line item
		// afterwards via WaivePlatformFee, never by skipping evaluation.
		id: "platform_fee", label: "Platform fee", percent: 3, cap: 15, priority: 8,
		applies: func(c Context, start time.Time) bool { return true },
	},
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Calculate evaluates every rule against the booking context and returns the
// full breakdown. Per-rule amounts are floor(base*pct/100) clamped to the
// rule's cap; the summed surcharge is then clamped to the global cap.
func Calculate(baseAmount int64, c Context) Calculation {
	if c.Now.IsZero() {
		c.Now = time.Now()
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	start := c.StartAt.In(loc)

	calc := Calculation{BaseAmount: baseAmount, FinalAmount: baseAmount}
	if baseAmount <= 0 {
		return calc
	}

	for _, r := range rules {
		if !r.applies(c, start) {
			continue
		}
		amount := baseAmount * r.percent / 100
		if amount > r.cap {
			amount = r.cap
		}
		if amount <= 0 {
			continue
		}
		calc.Items = append(calc.Items, LineItem{
			RuleID:   r.id,
			Label:    r.label,
			Amount:   amount,
			priority: r.priority,
		})
	}

	sort.Slice(calc.Items, func(i, j int) bool {
		return calc.Items[i].priority < calc.Items[j].priority
	})
	finalize(&calc)
	return calc
}

// WaivePlatformFee strips the platform-fee line item and recomputes totals,
// for Plus-tier members on purchase and exchange transactions. Returns the
// calculation unchanged when no platform fee is present.
func WaivePlatformFee(calc Calculation) Calculation {
	items := make([]LineItem, 0, len(calc.Items))
	for _, it := range calc.Items {
		if it.RuleID == "platform_fee" {
			continue
		}
		items = append(items, it)
	}
	if len(items) == len(calc.Items) {
		return calc
	}
	out := Calculation{BaseAmount: calc.BaseAmount, Items: items}
	finalize(&out)
	return out
}

// finalize sums the line items, applies the global cap, and recomputes the
// display percentages from the capped amounts.
func finalize(calc *Calculation) {
	var total int64
	for _, it := range calc.Items {
		total += it.Amount
	}

	globalCap := calc.BaseAmount * GlobalCapPercent / 100
	if total > globalCap {
		calc.Capped = true
		calc.CapReason = fmt.Sprintf("total surcharge %d credits clamped to %d%% of base (%d credits)",
			total, GlobalCapPercent, globalCap)
		total = globalCap
	}

	for i := range calc.Items {
		calc.Items[i].Percent = float64(calc.Items[i].Amount) / float64(calc.BaseAmount) * 100
	}
	calc.TotalSurcharge = total
	calc.FinalAmount = calc.BaseAmount + total
}
