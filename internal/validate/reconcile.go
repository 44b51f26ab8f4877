package validate

import (
	"fmt"
	"math"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
)

// reconcileTotal cross-checks a declared total against the sum of its line
// items. When the relative difference exceeds the tolerance it appends a
// warning naming the discrepancy and forces review. The numbers are never
// adjusted; reconciliation only flags.
func (v *Validator) reconcileTotal(p *domain.ExtractedPayload, label string, declared float64, items []float64) {
	if declared == 0 || len(items) == 0 {
		return
	}

	var sum float64
	for _, it := range items {
		sum += it
	}

	absDiff := math.Abs(declared - sum)
	relDiff := absDiff / math.Abs(declared)
	if relDiff > v.tolerance {
		p.AddWarning(fmt.Sprintf(
			"%s: line items sum to %.2f but declared total is %.2f (difference %.2f, %.1f%% exceeds %.1f%% tolerance)",
			label, sum, declared, absDiff, relDiff*100, v.tolerance*100,
		))
		p.ReviewRequired = true
	}
}

// reconcileContract checks task budgets against the declared contract budget.
func (v *Validator) reconcileContract(p *domain.ExtractedPayload) {
	c := p.Contract
	if c == nil {
		return
	}
	items := make([]float64, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		items = append(items, t.Budget)
	}
	v.reconcileTotal(p, "task budgets vs contract budget", c.TotalBudget, items)
}

// reconcilePayment checks per-task amounts against the declared period total.
func (v *Validator) reconcilePayment(p *domain.ExtractedPayload) {
	pay := p.Payment
	if pay == nil {
		return
	}
	items := make([]float64, 0, len(pay.Lines))
	for _, l := range pay.Lines {
		items = append(items, l.Amount)
	}
	v.reconcileTotal(p, "payment lines vs period total", pay.TotalAmount, items)
}
