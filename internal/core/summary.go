package core

// AlertThresholdPercent is the budget consumption level at which the summary
// raises its attention flag. Fixed, not user-configurable.
const AlertThresholdPercent = 80.0

// CategoryAmount is an amount aggregated under one category.
type CategoryAmount struct {
	Category string
	Amount   Money
}

// WeekSummary is the derived view over one owner's expenses and budget for a
// single week. It carries no state of its own and is recomputed from the
// source collections whenever either changes.
type WeekSummary struct {
	WeekStart   Date
	WeeklySpent Money
	// ByCategory lists non-zero per-category totals for the week, in
	// category enumeration order.
	ByCategory      []CategoryAmount
	HasBudget       bool
	BudgetAmount    Money
	ProgressPercent float64
	// Remaining is budget minus spent; negative when overspent.
	Remaining  Money
	NeedsAlert bool
}

// Summarize derives the weekly summary from the full expense list, the week
// boundary, and the optional budget for that week. Expenses dated before
// weekStart are ignored; everything at or after it counts, including
// future-dated records.
func Summarize(expenses []Expense, weekStart Date, budget *WeeklyBudget, categories CategorySet) WeekSummary {
	s := WeekSummary{WeekStart: weekStart}

	perCategory := make(map[string]int64, categories.Len())
	for _, e := range expenses {
		if !InWeek(e.Date, weekStart) {
			continue
		}
		s.WeeklySpent.Cents += e.Amount.Cents
		perCategory[e.Category] += e.Amount.Cents
	}

	for _, name := range categories.Names() {
		if cents := perCategory[name]; cents > 0 {
			s.ByCategory = append(s.ByCategory, CategoryAmount{
				Category: name,
				Amount:   Money{Cents: cents},
			})
		}
	}

	if budget != nil {
		s.HasBudget = true
		s.BudgetAmount = budget.Amount
		s.Remaining = Money{Cents: budget.Amount.Cents - s.WeeklySpent.Cents}
		// Guard the zero-amount budget; progress stays 0, never NaN.
		if budget.Amount.Cents > 0 {
			s.ProgressPercent = float64(s.WeeklySpent.Cents) / float64(budget.Amount.Cents) * 100
		}
		s.NeedsAlert = s.ProgressPercent >= AlertThresholdPercent
	}

	return s
}
