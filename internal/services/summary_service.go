package services

import (
	"context"
	"fmt"
	"time"

	"weekspend/internal/core"
	"weekspend/internal/store"
)

// SummaryService derives the weekly view. It holds no state: every call
// recomputes from the source collections, so no invalidation logic exists
// beyond re-reading.
type SummaryService struct {
	expenses   store.ExpenseStore
	budgets    store.BudgetStore
	categories core.CategorySet
}

func NewSummaryService(expenses store.ExpenseStore, budgets store.BudgetStore, categories core.CategorySet) *SummaryService {
	return &SummaryService{
		expenses:   expenses,
		budgets:    budgets,
		categories: categories,
	}
}

// Current summarizes the week containing now.
func (s *SummaryService) Current(ctx context.Context, owner string) (core.WeekSummary, error) {
	return s.ForWeek(ctx, owner, core.WeekStart(time.Now()))
}

// ForWeek summarizes the week starting at weekStart.
func (s *SummaryService) ForWeek(ctx context.Context, owner string, weekStart core.Date) (core.WeekSummary, error) {
	expenses, err := s.expenses.ListExpenses(ctx, owner)
	if err != nil {
		return core.WeekSummary{}, fmt.Errorf("list expenses: %w", err)
	}

	budget, err := s.budgets.GetBudget(ctx, owner, weekStart)
	if err != nil {
		return core.WeekSummary{}, fmt.Errorf("get budget: %w", err)
	}

	return core.Summarize(expenses, weekStart, budget, s.categories), nil
}
