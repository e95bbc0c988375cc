package services

import (
	"context"
	"fmt"
	"log/slog"

	"weekspend/internal/amqp"
	"weekspend/internal/core"
	"weekspend/internal/store"
)

// BudgetService manages the single budget row per (owner, week).
type BudgetService struct {
	budgets store.BudgetStore
	events  EventPublisher
}

func NewBudgetService(budgets store.BudgetStore, events EventPublisher) *BudgetService {
	return &BudgetService{budgets: budgets, events: events}
}

// Get returns the budget for the week, or nil when none is set.
func (s *BudgetService) Get(ctx context.Context, owner string, weekStart core.Date) (*core.WeeklyBudget, error) {
	b, err := s.budgets.GetBudget(ctx, owner, weekStart)
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// Set creates or wholesale-replaces the week's budget.
func (s *BudgetService) Set(ctx context.Context, owner string, weekStart core.Date, amount core.Money) (core.WeeklyBudget, error) {
	if err := amount.Validate(); err != nil {
		return core.WeeklyBudget{}, err
	}
	if err := weekStart.Validate(); err != nil {
		return core.WeeklyBudget{}, err
	}

	b, err := s.budgets.UpsertBudget(ctx, owner, weekStart, amount)
	if err != nil {
		return core.WeeklyBudget{}, fmt.Errorf("save budget: %w", err)
	}

	s.publish(ctx, amqp.NewBudgetChanged(owner, string(weekStart)))

	return b, nil
}

// Delete removes the week's budget; removing an absent budget succeeds.
func (s *BudgetService) Delete(ctx context.Context, owner string, weekStart core.Date) error {
	if err := s.budgets.DeleteBudget(ctx, owner, weekStart); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}

	s.publish(ctx, amqp.NewBudgetChanged(owner, string(weekStart)))

	return nil
}

func (s *BudgetService) publish(ctx context.Context, ev *amqp.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event",
			"kind", ev.Kind,
			"owner", ev.Owner,
			"error", err)
	}
}
