// Package services orchestrates validation, persistence, and event
// publishing for the tracker's operations.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"weekspend/internal/amqp"
	"weekspend/internal/core"
	"weekspend/internal/store"
)

// EventPublisher is the outbound port for change events. *amqp.Client
// satisfies it; a nil publisher disables events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.Event) error
}

// ExpenseService validates and records expenses.
type ExpenseService struct {
	expenses   store.ExpenseStore
	categories core.CategorySet
	events     EventPublisher
}

func NewExpenseService(expenses store.ExpenseStore, categories core.CategorySet, events EventPublisher) *ExpenseService {
	return &ExpenseService{
		expenses:   expenses,
		categories: categories,
		events:     events,
	}
}

// List returns the owner's full expense collection, most recent first.
func (s *ExpenseService) List(ctx context.Context, owner string) ([]core.Expense, error) {
	expenses, err := s.expenses.ListExpenses(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// Record validates the submission, applies defaults, and stores it.
// Validation failures happen before any store call. A successful write is
// followed by a best-effort event publish; publish failures are logged but
// do not fail the request, the expense is already saved.
func (s *ExpenseService) Record(ctx context.Context, owner string, amount core.Money, category, description string, date core.Date) (core.Expense, error) {
	if err := s.categories.ValidateCategory(category); err != nil {
		return core.Expense{}, err
	}
	if strings.TrimSpace(description) == "" {
		description = core.DefaultDescription
	}
	if date == "" {
		date = core.DateOf(time.Now())
	}

	e := core.Expense{
		Owner:       owner,
		Amount:      amount,
		Category:    category,
		Description: description,
		Date:        date,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	stored, err := s.expenses.InsertExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.publish(ctx, amqp.NewExpenseRecorded(owner, stored.ID))

	return stored, nil
}

func (s *ExpenseService) publish(ctx context.Context, ev *amqp.Event) {
	if s.events == nil {
		slog.DebugContext(ctx, "Event publisher not available, skipping event", "kind", ev.Kind)
		return
	}
	if err := s.events.PublishEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event",
			"kind", ev.Kind,
			"owner", ev.Owner,
			"error", err)
	}
}
