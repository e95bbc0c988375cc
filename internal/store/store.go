// Package store defines the persistence ports of the tracker. Backends are
// selected at startup; handlers and services only see these interfaces.
package store

import (
	"context"
	"errors"
	"time"

	"weekspend/internal/core"
)

// ErrNotFound is returned when a required row is absent. A missing budget
// for a week is NOT an error and is reported as (nil, nil) instead.
var ErrNotFound = errors.New("not found")

type (
	// ExpenseStore persists expense records for an owner. Expenses are
	// append-only: there is no update or delete operation.
	ExpenseStore interface {
		// ListExpenses returns all of the owner's expenses, most
		// recent first (creation time descending). Callers that show
		// "the last N" take the head of the list.
		ListExpenses(ctx context.Context, owner string) ([]core.Expense, error)

		// InsertExpense stores a new record and returns it with the
		// store-assigned id and creation time filled in. On failure
		// prior state is unchanged.
		InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	}

	// BudgetStore persists at most one budget per (owner, week start).
	BudgetStore interface {
		// GetBudget returns the budget for the given week, or
		// (nil, nil) when none is set.
		GetBudget(ctx context.Context, owner string, weekStart core.Date) (*core.WeeklyBudget, error)

		// UpsertBudget inserts or wholesale-replaces the budget for
		// (owner, weekStart). Last write wins.
		UpsertBudget(ctx context.Context, owner string, weekStart core.Date, amount core.Money) (core.WeeklyBudget, error)

		// DeleteBudget removes the budget for the given week.
		// Deleting an absent budget is not an error.
		DeleteBudget(ctx context.Context, owner string, weekStart core.Date) error
	}
)

// User is an account in the multi-user backends.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is an opaque-token login session.
type Session struct {
	Token        string
	UserID       string
	ExpiresAt    time.Time
	LastActivity time.Time
}

// UserStore manages accounts and sessions. Only the multi-user backends
// implement it; the local backend runs unauthenticated with a fixed owner.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)

	CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error
	GetSession(ctx context.Context, token string) (Session, error)
	RenewSession(ctx context.Context, token string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}
