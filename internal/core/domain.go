package core

import (
	"errors"
	"strings"
	"time"
)

// DefaultDescription is substituted when an expense is submitted without one.
const DefaultDescription = "No description"

// ISODateLayout is the canonical zero-padded date format. Dates are kept as
// strings in this format so that lexicographic comparison matches calendar
// order; week filtering relies on it.
const ISODateLayout = "2006-01-02"

type (
	// Date is a calendar date in YYYY-MM-DD form with no time-of-day
	// component. Comparisons between Date values are plain string
	// comparisons, which is correct only because the format is
	// zero-padded ISO-8601.
	Date string

	Money struct {
		Cents int64
	}

	// Expense is an immutable spending record. Expenses are never
	// updated or deleted once stored.
	Expense struct {
		ID          string
		Owner       string
		Amount      Money
		Category    string
		Description string
		Date        Date
		CreatedAt   time.Time
	}

	// WeeklyBudget is the spending limit for one owner and one week.
	// At most one row exists per (owner, week start); upsert semantics
	// enforce that.
	WeeklyBudget struct {
		ID        string
		Owner     string
		Amount    Money
		WeekStart Date
		CreatedAt time.Time
		UpdatedAt time.Time
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyCategory   = errors.New("empty category")
	ErrUnknownCategory = errors.New("unknown category")
)

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return Date(t.Format(ISODateLayout))
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(ISODateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidDate
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if _, err := time.Parse(ISODateLayout, string(d)); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time {
	t, _ := time.Parse(ISODateLayout, string(d))
	return t
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (b WeeklyBudget) Validate() error {
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	return b.WeekStart.Validate()
}

// CategorySet is the ordered enumeration of expense categories. The order is
// preserved so that per-category breakdowns render deterministically.
type CategorySet struct {
	names []string
	index map[string]struct{}
}

// DefaultCategories returns the canonical category set.
func DefaultCategories() CategorySet {
	return NewCategorySet([]string{
		"food", "transport", "housing", "entertainment", "health",
		"education", "shopping", "travel", "investments", "other",
	})
}

// NewCategorySet builds a set from the given names, trimming blanks and
// dropping duplicates while preserving first-seen order.
func NewCategorySet(names []string) CategorySet {
	cs := CategorySet{index: make(map[string]struct{})}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := cs.index[n]; ok {
			continue
		}
		cs.index[n] = struct{}{}
		cs.names = append(cs.names, n)
	}
	return cs
}

// Names returns the categories in enumeration order.
func (c CategorySet) Names() []string {
	return append([]string(nil), c.names...)
}

func (c CategorySet) Contains(name string) bool {
	_, ok := c.index[name]
	return ok
}

// ValidateCategory checks that name belongs to the set.
func (c CategorySet) ValidateCategory(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyCategory
	}
	if !c.Contains(name) {
		return ErrUnknownCategory
	}
	return nil
}

func (c CategorySet) Len() int {
	return len(c.names)
}
