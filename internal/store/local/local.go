// Package local is the single-user on-device backend. The whole state lives
// in one JSON file under two fixed keys, "expenses" and "weeklyBudget"
// (singular: the local variant keeps one budget object, not a collection).
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"weekspend/internal/core"
)

// Owner is the implicit identity of the single local user.
const Owner = "local"

type fileState struct {
	Expenses     []core.Expense     `json:"expenses"`
	WeeklyBudget *core.WeeklyBudget `json:"weeklyBudget"`
}

// Store persists to a single JSON file, guarded by a mutex. Expenses are
// appended in insertion order on disk and reversed on read so the port's
// most-recent-first contract holds.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	s := &Store{path: path, now: time.Now}
	// Fail fast on an unreadable or corrupt file.
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() (fileState, error) {
	var st fileState
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read local store: %w", err)
	}
	if len(data) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decode local store: %w", err)
	}
	return st, nil
}

func (s *Store) save(st fileState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write local store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace local store: %w", err)
	}
	return nil
}

// ListExpenses returns all expenses, most recent first. The owner argument
// is ignored; this backend has exactly one implicit owner.
func (s *Store) ListExpenses(_ context.Context, _ string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]core.Expense, len(st.Expenses))
	for i, e := range st.Expenses {
		out[len(st.Expenses)-1-i] = e
	}
	return out, nil
}

func (s *Store) InsertExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return core.Expense{}, err
	}

	e.ID = uuid.NewString()
	e.Owner = Owner
	e.CreatedAt = s.now()
	st.Expenses = append(st.Expenses, e)

	if err := s.save(st); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (s *Store) GetBudget(_ context.Context, _ string, weekStart core.Date) (*core.WeeklyBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return nil, err
	}
	if st.WeeklyBudget == nil || st.WeeklyBudget.WeekStart != weekStart {
		return nil, nil
	}
	b := *st.WeeklyBudget
	return &b, nil
}

func (s *Store) UpsertBudget(_ context.Context, _ string, weekStart core.Date, amount core.Money) (core.WeeklyBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return core.WeeklyBudget{}, err
	}

	now := s.now()
	b := core.WeeklyBudget{
		ID:        uuid.NewString(),
		Owner:     Owner,
		Amount:    amount,
		WeekStart: weekStart,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if st.WeeklyBudget != nil && st.WeeklyBudget.WeekStart == weekStart {
		b.ID = st.WeeklyBudget.ID
		b.CreatedAt = st.WeeklyBudget.CreatedAt
	}
	st.WeeklyBudget = &b

	if err := s.save(st); err != nil {
		return core.WeeklyBudget{}, err
	}
	return b, nil
}

func (s *Store) DeleteBudget(_ context.Context, _ string, weekStart core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	if st.WeeklyBudget == nil || st.WeeklyBudget.WeekStart != weekStart {
		return nil
	}
	st.WeeklyBudget = nil
	return s.save(st)
}
