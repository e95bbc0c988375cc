package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds published by the services. The worker recomputes the owner's
// weekly summary on either kind; the payload stays minimal and the worker
// reads fresh state from the store.
const (
	KindExpenseRecorded = "expense.recorded"
	KindBudgetChanged   = "budget.changed"
)

// Event is the message exchanged between the API process and the alert
// worker.
type Event struct {
	Kind      string    `json:"kind"`
	Owner     string    `json:"owner"`
	ExpenseID string    `json:"expense_id,omitempty"`
	WeekStart string    `json:"week_start,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseRecorded builds the event emitted after a successful insert.
func NewExpenseRecorded(owner, expenseID string) *Event {
	return &Event{
		Kind:      KindExpenseRecorded,
		Owner:     owner,
		ExpenseID: expenseID,
		Timestamp: time.Now(),
	}
}

// NewBudgetChanged builds the event emitted after a budget upsert or delete.
func NewBudgetChanged(owner, weekStart string) *Event {
	return &Event{
		Kind:      KindBudgetChanged,
		Owner:     owner,
		WeekStart: weekStart,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON creates an event from JSON bytes
func EventFromJSON(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
