package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"weekspend/internal/core"
)

type expenseResponse struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
	CreatedAt   string `json:"created_at"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Amount:      e.Amount.String(),
		Category:    e.Category,
		Description: e.Description,
		Date:        string(e.Date),
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

type createExpenseRequest struct {
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListExpenses(w, r)
	case http.MethodPost:
		s.handleCreateExpense(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	expenses, err := s.expenses.List(r.Context(), owner)
	if err != nil {
		slog.ErrorContext(r.Context(), "Expense list error", "error", err, "owner", owner)
		writeError(w, http.StatusInternalServerError, "failed to load expenses")
		return
	}

	// Optional ?limit=N for "most recent N" views; the list is already
	// newest first.
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < len(expenses) {
			expenses = expenses[:n]
		}
	}

	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": out})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	var req createExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(req.Amount))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	var date core.Date
	if strings.TrimSpace(req.Date) != "" {
		date, err = core.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
			return
		}
	}

	expense, err := s.expenses.Record(r.Context(), owner,
		core.Money{Cents: cents},
		sanitizeInput(req.Category),
		sanitizeInput(req.Description),
		date)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyCategory), errors.Is(err, core.ErrUnknownCategory),
			errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDate):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			slog.ErrorContext(r.Context(), "Expense save error", "error", err, "owner", owner)
			writeError(w, http.StatusInternalServerError, "failed to save expense")
		}
		return
	}

	s.invalidateSummary(owner, core.WeekStart(expense.Date.Time()))

	writeJSON(w, http.StatusCreated, toExpenseResponse(expense))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": s.categories.Names()})
}
