package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"weekspend/internal/core"
)

// dismissAfterMS tells clients how long to show the transient notice that
// accompanies budget writes.
const dismissAfterMS = 1500

type budgetResponse struct {
	ID        string `json:"id"`
	Amount    string `json:"amount"`
	WeekStart string `json:"week_start"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toBudgetResponse(b core.WeeklyBudget) budgetResponse {
	return budgetResponse{
		ID:        b.ID,
		Amount:    b.Amount.String(),
		WeekStart: string(b.WeekStart),
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
		UpdatedAt: b.UpdatedAt.Format(time.RFC3339),
	}
}

type setBudgetRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetBudget(w, r)
	case http.MethodPut:
		s.handleSetBudget(w, r)
	case http.MethodDelete:
		s.handleDeleteBudget(w, r)
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	weekStart, err := weekParam(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid week, expected YYYY-MM-DD")
		return
	}

	budget, err := s.budgets.Get(r.Context(), owner, weekStart)
	if err != nil {
		slog.ErrorContext(r.Context(), "Budget read error", "error", err, "owner", owner, "week_start", weekStart)
		writeError(w, http.StatusInternalServerError, "failed to load budget")
		return
	}

	// No budget is a normal state, not an error.
	if budget == nil {
		writeJSON(w, http.StatusOK, map[string]any{"budget": nil, "week_start": string(weekStart)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"budget": toBudgetResponse(*budget), "week_start": string(weekStart)})
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	weekStart, err := weekParam(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid week, expected YYYY-MM-DD")
		return
	}

	var req setBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(req.Amount))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	budget, err := s.budgets.Set(r.Context(), owner, weekStart, core.Money{Cents: cents})
	if err != nil {
		if errors.Is(err, core.ErrInvalidAmount) || errors.Is(err, core.ErrInvalidDate) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Budget save error", "error", err, "owner", owner, "week_start", weekStart)
		writeError(w, http.StatusInternalServerError, "failed to save budget")
		return
	}

	s.invalidateSummary(owner, weekStart)

	writeJSON(w, http.StatusOK, map[string]any{
		"budget":           toBudgetResponse(budget),
		"notice":           "Budget saved",
		"dismiss_after_ms": dismissAfterMS,
	})
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	weekStart, err := weekParam(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid week, expected YYYY-MM-DD")
		return
	}

	if err := s.budgets.Delete(r.Context(), owner, weekStart); err != nil {
		slog.ErrorContext(r.Context(), "Budget delete error", "error", err, "owner", owner, "week_start", weekStart)
		writeError(w, http.StatusInternalServerError, "failed to delete budget")
		return
	}

	s.invalidateSummary(owner, weekStart)

	writeJSON(w, http.StatusOK, map[string]any{
		"notice":           "Budget removed",
		"dismiss_after_ms": dismissAfterMS,
	})
}
