package http

import (
	"log/slog"
	"net/http"

	"weekspend/internal/core"
)

type categoryAmountResponse struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

type summaryResponse struct {
	WeekStart       string                   `json:"week_start"`
	WeeklySpent     string                   `json:"weekly_spent"`
	ByCategory      []categoryAmountResponse `json:"by_category"`
	HasBudget       bool                     `json:"has_budget"`
	BudgetAmount    string                   `json:"budget_amount,omitempty"`
	ProgressPercent float64                  `json:"progress_percent"`
	Remaining       string                   `json:"remaining,omitempty"`
	NeedsAlert      bool                     `json:"needs_alert"`
}

func toSummaryResponse(s core.WeekSummary) summaryResponse {
	out := summaryResponse{
		WeekStart:       string(s.WeekStart),
		WeeklySpent:     s.WeeklySpent.String(),
		ByCategory:      make([]categoryAmountResponse, 0, len(s.ByCategory)),
		HasBudget:       s.HasBudget,
		ProgressPercent: s.ProgressPercent,
		NeedsAlert:      s.NeedsAlert,
	}
	for _, ca := range s.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryAmountResponse{
			Category: ca.Category,
			Amount:   ca.Amount.String(),
		})
	}
	if s.HasBudget {
		out.BudgetAmount = s.BudgetAmount.String()
		out.Remaining = s.Remaining.String()
	}
	return out
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	owner := ownerFrom(r.Context())

	weekStart, err := weekParam(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid week, expected YYYY-MM-DD")
		return
	}

	key := s.summaryCacheKey(owner, weekStart)
	if cached, found := s.summaryCache.Get(key); found {
		slog.DebugContext(r.Context(), "Summary cache hit", "owner", owner, "week_start", weekStart)
		writeJSON(w, http.StatusOK, toSummaryResponse(cached))
		return
	}

	summary, err := s.summaries.ForWeek(r.Context(), owner, weekStart)
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary error", "error", err, "owner", owner, "week_start", weekStart)
		writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}

	s.summaryCache.Set(key, summary)

	writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}
