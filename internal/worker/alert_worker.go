// Package worker implements the budget-alert consumer. It listens for
// change events, recomputes the affected week, and emails the owner once
// per threshold crossing.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"weekspend/internal/amqp"
	"weekspend/internal/cache"
	"weekspend/internal/core"
	"weekspend/internal/services"
	"weekspend/internal/store"
)

// EventSource delivers change events to a handler. *amqp.Client satisfies it.
type EventSource interface {
	ConsumeEvents(ctx context.Context, handler func(context.Context, *amqp.Event) error) error
}

// AlertSender matches notify.AlertSender; redeclared here so the worker can
// be tested without SMTP.
type AlertSender interface {
	SendBudgetAlert(to string, summary core.WeekSummary) error
}

// AlertWorker recomputes week summaries on change events and sends at most
// one alert per (owner, week) while the threshold stays crossed.
type AlertWorker struct {
	summaries *services.SummaryService
	users     store.UserStore
	sender    AlertSender
	notified  *cache.LRUCache[bool]
}

func NewAlertWorker(summaries *services.SummaryService, users store.UserStore, sender AlertSender) *AlertWorker {
	return &AlertWorker{
		summaries: summaries,
		users:     users,
		sender:    sender,
		// Entries expire after a week; a new week has a new key anyway.
		notified: cache.NewLRUCache[bool](1024, 7*24*time.Hour),
	}
}

// Run consumes events until ctx is done.
func (w *AlertWorker) Run(ctx context.Context, source EventSource) error {
	return source.ConsumeEvents(ctx, w.HandleEvent)
}

// HandleEvent recomputes the summary for the event's week. Budget events
// name their week; expense events are evaluated against the week in
// progress, which is the only week an alert is useful for.
func (w *AlertWorker) HandleEvent(ctx context.Context, ev *amqp.Event) error {
	weekStart := core.Date(ev.WeekStart)
	if weekStart == "" {
		weekStart = core.WeekStart(time.Now())
	}

	summary, err := w.summaries.ForWeek(ctx, ev.Owner, weekStart)
	if err != nil {
		return fmt.Errorf("summarize week: %w", err)
	}

	key := ev.Owner + "|" + string(weekStart)

	if !summary.NeedsAlert {
		// A raised or deleted budget clears the alert; arm the next
		// crossing.
		w.notified.Delete(key)
		return nil
	}

	if _, seen := w.notified.Get(key); seen {
		slog.DebugContext(ctx, "Alert already sent for week",
			"owner", ev.Owner,
			"week_start", weekStart)
		return nil
	}

	user, err := w.users.GetUserByID(ctx, ev.Owner)
	if err != nil {
		// A deleted owner can never resolve; dropping beats an endless
		// redelivery loop.
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "Dropping event for unknown owner",
				"owner", ev.Owner,
				"kind", ev.Kind)
			return nil
		}
		return fmt.Errorf("resolve owner %s: %w", ev.Owner, err)
	}

	if err := w.sender.SendBudgetAlert(user.Email, summary); err != nil {
		return err
	}

	w.notified.Set(key, true)

	slog.InfoContext(ctx, "Budget alert delivered",
		"owner", ev.Owner,
		"week_start", weekStart,
		"progress_percent", summary.ProgressPercent)

	return nil
}
