// Package notify sends budget alert emails over SMTP.
package notify

import (
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/jordan-wright/email"

	"weekspend/internal/core"
)

// AlertSender is implemented by anything that can deliver a budget alert.
type AlertSender interface {
	SendBudgetAlert(to string, summary core.WeekSummary) error
}

// EmailSender delivers alerts via SMTP.
type EmailSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewEmailSender(host string, port int, username, password, from string) *EmailSender {
	return &EmailSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// SendBudgetAlert emails the owner that the week's spending reached the
// alert threshold.
func (s *EmailSender) SendBudgetAlert(to string, summary core.WeekSummary) error {
	e := email.NewEmail()
	e.From = s.from
	e.To = []string{to}
	if summary.ProgressPercent >= 100 {
		e.Subject = "Weekly budget exceeded"
	} else {
		e.Subject = "Weekly budget alert"
	}

	body := fmt.Sprintf(
		"You have spent %s of your %s budget for the week starting %s (%.0f%%).\n",
		summary.WeeklySpent.String(), summary.BudgetAmount.String(), summary.WeekStart, summary.ProgressPercent,
	)
	if summary.Remaining.Cents >= 0 {
		body += fmt.Sprintf("Remaining: %s\n", summary.Remaining.String())
	} else {
		body += fmt.Sprintf("Over budget by: %s\n", core.Money{Cents: -summary.Remaining.Cents}.String())
	}
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := e.Send(addr, auth); err != nil {
		slog.Error("Failed to send budget alert", "to", to, "error", err)
		return fmt.Errorf("send budget alert: %w", err)
	}

	slog.Info("Budget alert sent", "to", to, "week_start", summary.WeekStart)
	return nil
}
