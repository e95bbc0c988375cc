// Package sqlite is the embedded multi-user backend. Rows are scoped by
// owner id; the schema is managed with embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"weekspend/internal/core"
	"weekspend/internal/store"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single connection: sqlite has one writer anyway, and :memory:
	// databases exist per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListExpenses implements store.ExpenseStore: the owner's full list, most
// recent first.
func (r *Repository) ListExpenses(ctx context.Context, owner string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, amount_cents, category, description, date, created_at
		FROM expenses
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e         core.Expense
			date      string
			createdNS int64
		)
		if err := rows.Scan(&e.ID, &e.Owner, &e.Amount.Cents, &e.Category, &e.Description, &date, &createdNS); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Date = core.Date(date)
		e.CreatedAt = time.Unix(0, createdNS)
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertExpense implements store.ExpenseStore.
func (r *Repository) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, owner_id, amount_cents, category, description, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Owner, e.Amount.Cents, e.Category, e.Description, string(e.Date),
		e.CreatedAt.UnixNano(), e.CreatedAt.UnixNano())
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"owner", e.Owner,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)

	return e, nil
}

// GetBudget implements store.BudgetStore. Absence is (nil, nil).
func (r *Repository) GetBudget(ctx context.Context, owner string, weekStart core.Date) (*core.WeeklyBudget, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, amount_cents, week_start, created_at, updated_at
		FROM weekly_budgets
		WHERE owner_id = ? AND week_start = ?`, owner, string(weekStart))

	b, err := scanBudget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return &b, nil
}

// UpsertBudget implements store.BudgetStore: insert-or-replace on the
// (owner_id, week_start) uniqueness constraint.
func (r *Repository) UpsertBudget(ctx context.Context, owner string, weekStart core.Date, amount core.Money) (core.WeeklyBudget, error) {
	now := time.Now().UnixNano()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO weekly_budgets (id, owner_id, amount_cents, week_start, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, week_start) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			updated_at = excluded.updated_at`,
		uuid.NewString(), owner, amount.Cents, string(weekStart), now, now)
	if err != nil {
		return core.WeeklyBudget{}, fmt.Errorf("upsert budget: %w", err)
	}

	b, err := r.GetBudget(ctx, owner, weekStart)
	if err != nil {
		return core.WeeklyBudget{}, err
	}
	if b == nil {
		return core.WeeklyBudget{}, fmt.Errorf("upsert budget: row missing after write")
	}

	slog.InfoContext(ctx, "Budget upserted",
		"owner", owner,
		"week_start", string(weekStart),
		"amount_cents", amount.Cents)

	return *b, nil
}

// DeleteBudget implements store.BudgetStore. Deleting nothing is fine.
func (r *Repository) DeleteBudget(ctx context.Context, owner string, weekStart core.Date) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM weekly_budgets WHERE owner_id = ? AND week_start = ?`,
		owner, string(weekStart))
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

func scanBudget(row *sql.Row) (core.WeeklyBudget, error) {
	var (
		b         core.WeeklyBudget
		week      string
		createdNS int64
		updatedNS int64
	)
	if err := row.Scan(&b.ID, &b.Owner, &b.Amount.Cents, &week, &createdNS, &updatedNS); err != nil {
		return core.WeeklyBudget{}, err
	}
	b.WeekStart = core.Date(week)
	b.CreatedAt = time.Unix(0, createdNS)
	b.UpdatedAt = time.Unix(0, updatedNS)
	return b, nil
}

// CreateUser implements store.UserStore.
func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string) (store.User, error) {
	u := store.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt.UnixNano())
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	return r.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email)
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (store.User, error) {
	return r.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (r *Repository) getUser(ctx context.Context, query, arg string) (store.User, error) {
	var (
		u         store.User
		createdNS int64
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &createdNS)
	if err == sql.ErrNoRows {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = time.Unix(0, createdNS)
	return u, nil
}

// CreateSession implements store.UserStore.
func (r *Repository) CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, expires_at, last_activity)
		VALUES (?, ?, ?, ?)`,
		token, userID, expiresAt.UnixNano(), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns store.ErrNotFound for unknown or expired tokens.
func (r *Repository) GetSession(ctx context.Context, token string) (store.Session, error) {
	var (
		s          store.Session
		expiresNS  int64
		activityNS int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at, last_activity
		FROM sessions WHERE token = ?`, token).
		Scan(&s.Token, &s.UserID, &expiresNS, &activityNS)
	if err == sql.ErrNoRows {
		return store.Session{}, store.ErrNotFound
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("get session: %w", err)
	}
	s.ExpiresAt = time.Unix(0, expiresNS)
	s.LastActivity = time.Unix(0, activityNS)
	if time.Now().After(s.ExpiresAt) {
		return store.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (r *Repository) RenewSession(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET expires_at = ?, last_activity = ? WHERE token = ?`,
		expiresAt.UnixNano(), time.Now().UnixNano(), token)
	if err != nil {
		return fmt.Errorf("renew session: %w", err)
	}
	return nil
}

func (r *Repository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *Repository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
