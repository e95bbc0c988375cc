// Package postgres is the hosted multi-user backend. Schema and behavior
// match the sqlite backend; only the dialect differs.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"weekspend/internal/core"
	"weekspend/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

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

func runMigrations(db *sql.DB) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) ListExpenses(ctx context.Context, owner string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, amount_cents, category, description, date, created_at
		FROM expenses
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e    core.Expense
			date string
		)
		if err := rows.Scan(&e.ID, &e.Owner, &e.Amount.Cents, &e.Category, &e.Description, &date, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Date = core.Date(date)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = uuid.NewString()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO expenses (id, owner_id, amount_cents, category, description, date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		e.ID, e.Owner, e.Amount.Cents, e.Category, e.Description, string(e.Date)).
		Scan(&e.CreatedAt)
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

func (r *Repository) GetBudget(ctx context.Context, owner string, weekStart core.Date) (*core.WeeklyBudget, error) {
	var (
		b    core.WeeklyBudget
		week string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, amount_cents, week_start, created_at, updated_at
		FROM weekly_budgets
		WHERE owner_id = $1 AND week_start = $2`, owner, string(weekStart)).
		Scan(&b.ID, &b.Owner, &b.Amount.Cents, &week, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	b.WeekStart = core.Date(week)
	return &b, nil
}

func (r *Repository) UpsertBudget(ctx context.Context, owner string, weekStart core.Date, amount core.Money) (core.WeeklyBudget, error) {
	var (
		b    core.WeeklyBudget
		week string
	)
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO weekly_budgets (id, owner_id, amount_cents, week_start)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, week_start) DO UPDATE SET
			amount_cents = EXCLUDED.amount_cents,
			updated_at = now()
		RETURNING id, owner_id, amount_cents, week_start, created_at, updated_at`,
		uuid.NewString(), owner, amount.Cents, string(weekStart)).
		Scan(&b.ID, &b.Owner, &b.Amount.Cents, &week, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return core.WeeklyBudget{}, fmt.Errorf("upsert budget: %w", err)
	}
	b.WeekStart = core.Date(week)

	slog.InfoContext(ctx, "Budget upserted",
		"owner", owner,
		"week_start", string(weekStart),
		"amount_cents", amount.Cents)

	return b, nil
}

func (r *Repository) DeleteBudget(ctx context.Context, owner string, weekStart core.Date) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM weekly_budgets WHERE owner_id = $1 AND week_start = $2`,
		owner, string(weekStart))
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string) (store.User, error) {
	u := store.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		u.ID, u.Email, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	return r.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email)
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (store.User, error) {
	return r.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (r *Repository) getUser(ctx context.Context, query, arg string) (store.User, error) {
	var u store.User
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repository) CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, token string) (store.Session, error) {
	var s store.Session
	err := r.db.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at, last_activity
		FROM sessions WHERE token = $1 AND expires_at > now()`, token).
		Scan(&s.Token, &s.UserID, &s.ExpiresAt, &s.LastActivity)
	if err == sql.ErrNoRows {
		return store.Session{}, store.ErrNotFound
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *Repository) RenewSession(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET expires_at = $1, last_activity = now() WHERE token = $2`,
		expiresAt, token)
	if err != nil {
		return fmt.Errorf("renew session: %w", err)
	}
	return nil
}

func (r *Repository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *Repository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
