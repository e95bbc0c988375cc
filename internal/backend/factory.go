// Package backend wires the configured storage backend into the store ports.
package backend

import (
	"fmt"
	"log/slog"

	"weekspend/internal/config"
	"weekspend/internal/store"
	"weekspend/internal/store/local"
	"weekspend/internal/store/postgres"
	"weekspend/internal/store/sqlite"
)

// Backend bundles the opened store ports. Users is nil for the single-user
// local backend.
type Backend struct {
	Expenses store.ExpenseStore
	Budgets  store.BudgetStore
	Users    store.UserStore

	cleanup func() error
}

// Close releases the backend's resources.
func (b *Backend) Close() error {
	if b.cleanup == nil {
		return nil
	}
	return b.cleanup()
}

// Open creates the backend selected by cfg.DataBackend.
func Open(cfg *config.Config) (*Backend, error) {
	switch cfg.DataBackend {
	case "local":
		st, err := local.New(cfg.LocalDataPath)
		if err != nil {
			return nil, fmt.Errorf("initialize local store: %w", err)
		}
		slog.Info("Initialized local backend", "path", cfg.LocalDataPath)
		return &Backend{Expenses: st, Budgets: st}, nil

	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		slog.Info("Initialized sqlite backend", "db_path", cfg.SQLiteDBPath)
		return &Backend{Expenses: repo, Budgets: repo, Users: repo, cleanup: repo.Close}, nil

	case "postgres":
		repo, err := postgres.NewRepository(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		slog.Info("Initialized postgres backend")
		return &Backend{Expenses: repo, Budgets: repo, Users: repo, cleanup: repo.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
	}
}
