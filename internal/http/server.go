// Package http exposes the tracker's JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"weekspend/internal/cache"
	"weekspend/internal/core"
	"weekspend/internal/services"
	"weekspend/internal/store"
)

type Server struct {
	http.Server
	expenses  *services.ExpenseService
	budgets   *services.BudgetService
	summaries *services.SummaryService
	users     store.UserStore

	categories    core.CategorySet
	sessionTTL    time.Duration
	secureCookies bool

	rateLimiter *rateLimiter

	// Cached week summaries, invalidated on every write.
	summaryCache *cache.LRUCache[core.WeekSummary]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// Options carries the wiring NewServer needs beyond the services.
type Options struct {
	// Users enables the auth endpoints and per-user ownership. Nil runs
	// the server unauthenticated against the fixed local owner.
	Users         store.UserStore
	Categories    core.CategorySet
	SessionTTL    time.Duration
	SecureCookies bool
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, expenses *services.ExpenseService, budgets *services.BudgetService, summaries *services.SummaryService, opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		expenses:  expenses,
		budgets:   budgets,
		summaries: summaries,
		users:     opts.Users,

		categories:    opts.Categories,
		sessionTTL:    opts.SessionTTL,
		secureCookies: opts.SecureCookies,

		rateLimiter:      newRateLimiter(),
		summaryCache:     newSummaryCache(),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/expenses", s.withSecurityHeaders(s.requireAuth(s.handleExpenses)))
	mux.HandleFunc("/api/budget", s.withSecurityHeaders(s.requireAuth(s.handleBudget)))
	mux.HandleFunc("/api/summary", s.withSecurityHeaders(s.requireAuth(s.handleSummary)))
	mux.HandleFunc("/api/categories", s.withSecurityHeaders(s.handleCategories))

	// Auth endpoints only exist when a user store is wired in.
	if opts.Users != nil {
		mux.HandleFunc("/api/register", s.withSecurityHeaders(s.handleRegister))
		mux.HandleFunc("/api/login", s.withSecurityHeaders(s.handleLogin))
		mux.HandleFunc("/api/logout", s.withSecurityHeaders(s.handleLogout))
	}

	return s
}

func newSummaryCache() *cache.LRUCache[core.WeekSummary] {
	return cache.NewLRUCache[core.WeekSummary](200, time.Minute)
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.summaryCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "summary_entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) summaryCacheKey(owner string, weekStart core.Date) string {
	return owner + "|" + string(weekStart)
}

// invalidateSummaries drops the owner's current-week cache entry. Writes
// that name another week go through invalidateSummary, which drops that
// key as well.
func (s *Server) invalidateSummaries(owner string) {
	s.summaryCache.Delete(s.summaryCacheKey(owner, core.WeekStart(time.Now())))
}

func (s *Server) invalidateSummary(owner string, weekStart core.Date) {
	s.summaryCache.Delete(s.summaryCacheKey(owner, weekStart))
	s.invalidateSummaries(owner)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
