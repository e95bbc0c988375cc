package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"weekspend/internal/core"
	"weekspend/internal/services"
	"weekspend/internal/store"
)

// fakeStore backs the handlers in tests; it implements the expense and
// budget ports in memory.
type fakeStore struct {
	expenses []core.Expense
	budgets  map[string]core.WeeklyBudget
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{budgets: make(map[string]core.WeeklyBudget)}
}

func (f *fakeStore) key(owner string, weekStart core.Date) string {
	return owner + "|" + string(weekStart)
}

func (f *fakeStore) ListExpenses(_ context.Context, owner string) ([]core.Expense, error) {
	var out []core.Expense
	for i := len(f.expenses) - 1; i >= 0; i-- {
		if f.expenses[i].Owner == owner {
			out = append(out, f.expenses[i])
		}
	}
	return out, nil
}

func (f *fakeStore) InsertExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	f.nextID++
	e.ID = fmt.Sprintf("exp-%d", f.nextID)
	e.CreatedAt = time.Now()
	f.expenses = append(f.expenses, e)
	return e, nil
}

func (f *fakeStore) GetBudget(_ context.Context, owner string, weekStart core.Date) (*core.WeeklyBudget, error) {
	b, ok := f.budgets[f.key(owner, weekStart)]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeStore) UpsertBudget(_ context.Context, owner string, weekStart core.Date, amount core.Money) (core.WeeklyBudget, error) {
	key := f.key(owner, weekStart)
	b, ok := f.budgets[key]
	if !ok {
		b = core.WeeklyBudget{ID: "bud-" + key, Owner: owner, WeekStart: weekStart, CreatedAt: time.Now()}
	}
	b.Amount = amount
	b.UpdatedAt = time.Now()
	f.budgets[key] = b
	return b, nil
}

func (f *fakeStore) DeleteBudget(_ context.Context, owner string, weekStart core.Date) error {
	delete(f.budgets, f.key(owner, weekStart))
	return nil
}

func newTestServer(t *testing.T, users store.UserStore) (*Server, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	cats := core.DefaultCategories()
	s := NewServer("127.0.0.1:0",
		services.NewExpenseService(fs, cats, nil),
		services.NewBudgetService(fs, nil),
		services.NewSummaryService(fs, fs, cats),
		Options{
			Users:      users,
			Categories: cats,
			SessionTTL: time.Hour,
		})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, fs
}

func doJSON(t *testing.T, s *Server, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(w, r)
	return w
}

func TestCreateExpense(t *testing.T) {
	s, fs := newTestServer(t, nil)

	w := doJSON(t, s, http.MethodPost, "/api/expenses",
		`{"amount":"12.50","category":"food","description":"lunch","date":"2025-06-02"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp expenseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Amount != "12.50" || resp.Category != "food" || resp.Date != "2025-06-02" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.ID == "" {
		t.Error("missing id")
	}
	if len(fs.expenses) != 1 {
		t.Errorf("store has %d expenses, want 1", len(fs.expenses))
	}
}

func TestCreateExpenseDefaultsDescription(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := doJSON(t, s, http.MethodPost, "/api/expenses",
		`{"amount":"5","category":"transport","date":"2025-06-02"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp expenseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Description != core.DefaultDescription {
		t.Errorf("description = %q, want %q", resp.Description, core.DefaultDescription)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	s, fs := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid amount", `{"amount":"abc","category":"food"}`},
		{"zero amount", `{"amount":"0","category":"food"}`},
		{"negative amount", `{"amount":"-5","category":"food"}`},
		{"unknown category", `{"amount":"5","category":"gadgets"}`},
		{"empty category", `{"amount":"5","category":""}`},
		{"bad date", `{"amount":"5","category":"food","date":"junk"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, s, http.MethodPost, "/api/expenses", tt.body)
			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422, body = %s", w.Code, w.Body.String())
			}
		})
	}
	if len(fs.expenses) != 0 {
		t.Errorf("store has %d expenses, want 0", len(fs.expenses))
	}
}

func TestListExpensesNewestFirstWithLimit(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for i := 1; i <= 7; i++ {
		body := fmt.Sprintf(`{"amount":"%d","category":"food","description":"n%d","date":"2025-06-02"}`, i, i)
		if w := doJSON(t, s, http.MethodPost, "/api/expenses", body); w.Code != http.StatusCreated {
			t.Fatalf("create %d: status %d", i, w.Code)
		}
	}

	w := doJSON(t, s, http.MethodGet, "/api/expenses?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Expenses []expenseResponse `json:"expenses"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Expenses) != 5 {
		t.Fatalf("got %d expenses, want 5", len(resp.Expenses))
	}
	if resp.Expenses[0].Description != "n7" {
		t.Errorf("first = %q, want newest n7", resp.Expenses[0].Description)
	}
}

func TestBudgetLifecycle(t *testing.T) {
	s, _ := newTestServer(t, nil)

	// Absent budget reads as null, not an error.
	w := doJSON(t, s, http.MethodGet, "/api/budget?week=2025-06-02", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get absent: status = %d", w.Code)
	}
	var getResp struct {
		Budget    *budgetResponse `json:"budget"`
		WeekStart string          `json:"week_start"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &getResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if getResp.Budget != nil {
		t.Errorf("expected null budget, got %+v", getResp.Budget)
	}
	if getResp.WeekStart != "2025-06-01" {
		t.Errorf("week_start = %q, want snapped 2025-06-01", getResp.WeekStart)
	}

	// Set.
	w = doJSON(t, s, http.MethodPut, "/api/budget?week=2025-06-02", `{"amount":"100"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put: status = %d, body = %s", w.Code, w.Body.String())
	}
	var putResp struct {
		Budget       budgetResponse `json:"budget"`
		Notice       string         `json:"notice"`
		DismissAfter int            `json:"dismiss_after_ms"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &putResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if putResp.Budget.Amount != "100.00" || putResp.Budget.WeekStart != "2025-06-01" {
		t.Errorf("unexpected budget: %+v", putResp.Budget)
	}
	if putResp.Notice == "" || putResp.DismissAfter != 1500 {
		t.Errorf("notice = %q, dismiss_after_ms = %d", putResp.Notice, putResp.DismissAfter)
	}

	// Replace.
	w = doJSON(t, s, http.MethodPut, "/api/budget?week=2025-06-02", `{"amount":"150"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put replace: status = %d", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/budget?week=2025-06-05", "")
	if err := json.Unmarshal(w.Body.Bytes(), &getResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if getResp.Budget == nil || getResp.Budget.Amount != "150.00" {
		t.Errorf("after replace: %+v", getResp.Budget)
	}

	// Delete, then delete again: both succeed.
	for i := 0; i < 2; i++ {
		w = doJSON(t, s, http.MethodDelete, "/api/budget?week=2025-06-02", "")
		if w.Code != http.StatusOK {
			t.Fatalf("delete %d: status = %d", i, w.Code)
		}
	}
	w = doJSON(t, s, http.MethodGet, "/api/budget?week=2025-06-02", "")
	if err := json.Unmarshal(w.Body.Bytes(), &getResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if getResp.Budget != nil {
		t.Errorf("budget survived delete: %+v", getResp.Budget)
	}
}

func TestBudgetRejectsInvalidAmount(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, amount := range []string{"0", "-10", "abc"} {
		w := doJSON(t, s, http.MethodPut, "/api/budget?week=2025-06-02", `{"amount":"`+amount+`"}`)
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("amount %q: status = %d, want 422", amount, w.Code)
		}
	}
}

func TestSummaryReflectsWrites(t *testing.T) {
	s, _ := newTestServer(t, nil)

	post := func(body string) {
		t.Helper()
		if w := doJSON(t, s, http.MethodPost, "/api/expenses", body); w.Code != http.StatusCreated {
			t.Fatalf("create: status %d, body %s", w.Code, w.Body.String())
		}
	}
	getSummary := func() summaryResponse {
		t.Helper()
		w := doJSON(t, s, http.MethodGet, "/api/summary?week=2025-06-02", "")
		if w.Code != http.StatusOK {
			t.Fatalf("summary: status %d", w.Code)
		}
		var resp summaryResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp
	}

	post(`{"amount":"50","category":"food","date":"2025-06-02"}`)
	post(`{"amount":"30","category":"transport","date":"2025-06-03"}`)
	// Prior week, must not count.
	post(`{"amount":"99","category":"food","date":"2025-05-25"}`)

	sum := getSummary()
	if sum.WeeklySpent != "80.00" {
		t.Errorf("weekly_spent = %q, want 80.00", sum.WeeklySpent)
	}
	if sum.HasBudget || sum.NeedsAlert || sum.ProgressPercent != 0 {
		t.Errorf("no-budget summary wrong: %+v", sum)
	}
	if len(sum.ByCategory) != 2 || sum.ByCategory[0].Category != "food" || sum.ByCategory[1].Category != "transport" {
		t.Errorf("by_category order wrong: %+v", sum.ByCategory)
	}

	// Budget write must invalidate the cached summary.
	if w := doJSON(t, s, http.MethodPut, "/api/budget?week=2025-06-02", `{"amount":"100"}`); w.Code != http.StatusOK {
		t.Fatalf("put budget: status %d", w.Code)
	}
	sum = getSummary()
	if !sum.HasBudget || sum.ProgressPercent != 80 || !sum.NeedsAlert {
		t.Errorf("post-budget summary wrong: %+v", sum)
	}
	if sum.Remaining != "20.00" {
		t.Errorf("remaining = %q, want 20.00", sum.Remaining)
	}

	// Another expense crosses 100%; remaining goes negative.
	post(`{"amount":"70","category":"shopping","date":"2025-06-04"}`)
	sum = getSummary()
	if sum.ProgressPercent != 150 {
		t.Errorf("progress_percent = %v, want 150", sum.ProgressPercent)
	}
	if sum.Remaining != "-50.00" {
		t.Errorf("remaining = %q, want -50.00", sum.Remaining)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := doJSON(t, s, http.MethodGet, "/api/categories", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Categories) != 10 || resp.Categories[0] != "food" || resp.Categories[9] != "other" {
		t.Errorf("categories = %v", resp.Categories)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		w := doJSON(t, s, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, w.Code)
		}
	}
}

// fakeUserStore implements store.UserStore in memory for the auth tests.
type fakeUserStore struct {
	users    map[string]store.User
	sessions map[string]store.Session
	nextID   int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:    make(map[string]store.User),
		sessions: make(map[string]store.Session),
	}
}

func (f *fakeUserStore) CreateUser(_ context.Context, email, passwordHash string) (store.User, error) {
	if _, exists := f.users[email]; exists {
		return store.User{}, fmt.Errorf("duplicate email")
	}
	f.nextID++
	u := store.User{ID: fmt.Sprintf("u%d", f.nextID), Email: email, PasswordHash: passwordHash, CreatedAt: time.Now()}
	f.users[email] = u
	return u, nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	u, ok := f.users[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeUserStore) CreateSession(_ context.Context, token, userID string, expiresAt time.Time) error {
	f.sessions[token] = store.Session{Token: token, UserID: userID, ExpiresAt: expiresAt, LastActivity: time.Now()}
	return nil
}

func (f *fakeUserStore) GetSession(_ context.Context, token string) (store.Session, error) {
	sess, ok := f.sessions[token]
	if !ok || time.Now().After(sess.ExpiresAt) {
		return store.Session{}, store.ErrNotFound
	}
	return sess, nil
}

func (f *fakeUserStore) RenewSession(_ context.Context, token string, expiresAt time.Time) error {
	sess, ok := f.sessions[token]
	if !ok {
		return store.ErrNotFound
	}
	sess.ExpiresAt = expiresAt
	sess.LastActivity = time.Now()
	f.sessions[token] = sess
	return nil
}

func (f *fakeUserStore) DeleteSession(_ context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func (f *fakeUserStore) DeleteExpiredSessions(_ context.Context) (int64, error) {
	var n int64
	for token, sess := range f.sessions {
		if time.Now().After(sess.ExpiresAt) {
			delete(f.sessions, token)
			n++
		}
	}
	return n, nil
}

func TestAuthFlow(t *testing.T) {
	users := newFakeUserStore()
	s, _ := newTestServer(t, users)

	// Unauthenticated requests are rejected.
	if w := doJSON(t, s, http.MethodGet, "/api/expenses", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: status = %d, want 401", w.Code)
	}

	// Register.
	w := doJSON(t, s, http.MethodPost, "/api/register", `{"email":"a@example.com","password":"hunter2secret"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Duplicate registration conflicts.
	w = doJSON(t, s, http.MethodPost, "/api/register", `{"email":"a@example.com","password":"hunter2secret"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status = %d", w.Code)
	}

	// Wrong password.
	w = doJSON(t, s, http.MethodPost, "/api/login", `{"email":"a@example.com","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status = %d", w.Code)
	}

	// Login sets a session cookie.
	w = doJSON(t, s, http.MethodPost, "/api/login", `{"email":"a@example.com","password":"hunter2secret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d, body = %s", w.Code, w.Body.String())
	}
	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatal("no session cookie set")
	}
	if !session.HttpOnly {
		t.Error("session cookie not HttpOnly")
	}

	// Authenticated request succeeds.
	if w := doJSON(t, s, http.MethodGet, "/api/expenses", "", session); w.Code != http.StatusOK {
		t.Fatalf("authenticated list: status = %d", w.Code)
	}

	// Logout invalidates the session.
	if w := doJSON(t, s, http.MethodPost, "/api/logout", "", session); w.Code != http.StatusNoContent {
		t.Fatalf("logout: status = %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodGet, "/api/expenses", "", session); w.Code != http.StatusUnauthorized {
		t.Fatalf("post-logout: status = %d, want 401", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestServer(t, newFakeUserStore())

	w := doJSON(t, s, http.MethodPost, "/api/register", `{"email":"not-an-email","password":"hunter2secret"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad email: status = %d, want 422", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/api/register", `{"email":"b@example.com","password":"short"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("short password: status = %d, want 422", w.Code)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	users := newFakeUserStore()
	s, _ := newTestServer(t, users)

	login := func(email string) *http.Cookie {
		t.Helper()
		body := `{"email":"` + email + `","password":"hunter2secret"}`
		if w := doJSON(t, s, http.MethodPost, "/api/register", body); w.Code != http.StatusCreated {
			t.Fatalf("register %s: %d", email, w.Code)
		}
		w := doJSON(t, s, http.MethodPost, "/api/login", body)
		if w.Code != http.StatusOK {
			t.Fatalf("login %s: %d", email, w.Code)
		}
		for _, c := range w.Result().Cookies() {
			if c.Name == sessionCookie {
				return c
			}
		}
		t.Fatalf("no cookie for %s", email)
		return nil
	}

	alice := login("alice@example.com")
	bob := login("bob@example.com")

	if w := doJSON(t, s, http.MethodPost, "/api/expenses",
		`{"amount":"10","category":"food","date":"2025-06-02"}`, alice); w.Code != http.StatusCreated {
		t.Fatalf("alice create: %d", w.Code)
	}

	w := doJSON(t, s, http.MethodGet, "/api/expenses", "", bob)
	if w.Code != http.StatusOK {
		t.Fatalf("bob list: %d", w.Code)
	}
	var resp struct {
		Expenses []expenseResponse `json:"expenses"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Expenses) != 0 {
		t.Errorf("bob sees %d of alice's expenses", len(resp.Expenses))
	}
}
