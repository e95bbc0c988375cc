package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"weekspend/internal/core"
	"weekspend/internal/store"
)

// RepositoryTestSuite runs every test against a fresh in-memory database.
type RepositoryTestSuite struct {
	suite.Suite
	repo *Repository
	ctx  context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	repo, err := NewRepository(":memory:")
	require.NoError(s.T(), err, "failed to create test database")
	s.repo = repo
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositoryTestSuite) insert(owner string, cents int64, category string, date core.Date) core.Expense {
	e, err := s.repo.InsertExpense(s.ctx, core.Expense{
		Owner:       owner,
		Amount:      core.Money{Cents: cents},
		Category:    category,
		Description: core.DefaultDescription,
		Date:        date,
	})
	require.NoError(s.T(), err)
	return e
}

func (s *RepositoryTestSuite) TestInsertAssignsStoreFields() {
	e := s.insert("alice", 1050, "food", "2025-06-02")
	assert.NotEmpty(s.T(), e.ID)
	assert.False(s.T(), e.CreatedAt.IsZero())
}

func (s *RepositoryTestSuite) TestListExpensesMostRecentFirst() {
	s.insert("alice", 100, "food", "2025-06-02")
	s.insert("alice", 200, "transport", "2025-06-02")
	s.insert("alice", 300, "food", "2025-06-03")

	got, err := s.repo.ListExpenses(s.ctx, "alice")
	require.NoError(s.T(), err)
	require.Len(s.T(), got, 3)

	assert.Equal(s.T(), int64(300), got[0].Amount.Cents, "newest insert comes first")
	assert.Equal(s.T(), int64(100), got[2].Amount.Cents)
	assert.True(s.T(), !got[0].CreatedAt.Before(got[1].CreatedAt))
}

func (s *RepositoryTestSuite) TestListExpensesScopedByOwner() {
	s.insert("alice", 100, "food", "2025-06-02")
	s.insert("bob", 999, "travel", "2025-06-02")

	got, err := s.repo.ListExpenses(s.ctx, "alice")
	require.NoError(s.T(), err)
	require.Len(s.T(), got, 1)
	assert.Equal(s.T(), "alice", got[0].Owner)
}

func (s *RepositoryTestSuite) TestListIncludesPriorWeeks() {
	// The store returns the full collection; week filtering is the
	// aggregator's job.
	s.insert("alice", 100, "food", "2025-05-20")
	s.insert("alice", 200, "food", "2025-06-02")

	got, err := s.repo.ListExpenses(s.ctx, "alice")
	require.NoError(s.T(), err)
	assert.Len(s.T(), got, 2)
}

func (s *RepositoryTestSuite) TestBudgetUpsertRoundTrip() {
	week := core.Date("2025-06-01")

	b, err := s.repo.GetBudget(s.ctx, "alice", week)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), b, "absent budget is nil, not an error")

	created, err := s.repo.UpsertBudget(s.ctx, "alice", week, core.Money{Cents: 5000})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(5000), created.Amount.Cents)

	replaced, err := s.repo.UpsertBudget(s.ctx, "alice", week, core.Money{Cents: 12000})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(12000), replaced.Amount.Cents)
	assert.Equal(s.T(), created.ID, replaced.ID, "conflict path keeps the original row")

	b, err = s.repo.GetBudget(s.ctx, "alice", week)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), b)
	assert.Equal(s.T(), int64(12000), b.Amount.Cents)
}

func (s *RepositoryTestSuite) TestBudgetIsPerOwnerAndWeek() {
	week := core.Date("2025-06-01")
	_, err := s.repo.UpsertBudget(s.ctx, "alice", week, core.Money{Cents: 5000})
	require.NoError(s.T(), err)
	_, err = s.repo.UpsertBudget(s.ctx, "bob", week, core.Money{Cents: 7000})
	require.NoError(s.T(), err)

	b, err := s.repo.GetBudget(s.ctx, "alice", week)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), b)
	assert.Equal(s.T(), int64(5000), b.Amount.Cents)

	other, err := s.repo.GetBudget(s.ctx, "alice", "2025-05-25")
	require.NoError(s.T(), err)
	assert.Nil(s.T(), other)
}

func (s *RepositoryTestSuite) TestDeleteBudget() {
	week := core.Date("2025-06-01")
	_, err := s.repo.UpsertBudget(s.ctx, "alice", week, core.Money{Cents: 5000})
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.repo.DeleteBudget(s.ctx, "alice", week))

	b, err := s.repo.GetBudget(s.ctx, "alice", week)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), b)

	// Absence of a record to delete is not an error.
	assert.NoError(s.T(), s.repo.DeleteBudget(s.ctx, "alice", week))
}

func (s *RepositoryTestSuite) TestUsersAndSessions() {
	u, err := s.repo.CreateUser(s.ctx, "alice@example.com", "hash")
	require.NoError(s.T(), err)
	assert.NotEmpty(s.T(), u.ID)

	_, err = s.repo.CreateUser(s.ctx, "alice@example.com", "hash2")
	assert.Error(s.T(), err, "duplicate email rejected")

	got, err := s.repo.GetUserByEmail(s.ctx, "alice@example.com")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), u.ID, got.ID)

	_, err = s.repo.GetUserByEmail(s.ctx, "nobody@example.com")
	assert.ErrorIs(s.T(), err, store.ErrNotFound)

	require.NoError(s.T(), s.repo.CreateSession(s.ctx, "tok1", u.ID, time.Now().Add(time.Hour)))
	sess, err := s.repo.GetSession(s.ctx, "tok1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), u.ID, sess.UserID)

	// Expired sessions behave as missing.
	require.NoError(s.T(), s.repo.CreateSession(s.ctx, "tok2", u.ID, time.Now().Add(-time.Minute)))
	_, err = s.repo.GetSession(s.ctx, "tok2")
	assert.ErrorIs(s.T(), err, store.ErrNotFound)

	n, err := s.repo.DeleteExpiredSessions(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), n)

	require.NoError(s.T(), s.repo.DeleteSession(s.ctx, "tok1"))
	_, err = s.repo.GetSession(s.ctx, "tok1")
	assert.ErrorIs(s.T(), err, store.ErrNotFound)
}

func (s *RepositoryTestSuite) TestRenewSession() {
	u, err := s.repo.CreateUser(s.ctx, "bob@example.com", "hash")
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.repo.CreateSession(s.ctx, "tok", u.ID, time.Now().Add(time.Minute)))
	newExpiry := time.Now().Add(2 * time.Hour)
	require.NoError(s.T(), s.repo.RenewSession(s.ctx, "tok", newExpiry))

	sess, err := s.repo.GetSession(s.ctx, "tok")
	require.NoError(s.T(), err)
	assert.WithinDuration(s.T(), newExpiry, sess.ExpiresAt, time.Second)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
