package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	appErrors "github.com/hamdibenjarrar/DinarWise/customErrors"
	"github.com/hamdibenjarrar/DinarWise/internal/auth"
	"github.com/hamdibenjarrar/DinarWise/internal/budget"
	"github.com/hamdibenjarrar/DinarWise/internal/export"
	"github.com/hamdibenjarrar/DinarWise/internal/finance"
	"github.com/hamdibenjarrar/DinarWise/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fixedNow = time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC)

type testServer struct {
	t        *testing.T
	handler  http.Handler
	registry *finance.Registry
}

// FlakyStorage fails transaction listing while failList is set.
type FlakyStorage struct {
	*storage.InMemoryStorage
	failList atomic.Bool
}

func (f *FlakyStorage) ListTransactions(ctx context.Context, userID string) ([]finance.Transaction, error) {
	if f.failList.Load() {
		return nil, errors.New("connection refused")
	}
	return f.InMemoryStorage.ListTransactions(ctx, userID)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := storage.NewInMemoryStorage()
	return newTestServerWith(t, mem, mem)
}

func newTestServerWith(t *testing.T, mem *storage.InMemoryStorage, transactions finance.Persistence) *testServer {
	t.Helper()
	registry := finance.NewRegistry(transactions, time.Second, time.Minute)
	t.Cleanup(registry.Close)

	a := NewApi(auth.NewService(mem, 24*time.Hour), registry, mem, mem)
	a.nowFn = func() time.Time { return fixedNow }
	return &testServer{t: t, handler: NewRouter(a), registry: registry}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *testServer) register(email string) string {
	s.t.Helper()
	rec := s.do("POST", "/api/register", "", SaveUserRequest{Name: "Amira", Email: email, Password: "secret123"})
	require.Equal(s.t, 201, rec.Code, rec.Body.String())
	var resp TokenResponse
	decode(s.t, rec, &resp)
	require.NotEmpty(s.t, resp.Token)
	return resp.Token
}

func TestAccountLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.register("amira@example.com")

	rec := s.do("GET", "/api/account", token, nil)
	require.Equal(t, 200, rec.Code)
	var identity auth.Identity
	decode(t, rec, &identity)
	assert.Equal(t, "Amira", identity.Name)
	assert.Equal(t, "amira@example.com", identity.Email)

	rec = s.do("POST", "/api/register", "", SaveUserRequest{Name: "Again", Email: "AMIRA@example.com", Password: "secret123"})
	assert.Equal(t, 409, rec.Code)

	rec = s.do("POST", "/api/login", "", UserLoginRequest{Email: "amira@example.com", Password: "wrong-pass"})
	assert.Equal(t, 401, rec.Code)
	var body appErrors.ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, appErrors.ErrAuth, body.Code)
	assert.Equal(t, appErrors.SeverityError, body.Severity)

	rec = s.do("POST", "/api/login", "", UserLoginRequest{Email: "amira@example.com", Password: "secret123"})
	require.Equal(t, 200, rec.Code)
	var login TokenResponse
	decode(t, rec, &login)

	rec = s.do("GET", "/api/transactions", login.Token, nil)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, 1, s.registry.Len())

	rec = s.do("GET", "/api/logout", login.Token, nil)
	assert.Equal(t, 200, rec.Code)
	assert.Zero(t, s.registry.Len(), "logout releases the transaction store")
	rec = s.do("GET", "/api/account", login.Token, nil)
	assert.Equal(t, 401, rec.Code)

	// the first session is unaffected
	rec = s.do("GET", "/api/account", token, nil)
	assert.Equal(t, 200, rec.Code)
}

func TestRequiresAuthorization(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/transactions", "/api/analytics", "/api/budget", "/api/savings-goal", "/api/export"} {
		rec := s.do("GET", path, "", nil)
		assert.Equal(t, 401, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get(TraceHeader), path)
	}

	rec := s.do("GET", "/api/transactions", "not-a-token", nil)
	assert.Equal(t, 401, rec.Code)
}

func TestTransactionsFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.register("amira@example.com")

	drafts := []TransactionRequest{
		{Type: "income", Amount: decimal.NewFromInt(2500), Description: "Salary", Category: "Salary", Date: "2025-03-01"},
		{Type: "expense", Amount: decimal.NewFromInt(500), Description: "Rent", Category: "Housing", Date: "2025-03-02"},
		{Type: "expense", Amount: decimal.NewFromInt(100), Description: "Groceries", Category: "Food", Date: "2025-03-03"},
		{Type: "savings", Amount: decimal.NewFromInt(300), Description: "Deposit", Category: "Savings", Date: "2025-03-04"},
	}
	var ids []string
	for _, d := range drafts {
		rec := s.do("POST", "/api/transactions", token, d)
		require.Equal(t, 201, rec.Code, rec.Body.String())
		var created TransactionCreatedResponse
		decode(t, rec, &created)
		assert.NotContains(t, created.TransactionID, finance.TempIDPrefix)
		ids = append(ids, created.TransactionID)
	}

	rec := s.do("GET", "/api/transactions", token, nil)
	require.Equal(t, 200, rec.Code)
	var list TransactionsResponse
	decode(t, rec, &list)
	require.Len(t, list.Transactions, 4)
	assert.Equal(t, "Deposit", list.Transactions[0].Description, "newest first")
	assert.True(t, list.Totals.Income.Equal(decimal.NewFromInt(2500)))
	assert.True(t, list.Totals.Expenses.Equal(decimal.NewFromInt(600)))
	assert.True(t, list.Totals.Savings.Equal(decimal.NewFromInt(300)))
	assert.True(t, list.Totals.Balance.Equal(decimal.NewFromInt(1600)))
	require.Len(t, list.Recent, 4)
	assert.Equal(t, "2025-03-04", list.Recent[0].Day)
	assert.Equal(t, "Deposit", list.Recent[0].Transactions[0].Description)

	t.Run("validation", func(t *testing.T) {
		rec := s.do("POST", "/api/transactions", token, TransactionRequest{Type: "expense", Amount: decimal.NewFromInt(5)})
		assert.Equal(t, 400, rec.Code)

		rec = s.do("POST", "/api/transactions", token, TransactionRequest{Type: "gift", Amount: decimal.NewFromInt(5), Description: "x", Category: "y"})
		assert.Equal(t, 400, rec.Code)

		rec = s.do("POST", "/api/transactions", token, TransactionRequest{Type: "expense", Amount: decimal.NewFromInt(5), Description: "x", Category: "y", Date: "12/03/2025"})
		assert.Equal(t, 400, rec.Code)
	})

	t.Run("update and delete", func(t *testing.T) {
		edit := TransactionRequest{Type: "expense", Amount: decimal.NewFromInt(150), Description: "Groceries", Category: "Food", Date: "2025-03-03"}
		rec := s.do("PUT", "/api/transactions/"+ids[2], token, edit)
		assert.Equal(t, 200, rec.Code)

		rec = s.do("PUT", "/api/transactions/missing", token, edit)
		assert.Equal(t, 404, rec.Code)

		rec = s.do("DELETE", "/api/transactions/missing", token, nil)
		assert.Equal(t, 404, rec.Code)

		rec = s.do("DELETE", "/api/transactions/"+ids[1], token, nil)
		assert.Equal(t, 200, rec.Code)

		rec = s.do("GET", "/api/transactions", token, nil)
		var list TransactionsResponse
		decode(t, rec, &list)
		assert.Len(t, list.Transactions, 3)
		assert.True(t, list.Totals.Expenses.Equal(decimal.NewFromInt(150)))
	})

	t.Run("other users see nothing", func(t *testing.T) {
		other := s.register("other@example.com")
		rec := s.do("GET", "/api/transactions", other, nil)
		var list TransactionsResponse
		decode(t, rec, &list)
		assert.Empty(t, list.Transactions)

		rec = s.do("DELETE", "/api/transactions/"+ids[0], other, nil)
		assert.Equal(t, 404, rec.Code)
	})

	t.Run("reset is idempotent", func(t *testing.T) {
		rec := s.do("DELETE", "/api/user/reset-data", token, nil)
		require.Equal(t, 200, rec.Code)
		var reset ResetResponse
		decode(t, rec, &reset)
		assert.Equal(t, int64(3), reset.DeletedCount)

		rec = s.do("DELETE", "/api/user/reset-data", token, nil)
		decode(t, rec, &reset)
		assert.Equal(t, int64(0), reset.DeletedCount)
	})
}

func TestAnalyticsAndCalendar(t *testing.T) {
	s := newTestServer(t)
	token := s.register("amira@example.com")

	for _, d := range []TransactionRequest{
		{Type: "expense", Amount: decimal.NewFromInt(200), Description: "Market", Category: "Food", Date: "2025-03-10"},
		{Type: "expense", Amount: decimal.NewFromInt(80), Description: "Bus pass", Category: "Transport", Date: "2025-03-10"},
		{Type: "expense", Amount: decimal.NewFromInt(50), Description: "Bakery", Category: "Food", Date: "2025-03-11"},
		{Type: "income", Amount: decimal.NewFromInt(1000), Description: "Freelance", Category: "Work", Date: "2025-02-20"},
	} {
		rec := s.do("POST", "/api/transactions", token, d)
		require.Equal(t, 201, rec.Code, rec.Body.String())
	}

	rec := s.do("GET", "/api/analytics?range=bogus", token, nil)
	assert.Equal(t, 400, rec.Code)

	rec = s.do("GET", "/api/analytics?range=month", token, nil)
	require.Equal(t, 200, rec.Code)
	var resp AnalyticsResponse
	decode(t, rec, &resp)
	assert.Len(t, resp.Series, 31)
	require.Len(t, resp.Categories, 2)
	assert.Equal(t, "Food", resp.Categories[0].Category)
	assert.True(t, resp.Categories[0].Total.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, "Transport", resp.Categories[1].Category)
	assert.True(t, resp.Categories[1].Total.Equal(decimal.NewFromInt(80)))
	assert.Empty(t, resp.IncomeCategories, "february income is outside the month")
	assert.Equal(t, "Food", resp.Summary.TopCategory)

	rec = s.do("GET", "/api/analytics/trend?months=3", token, nil)
	require.Equal(t, 200, rec.Code)
	var trend TrendResponse
	decode(t, rec, &trend)
	require.Len(t, trend.Months, 3)
	assert.True(t, trend.Months[1].Income.Equal(decimal.NewFromInt(1000)))

	rec = s.do("GET", "/api/analytics/trend?months=99", token, nil)
	assert.Equal(t, 400, rec.Code)

	rec = s.do("GET", "/api/calendar?date=2025-03-10&type=expense", token, nil)
	require.Equal(t, 200, rec.Code)
	var day CalendarResponse
	decode(t, rec, &day)
	assert.Equal(t, "2025-03-10", day.Date)
	assert.Len(t, day.Transactions, 2)
	assert.True(t, day.Totals.Expenses.Equal(decimal.NewFromInt(280)))

	rec = s.do("GET", "/api/calendar?type=loan", token, nil)
	assert.Equal(t, 400, rec.Code)
}

func TestBudgetAndSavingsGoal(t *testing.T) {
	s := newTestServer(t)
	token := s.register("amira@example.com")

	rec := s.do("POST", "/api/transactions", token, TransactionRequest{
		Type: "expense", Amount: decimal.NewFromInt(450), Description: "Market", Category: "food", Date: "2025-03-05",
	})
	require.Equal(t, 201, rec.Code)
	rec = s.do("POST", "/api/transactions", token, TransactionRequest{
		Type: "savings", Amount: decimal.NewFromInt(2500), Description: "Deposit", Category: "Savings", Date: "2025-03-06",
	})
	require.Equal(t, 201, rec.Code)

	rec = s.do("GET", "/api/budget", token, nil)
	require.Equal(t, 200, rec.Code)
	var report BudgetResponse
	decode(t, rec, &report)
	assert.Equal(t, "March 2025", report.Report.Month)
	require.Len(t, report.Report.Categories, len(budget.DefaultCategories))
	for _, c := range report.Report.Categories {
		if c.Name == "Food" {
			assert.True(t, c.Spent.Equal(decimal.NewFromInt(450)))
			assert.Equal(t, budget.NearLimit, c.Status)
		}
	}

	rec = s.do("POST", "/api/budget", token, BudgetCategoryRequest{Name: "  FOOD ", Amount: decimal.NewFromInt(10)})
	assert.Equal(t, 409, rec.Code)

	rec = s.do("POST", "/api/budget", token, BudgetCategoryRequest{Name: "Health", Amount: decimal.NewFromInt(0)})
	assert.Equal(t, 400, rec.Code)

	rec = s.do("POST", "/api/budget", token, BudgetCategoryRequest{Name: "Health", Amount: decimal.NewFromInt(120)})
	require.Equal(t, 201, rec.Code)
	var created budget.Category
	decode(t, rec, &created)
	assert.Equal(t, budget.DefaultColor, created.Color)

	rec = s.do("PUT", "/api/budget/"+created.ID, token, BudgetCategoryRequest{Name: "Health", Amount: decimal.NewFromInt(200), Color: "#123456"})
	assert.Equal(t, 200, rec.Code)

	rec = s.do("DELETE", "/api/budget/"+created.ID, token, nil)
	assert.Equal(t, 200, rec.Code)
	rec = s.do("DELETE", "/api/budget/"+created.ID, token, nil)
	assert.Equal(t, 404, rec.Code)

	rec = s.do("GET", "/api/savings-goal", token, nil)
	require.Equal(t, 200, rec.Code)
	var goal SavingsGoalResponse
	decode(t, rec, &goal)
	assert.True(t, goal.Goal.Equal(decimal.NewFromInt(10000)))
	assert.True(t, goal.Progress.Current.Equal(decimal.NewFromInt(2500)))

	rec = s.do("PUT", "/api/savings-goal", token, SavingsGoalRequest{Goal: decimal.NewFromInt(-5)})
	assert.Equal(t, 400, rec.Code)

	rec = s.do("PUT", "/api/savings-goal", token, SavingsGoalRequest{Goal: decimal.NewFromInt(2000)})
	require.Equal(t, 200, rec.Code)
	decode(t, rec, &goal)
	assert.True(t, goal.Goal.Equal(decimal.NewFromInt(2000)))
	assert.True(t, goal.Progress.DisplayPercent.Equal(decimal.NewFromInt(100)))
	assert.True(t, goal.Progress.Remaining.Equal(decimal.NewFromInt(-500)))
}

func TestExportAndHealth(t *testing.T) {
	s := newTestServer(t)
	token := s.register("amira@example.com")

	rec := s.do("POST", "/api/transactions", token, TransactionRequest{
		Type: "expense", Amount: decimal.RequireFromString("12.5"), Description: "Coffee", Category: "Food", Date: "2025-03-10",
	})
	require.Equal(t, 201, rec.Code)

	rec = s.do("GET", "/api/export", token, nil)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2025-03-10", "expense", "12.5", "Coffee", "Food"}, rows[1])

	rec = s.do("GET", "/api/health", "", nil)
	require.Equal(t, 200, rec.Code)
	var health HealthResponse
	decode(t, rec, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "inmemory", health.Storage)
}

func TestFailedLoadIsSurfacedOnReads(t *testing.T) {
	mem := storage.NewInMemoryStorage()
	flaky := &FlakyStorage{InMemoryStorage: mem}
	s := newTestServerWith(t, mem, flaky)
	token := s.register("amira@example.com")

	rec := s.do("POST", "/api/transactions", token, TransactionRequest{
		Type: "expense", Amount: decimal.NewFromInt(80), Description: "Taxi", Category: "Transport", Date: "2025-03-10",
	})
	require.Equal(t, 201, rec.Code, rec.Body.String())

	flaky.failList.Store(true)
	rec = s.do("GET", "/api/transactions", token, nil)
	require.Equal(t, 503, rec.Code)

	for _, path := range []string{"/api/analytics", "/api/analytics/trend", "/api/calendar?date=2025-03-10", "/api/budget", "/api/savings-goal", "/api/export"} {
		rec := s.do("GET", path, token, nil)
		assert.Equal(t, 503, rec.Code, path)
		var body appErrors.ErrorResponse
		decode(t, rec, &body)
		assert.Equal(t, appErrors.ErrPersistence, body.Code, path)
	}

	flaky.failList.Store(false)
	rec = s.do("GET", "/api/calendar?date=2025-03-10", token, nil)
	require.Equal(t, 200, rec.Code)
	var day CalendarResponse
	decode(t, rec, &day)
	require.Len(t, day.Transactions, 1)
	assert.True(t, day.Totals.Expenses.Equal(decimal.NewFromInt(80)))
}

func TestHttpStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{appErrors.ErrorResponse{Code: appErrors.ErrNotFound}, 404},
		{appErrors.ErrorResponse{Code: appErrors.ErrInvalidInput}, 400},
		{appErrors.ErrorResponse{Code: appErrors.ErrAuth}, 401},
		{appErrors.ErrorResponse{Code: appErrors.ErrConflict}, 409},
		{appErrors.ErrorResponse{Code: appErrors.ErrPersistence}, 503},
		{appErrors.ErrorResponse{Code: appErrors.ErrPersistence, Timeout: true}, 504},
		{appErrors.ErrorResponse{Code: appErrors.ErrConsistency, Err: appErrors.ErrorResponse{Code: appErrors.ErrPersistence}}, 500},
		{assert.AnError, 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, httpStatusFromError(tt.err), tt.err.Error())
	}
}
