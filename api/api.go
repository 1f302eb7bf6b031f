package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/0xcafe-io/iz"
	appErrors "github.com/hamdibenjarrar/DinarWise/customErrors"
	"github.com/hamdibenjarrar/DinarWise/internal/analytics"
	"github.com/hamdibenjarrar/DinarWise/internal/auth"
	"github.com/hamdibenjarrar/DinarWise/internal/budget"
	"github.com/hamdibenjarrar/DinarWise/internal/contextutil"
	"github.com/hamdibenjarrar/DinarWise/internal/export"
	"github.com/hamdibenjarrar/DinarWise/internal/finance"
	"github.com/hamdibenjarrar/DinarWise/logging"
)

const (
	defaultTrendMonths = 6
	maxTrendMonths     = 24
	recentLimit        = 10
	healthTimeout      = 5 * time.Second
)

// Pinger reports whether the persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
	GetStorageType() string
}

type Api struct {
	Auth    *auth.Service
	Finance *finance.Registry
	Budget  budget.Storage
	Health  Pinger
	nowFn   func() time.Time
}

func NewApi(authService *auth.Service, registry *finance.Registry, budgetStorage budget.Storage, health Pinger) *Api {
	return &Api{
		Auth:    authService,
		Finance: registry,
		Budget:  budgetStorage,
		Health:  health,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (api *Api) fail(r *http.Request, err error) iz.Responder {
	status := httpStatusFromError(err)
	if status >= 500 {
		traceID := contextutil.TraceIDFromContext(r.Context())
		logging.Logger.Errorf("[TraceID=%s] | %s %s failed | Error: %v", traceID, r.Method, r.URL.Path, err)
	}
	return iz.Respond().Status(status).JSON(errorBody(err))
}

func invalidBody(err error) error {
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrInvalidInput,
		Message: fmt.Sprintf("invalid request body: %s", err.Error()),
	}
}

func (api *Api) authenticate(r *http.Request) (auth.Identity, error) {
	token := r.Header.Get("Authorization")
	if token == "" {
		return auth.Identity{}, appErrors.ErrorResponse{
			Code:    appErrors.ErrAuth,
			Message: "authorization failed: Authorization header is required.",
		}
	}
	return api.Auth.CurrentUser(r.Context(), token)
}

// userStore authenticates the request and returns the caller's transaction store.
func (api *Api) userStore(r *http.Request) (auth.Identity, *finance.Store, error) {
	user, err := api.authenticate(r)
	if err != nil {
		return auth.Identity{}, nil, err
	}
	store, err := api.Finance.For(r.Context(), user)
	if err != nil {
		return auth.Identity{}, nil, err
	}
	return user, store, nil
}

// readStore is userStore for handlers that derive views from the snapshot. A
// store left in an error state by an earlier load is refreshed first.
func (api *Api) readStore(r *http.Request) (auth.Identity, *finance.Store, error) {
	user, store, err := api.userStore(r)
	if err != nil {
		return auth.Identity{}, nil, err
	}
	if store.Err() != nil {
		if err := store.Refresh(r.Context()); err != nil {
			return auth.Identity{}, nil, err
		}
	}
	return user, store, nil
}

// --- USER --- //

func (api *Api) SaveUserHandler(r *iz.Request) iz.Responder {
	var newUserReq SaveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&newUserReq); err != nil {
		return api.fail(r.Request, invalidBody(err))
	}

	newUser := auth.NewUser{
		Name:          newUserReq.Name,
		Email:         newUserReq.Email,
		PasswordPlain: newUserReq.Password,
	}

	token, err := api.Auth.Register(r.Context(), newUser)
	if err != nil {
		return api.fail(r.Request, err)
	}

	resp := TokenResponse{
		Message: "Registration Completed",
		Token:   token,
	}
	return iz.Respond().Status(201).JSON(resp)
}

func (api *Api) LoginUserHandler(r *iz.Request) iz.Responder {
	var loginRequest UserLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		return api.fail(r.Request, invalidBody(err))
	}

	credentials := auth.UserCredentialsPure{
		Email:         loginRequest.Email,
		PasswordPlain: loginRequest.Password,
	}

	token, err := api.Auth.Login(r.Context(), credentials)
	if err != nil {
		return api.fail(r.Request, err)
	}
	return iz.Respond().Status(200).JSON(TokenResponse{
		Message: "You've logged in successfully!",
		Token:   token,
	})
}

func (api *Api) LogoutUserHandler(r *iz.Request) iz.Responder {
	user, err := api.authenticate(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}
	if err := api.Auth.Logout(r.Context(), r.Header.Get("Authorization")); err != nil {
		return api.fail(r.Request, err)
	}
	api.Finance.Evict(user.ID)
	return iz.Respond().Status(200).JSON(MessageResponse{Message: "Logout successful.", Severity: appErrors.SeveritySuccess})
}

func (api *Api) GetAccountInfo(r *iz.Request) iz.Responder {
	user, err := api.authenticate(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}
	return iz.Respond().Status(200).JSON(user)
}

func (api *Api) HealthHandler(r *iz.Request) iz.Responder {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	start := time.Now()
	err := api.Health.Ping(ctx)
	resp := HealthResponse{
		Status:    "ok",
		Storage:   api.Health.GetStorageType(),
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		traceID := contextutil.TraceIDFromContext(r.Context())
		logging.Logger.Warnf("[TraceID=%s] | health check failed | Error: %v", traceID, err)
		resp.Status = "unavailable"
		resp.Error = "storage is not reachable"
		return iz.Respond().Status(503).JSON(resp)
	}
	return iz.Respond().Status(200).JSON(resp)
}

// --- TRANSACTIONS --- //

func (api *Api) GetTransactionsHandler(r *iz.Request) iz.Responder {
	_, store, err := api.userStore(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}
	if err := store.Refresh(r.Context()); err != nil {
		return api.fail(r.Request, err)
	}
	txs := store.Transactions()
	return iz.Respond().Status(200).JSON(TransactionsResponse{
		Transactions: txs,
		Totals:       store.Totals(),
		Recent:       analytics.GroupByDay(txs, recentLimit),
	})
}

func (api *Api) SaveTransactionHandler(r *iz.Request) iz.Responder {
	_, store, err := api.userStore(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return api.fail(r.Request, invalidBody(err))
	}
	draft, err := req.toDraft()
	if err != nil {
		return api.fail(r.Request, err)
	}

	tx, err := store.Add(r.Context(), draft)
	if err != nil {
		return api.fail(r.Request, err)
	}
	return iz.Respond().Status(201).JSON(TransactionCreatedResponse{
		TransactionID: tx.ID,
		Message:       "transaction successfully created",
	})
}

func (api *Api) UpdateTransactionHandler(r *iz.Request) iz.Responder {
	_, store, err := api.userStore(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return api.fail(r.Request, invalidBody(err))
	}
	draft, err := req.toDraft()
	if err != nil {
		return api.fail(r.Request, err)
	}

	if err := store.Update(r.Context(), r.PathValue("id"), draft); err != nil {
		return api.fail(r.Request, err)
	}
	return iz.Respond().Status(200).JSON(MessageResponse{Message: "transaction updated", Severity: appErrors.SeveritySuccess})
}

func (api *Api) DeleteTransactionHandler(r *iz.Request) iz.Responder {
	_, store, err := api.userStore(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}
	if err := store.Remove(r.Context(), r.PathValue("id")); err != nil {
		return api.fail(r.Request, err)
	}
	return iz.Respond().Status(200).JSON(MessageResponse{Message: "transaction deleted successfully", Severity: appErrors.SeveritySuccess})
}

func (api *Api) ResetDataHandler(r *iz.Request) iz.Responder {
	_, store, err := api.userStore(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}
	deleted, err := store.ResetAll(r.Context())
	if err != nil {
		return api.fail(r.Request, err)
	}
	return iz.Respond().Status(200).JSON(ResetResponse{
		DeletedCount: deleted,
		Message:      fmt.Sprintf("%d transactions deleted", deleted),
	})
}

// --- ANALYTICS --- //

func (api *Api) AnalyticsHandler(r *iz.Request) iz.Responder {
	_, store, err := api.readStore(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}
	kind, err := analytics.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		return api.fail(r.Request, err)
	}

	txs := store.Transactions()
	w := analytics.ResolveWindow(kind, api.nowFn())
	inWindow := analytics.Filter(txs, w)

	return iz.Respond().Status(200).JSON(AnalyticsResponse{
		Window:           w,
		Series:           analytics.BucketSeries(txs, w),
		ExpenseSeries:    analytics.ExpenseSeries(txs, w),
		Categories:       analytics.CategoryBreakdown(inWindow, finance.Expense),
		IncomeCategories: analytics.CategoryBreakdown(inWindow, finance.Income),
		Summary:          analytics.SummaryStats(txs, w),
	})
}

func (api *Api) TrendHandler(r *iz.Request) iz.Responder {
	_, store, err := api.readStore(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}

	months := defaultTrendMonths
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTrendMonths {
			return api.fail(r.Request, appErrors.ErrorResponse{
				Code:    appErrors.ErrInvalidInput,
				Message: fmt.Sprintf("months must be a number between 1 and %d", maxTrendMonths),
			})
		}
		months = n
	}

	return iz.Respond().Status(200).JSON(TrendResponse{
		Months: analytics.MonthlyTrend(store.Transactions(), api.nowFn(), months),
	})
}

func (api *Api) CalendarHandler(r *iz.Request) iz.Responder {
	_, store, err := api.readStore(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}

	query := r.URL.Query()
	day, err := parseDate(query.Get("date"))
	if err != nil {
		return api.fail(r.Request, err)
	}
	if day.IsZero() {
		day = api.nowFn()
	}

	typ := finance.Type(strings.ToLower(query.Get("type")))
	if typ != "" && !typ.Valid() {
		return api.fail(r.Request, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("invalid transaction type '%s'", typ),
		})
	}

	txs := store.Transactions()
	return iz.Respond().Status(200).JSON(CalendarResponse{
		Date:         day.Format("2006-01-02"),
		Transactions: analytics.DayTransactions(txs, day, typ),
		Totals:       analytics.SumDay(txs, day),
	})
}

// --- BUDGET --- //

func (api *Api) GetBudgetHandler(r *iz.Request) iz.Responder {
	user, store, err := api.readStore(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}
	report, err := budget.NewTracker(api.Budget, user).Report(r.Context(), store.Transactions(), api.nowFn())
	if err != nil {
		return api.fail(r.Request, err)
	}
	return iz.Respond().Status(200).JSON(BudgetResponse{Report: report})
}

func decodeCategory(r *iz.Request) (budget.CategoryRequest, error) {
	var req BudgetCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return budget.CategoryRequest{}, invalidBody(err)
	}
	return budget.CategoryRequest{Name: req.Name, Amount: req.Amount, Color: req.Color}, nil
}

func (api *Api) SaveBudgetCategoryHandler(r *iz.Request) iz.Responder {
	user, err := api.authenticate(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}
	req, err := decodeCategory(r)
	if err != nil {
		return api.fail(r.Request, err)
	}
	category, err := budget.NewTracker(api.Budget, user).AddCategory(r.Context(), req)
	if err != nil {
		return api.fail(r.Request, err)
	}
	return iz.Respond().Status(201).JSON(category)
}

func (api *Api) UpdateBudgetCategoryHandler(r *iz.Request) iz.Responder {
	user, err := api.authenticate(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}
	req, err := decodeCategory(r)
	if err != nil {
		return api.fail(r.Request, err)
	}
	category, err := budget.NewTracker(api.Budget, user).UpdateCategory(r.Context(), r.PathValue("id"), req)
	if err != nil {
		return api.fail(r.Request, err)
	}
	return iz.Respond().Status(200).JSON(category)
}

func (api *Api) DeleteBudgetCategoryHandler(r *iz.Request) iz.Responder {
	user, err := api.authenticate(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}
	if err := budget.NewTracker(api.Budget, user).RemoveCategory(r.Context(), r.PathValue("id")); err != nil {
		return api.fail(r.Request, err)
	}
	return iz.Respond().Status(200).JSON(MessageResponse{Message: "budget category deleted", Severity: appErrors.SeveritySuccess})
}

// --- SAVINGS GOAL --- //

func (api *Api) savingsGoal(r *iz.Request, user auth.Identity, store *finance.Store) iz.Responder {
	tracker := budget.NewTracker(api.Budget, user)
	progress, err := tracker.Savings(r.Context(), store.Totals().Savings)
	if err != nil {
		return api.fail(r.Request, err)
	}
	return iz.Respond().Status(200).JSON(SavingsGoalResponse{Goal: progress.Goal, Progress: progress})
}

func (api *Api) GetSavingsGoalHandler(r *iz.Request) iz.Responder {
	user, store, err := api.readStore(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}
	return api.savingsGoal(r, user, store)
}

func (api *Api) UpdateSavingsGoalHandler(r *iz.Request) iz.Responder {
	user, store, err := api.readStore(r.Request)
	if err != nil {
		return api.fail(r.Request, err)
	}

	var req SavingsGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return api.fail(r.Request, invalidBody(err))
	}
	if err := budget.NewTracker(api.Budget, user).SetGoal(r.Context(), req.Goal); err != nil {
		return api.fail(r.Request, err)
	}
	return api.savingsGoal(r, user, store)
}

// --- EXPORT --- //

// ExportHandler streams the caller's transactions as an xlsx download.
func (api *Api) ExportHandler(w http.ResponseWriter, r *http.Request) {
	_, store, err := api.readStore(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+export.FileName)
	if err := export.WriteWorkbook(w, store.Transactions()); err != nil {
		traceID := contextutil.TraceIDFromContext(r.Context())
		logging.Logger.Errorf("[TraceID=%s] | failed to write export workbook | Error: %v", traceID, err)
	}
}

// writeError is fail for handlers that write to the ResponseWriter directly.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromError(err)
	if status >= 500 {
		traceID := contextutil.TraceIDFromContext(r.Context())
		logging.Logger.Errorf("[TraceID=%s] | %s %s failed | Error: %v", traceID, r.Method, r.URL.Path, err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody(err))
}
