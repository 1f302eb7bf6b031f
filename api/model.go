package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	appErrors "github.com/hamdibenjarrar/DinarWise/customErrors"
	"github.com/hamdibenjarrar/DinarWise/internal/analytics"
	"github.com/hamdibenjarrar/DinarWise/internal/budget"
	"github.com/hamdibenjarrar/DinarWise/internal/finance"
	"github.com/shopspring/decimal"
)

// REQUESTS START:
type SaveUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TransactionRequest is the body of create and edit. Amount accepts a JSON
// number or string; Date accepts "2006-01-02" or RFC 3339 and may be empty.
type TransactionRequest struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
}

type BudgetCategoryRequest struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Color  string          `json:"color"`
}

type SavingsGoalRequest struct {
	Goal decimal.Decimal `json:"goal"`
}

// REQUESTS END:

// RESPONSES:

type TokenResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type MessageResponse struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Storage   string `json:"storage"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type TransactionsResponse struct {
	Transactions []finance.Transaction `json:"transactions"`
	Totals       finance.Totals        `json:"totals"`
	Recent       []analytics.DayGroup  `json:"recent"`
}

type TransactionCreatedResponse struct {
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
}

type ResetResponse struct {
	DeletedCount int64  `json:"deletedCount"`
	Message      string `json:"message"`
}

type AnalyticsResponse struct {
	Window           analytics.Window          `json:"window"`
	Series           []analytics.Point         `json:"series"`
	ExpenseSeries    []analytics.ExpensePoint  `json:"expenseSeries"`
	Categories       []analytics.CategoryTotal `json:"categories"`
	IncomeCategories []analytics.CategoryTotal `json:"incomeCategories"`
	Summary          analytics.Summary         `json:"summary"`
}

type TrendResponse struct {
	Months []analytics.Point `json:"months"`
}

type CalendarResponse struct {
	Date         string                `json:"date"`
	Transactions []finance.Transaction `json:"transactions"`
	Totals       analytics.DayTotals   `json:"totals"`
}

type BudgetResponse struct {
	Report budget.Report `json:"report"`
}

type SavingsGoalResponse struct {
	Goal     decimal.Decimal `json:"goal"`
	Progress budget.Progress `json:"progress"`
}

// RESPONSES END

var dateLayouts = []string{"2006-01-02", time.RFC3339, time.RFC3339Nano}

// parseDate accepts the date formats clients send; empty input yields the zero time.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, appErrors.ErrorResponse{
		Code:    appErrors.ErrInvalidInput,
		Message: fmt.Sprintf("invalid date '%s', expected YYYY-MM-DD", value),
	}
}

func (req TransactionRequest) toDraft() (finance.Draft, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return finance.Draft{}, err
	}
	return finance.Draft{
		Type:        finance.Type(strings.ToLower(strings.TrimSpace(req.Type))),
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		Date:        date,
	}, nil
}

// errorBody turns err into the JSON body clients receive. Internal details stay in the logs.
func errorBody(err error) appErrors.ErrorResponse {
	var appErr appErrors.ErrorResponse
	if !errors.As(err, &appErr) {
		return appErrors.ErrorResponse{
			Code:     appErrors.ErrInternal,
			Message:  "Something went wrong, try again later.",
			Severity: appErrors.SeverityError,
		}
	}
	message := appErr.Message
	if appErr.Code == appErrors.ErrInternal && message == "" {
		message = "Something went wrong, try again later."
	}
	return appErrors.ErrorResponse{
		Code:     appErr.Code,
		Message:  message,
		Severity: appErrors.SeverityOf(appErr.Code),
		Timeout:  appErr.Timeout,
	}
}

// httpStatusFromError maps the outermost error code in err's chain.
func httpStatusFromError(err error) int {
	switch appErrors.CodeOf(err) {
	case appErrors.ErrNotFound:
		return 404 // not found
	case appErrors.ErrInvalidInput:
		return 400 // bad request
	case appErrors.ErrAuth:
		return 401 // unauthorized
	case appErrors.ErrAccessDenied:
		return 403 // access denied
	case appErrors.ErrConflict:
		return 409 // conflict
	case appErrors.ErrPersistence:
		var appErr appErrors.ErrorResponse
		if errors.As(err, &appErr) && appErr.Timeout {
			return 504 // persistence timed out
		}
		return 503 // persistence unavailable
	default:
		return 500 //internal error
	}
}
