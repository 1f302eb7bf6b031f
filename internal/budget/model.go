package budget

import (
	"fmt"
	"regexp"
	"strings"

	appErrors "github.com/hamdibenjarrar/DinarWise/customErrors"
	"github.com/shopspring/decimal"
)

const (
	MAX_CATEGORY_NAME_LENGTH = 255
	DefaultColor             = "#4F46E5"
	OtherCategory            = "Other"
)

var (
	MAX_CATEGORY_AMOUNT_LIMIT = decimal.RequireFromString("999999999999999.99")
	DefaultSavingsGoal        = decimal.NewFromInt(10000)
	colorRegex                = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

type Category struct {
	ID     string          `json:"id"`
	UserID string          `json:"-"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Color  string          `json:"color"`
}

// CategoryRequest is the user-editable part of a budget category.
type CategoryRequest struct {
	Name   string
	Amount decimal.Decimal
	Color  string
}

func (r CategoryRequest) Validate() (CategoryRequest, error) {
	r.Name = strings.Join(strings.Fields(r.Name), " ")
	r.Color = strings.TrimSpace(r.Color)

	if r.Name == "" {
		return r, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Category cannot be empty!",
		}
	}
	if len(r.Name) > MAX_CATEGORY_NAME_LENGTH {
		return r, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Category name so long, maximum length is %d", MAX_CATEGORY_NAME_LENGTH),
		}
	}
	if !r.Amount.IsPositive() {
		return r, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Budget amount must be greater than zero!",
		}
	}
	if r.Amount.GreaterThan(MAX_CATEGORY_AMOUNT_LIMIT) {
		return r, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Budget amount is too large, maximum amount is %s", MAX_CATEGORY_AMOUNT_LIMIT.String()),
		}
	}
	if r.Color == "" {
		r.Color = DefaultColor
	}
	if !colorRegex.MatchString(r.Color) {
		return r, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("invalid color '%s', expected format #RRGGBB", r.Color),
		}
	}
	return r, nil
}

type Status string

const (
	OnTrack    Status = "on_track"
	NearLimit  Status = "near_limit"
	OverBudget Status = "over_budget"
)

type CategoryReport struct {
	Category
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Percent   decimal.Decimal `json:"percent"`
	Status    Status          `json:"status"`
}

type Report struct {
	Month       string           `json:"month"`
	Categories  []CategoryReport `json:"categories"`
	Other       decimal.Decimal  `json:"other"`
	TotalBudget decimal.Decimal  `json:"totalBudget"`
	TotalSpent  decimal.Decimal  `json:"totalSpent"`
	Remaining   decimal.Decimal  `json:"remaining"`
	Percent     decimal.Decimal  `json:"percent"`
	Status      Status           `json:"status"`
}

type Progress struct {
	Current        decimal.Decimal `json:"current"`
	Goal           decimal.Decimal `json:"goal"`
	Ratio          decimal.Decimal `json:"ratio"`
	Percent        decimal.Decimal `json:"percent"`
	DisplayPercent decimal.Decimal `json:"displayPercent"`
	Remaining      decimal.Decimal `json:"remaining"`
}
