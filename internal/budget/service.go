package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	appErrors "github.com/hamdibenjarrar/DinarWise/customErrors"
	"github.com/hamdibenjarrar/DinarWise/internal/auth"
	"github.com/hamdibenjarrar/DinarWise/internal/finance"
	"github.com/shopspring/decimal"
)

const (
	settingSeeded      = "budget_seeded"
	settingSavingsGoal = "savings_goal"
)

var DefaultCategories = []CategoryRequest{
	{Name: "Housing", Amount: decimal.NewFromInt(1000), Color: "#4F46E5"},
	{Name: "Food", Amount: decimal.NewFromInt(500), Color: "#10B981"},
	{Name: "Transportation", Amount: decimal.NewFromInt(300), Color: "#F59E0B"},
	{Name: "Utilities", Amount: decimal.NewFromInt(200), Color: "#3B82F6"},
	{Name: "Entertainment", Amount: decimal.NewFromInt(150), Color: "#EF4444"},
}

// Storage keeps budget categories and per-user settings. SaveBudgetCategory
// and UpdateBudgetCategory return a CONFLICT error when the canonical name is
// already taken by another category of the same user.
type Storage interface {
	ListBudgetCategories(ctx context.Context, userID string) ([]Category, error)
	SaveBudgetCategory(ctx context.Context, category Category) error
	UpdateBudgetCategory(ctx context.Context, category Category) (bool, error)
	DeleteBudgetCategory(ctx context.Context, userID string, categoryID string) (bool, error)
	GetSetting(ctx context.Context, userID string, key string) (string, bool, error)
	SetSetting(ctx context.Context, userID string, key string, value string) error
}

// Tracker manages the budget categories and savings goal of one user.
type Tracker struct {
	storage Storage
	user    auth.Identity
}

func NewTracker(s Storage, user auth.Identity) *Tracker {
	return &Tracker{storage: s, user: user}
}

// Categories lists the user's budget, seeding the defaults on first use.
func (t *Tracker) Categories(ctx context.Context) ([]Category, error) {
	if err := t.requireUser(); err != nil {
		return nil, err
	}

	_, seeded, err := t.storage.GetSetting(ctx, t.user.ID, settingSeeded)
	if err != nil {
		return nil, fmt.Errorf("failed to read budget settings: %w", err)
	}
	if !seeded {
		for _, def := range DefaultCategories {
			if _, err := t.AddCategory(ctx, def); err != nil && !isConflict(err) {
				return nil, fmt.Errorf("failed to seed default budget: %w", err)
			}
		}
		if err := t.storage.SetSetting(ctx, t.user.ID, settingSeeded, "true"); err != nil {
			return nil, fmt.Errorf("failed to save budget settings: %w", err)
		}
	}

	categories, err := t.storage.ListBudgetCategories(ctx, t.user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get budget categories: %w", err)
	}
	return categories, nil
}

func (t *Tracker) AddCategory(ctx context.Context, req CategoryRequest) (Category, error) {
	if err := t.requireUser(); err != nil {
		return Category{}, err
	}
	req, err := req.Validate()
	if err != nil {
		return Category{}, err
	}

	category := Category{
		ID:     uuid.New().String(),
		UserID: t.user.ID,
		Name:   req.Name,
		Amount: req.Amount,
		Color:  req.Color,
	}
	if err := t.storage.SaveBudgetCategory(ctx, category); err != nil {
		return Category{}, err
	}
	return category, nil
}

func (t *Tracker) UpdateCategory(ctx context.Context, categoryID string, req CategoryRequest) (Category, error) {
	if err := t.requireUser(); err != nil {
		return Category{}, err
	}
	req, err := req.Validate()
	if err != nil {
		return Category{}, err
	}

	category := Category{
		ID:     categoryID,
		UserID: t.user.ID,
		Name:   req.Name,
		Amount: req.Amount,
		Color:  req.Color,
	}
	found, err := t.storage.UpdateBudgetCategory(ctx, category)
	if err != nil {
		return Category{}, err
	}
	if !found {
		return Category{}, categoryNotFound(categoryID)
	}
	return category, nil
}

func (t *Tracker) RemoveCategory(ctx context.Context, categoryID string) error {
	if err := t.requireUser(); err != nil {
		return err
	}
	found, err := t.storage.DeleteBudgetCategory(ctx, t.user.ID, categoryID)
	if err != nil {
		return err
	}
	if !found {
		return categoryNotFound(categoryID)
	}
	return nil
}

// Report evaluates the budget against txs for the month containing now.
func (t *Tracker) Report(ctx context.Context, txs []finance.Transaction, now time.Time) (Report, error) {
	categories, err := t.Categories(ctx)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(txs, categories, now), nil
}

// Goal returns the savings goal, DefaultSavingsGoal when none was set.
func (t *Tracker) Goal(ctx context.Context) (decimal.Decimal, error) {
	if err := t.requireUser(); err != nil {
		return decimal.Zero, err
	}
	raw, ok, err := t.storage.GetSetting(ctx, t.user.ID, settingSavingsGoal)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read savings goal: %w", err)
	}
	if !ok {
		return DefaultSavingsGoal, nil
	}
	goal, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "stored savings goal is not a number",
			Err:     err,
		}
	}
	return goal, nil
}

func (t *Tracker) SetGoal(ctx context.Context, amount decimal.Decimal) error {
	if err := t.requireUser(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Savings goal must be greater than zero!",
		}
	}
	if amount.GreaterThan(MAX_CATEGORY_AMOUNT_LIMIT) {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Savings goal is too large, maximum amount is %s", MAX_CATEGORY_AMOUNT_LIMIT.String()),
		}
	}
	return t.storage.SetSetting(ctx, t.user.ID, settingSavingsGoal, amount.String())
}

// Savings measures the given savings total against the user's goal.
func (t *Tracker) Savings(ctx context.Context, current decimal.Decimal) (Progress, error) {
	goal, err := t.Goal(ctx)
	if err != nil {
		return Progress{}, err
	}
	return SavingsProgress(current, goal), nil
}

func (t *Tracker) requireUser() error {
	if t.user.ID == "" {
		return appErrors.ErrorResponse{Code: appErrors.ErrAuth, Message: "You must be signed in to manage your budget."}
	}
	return nil
}

func categoryNotFound(id string) error {
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrNotFound,
		Message: fmt.Sprintf("budget category '%s' not found", id),
	}
}

func isConflict(err error) bool {
	return appErrors.CodeOf(err) == appErrors.ErrConflict
}
