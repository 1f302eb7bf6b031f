package finance

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/hamdibenjarrar/DinarWise/customErrors"
	"github.com/shopspring/decimal"
)

const (
	MaxDescriptionLength = 1000
	MaxCategoryLength    = 255
)

type Type string

const (
	Income  Type = "income"
	Expense Type = "expense"
	Savings Type = "savings"
)

func (t Type) Valid() bool {
	switch t {
	case Income, Expense, Savings:
		return true
	}
	return false
}

type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Type        Type            `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Draft holds the mutable fields of a transaction, as submitted for add or edit.
type Draft struct {
	Type        Type
	Amount      decimal.Decimal
	Description string
	Category    string
	Date        time.Time
}

func (d Draft) Validate() error {
	if !d.Type.Valid() {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("invalid transaction type '%s', must be income, expense or savings", d.Type),
		}
	}
	if !d.Amount.IsPositive() {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Amount must be greater than zero!",
		}
	}
	if strings.TrimSpace(d.Description) == "" {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Description cannot be empty!",
		}
	}
	if len(d.Description) > MaxDescriptionLength {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Description so long, maximum length is %d", MaxDescriptionLength),
		}
	}
	if strings.TrimSpace(d.Category) == "" {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Category cannot be empty!",
		}
	}
	if len(d.Category) > MaxCategoryLength {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Category so long, maximum length is %d", MaxCategoryLength),
		}
	}
	return nil
}

func (d Draft) normalized(now time.Time) Draft {
	d.Description = strings.TrimSpace(d.Description)
	d.Category = strings.TrimSpace(d.Category)
	if d.Date.IsZero() {
		d.Date = now
	}
	return d
}

type Totals struct {
	Income   decimal.Decimal `json:"totalIncome"`
	Expenses decimal.Decimal `json:"totalExpenses"`
	Savings  decimal.Decimal `json:"totalSavings"`
	Balance  decimal.Decimal `json:"balance"`
}

// Apply adds tx to the totals and returns the result.
func (t Totals) Apply(tx Transaction) Totals {
	switch tx.Type {
	case Income:
		t.Income = t.Income.Add(tx.Amount)
	case Expense:
		t.Expenses = t.Expenses.Add(tx.Amount)
	case Savings:
		t.Savings = t.Savings.Add(tx.Amount)
	}
	t.Balance = t.Income.Sub(t.Expenses).Sub(t.Savings)
	return t
}

// Fold computes totals over txs from scratch.
func Fold(txs []Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		t = t.Apply(tx)
	}
	t.Balance = t.Income.Sub(t.Expenses).Sub(t.Savings)
	return t
}

// Equal compares totals by value.
func (t Totals) Equal(o Totals) bool {
	return t.Income.Equal(o.Income) &&
		t.Expenses.Equal(o.Expenses) &&
		t.Savings.Equal(o.Savings) &&
		t.Balance.Equal(o.Balance)
}
