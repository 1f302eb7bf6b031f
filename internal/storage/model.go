package storage

import (
	"fmt"
	"time"

	"github.com/hamdibenjarrar/DinarWise/internal/auth"
	"github.com/hamdibenjarrar/DinarWise/internal/budget"
	"github.com/hamdibenjarrar/DinarWise/internal/finance"
	"github.com/shopspring/decimal"
)

// Row types scan amounts and timestamps as text so that MySQL and SQLite
// values go through the same parsing.

type dbSession struct {
	ID        string
	Token     string
	CreatedAt string
	ExpireAt  string
	UserID    string
}

func (s dbSession) toSession() (auth.Session, error) {
	createdAt, err := parseDBTime(s.CreatedAt)
	if err != nil {
		return auth.Session{}, err
	}
	expireAt, err := parseDBTime(s.ExpireAt)
	if err != nil {
		return auth.Session{}, err
	}
	return auth.Session{ID: s.ID, Token: s.Token, CreatedAt: createdAt, ExpireAt: expireAt, UserID: s.UserID}, nil
}

type dbUser struct {
	ID             string
	Name           string
	Email          string
	PasswordHashed string
	CreatedAt      string
}

func (u dbUser) toUser() (auth.User, error) {
	createdAt, err := parseDBTime(u.CreatedAt)
	if err != nil {
		return auth.User{}, err
	}
	return auth.User{ID: u.ID, Name: u.Name, Email: u.Email, PasswordHashed: u.PasswordHashed, CreatedAt: createdAt}, nil
}

type dbTransaction struct {
	ID          string
	UserID      string
	Type        string
	Amount      string
	Description string
	Category    string
	Date        string
	CreatedAt   string
}

func (t dbTransaction) toTransaction() (finance.Transaction, error) {
	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return finance.Transaction{}, fmt.Errorf("invalid amount %q: %w", t.Amount, err)
	}
	date, err := parseDBTime(t.Date)
	if err != nil {
		return finance.Transaction{}, err
	}
	createdAt, err := parseDBTime(t.CreatedAt)
	if err != nil {
		return finance.Transaction{}, err
	}
	return finance.Transaction{
		ID:          t.ID,
		UserID:      t.UserID,
		Type:        finance.Type(t.Type),
		Amount:      amount,
		Description: t.Description,
		Category:    t.Category,
		Date:        date,
		CreatedAt:   createdAt,
	}, nil
}

type dbBudgetCategory struct {
	ID     string
	UserID string
	Name   string
	Amount string
	Color  string
}

func (c dbBudgetCategory) toCategory() (budget.Category, error) {
	amount, err := decimal.NewFromString(c.Amount)
	if err != nil {
		return budget.Category{}, fmt.Errorf("invalid amount %q: %w", c.Amount, err)
	}
	return budget.Category{ID: c.ID, UserID: c.UserID, Name: c.Name, Amount: amount, Color: c.Color}, nil
}

var dbTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func parseDBTime(s string) (time.Time, error) {
	for _, layout := range dbTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time value %q", s)
}
