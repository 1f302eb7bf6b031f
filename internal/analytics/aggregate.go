package analytics

import (
	"sort"
	"time"

	"github.com/hamdibenjarrar/DinarWise/internal/finance"
	"github.com/shopspring/decimal"
)

const (
	dailyLabel   = "Jan 2"
	monthlyLabel = "Jan 2006"
)

type Point struct {
	Label    string          `json:"label"`
	Start    time.Time       `json:"start"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Savings  decimal.Decimal `json:"savings"`
}

func (p *Point) add(tx finance.Transaction) {
	switch tx.Type {
	case finance.Income:
		p.Income = p.Income.Add(tx.Amount)
	case finance.Expense:
		p.Expenses = p.Expenses.Add(tx.Amount)
	case finance.Savings:
		p.Savings = p.Savings.Add(tx.Amount)
	}
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

type Summary struct {
	TotalIncome       decimal.Decimal `json:"totalIncome"`
	TotalExpenses     decimal.Decimal `json:"totalExpenses"`
	TotalSavings      decimal.Decimal `json:"totalSavings"`
	AvgDailyExpense   decimal.Decimal `json:"avgDailyExpense"`
	TopCategory       string          `json:"topCategory"`
	TopCategoryAmount decimal.Decimal `json:"topCategoryAmount"`
}

// Filter keeps the transactions that fall inside w, preserving order.
func Filter(txs []finance.Transaction, w Window) []finance.Transaction {
	var out []finance.Transaction
	for _, tx := range txs {
		if w.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out
}

// BucketSeries returns one zero-filled point per bucket of w, oldest first.
func BucketSeries(txs []finance.Transaction, w Window) []Point {
	buckets := w.Buckets()
	layout := dailyLabel
	if w.Granularity == Monthly {
		layout = monthlyLabel
	}

	points := make([]Point, len(buckets))
	index := make(map[int64]int, len(buckets))
	for i, start := range buckets {
		points[i] = Point{Label: start.Format(layout), Start: start}
		index[start.Unix()] = i
	}

	for _, tx := range txs {
		if !w.Contains(tx.Date) {
			continue
		}
		if i, ok := index[w.bucketKey(tx.Date).Unix()]; ok {
			points[i].add(tx)
		}
	}
	return points
}

// CategoryBreakdown sums amounts of type typ per category, largest first.
// Categories with equal totals keep the order they were first seen in.
func CategoryBreakdown(txs []finance.Transaction, typ finance.Type) []CategoryTotal {
	var out []CategoryTotal
	index := make(map[string]int)
	for _, tx := range txs {
		if tx.Type != typ {
			continue
		}
		i, ok := index[tx.Category]
		if !ok {
			i = len(out)
			index[tx.Category] = i
			out = append(out, CategoryTotal{Category: tx.Category})
		}
		out[i].Total = out[i].Total.Add(tx.Amount)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total.GreaterThan(out[j].Total)
	})
	return out
}

// SummaryStats totals the transactions inside w. The daily average divides by
// NominalDays rather than by the span of the window.
func SummaryStats(txs []finance.Transaction, w Window) Summary {
	var s Summary
	var order []string
	perCategory := make(map[string]decimal.Decimal)

	for _, tx := range txs {
		if !w.Contains(tx.Date) {
			continue
		}
		switch tx.Type {
		case finance.Income:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case finance.Expense:
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
			if _, ok := perCategory[tx.Category]; !ok {
				order = append(order, tx.Category)
			}
			perCategory[tx.Category] = perCategory[tx.Category].Add(tx.Amount)
		case finance.Savings:
			s.TotalSavings = s.TotalSavings.Add(tx.Amount)
		}
	}

	if s.TotalExpenses.IsPositive() {
		s.AvgDailyExpense = s.TotalExpenses.Div(decimal.NewFromInt(int64(NominalDays(w))))
	}

	for _, category := range order {
		if amount := perCategory[category]; amount.GreaterThan(s.TopCategoryAmount) {
			s.TopCategory = category
			s.TopCategoryAmount = amount
		}
	}
	return s
}
