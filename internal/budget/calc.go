package budget

import (
	"strings"
	"time"

	"github.com/hamdibenjarrar/DinarWise/internal/finance"
	"github.com/shopspring/decimal"
)

var (
	hundred   = decimal.NewFromInt(100)
	nearLimit = decimal.RequireFromString("0.8")
)

// CanonicalName is the form budget names are compared in: trimmed, inner
// whitespace collapsed, case folded.
func CanonicalName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// SpendingByCategory sums the expenses dated within [start, end] (whole days)
// per configured category. Every configured name is present in the result.
// Expenses matching no category are reported under OtherCategory, merged into
// a configured category of that name if there is one.
func SpendingByCategory(txs []finance.Transaction, cats []Category, start, end time.Time) map[string]decimal.Decimal {
	spending := make(map[string]decimal.Decimal, len(cats)+1)
	byCanonical := make(map[string]string, len(cats))
	for _, c := range cats {
		spending[c.Name] = decimal.Zero
		if _, ok := byCanonical[CanonicalName(c.Name)]; !ok {
			byCanonical[CanonicalName(c.Name)] = c.Name
		}
	}

	otherKey := OtherCategory
	if name, ok := byCanonical[CanonicalName(OtherCategory)]; ok {
		otherKey = name
	}

	first, last := dayOf(start), dayOf(end)
	for _, tx := range txs {
		if tx.Type != finance.Expense {
			continue
		}
		d := dayOf(tx.Date.In(start.Location()))
		if d.Before(first) || d.After(last) {
			continue
		}
		key, ok := byCanonical[CanonicalName(tx.Category)]
		if !ok {
			key = otherKey
		}
		spending[key] = spending[key].Add(tx.Amount)
	}
	return spending
}

// EvaluateStatus compares spent against budgeted without rounding: over budget
// above 100%, near limit above 80%. A non-positive budget is always on track.
func EvaluateStatus(spent, budgeted decimal.Decimal) (Status, decimal.Decimal) {
	if !budgeted.IsPositive() {
		return OnTrack, decimal.Zero
	}

	percent := spent.Mul(hundred).Div(budgeted)
	switch {
	case spent.GreaterThan(budgeted):
		return OverBudget, percent
	case spent.GreaterThan(budgeted.Mul(nearLimit)):
		return NearLimit, percent
	default:
		return OnTrack, percent
	}
}

// SavingsProgress measures current savings against goal. Remaining goes
// negative once the goal is exceeded; DisplayPercent stops at 100.
func SavingsProgress(current, goal decimal.Decimal) Progress {
	p := Progress{
		Current:   current,
		Goal:      goal,
		Remaining: goal.Sub(current),
	}
	if !goal.IsPositive() {
		return p
	}
	p.Ratio = current.Div(goal)
	p.Percent = p.Ratio.Mul(hundred)
	p.DisplayPercent = decimal.Min(p.Percent, hundred)
	return p
}

// BuildReport evaluates every category against the spending of the month that
// contains now.
func BuildReport(txs []finance.Transaction, cats []Category, now time.Time) Report {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, -1)
	spending := SpendingByCategory(txs, cats, start, end)

	report := Report{
		Month:      start.Format("January 2006"),
		Categories: make([]CategoryReport, 0, len(cats)),
	}
	counted := make(map[string]bool, len(cats))
	for _, c := range cats {
		spent := spending[c.Name]
		counted[c.Name] = true

		status, percent := EvaluateStatus(spent, c.Amount)
		report.Categories = append(report.Categories, CategoryReport{
			Category:  c,
			Spent:     spent,
			Remaining: c.Amount.Sub(spent),
			Percent:   percent,
			Status:    status,
		})
		report.TotalBudget = report.TotalBudget.Add(c.Amount)
	}

	for name, amount := range spending {
		report.TotalSpent = report.TotalSpent.Add(amount)
		if _, configured := counted[name]; !configured {
			report.Other = report.Other.Add(amount)
		}
	}

	report.Remaining = report.TotalBudget.Sub(report.TotalSpent)
	report.Status, report.Percent = EvaluateStatus(report.TotalSpent, report.TotalBudget)
	return report
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
