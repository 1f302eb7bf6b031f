package analytics

import (
	"sort"
	"time"

	"github.com/hamdibenjarrar/DinarWise/internal/finance"
	"github.com/shopspring/decimal"
)

// ExpensePoint is one bar of the expense-only chart.
type ExpensePoint struct {
	Name   string          `json:"name"`
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// ExpenseSeries is BucketSeries restricted to expenses, with short and long labels.
func ExpenseSeries(txs []finance.Transaction, w Window) []ExpensePoint {
	nameLayout, dateLayout := "Mon", dailyLabel
	if w.Granularity == Monthly {
		nameLayout, dateLayout = "Jan", monthlyLabel
	}

	series := BucketSeries(txs, w)
	out := make([]ExpensePoint, len(series))
	for i, p := range series {
		out[i] = ExpensePoint{
			Name:   p.Start.Format(nameLayout),
			Date:   p.Start.Format(dateLayout),
			Amount: p.Expenses,
		}
	}
	return out
}

// MonthlyTrend returns n monthly points ending with the month of now.
func MonthlyTrend(txs []finance.Transaction, now time.Time, n int) []Point {
	if n <= 0 {
		return nil
	}
	end := startOfMonth(now)
	w := Window{
		Kind:        All,
		Start:       end.AddDate(0, -(n - 1), 0),
		End:         endOfDay(end.AddDate(0, 1, -1)),
		Granularity: Monthly,
	}
	return BucketSeries(txs, w)
}

type DayTotals struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Savings  decimal.Decimal `json:"savings"`
}

// DayTransactions returns the transactions dated on the calendar day of day.
// An empty typ matches every type.
func DayTransactions(txs []finance.Transaction, day time.Time, typ finance.Type) []finance.Transaction {
	w := dayWindow(day)
	var out []finance.Transaction
	for _, tx := range txs {
		if !w.Contains(tx.Date) {
			continue
		}
		if typ != "" && tx.Type != typ {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func SumDay(txs []finance.Transaction, day time.Time) DayTotals {
	var p Point
	for _, tx := range DayTransactions(txs, day, "") {
		p.add(tx)
	}
	return DayTotals{Income: p.Income, Expenses: p.Expenses, Savings: p.Savings}
}

type DayGroup struct {
	Day          string                `json:"day"`
	Transactions []finance.Transaction `json:"transactions"`
}

// GroupByDay takes the limit most recent transactions and groups them by
// calendar day (yyyy-mm-dd), newest day first. limit <= 0 means no limit.
func GroupByDay(txs []finance.Transaction, limit int) []DayGroup {
	sorted := make([]finance.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	var out []DayGroup
	index := make(map[string]int)
	for _, tx := range sorted {
		key := tx.Date.Format(time.DateOnly)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, DayGroup{Day: key})
		}
		out[i].Transactions = append(out[i].Transactions, tx)
	}
	return out
}

func dayWindow(day time.Time) Window {
	start := startOfDay(day)
	return Window{Start: start, End: endOfDay(start), Granularity: Daily}
}
