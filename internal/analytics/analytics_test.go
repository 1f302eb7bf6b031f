package analytics

import (
	"testing"
	"time"

	"github.com/hamdibenjarrar/DinarWise/internal/finance"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday
var now = time.Date(2025, time.March, 12, 15, 30, 0, 0, time.UTC)

func tx(typ finance.Type, amount int64, category string, date time.Time) finance.Transaction {
	return finance.Transaction{
		ID:       category + date.String(),
		Type:     typ,
		Amount:   decimal.NewFromInt(amount),
		Category: category,
		Date:     date,
	}
}

func at(month time.Month, d, hour int) time.Time {
	return time.Date(2025, month, d, hour, 0, 0, 0, time.UTC)
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		input   string
		want    RangeKind
		wantErr bool
	}{
		{input: "", want: Month},
		{input: "week", want: Week},
		{input: " YEAR ", want: Year},
		{input: "all", want: All},
		{input: "decade", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRange(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveWindow(t *testing.T) {
	tests := []struct {
		kind        RangeKind
		wantStart   time.Time
		wantEndDay  time.Time
		wantBuckets int
		granularity Granularity
	}{
		{kind: Week, wantStart: at(time.March, 10, 0), wantEndDay: at(time.March, 16, 0), wantBuckets: 7, granularity: Daily},
		{kind: Month, wantStart: at(time.March, 1, 0), wantEndDay: at(time.March, 31, 0), wantBuckets: 31, granularity: Daily},
		{kind: Year, wantStart: at(time.January, 1, 0), wantEndDay: at(time.December, 31, 0), wantBuckets: 12, granularity: Monthly},
		{kind: All, wantStart: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), wantEndDay: at(time.March, 31, 0), wantBuckets: 13, granularity: Monthly},
		{kind: "unknown", wantStart: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), wantEndDay: at(time.March, 31, 0), wantBuckets: 13, granularity: Monthly},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			w := ResolveWindow(tt.kind, now)
			assert.True(t, w.Start.Equal(tt.wantStart), "start %s", w.Start)
			assert.True(t, startOfDay(w.End).Equal(tt.wantEndDay), "end %s", w.End)
			assert.Equal(t, tt.granularity, w.Granularity)
			assert.Len(t, w.Buckets(), tt.wantBuckets)
			assert.Len(t, BucketSeries(nil, w), tt.wantBuckets)
		})
	}
}

func TestWeekStartsOnMondayForSunday(t *testing.T) {
	sunday := at(time.March, 16, 22)
	w := ResolveWindow(Week, sunday)
	assert.True(t, w.Start.Equal(at(time.March, 10, 0)))
	assert.True(t, w.Contains(sunday))
}

func TestContainsIgnoresTimeOfDay(t *testing.T) {
	w := ResolveWindow(Month, now)
	assert.True(t, w.Contains(at(time.March, 1, 0)))
	assert.True(t, w.Contains(time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2025, time.February, 28, 23, 59, 59, 0, time.UTC)))
	assert.False(t, w.Contains(at(time.April, 1, 0)))
}

func TestBucketSeriesZeroFills(t *testing.T) {
	txs := []finance.Transaction{
		tx(finance.Income, 2500, "Salary", at(time.March, 1, 9)),
		tx(finance.Expense, 40, "Food", at(time.March, 3, 12)),
		tx(finance.Expense, 60, "Food", at(time.March, 3, 19)),
		tx(finance.Savings, 300, "Savings", at(time.March, 31, 23)),
		tx(finance.Expense, 999, "Food", at(time.April, 1, 0)),
	}

	series := BucketSeries(txs, ResolveWindow(Month, now))
	require.Len(t, series, 31)

	assert.Equal(t, "Mar 1", series[0].Label)
	assert.True(t, series[0].Income.Equal(decimal.NewFromInt(2500)))
	assert.True(t, series[1].Income.IsZero())
	assert.True(t, series[1].Expenses.IsZero())
	assert.Equal(t, "Mar 3", series[2].Label)
	assert.True(t, series[2].Expenses.Equal(decimal.NewFromInt(100)))
	assert.True(t, series[30].Savings.Equal(decimal.NewFromInt(300)))

	total := decimal.Zero
	for _, p := range series {
		total = total.Add(p.Expenses)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(100)), "out-of-window expense must not be counted")
}

func TestBucketSeriesMonthlyLabels(t *testing.T) {
	txs := []finance.Transaction{
		tx(finance.Expense, 10, "Food", time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)),
		tx(finance.Expense, 5, "Food", time.Date(2024, time.February, 28, 0, 0, 0, 0, time.UTC)),
	}

	series := BucketSeries(txs, ResolveWindow(All, now))
	require.Len(t, series, 13)
	assert.Equal(t, "Mar 2024", series[0].Label)
	assert.Equal(t, "Mar 2025", series[12].Label)
	assert.True(t, series[0].Expenses.Equal(decimal.NewFromInt(10)))
}

func TestCategoryBreakdown(t *testing.T) {
	txs := []finance.Transaction{
		tx(finance.Expense, 50, "Transport", at(time.March, 1, 0)),
		tx(finance.Expense, 200, "Food", at(time.March, 2, 0)),
		tx(finance.Income, 900, "Salary", at(time.March, 2, 0)),
		tx(finance.Expense, 30, "Transport", at(time.March, 3, 0)),
		tx(finance.Expense, 50, "Food", at(time.March, 4, 0)),
		tx(finance.Expense, 80, "Fun", at(time.March, 5, 0)),
	}

	got := CategoryBreakdown(txs, finance.Expense)
	require.Len(t, got, 3)
	assert.Equal(t, "Food", got[0].Category)
	assert.True(t, got[0].Total.Equal(decimal.NewFromInt(250)))
	// Transport and Fun tie at 80; Transport was seen first
	assert.Equal(t, "Transport", got[1].Category)
	assert.True(t, got[1].Total.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, "Fun", got[2].Category)

	assert.Empty(t, CategoryBreakdown(nil, finance.Expense))
	assert.Len(t, CategoryBreakdown(txs, finance.Income), 1)
}

func TestCategoryBreakdownFoodAndTransport(t *testing.T) {
	txs := []finance.Transaction{
		tx(finance.Expense, 200, "Food", at(time.March, 10, 0)),
		tx(finance.Expense, 80, "Transport", at(time.March, 10, 0)),
		tx(finance.Expense, 50, "Food", at(time.March, 11, 0)),
	}

	got := CategoryBreakdown(txs, finance.Expense)
	require.Len(t, got, 2)
	assert.Equal(t, "Food", got[0].Category)
	assert.True(t, got[0].Total.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, "Transport", got[1].Category)
	assert.True(t, got[1].Total.Equal(decimal.NewFromInt(80)))
}

func TestSummaryStats(t *testing.T) {
	t.Run("Empty list", func(t *testing.T) {
		s := SummaryStats(nil, ResolveWindow(Week, now))
		assert.True(t, s.TotalExpenses.IsZero())
		assert.True(t, s.AvgDailyExpense.IsZero())
		assert.Equal(t, "", s.TopCategory)
	})

	t.Run("Week window", func(t *testing.T) {
		txs := []finance.Transaction{
			tx(finance.Income, 700, "Salary", at(time.March, 10, 8)),
			tx(finance.Expense, 35, "Food", at(time.March, 11, 8)),
			tx(finance.Expense, 35, "Transport", at(time.March, 12, 8)),
			tx(finance.Savings, 100, "Savings", at(time.March, 13, 8)),
			tx(finance.Expense, 500, "Housing", at(time.March, 9, 8)),
		}
		s := SummaryStats(txs, ResolveWindow(Week, now))
		assert.True(t, s.TotalIncome.Equal(decimal.NewFromInt(700)))
		assert.True(t, s.TotalExpenses.Equal(decimal.NewFromInt(70)))
		assert.True(t, s.TotalSavings.Equal(decimal.NewFromInt(100)))
		assert.True(t, s.AvgDailyExpense.Equal(decimal.NewFromInt(10)))
		assert.Equal(t, "Food", s.TopCategory)
		assert.True(t, s.TopCategoryAmount.Equal(decimal.NewFromInt(35)))
	})

	t.Run("Month uses calendar days", func(t *testing.T) {
		txs := []finance.Transaction{tx(finance.Expense, 310, "Food", at(time.March, 2, 0))}
		s := SummaryStats(txs, ResolveWindow(Month, now))
		assert.True(t, s.AvgDailyExpense.Equal(decimal.NewFromInt(10)))
	})

	t.Run("Year uses 365 days", func(t *testing.T) {
		txs := []finance.Transaction{tx(finance.Expense, 730, "Food", at(time.January, 2, 0))}
		s := SummaryStats(txs, ResolveWindow(Year, now))
		assert.True(t, s.AvgDailyExpense.Equal(decimal.NewFromInt(2)))
	})
}

func TestExpenseSeries(t *testing.T) {
	txs := []finance.Transaction{
		tx(finance.Expense, 12, "Food", at(time.March, 10, 9)),
		tx(finance.Income, 100, "Salary", at(time.March, 10, 9)),
	}
	series := ExpenseSeries(txs, ResolveWindow(Week, now))
	require.Len(t, series, 7)
	assert.Equal(t, "Mon", series[0].Name)
	assert.Equal(t, "Mar 10", series[0].Date)
	assert.True(t, series[0].Amount.Equal(decimal.NewFromInt(12)))

	monthly := ExpenseSeries(txs, ResolveWindow(Year, now))
	require.Len(t, monthly, 12)
	assert.Equal(t, "Mar", monthly[2].Name)
	assert.Equal(t, "Mar 2025", monthly[2].Date)
}

func TestMonthlyTrend(t *testing.T) {
	txs := []finance.Transaction{
		tx(finance.Income, 1000, "Salary", at(time.January, 31, 23)),
		tx(finance.Expense, 200, "Food", at(time.March, 1, 0)),
		tx(finance.Expense, 999, "Food", time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)),
	}

	trend := MonthlyTrend(txs, now, 6)
	require.Len(t, trend, 6)
	assert.Equal(t, "Oct 2024", trend[0].Label)
	assert.Equal(t, "Mar 2025", trend[5].Label)
	assert.True(t, trend[3].Income.Equal(decimal.NewFromInt(1000)))
	assert.True(t, trend[5].Expenses.Equal(decimal.NewFromInt(200)))
	assert.Nil(t, MonthlyTrend(txs, now, 0))
}

func TestDayViews(t *testing.T) {
	txs := []finance.Transaction{
		tx(finance.Expense, 20, "Food", at(time.March, 5, 8)),
		tx(finance.Income, 100, "Gift", at(time.March, 5, 20)),
		tx(finance.Expense, 7, "Food", at(time.March, 6, 1)),
	}

	assert.Len(t, DayTransactions(txs, at(time.March, 5, 12), ""), 2)
	assert.Len(t, DayTransactions(txs, at(time.March, 5, 12), finance.Expense), 1)

	totals := SumDay(txs, at(time.March, 5, 0))
	assert.True(t, totals.Income.Equal(decimal.NewFromInt(100)))
	assert.True(t, totals.Expenses.Equal(decimal.NewFromInt(20)))
	assert.True(t, totals.Savings.IsZero())

	groups := GroupByDay(txs, 2)
	require.Len(t, groups, 2)
	assert.Equal(t, "2025-03-06", groups[0].Day)
	assert.Equal(t, "2025-03-05", groups[1].Day)
	assert.Len(t, groups[1].Transactions, 1)
}
