package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-insights/internal/domain"
)

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestMonthlySeries(t *testing.T) {
	txs := []domain.Transaction{
		tx(domain.Credit, "1000", "2024-03-02", ""),
		tx(domain.Debit, "200", "2024-01-15", ""),
		tx(domain.Credit, "500", "2024-01-01", ""),
		tx(domain.Debit, "100", "2024-03-31", ""),
	}
	series := MonthlySeries(txs)

	want := []MonthlyPoint{
		{MonthStart: month(2024, time.January), Net: decimal.NewFromInt(300)},
		{MonthStart: month(2024, time.March), Net: decimal.NewFromInt(900)},
	}
	if len(series) != len(want) {
		t.Fatalf("got %d points, want %d (empty months must be absent)", len(series), len(want))
	}
	for i := range want {
		if !series[i].MonthStart.Equal(want[i].MonthStart) || !series[i].Net.Equal(want[i].Net) {
			t.Errorf("point %d = %+v, want %+v", i, series[i], want[i])
		}
	}
}

func TestForecastSeries_InsufficientHistory(t *testing.T) {
	tests := []struct {
		name   string
		series []MonthlyPoint
	}{
		{name: "empty", series: nil},
		{name: "single month", series: []MonthlyPoint{{MonthStart: month(2024, time.May), Net: decimal.NewFromInt(10)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ForecastSeries(tt.series); !errors.Is(err, ErrInsufficientHistory) {
				t.Errorf("ForecastSeries() error = %v, want ErrInsufficientHistory", err)
			}
			if _, err := ForecastNextPeriod(tt.series); !errors.Is(err, ErrInsufficientHistory) {
				t.Errorf("ForecastNextPeriod() error = %v, want ErrInsufficientHistory", err)
			}
		})
	}
}

func TestForecastSeries_OutOfRange(t *testing.T) {
	huge := decimal.RequireFromString("1e400")
	series := []MonthlyPoint{
		{MonthStart: month(2024, time.January), Net: huge},
		{MonthStart: month(2024, time.February), Net: huge},
	}
	if _, err := ForecastSeries(series); !errors.Is(err, ErrForecastOutOfRange) {
		t.Errorf("ForecastSeries() error = %v, want ErrForecastOutOfRange", err)
	}
	if _, err := ForecastNextPeriod(series); !errors.Is(err, ErrForecastOutOfRange) {
		t.Errorf("ForecastNextPeriod() error = %v, want ErrForecastOutOfRange", err)
	}
}

func TestForecastSeries(t *testing.T) {
	tests := []struct {
		name      string
		series    []MonthlyPoint
		wantMonth time.Time
		want      string
	}{
		{
			name: "two points extend the line",
			series: []MonthlyPoint{
				{MonthStart: month(2024, time.January), Net: decimal.NewFromInt(100)},
				{MonthStart: month(2024, time.February), Net: decimal.NewFromInt(200)},
			},
			wantMonth: month(2024, time.March),
			want:      "300",
		},
		{
			name: "gaps are not zero filled",
			series: []MonthlyPoint{
				{MonthStart: month(2024, time.January), Net: decimal.NewFromInt(100)},
				{MonthStart: month(2024, time.April), Net: decimal.NewFromInt(400)},
			},
			wantMonth: month(2024, time.May),
			want:      "500",
		},
		{
			name: "flat history",
			series: []MonthlyPoint{
				{MonthStart: month(2023, time.November), Net: decimal.NewFromInt(-50)},
				{MonthStart: month(2023, time.December), Net: decimal.NewFromInt(-50)},
				{MonthStart: month(2024, time.January), Net: decimal.NewFromInt(-50)},
			},
			wantMonth: month(2024, time.February),
			want:      "-50",
		},
		{
			name: "rounded to cents",
			series: []MonthlyPoint{
				{MonthStart: month(2024, time.January), Net: decimal.RequireFromString("10")},
				{MonthStart: month(2024, time.February), Net: decimal.RequireFromString("10.333")},
			},
			wantMonth: month(2024, time.March),
			want:      "10.67",
		},
		{
			name: "unsorted input",
			series: []MonthlyPoint{
				{MonthStart: month(2024, time.February), Net: decimal.NewFromInt(200)},
				{MonthStart: month(2024, time.January), Net: decimal.NewFromInt(100)},
			},
			wantMonth: month(2024, time.March),
			want:      "300",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ForecastSeries(tt.series)
			if err != nil {
				t.Fatalf("ForecastSeries() error = %v", err)
			}
			if !f.Month.Equal(tt.wantMonth) {
				t.Errorf("Month = %v, want %v", f.Month, tt.wantMonth)
			}
			if !f.Estimate.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Estimate = %s, want %s", f.Estimate, tt.want)
			}
			if f.Seasonal {
				t.Error("Seasonal = true for short history")
			}
			if f.Points != len(tt.series) {
				t.Errorf("Points = %d, want %d", f.Points, len(tt.series))
			}
		})
	}
}

func TestForecastSeries_SeasonalAdjustment(t *testing.T) {
	// Two years ending in November with a December spike each year.
	var series []MonthlyPoint
	start := month(2021, time.December)
	for i := 0; i < 24; i++ {
		m := start.AddDate(0, i, 0)
		net := decimal.NewFromInt(100)
		if m.Month() == time.December {
			net = decimal.NewFromInt(1300)
		}
		series = append(series, MonthlyPoint{MonthStart: m, Net: net})
	}

	f, err := ForecastSeries(series)
	if err != nil {
		t.Fatalf("ForecastSeries() error = %v", err)
	}
	if !f.Month.Equal(month(2023, time.December)) {
		t.Fatalf("Month = %v, want December 2023", f.Month)
	}
	if !f.Seasonal {
		t.Fatal("Seasonal = false, want true")
	}
	if f.Estimate.LessThan(decimal.NewFromInt(1000)) {
		t.Errorf("Estimate = %s, want the December spike reflected", f.Estimate)
	}

	// The trend alone would stay well below the spike.
	plain, err := ForecastSeries(series[:12])
	if err != nil {
		t.Fatalf("ForecastSeries() error = %v", err)
	}
	if plain.Seasonal {
		t.Error("Seasonal = true for one year of history")
	}
}

func TestForecastNextPeriod_FromTransactions(t *testing.T) {
	txs := []domain.Transaction{
		tx(domain.Credit, "1000", "2024-01-01", ""),
		tx(domain.Debit, "600", "2024-01-10", ""),
		tx(domain.Credit, "1000", "2024-02-01", ""),
		tx(domain.Debit, "500", "2024-02-10", ""),
	}
	got, err := ForecastNextPeriod(MonthlySeries(txs))
	if err != nil {
		t.Fatalf("ForecastNextPeriod() error = %v", err)
	}
	if !got.Equal(decimal.NewFromInt(600)) {
		t.Errorf("ForecastNextPeriod() = %s, want 600", got)
	}
}
