package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-insights/internal/domain"
)

// seasonalMinMonths is the history span needed before a seasonal
// adjustment is applied on top of the trend.
const seasonalMinMonths = 24

// MonthlyPoint is the net cash flow of one calendar month.
type MonthlyPoint struct {
	MonthStart time.Time
	Net        decimal.Decimal
}

// MonthlySeries groups transactions by calendar month and sums credits
// minus debits. Months without transactions are absent, not zero.
func MonthlySeries(txs []domain.Transaction) []MonthlyPoint {
	byMonth := make(map[time.Time]decimal.Decimal)
	for _, tx := range txs {
		key := monthStart(tx.Date)
		net, ok := byMonth[key]
		if !ok {
			net = decimal.Zero
		}
		byMonth[key] = net.Add(tx.Signed())
	}

	series := make([]MonthlyPoint, 0, len(byMonth))
	for month, net := range byMonth {
		series = append(series, MonthlyPoint{MonthStart: month, Net: net})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].MonthStart.Before(series[j].MonthStart)
	})
	return series
}

// Forecast is a one-period-ahead projection.
type Forecast struct {
	Month     time.Time       // first day of the projected month
	Estimate  decimal.Decimal // rounded to 2 decimal places
	Slope     float64         // trend change per month
	Points    int             // monthly points used
	Seasonal  bool            // seasonal adjustment applied
	LastMonth time.Time
}

// ForecastNextPeriod projects the net cash flow of the month after the last
// point in series and returns the point estimate.
func ForecastNextPeriod(series []MonthlyPoint) (decimal.Decimal, error) {
	f, err := ForecastSeries(series)
	if err != nil {
		return decimal.Zero, err
	}
	return f.Estimate, nil
}

// ForecastSeries fits a least-squares trend over gap-aware month offsets
// and projects it one month past the last point. With at least two years of
// history the mean residual of the target calendar month is added.
func ForecastSeries(series []MonthlyPoint) (Forecast, error) {
	if len(series) < 2 {
		return Forecast{}, ErrInsufficientHistory
	}

	points := make([]MonthlyPoint, len(series))
	copy(points, series)
	sort.Slice(points, func(i, j int) bool {
		return points[i].MonthStart.Before(points[j].MonthStart)
	})

	first := points[0].MonthStart
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(monthsBetween(first, p.MonthStart))
		ys[i] = p.Net.InexactFloat64()
	}

	slope, intercept := linearRegression(xs, ys)

	last := points[len(points)-1].MonthStart
	target := last.AddDate(0, 1, 0)
	targetX := float64(monthsBetween(first, target))
	estimate := slope*targetX + intercept

	seasonal := false
	if xs[len(xs)-1]+1 >= seasonalMinMonths {
		var residualSum float64
		var n int
		for i, p := range points {
			if p.MonthStart.Month() != target.Month() {
				continue
			}
			residualSum += ys[i] - (slope*xs[i] + intercept)
			n++
		}
		if n > 0 {
			estimate += residualSum / float64(n)
			seasonal = true
		}
	}

	if math.IsNaN(estimate) || math.IsInf(estimate, 0) {
		return Forecast{}, ErrForecastOutOfRange
	}

	return Forecast{
		Month:     target,
		Estimate:  decimal.NewFromFloat(estimate).Round(2),
		Slope:     slope,
		Points:    len(points),
		Seasonal:  seasonal,
		LastMonth: last,
	}, nil
}

// linearRegression returns the ordinary least squares slope and intercept.
// A degenerate x spread falls back to a flat line through the mean.
func linearRegression(xs, ys []float64) (slope, intercept float64) {
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumX2 float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumX2 += xs[i] * xs[i]
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}
