package analytics

import (
	"math"

	"github.com/dvloznov/finance-insights/internal/domain"
)

// FeatureVector is the classifier input.
type FeatureVector struct {
	SavingsRatio float64
	MeanAmount   float64
	AmountStdDev float64 // sample standard deviation, 0 for fewer than two transactions
}

// DeriveFeatures turns a summary and its transactions into a FeatureVector.
// It propagates ErrNoData and ErrNoIncome from the summary.
func DeriveFeatures(txs []domain.Transaction, summary Summary) (FeatureVector, error) {
	if len(txs) == 0 || summary.TransactionCount == 0 {
		return FeatureVector{}, ErrNoData
	}
	ratio, err := summary.Ratio()
	if err != nil {
		return FeatureVector{}, err
	}

	amounts := make([]float64, len(txs))
	for i, tx := range txs {
		amounts[i] = tx.Amount.InexactFloat64()
	}
	mean, stddev := meanStdDev(amounts)

	return FeatureVector{
		SavingsRatio: ratio,
		MeanAmount:   mean,
		AmountStdDev: stddev,
	}, nil
}

// meanStdDev returns the mean and sample standard deviation of xs.
func meanStdDev(xs []float64) (mean, stddev float64) {
	n := len(xs)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}

	var varianceSum float64
	for _, x := range xs {
		diff := x - mean
		varianceSum += diff * diff
	}
	return mean, math.Sqrt(varianceSum / float64(n-1))
}
