package analytics

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData means the user has no transactions at all.
	ErrNoData = errors.New("no transaction data")

	// ErrNoIncome means a ratio was requested but total income is zero.
	// It matches ErrNoData with errors.Is.
	ErrNoIncome = fmt.Errorf("%w: no income recorded", ErrNoData)

	// ErrInsufficientHistory means the forecaster has fewer than two
	// monthly data points.
	ErrInsufficientHistory = errors.New("insufficient history for forecast")

	// ErrForecastOutOfRange means the projection is not a finite number.
	ErrForecastOutOfRange = errors.New("forecast is out of numeric range")
)
