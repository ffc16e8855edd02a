package insights

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-insights/internal/analytics"
	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/logger"
)

// DefaultRecentLimit is the number of rows Recent returns when no limit is
// given.
const DefaultRecentLimit = 10

// Ledger is the part of the transaction store the service needs.
type Ledger interface {
	Insert(ctx context.Context, tx *domain.Transaction) (int64, error)
	QueryByUser(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// Service runs the analytics pipeline over one user's snapshot per call.
// It holds no per-user state, so concurrent calls need no coordination.
type Service struct {
	ledger     Ledger
	classifier *analytics.Classifier
}

// NewService creates a Service. A nil classifier selects the process-wide
// default.
func NewService(ledger Ledger, classifier *analytics.Classifier) *Service {
	if classifier == nil {
		classifier = analytics.DefaultClassifier()
	}
	return &Service{ledger: ledger, classifier: classifier}
}

// Personality is the classifier outcome for a user.
type Personality struct {
	Archetype analytics.Archetype
	Features  analytics.FeatureVector
}

// Risk is the risk evaluation for a user. Ratio is only meaningful when
// Status is not NoData.
type Risk struct {
	Status analytics.RiskStatus
	Ratio  float64
}

// AddTransaction validates and stores tx.
func (s *Service) AddTransaction(ctx context.Context, tx *domain.Transaction) (int64, error) {
	log := logger.FromContext(ctx)

	id, err := s.ledger.Insert(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("AddTransaction: %w", err)
	}

	log.Debug().Str("user_id", tx.UserID).Int64("transaction_id", id).Msg("transaction stored")
	return id, nil
}

// snapshot fetches the user's full transaction set.
func (s *Service) snapshot(ctx context.Context, userID string) ([]domain.Transaction, error) {
	txs, err := s.ledger.QueryByUser(ctx, userID)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("user_id", userID).Msg("failed to load transactions")
		return nil, fmt.Errorf("loading transactions for %s: %w", userID, err)
	}
	return txs, nil
}

// Summary aggregates the user's transactions. It returns ErrNoData when the
// user has none.
func (s *Service) Summary(ctx context.Context, userID string) (analytics.Summary, error) {
	txs, err := s.snapshot(ctx, userID)
	if err != nil {
		return analytics.Summary{}, fmt.Errorf("Summary: %w", err)
	}
	return analytics.Summarize(txs)
}

// Personality classifies the user's financial behavior. It returns
// ErrNoData or ErrNoIncome when there is nothing to classify.
func (s *Service) Personality(ctx context.Context, userID string) (Personality, error) {
	txs, err := s.snapshot(ctx, userID)
	if err != nil {
		return Personality{}, fmt.Errorf("Personality: %w", err)
	}
	summary, err := analytics.Summarize(txs)
	if err != nil {
		return Personality{}, err
	}
	fv, err := analytics.DeriveFeatures(txs, summary)
	if err != nil {
		return Personality{}, err
	}

	archetype := s.classifier.Classify(fv)
	log := logger.FromContext(ctx)
	log.Debug().
		Str("user_id", userID).
		Float64("savings_ratio", fv.SavingsRatio).
		Str("archetype", string(archetype)).
		Msg("classified user")

	return Personality{Archetype: archetype, Features: fv}, nil
}

// Forecast projects next month's net cash flow. It returns
// ErrInsufficientHistory for fewer than two months of transactions.
func (s *Service) Forecast(ctx context.Context, userID string) (analytics.Forecast, error) {
	txs, err := s.snapshot(ctx, userID)
	if err != nil {
		return analytics.Forecast{}, fmt.Errorf("Forecast: %w", err)
	}
	return analytics.ForecastSeries(analytics.MonthlySeries(txs))
}

// Series returns the user's monthly net cash-flow series.
func (s *Service) Series(ctx context.Context, userID string) ([]analytics.MonthlyPoint, error) {
	txs, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Series: %w", err)
	}
	if len(txs) == 0 {
		return nil, analytics.ErrNoData
	}
	return analytics.MonthlySeries(txs), nil
}

// Risk evaluates the savings-ratio rule. Missing data is reported as the
// NoData status; only store failures are returned as errors.
func (s *Service) Risk(ctx context.Context, userID string) (Risk, error) {
	txs, err := s.snapshot(ctx, userID)
	if err != nil {
		return Risk{}, fmt.Errorf("Risk: %w", err)
	}
	summary, sumErr := analytics.Summarize(txs)
	status := analytics.EvaluateRisk(summary, sumErr)

	r := Risk{Status: status}
	if status != analytics.NoData {
		r.Ratio, _ = summary.Ratio()
	}
	if status == analytics.HighRisk {
		log := logger.FromContext(ctx)
		log.Info().Str("user_id", userID).Float64("savings_ratio", r.Ratio).Msg("high risk flagged")
	}
	return r, nil
}

// Recent returns the last limit transactions in insertion order. A limit
// of zero or less selects DefaultRecentLimit.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	txs, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Recent: %w", err)
	}
	if len(txs) == 0 {
		return nil, analytics.ErrNoData
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if len(txs) > limit {
		txs = txs[len(txs)-limit:]
	}
	return txs, nil
}

// Transactions returns the user's full snapshot.
func (s *Service) Transactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	txs, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Transactions: %w", err)
	}
	return txs, nil
}
