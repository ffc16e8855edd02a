package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-insights/internal/analytics"
	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/report"
)

func (r *Registry) addTransaction(ctx context.Context, args Args) (string, error) {
	fields := make(map[string]string, 7)
	for _, name := range []string{"user_id", "date", "description", "amount", "transaction_type", "category", "account_name"} {
		v, err := args.String(name)
		if err != nil {
			return "", err
		}
		fields[name] = v
	}

	tx, err := domain.NewTransaction(
		fields["user_id"],
		fields["date"],
		fields["description"],
		fields["amount"],
		fields["transaction_type"],
		fields["category"],
		fields["account_name"],
	)
	if err != nil {
		return "Could not add transaction: " + err.Error() + ".", nil
	}

	id, err := r.svc.AddTransaction(ctx, tx)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			return "Could not add transaction: " + vErr.Error() + ".", nil
		}
		return "", fmt.Errorf("could not store the transaction for %s", tx.UserID)
	}

	return fmt.Sprintf("Transaction %d added for %s: %s %s on %s (%s).",
		id, tx.UserID, tx.Type, tx.Amount.StringFixed(2), tx.Date.Format(domain.DateFormat), categoryLabel(tx.Category)), nil
}

func (r *Registry) spendingSummary(ctx context.Context, args Args) (string, error) {
	userID, err := args.String("user_id")
	if err != nil {
		return "", err
	}

	summary, err := r.svc.Summary(ctx, userID)
	if errors.Is(err, analytics.ErrNoData) {
		return noDataMessage(userID), nil
	}
	if err != nil {
		return "", loadError(userID)
	}

	return fmt.Sprintf("### Financial summary for %s\n\n%s", userID, report.SummaryText(summary)), nil
}

func (r *Registry) financialPersonality(ctx context.Context, args Args) (string, error) {
	userID, err := args.String("user_id")
	if err != nil {
		return "", err
	}

	p, err := r.svc.Personality(ctx, userID)
	switch {
	case errors.Is(err, analytics.ErrNoIncome):
		return fmt.Sprintf("Insufficient data to analyze the financial personality of %s: no income recorded.", userID), nil
	case errors.Is(err, analytics.ErrNoData):
		return fmt.Sprintf("Insufficient data to analyze the financial personality of %s: no transactions recorded.", userID), nil
	case err != nil:
		return "", loadError(userID)
	}

	return fmt.Sprintf("Financial personality for %s: %s (savings ratio %.1f%%, average transaction %.2f).",
		userID, p.Archetype, p.Features.SavingsRatio*100, p.Features.MeanAmount), nil
}

func (r *Registry) forecastNextMonth(ctx context.Context, args Args) (string, error) {
	userID, err := args.String("user_id")
	if err != nil {
		return "", err
	}

	f, err := r.svc.Forecast(ctx, userID)
	if errors.Is(err, analytics.ErrInsufficientHistory) {
		return fmt.Sprintf("Insufficient history to forecast for %s: at least two months of transactions are needed.", userID), nil
	}
	if errors.Is(err, analytics.ErrForecastOutOfRange) {
		return fmt.Sprintf("Cannot forecast for %s: monthly totals are too large to project.", userID), nil
	}
	if err != nil {
		return "", loadError(userID)
	}

	return fmt.Sprintf("Projected net cash flow for %s in %s: %s (trend %+.2f per month over %d months).",
		userID, f.Month.Format("January 2006"), f.Estimate.StringFixed(2), f.Slope, f.Points), nil
}

func (r *Registry) riskAlert(ctx context.Context, args Args) (string, error) {
	userID, err := args.String("user_id")
	if err != nil {
		return "", err
	}

	risk, err := r.svc.Risk(ctx, userID)
	if err != nil {
		return "", loadError(userID)
	}

	threshold := analytics.RiskThreshold * 100
	switch risk.Status {
	case analytics.HighRisk:
		return fmt.Sprintf("HIGH RISK: %s is saving %.1f%% of income, below the %.0f%% threshold.", userID, risk.Ratio*100, threshold), nil
	case analytics.Nominal:
		return fmt.Sprintf("Nominal: %s is saving %.1f%% of income, at or above the %.0f%% threshold.", userID, risk.Ratio*100, threshold), nil
	}
	return fmt.Sprintf("No data: cannot evaluate risk for %s without recorded transactions and income.", userID), nil
}

func (r *Registry) recentTransactions(ctx context.Context, args Args) (string, error) {
	userID, err := args.String("user_id")
	if err != nil {
		return "", err
	}
	limit, err := args.Int("limit", 0)
	if err != nil {
		return "", err
	}

	txs, err := r.svc.Recent(ctx, userID, limit)
	if errors.Is(err, analytics.ErrNoData) {
		return noDataMessage(userID), nil
	}
	if err != nil {
		return "", loadError(userID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### Recent transactions for %s\n\n", userID)
	report.TransactionTable(&b, txs)
	return b.String(), nil
}

func noDataMessage(userID string) string {
	return fmt.Sprintf("No transactions found for user %s.", userID)
}

func loadError(userID string) error {
	return fmt.Errorf("could not load transactions for %s, try again later", userID)
}

func categoryLabel(c string) string {
	if c == "" {
		return "uncategorized"
	}
	return c
}
