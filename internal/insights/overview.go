package insights

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-insights/internal/analytics"
	"github.com/dvloznov/finance-insights/internal/domain"
)

// CategoryView is one row of the category breakdown.
type CategoryView struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// SummaryView is the JSON form of analytics.Summary.
type SummaryView struct {
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	NetSavings       decimal.Decimal `json:"net_savings"`
	SavingsRatio     *float64        `json:"savings_ratio"` // nil when there is no income
	TransactionCount int             `json:"transaction_count"`
	Categories       []CategoryView  `json:"categories"`
}

// PersonalityView is the JSON form of Personality.
type PersonalityView struct {
	Archetype    analytics.Archetype `json:"archetype"`
	SavingsRatio float64             `json:"savings_ratio"`
	MeanAmount   float64             `json:"mean_amount"`
	AmountStdDev float64             `json:"amount_stddev"`
}

// ForecastView is the JSON form of analytics.Forecast.
type ForecastView struct {
	Month    string          `json:"month"`
	Estimate decimal.Decimal `json:"estimate"`
	Slope    float64         `json:"slope"`
	Points   int             `json:"points"`
	Seasonal bool            `json:"seasonal"`
}

// Overview combines every analytic stage for one user. Stages without
// enough data are left nil and explained in Notes.
type Overview struct {
	UserID      string               `json:"user_id"`
	Summary     *SummaryView         `json:"summary,omitempty"`
	Personality *PersonalityView     `json:"personality,omitempty"`
	Forecast    *ForecastView        `json:"forecast,omitempty"`
	Risk        analytics.RiskStatus `json:"risk"`
	Notes       []string             `json:"notes,omitempty"`
}

// Overview runs all stages over a single snapshot. Only store failures are
// returned as errors.
func (s *Service) Overview(ctx context.Context, userID string) (Overview, error) {
	txs, err := s.snapshot(ctx, userID)
	if err != nil {
		return Overview{}, fmt.Errorf("Overview: %w", err)
	}
	return s.overview(userID, txs), nil
}

func (s *Service) overview(userID string, txs []domain.Transaction) Overview {
	out := Overview{UserID: userID}

	summary, sumErr := analytics.Summarize(txs)
	out.Risk = analytics.EvaluateRisk(summary, sumErr)
	if sumErr != nil {
		out.Notes = append(out.Notes, "no transactions recorded")
		return out
	}
	out.Summary = newSummaryView(summary)

	fv, err := analytics.DeriveFeatures(txs, summary)
	switch {
	case errors.Is(err, analytics.ErrNoIncome):
		out.Notes = append(out.Notes, "personality needs recorded income")
	case err == nil:
		out.Personality = &PersonalityView{
			Archetype:    s.classifier.Classify(fv),
			SavingsRatio: fv.SavingsRatio,
			MeanAmount:   fv.MeanAmount,
			AmountStdDev: fv.AmountStdDev,
		}
	}

	f, err := analytics.ForecastSeries(analytics.MonthlySeries(txs))
	if err != nil {
		out.Notes = append(out.Notes, "forecast needs at least two months of history")
	} else {
		out.Forecast = &ForecastView{
			Month:    f.Month.Format("2006-01"),
			Estimate: f.Estimate,
			Slope:    f.Slope,
			Points:   f.Points,
			Seasonal: f.Seasonal,
		}
	}
	return out
}

func newSummaryView(s analytics.Summary) *SummaryView {
	v := &SummaryView{
		TotalIncome:      s.TotalIncome,
		TotalExpenses:    s.TotalExpenses,
		NetSavings:       s.NetSavings,
		TransactionCount: s.TransactionCount,
		Categories:       make([]CategoryView, 0, len(s.Categories)),
	}
	if ratio, err := s.Ratio(); err == nil {
		v.SavingsRatio = &ratio
	}
	for _, c := range s.Categories {
		v.Categories = append(v.Categories, CategoryView{Category: c.Category, Total: c.Total, Count: c.Count})
	}
	return v
}
