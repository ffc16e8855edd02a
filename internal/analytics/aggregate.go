package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-insights/internal/domain"
)

// CategoryTotal is the direction-agnostic sum of amounts for one category.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
}

// Summary is the per-call aggregate over one user's transactions.
type Summary struct {
	TotalIncome      decimal.Decimal
	TotalExpenses    decimal.Decimal
	NetSavings       decimal.Decimal
	Categories       []CategoryTotal // sorted by Total descending
	TransactionCount int
}

// HasIncome reports whether the savings ratio is defined.
func (s Summary) HasIncome() bool {
	return s.TotalIncome.IsPositive()
}

// Ratio returns net savings divided by total income, or ErrNoIncome when
// there is no income to divide by.
func (s Summary) Ratio() (float64, error) {
	if !s.HasIncome() {
		return 0, ErrNoIncome
	}
	r, _ := s.NetSavings.DivRound(s.TotalIncome, 16).Float64()
	return r, nil
}

// Summarize computes income, expenses, net savings and the category
// breakdown. It returns ErrNoData for an empty input.
func Summarize(txs []domain.Transaction) (Summary, error) {
	if len(txs) == 0 {
		return Summary{}, ErrNoData
	}

	s := Summary{
		TotalIncome:      decimal.Zero,
		TotalExpenses:    decimal.Zero,
		TransactionCount: len(txs),
	}

	byCategory := make(map[string]*CategoryTotal)
	order := make([]string, 0)

	for _, tx := range txs {
		switch tx.Type {
		case domain.Credit:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case domain.Debit:
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
		}

		ct, ok := byCategory[tx.Category]
		if !ok {
			ct = &CategoryTotal{Category: tx.Category, Total: decimal.Zero}
			byCategory[tx.Category] = ct
			order = append(order, tx.Category)
		}
		ct.Total = ct.Total.Add(tx.Amount)
		ct.Count++
	}

	s.NetSavings = s.TotalIncome.Sub(s.TotalExpenses)

	s.Categories = make([]CategoryTotal, 0, len(order))
	for _, key := range order {
		s.Categories = append(s.Categories, *byCategory[key])
	}
	sort.SliceStable(s.Categories, func(i, j int) bool {
		if c := s.Categories[i].Total.Cmp(s.Categories[j].Total); c != 0 {
			return c > 0
		}
		return s.Categories[i].Category < s.Categories[j].Category
	})

	return s, nil
}
