package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/infra/memory"
	"github.com/dvloznov/finance-insights/internal/insights"
)

type brokenLedger struct{}

func (brokenLedger) Insert(context.Context, *domain.Transaction) (int64, error) {
	return 0, errors.New("connection refused")
}

func (brokenLedger) QueryByUser(context.Context, string) ([]domain.Transaction, error) {
	return nil, errors.New("connection refused")
}

func newTestRegistry() *Registry {
	return NewRegistry(insights.NewService(memory.NewStore(), nil))
}

func mustCall(t *testing.T, r *Registry, name string, args map[string]any) string {
	t.Helper()
	out, err := r.Call(context.Background(), name, args)
	if err != nil {
		t.Fatalf("Call(%s) error = %v", name, err)
	}
	return out
}

func addTx(t *testing.T, r *Registry, userID, date string, amount any, typ, category string) {
	t.Helper()
	out := mustCall(t, r, AddTransaction, map[string]any{
		"user_id":          userID,
		"date":             date,
		"description":      "test",
		"amount":           amount,
		"transaction_type": typ,
		"category":         category,
		"account_name":     "Checking",
	})
	if !strings.HasPrefix(out, "Transaction ") {
		t.Fatalf("add_transaction = %q, want confirmation", out)
	}
}

func TestRegistry_List(t *testing.T) {
	r := newTestRegistry()
	got := r.List()

	want := []string{AddTransaction, AnalyzeFinancialPersonality, ForecastNextMonth, GetSpendingSummary, RecentTransactions, RiskAlert}
	if len(got) != len(want) {
		t.Fatalf("List() returned %d tools, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("tool %d = %s, want %s", i, got[i].Name, name)
		}
	}
}

func TestRegistry_NoDataMessages(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		tool string
		want string
	}{
		{GetSpendingSummary, "No transactions found"},
		{AnalyzeFinancialPersonality, "Insufficient data"},
		{ForecastNextMonth, "Insufficient history"},
		{RiskAlert, "No data"},
		{RecentTransactions, "No transactions found"},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			out := mustCall(t, r, tt.tool, map[string]any{"user_id": "nobody"})
			if !strings.Contains(out, tt.want) {
				t.Errorf("%s = %q, want it to contain %q", tt.tool, out, tt.want)
			}
		})
	}
}

func TestRegistry_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		income   float64
		expenses string
		wantRisk string
		wantSum  []string
	}{
		{
			name:     "healthy",
			income:   1000,
			expenses: "600",
			wantRisk: "Nominal",
			wantSum:  []string{"Total income: 1000.00", "Total expenses: 600.00", "Net savings: 400.00"},
		},
		{
			name:     "thin margin",
			income:   100,
			expenses: "98",
			wantRisk: "HIGH RISK",
			wantSum:  []string{"Net savings: 2.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry()
			addTx(t, r, "u1", "2024-01-01", tt.income, "Credit", "Paycheck")
			addTx(t, r, "u1", "2024-01-02", tt.expenses, "DEBIT", "Rent")

			summary := mustCall(t, r, GetSpendingSummary, map[string]any{"user_id": "u1"})
			for _, w := range tt.wantSum {
				if !strings.Contains(summary, w) {
					t.Errorf("summary missing %q:\n%s", w, summary)
				}
			}

			risk := mustCall(t, r, RiskAlert, map[string]any{"user_id": "u1"})
			if !strings.HasPrefix(risk, tt.wantRisk) {
				t.Errorf("risk_alert = %q, want prefix %q", risk, tt.wantRisk)
			}

			personality := mustCall(t, r, AnalyzeFinancialPersonality, map[string]any{"user_id": "u1"})
			if !strings.HasPrefix(personality, "Financial personality for u1: ") {
				t.Errorf("analyze_financial_personality = %q", personality)
			}
		})
	}
}

func TestRegistry_Forecast(t *testing.T) {
	r := newTestRegistry()
	addTx(t, r, "u1", "2024-01-01", "1000", "credit", "Paycheck")
	addTx(t, r, "u1", "2024-01-10", "600", "debit", "Rent")

	out := mustCall(t, r, ForecastNextMonth, map[string]any{"user_id": "u1"})
	if !strings.HasPrefix(out, "Insufficient history") {
		t.Errorf("forecast with one month = %q", out)
	}

	addTx(t, r, "u1", "2024-02-01", "1000", "credit", "Paycheck")
	addTx(t, r, "u1", "2024-02-10", "500", "debit", "Rent")

	out = mustCall(t, r, ForecastNextMonth, map[string]any{"user_id": "u1"})
	if !strings.Contains(out, "March 2024: 600.00") {
		t.Errorf("forecast_next_month = %q", out)
	}
}

func TestRegistry_RecentTransactions(t *testing.T) {
	r := newTestRegistry()
	addTx(t, r, "u1", "2024-01-01", "1", "debit", "A")
	addTx(t, r, "u1", "2024-01-02", "2", "debit", "B")
	addTx(t, r, "u1", "2024-01-03", "3", "debit", "C")

	out := mustCall(t, r, RecentTransactions, map[string]any{"user_id": "u1", "limit": float64(2)})
	if strings.Contains(out, "2024-01-01") {
		t.Errorf("recent_transactions with limit 2 includes the oldest row:\n%s", out)
	}
	if !strings.Contains(out, "2024-01-02") || !strings.Contains(out, "2024-01-03") {
		t.Errorf("recent_transactions missing rows:\n%s", out)
	}
}

func TestRegistry_AddTransactionValidation(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{
			name: "negative amount",
			args: map[string]any{"user_id": "u1", "date": "2024-01-01", "amount": -5.0, "transaction_type": "debit"},
			want: "invalid amount",
		},
		{
			name: "amount beyond float range",
			args: map[string]any{"user_id": "u1", "date": "2024-01-01", "amount": "1e400", "transaction_type": "credit"},
			want: "invalid amount",
		},
		{
			name: "bad type",
			args: map[string]any{"user_id": "u1", "date": "2024-01-01", "amount": "5", "transaction_type": "transfer"},
			want: "invalid transaction_type",
		},
		{
			name: "bad date",
			args: map[string]any{"user_id": "u1", "date": "soon", "amount": "5", "transaction_type": "debit"},
			want: "invalid date",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := mustCall(t, r, AddTransaction, tt.args)
			if !strings.HasPrefix(out, "Could not add transaction") || !strings.Contains(out, tt.want) {
				t.Errorf("add_transaction = %q, want rejection mentioning %q", out, tt.want)
			}
		})
	}
}

func TestRegistry_CallErrors(t *testing.T) {
	r := newTestRegistry()

	out, err := r.Call(context.Background(), "delete_everything", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("Call(unknown) error = %v, want ErrUnknownTool", err)
	}
	if !strings.Contains(out, "unknown tool") {
		t.Errorf("Call(unknown) = %q", out)
	}

	out, err = r.Call(context.Background(), RiskAlert, map[string]any{})
	var argErr *ArgumentError
	if !errors.As(err, &argErr) || argErr.Name != "user_id" {
		t.Errorf("Call(missing user_id) error = %v, want ArgumentError for user_id", err)
	}
	if out == "" {
		t.Error("Call(missing user_id) returned an empty message")
	}

	_, err = r.Call(context.Background(), RecentTransactions, map[string]any{"user_id": "u1", "limit": 2.5})
	if !errors.As(err, &argErr) || argErr.Name != "limit" {
		t.Errorf("Call(fractional limit) error = %v, want ArgumentError for limit", err)
	}
}

func TestRegistry_StoreFailureIsAMessage(t *testing.T) {
	r := NewRegistry(insights.NewService(brokenLedger{}, nil))

	for _, name := range []string{GetSpendingSummary, AnalyzeFinancialPersonality, ForecastNextMonth, RiskAlert, RecentTransactions} {
		out, err := r.Call(context.Background(), name, map[string]any{"user_id": "u1"})
		if err != nil {
			t.Errorf("Call(%s) error = %v, want a message", name, err)
		}
		if !strings.HasPrefix(out, "Error: could not load transactions") {
			t.Errorf("Call(%s) = %q", name, out)
		}
	}
}

func TestRegistry_ForecastOfLargeTotals(t *testing.T) {
	r := newTestRegistry()
	addTx(t, r, "whale", "2024-01-10", "1000000000000000", "credit", "Salary")
	addTx(t, r, "whale", "2024-02-10", "1000000000000000", "credit", "Salary")

	out := mustCall(t, r, ForecastNextMonth, map[string]any{"user_id": "whale"})
	if !strings.HasPrefix(out, "Projected net cash flow for whale in March 2024") {
		t.Errorf("forecast_next_month = %q", out)
	}
}

func TestRegistry_PanicIsAMessage(t *testing.T) {
	r := newTestRegistry()
	r.register(Descriptor{Name: "explode"}, func(context.Context, Args) (string, error) {
		panic("nil map write")
	})

	out, err := r.Call(context.Background(), "explode", nil)
	if err != nil {
		t.Errorf("Call(explode) error = %v, want a message", err)
	}
	if !strings.Contains(out, "explode failed unexpectedly") {
		t.Errorf("Call(explode) = %q", out)
	}
}

func TestArgs_String(t *testing.T) {
	args := Args{"s": "text", "f": 12.5, "i": 3, "whole": 1000.0, "bad": []int{1}}

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "s", want: "text"},
		{name: "f", want: "12.5"},
		{name: "i", want: "3"},
		{name: "whole", want: "1000"},
		{name: "missing", want: ""},
		{name: "bad", wantErr: true},
	}
	for _, tt := range tests {
		got, err := args.String(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("String(%s) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("String(%s) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
