package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dvloznov/finance-insights/internal/insights"
	"github.com/dvloznov/finance-insights/internal/logger"
)

// Tool names.
const (
	AddTransaction              = "add_transaction"
	GetSpendingSummary          = "get_spending_summary"
	AnalyzeFinancialPersonality = "analyze_financial_personality"
	ForecastNextMonth           = "forecast_next_month"
	RiskAlert                   = "risk_alert"
	RecentTransactions          = "recent_transactions"
)

// ErrUnknownTool is returned by Call for a name that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Param describes one tool argument.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Descriptor describes a tool to callers.
type Descriptor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

type handlerFunc func(ctx context.Context, args Args) (string, error)

type tool struct {
	desc    Descriptor
	handler handlerFunc
}

// Registry holds the named tools and dispatches calls to them.
type Registry struct {
	svc   *insights.Service
	tools map[string]tool
}

// NewRegistry registers every tool backed by svc.
func NewRegistry(svc *insights.Service) *Registry {
	r := &Registry{svc: svc, tools: make(map[string]tool)}

	userParam := Param{Name: "user_id", Type: "string", Required: true, Description: "user whose transactions are analyzed"}

	r.register(Descriptor{
		Name:        AddTransaction,
		Description: "Record one transaction for a user.",
		Params: []Param{
			userParam,
			{Name: "date", Type: "string", Required: true, Description: "ISO-8601 date, e.g. 2024-01-31"},
			{Name: "description", Type: "string"},
			{Name: "amount", Type: "number", Required: true, Description: "non-negative magnitude"},
			{Name: "transaction_type", Type: "string", Required: true, Description: "credit or debit"},
			{Name: "category", Type: "string"},
			{Name: "account_name", Type: "string"},
		},
	}, r.addTransaction)

	r.register(Descriptor{
		Name:        GetSpendingSummary,
		Description: "Income, expenses, net savings and spending by category.",
		Params:      []Param{userParam},
	}, r.spendingSummary)

	r.register(Descriptor{
		Name:        AnalyzeFinancialPersonality,
		Description: "Classify the user's financial behavior into an archetype.",
		Params:      []Param{userParam},
	}, r.financialPersonality)

	r.register(Descriptor{
		Name:        ForecastNextMonth,
		Description: "Project next month's net cash flow from the monthly trend.",
		Params:      []Param{userParam},
	}, r.forecastNextMonth)

	r.register(Descriptor{
		Name:        RiskAlert,
		Description: "Flag users whose savings ratio is below 5% of income.",
		Params:      []Param{userParam},
	}, r.riskAlert)

	r.register(Descriptor{
		Name:        RecentTransactions,
		Description: "Show the user's most recent transactions as a table.",
		Params: []Param{
			userParam,
			{Name: "limit", Type: "integer", Description: fmt.Sprintf("rows to show, default %d", insights.DefaultRecentLimit)},
		},
	}, r.recentTransactions)

	return r
}

func (r *Registry) register(desc Descriptor, h handlerFunc) {
	r.tools[desc.Name] = tool{desc: desc, handler: h}
}

// List returns the tool descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call runs the named tool. Failures inside a tool come back as a
// descriptive message with a nil error; the error is only set for an
// unknown tool name or malformed arguments.
func (r *Registry) Call(ctx context.Context, name string, raw map[string]any) (out string, err error) {
	t, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q.", name), fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	log := logger.FromContext(ctx).With().Str("tool", name).Logger()
	ctx = logger.WithContext(ctx, log)

	args := Args(raw)
	for _, p := range t.desc.Params {
		if p.Required && !args.has(p.Name) {
			err := &ArgumentError{Name: p.Name, Reason: "is required"}
			return "Error: " + err.Error() + ".", err
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("tool panicked")
			out, err = fmt.Sprintf("Error: %s failed unexpectedly.", name), nil
		}
	}()

	out, err = t.handler(ctx, args)
	if err != nil {
		var argErr *ArgumentError
		if errors.As(err, &argErr) {
			return "Error: " + argErr.Error() + ".", err
		}
		log.Error().Err(err).Msg("tool failed")
		return "Error: " + err.Error(), nil
	}
	log.Debug().Msg("tool call complete")
	return out, nil
}
