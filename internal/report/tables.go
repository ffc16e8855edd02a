package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/dvloznov/finance-insights/internal/analytics"
	"github.com/dvloznov/finance-insights/internal/domain"
)

// newMarkdownTable returns a tablewriter configured to emit GitHub-flavored
// markdown: outer pipes, no top or bottom border, headers kept as given.
func newMarkdownTable(w io.Writer, headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	return table
}

// CategoryTable writes the category breakdown as a markdown table.
func CategoryTable(w io.Writer, categories []analytics.CategoryTotal) {
	table := newMarkdownTable(w, []string{"Category", "Total", "Transactions"})
	for _, c := range categories {
		name := c.Category
		if name == "" {
			name = "(uncategorized)"
		}
		table.Append([]string{name, c.Total.StringFixed(2), strconv.Itoa(c.Count)})
	}
	table.Render()
}

// TransactionTable writes txs as a markdown table, one row per transaction.
func TransactionTable(w io.Writer, txs []domain.Transaction) {
	table := newMarkdownTable(w, []string{"Date", "Description", "Amount", "Type", "Category", "Account"})
	for _, tx := range txs {
		table.Append([]string{
			tx.Date.Format(domain.DateFormat),
			tx.Description,
			tx.Amount.StringFixed(2),
			string(tx.Type),
			tx.Category,
			tx.AccountName,
		})
	}
	table.Render()
}

// SummaryText renders the income/expenses/savings report followed by the
// category breakdown.
func SummaryText(s analytics.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total income: %s\n", s.TotalIncome.StringFixed(2))
	fmt.Fprintf(&b, "Total expenses: %s\n", s.TotalExpenses.StringFixed(2))
	fmt.Fprintf(&b, "Net savings: %s\n", s.NetSavings.StringFixed(2))
	if ratio, err := s.Ratio(); err == nil {
		fmt.Fprintf(&b, "Savings ratio: %.1f%%\n", ratio*100)
	} else {
		b.WriteString("Savings ratio: n/a (no income recorded)\n")
	}
	fmt.Fprintf(&b, "Transactions: %d\n", s.TransactionCount)

	if len(s.Categories) > 0 {
		b.WriteString("\n")
		CategoryTable(&b, s.Categories)
	}
	return b.String()
}
