package report

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/dvloznov/finance-insights/internal/analytics"
)

// ErrEmptySeries is returned when there is nothing to plot.
var ErrEmptySeries = errors.New("report: empty monthly series")

const (
	chartHeight   = 400
	chartMinWidth = 800
	barWidth      = 40
	barSpacing    = 20
)

var (
	positiveColor = drawing.ColorFromHex("5cb85c")
	negativeColor = drawing.ColorFromHex("d9534f")
)

// MonthlyChart renders the monthly net cash flow as a PNG bar chart, one bar
// per month present in the series. Negative months are drawn below zero.
func MonthlyChart(w io.Writer, title string, series []analytics.MonthlyPoint) error {
	if len(series) == 0 {
		return ErrEmptySeries
	}

	bars := make([]chart.Value, 0, len(series))
	lo, hi := 0.0, 0.0
	for _, p := range series {
		v := p.Net.InexactFloat64()
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)

		color := positiveColor
		if v < 0 {
			color = negativeColor
		}
		bars = append(bars, chart.Value{
			Label: p.MonthStart.Format("2006-01"),
			Value: v,
			Style: chart.Style{FillColor: color, StrokeColor: color},
		})
	}
	if lo == hi {
		hi = lo + 1
	}
	pad := (hi - lo) * 0.1

	width := len(bars)*(barWidth+barSpacing) + 200
	if width < chartMinWidth {
		width = chartMinWidth
	}

	barChart := chart.BarChart{
		Title: title,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:        width,
		Height:       chartHeight,
		BarWidth:     barWidth,
		BarSpacing:   barSpacing,
		UseBaseValue: true,
		BaseValue:    0,
		Bars:         bars,
	}
	barChart.YAxis.Range = &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
	barChart.YAxis.ValueFormatter = func(v interface{}) string {
		if vf, isFloat := v.(float64); isFloat {
			return fmt.Sprintf("%.2f", vf)
		}
		return ""
	}

	if err := barChart.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("MonthlyChart: rendering chart: %w", err)
	}
	return nil
}
