// Package chart renders report series to PNG for Telegram photo messages.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"grana/internal/report"
)

// ErrEmptySeries means there are not enough points to draw anything useful.
var ErrEmptySeries = errors.New("empty series")

var (
	colorLine    = drawing.ColorFromHex("2563EB")
	colorFill    = drawing.ColorFromHex("2563EB").WithAlpha(40)
	colorExpense = drawing.ColorFromHex("EF4444")
	colorIncome  = drawing.ColorFromHex("22C55E")
	colorGrid    = drawing.ColorFromHex("E5E7EB")
)

type Renderer struct {
	width  int
	height int
}

func NewRenderer() *Renderer {
	return &Renderer{width: 1200, height: 500}
}

// DailyChart draws one kind's daily totals as a filled line. When the series
// is flagged compressed, values are plotted on a log1p axis so one outlier
// day does not flatten the rest; tick labels still show real amounts.
func (r *Renderer) DailyChart(s report.DailySeries) ([]byte, error) {
	if len(s.Days) < 2 {
		return nil, ErrEmptySeries
	}

	xs := make([]time.Time, len(s.Days))
	ys := make([]float64, len(s.Values))
	copy(xs, s.Days)
	for i, v := range s.Values {
		ys[i] = reais(v.Cents)
	}

	yFormatter := reaisFormatter
	if s.Scale == report.ScaleCompressed {
		for i := range ys {
			ys[i] = math.Log1p(ys[i])
		}
		yFormatter = func(v interface{}) string {
			f, ok := v.(float64)
			if !ok {
				return ""
			}
			return formatReais(math.Expm1(f))
		}
	}

	graph := chart.Chart{
		Width:  r.width,
		Height: r.height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("02/01"),
			GridMajorStyle: chart.Style{StrokeColor: colorGrid, StrokeWidth: 1},
		},
		YAxis: chart.YAxis{
			ValueFormatter: yFormatter,
			GridMajorStyle: chart.Style{StrokeColor: colorGrid, StrokeWidth: 1},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "gastos",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: colorLine,
					StrokeWidth: 2,
					FillColor:   colorFill,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render daily chart: %w", err)
	}
	return buf.Bytes(), nil
}

// WeeklyChart draws expense vs income bars per Monday-start week.
func (r *Renderer) WeeklyChart(s report.WeeklySeries) ([]byte, error) {
	if len(s.Weeks) == 0 {
		return nil, ErrEmptySeries
	}

	bars := make([]chart.Value, 0, 2*len(s.Weeks))
	for i, week := range s.Weeks {
		bars = append(bars,
			chart.Value{
				Value: reais(s.Expenses[i].Cents),
				Label: week.Format("02/01"),
				Style: chart.Style{FillColor: colorExpense, StrokeColor: colorExpense},
			},
			chart.Value{
				Value: reais(s.Incomes[i].Cents),
				Style: chart.Style{FillColor: colorIncome, StrokeColor: colorIncome},
			},
		)
	}

	graph := chart.BarChart{
		Width:    r.width,
		Height:   r.height,
		BarWidth: 40,
		XAxis:    chart.Style{},
		YAxis: chart.YAxis{
			ValueFormatter: reaisFormatter,
			GridMajorStyle: chart.Style{StrokeColor: colorGrid, StrokeWidth: 1},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render weekly chart: %w", err)
	}
	return buf.Bytes(), nil
}

func reais(cents int64) float64 {
	return float64(cents) / 100
}

func reaisFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	return formatReais(f)
}

func formatReais(v float64) string {
	return fmt.Sprintf("R$ %.0f", v)
}
