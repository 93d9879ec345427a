// Package chart draws the budget variance bar chart as a PNG.
package chart

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/color"
	"slices"

	"github.com/shopspring/decimal"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/KaramelBytes/estimate-insight/internal/report"
	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

// Title is the first line of every chart title; the project name follows.
const Title = "Budget Variance by Category"

// ErrNoData is returned when there are no rows to draw.
var ErrNoData = errors.New("chart: no variance rows")

var (
	overColor  = color.RGBA{0xd3, 0x2f, 0x2f, 0xff}
	underColor = color.RGBA{0x38, 0x8e, 0x3c, 0xff}
	axisColor  = color.RGBA{0x37, 0x41, 0x51, 0xff}
	gridColor  = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
)

// layout, in points
const (
	width    = 9 * vg.Inch
	baseH    = 1.6 * vg.Inch
	perRowH  = 0.4 * vg.Inch
	barWidth = 0.28 * vg.Inch
	maxLabel = 24
)

// Render draws rows as horizontal bars sorted ascending by variance, the
// largest underrun at the bottom. Bars over budget are red, under budget
// green; a vertical line marks zero.
func Render(project string, rows []variance.Row) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	sorted := sortedRows(rows)

	p := plot.New()
	p.Title.Text = Title
	if project != "" {
		p.Title.Text += "\n" + project
	}
	p.X.Label.Text = "Variance ($)"
	p.X.Tick.Marker = moneyTicks{}

	names := make([]string, len(sorted))
	over := make(plotter.Values, len(sorted))
	under := make(plotter.Values, len(sorted))
	labels := plotter.XYLabels{XYs: make(plotter.XYs, len(sorted)), Labels: make([]string, len(sorted))}
	for i, r := range sorted {
		names[i] = clip(r.Category, maxLabel)
		v := r.Variance.InexactFloat64()
		switch r.Variance.Sign() {
		case 1:
			over[i] = v
		case -1:
			under[i] = v
		}
		labels.XYs[i] = plotter.XY{X: v, Y: float64(i)}
		labels.Labels[i] = " " + report.SignedMoney(r.Variance)
	}

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = nil
	p.Add(grid)

	for _, series := range []struct {
		values plotter.Values
		color  color.Color
	}{{over, overColor}, {under, underColor}} {
		bars, err := plotter.NewBarChart(series.values, barWidth)
		if err != nil {
			return nil, fmt.Errorf("chart: %w", err)
		}
		bars.Horizontal = true
		bars.Color = series.color
		bars.LineStyle.Width = 0
		p.Add(bars)
	}

	zero, err := plotter.NewLine(plotter.XYs{{X: 0, Y: -0.5}, {X: 0, Y: float64(len(sorted)) - 0.5}})
	if err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}
	zero.LineStyle.Color = axisColor
	zero.LineStyle.Width = vg.Points(1.5)
	p.Add(zero)

	lbl, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}
	p.Add(lbl)

	p.NominalY(names...)
	if p.X.Min == p.X.Max {
		p.X.Min, p.X.Max = -1, 1
	}
	// room for the value labels on both ends
	pad := (p.X.Max - p.X.Min) * 0.15
	p.X.Min -= pad
	p.X.Max += pad

	wt, err := p.WriterTo(width, Height(len(sorted)), "png")
	if err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("chart: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Height is the canvas height for n bars.
func Height(n int) vg.Length { return baseH + vg.Length(n)*perRowH }

// Base64 encodes PNG bytes for embedding in JSON and data URIs.
func Base64(png []byte) string { return base64.StdEncoding.EncodeToString(png) }

// DataURI returns a data: URI suitable for an <img src>.
func DataURI(png []byte) string { return "data:image/png;base64," + Base64(png) }

func sortedRows(rows []variance.Row) []variance.Row {
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b variance.Row) int { return a.Variance.Cmp(b.Variance) })
	return out
}

// moneyTicks relabels the default ticks as whole dollars.
type moneyTicks struct{}

func (moneyTicks) Ticks(lo, hi float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(lo, hi)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = report.Money(decimal.NewFromFloat(ticks[i].Value).Round(0))
		}
	}
	return ticks
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
