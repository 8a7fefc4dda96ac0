// Package chart renders comparison and forecast plots with gonum/plot.
//
// Every function returns a *plot.Plot so callers decide the output; WritePNG
// and SavePNG cover the common case.
package chart

import (
	"image/color"
	"io"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/salescope/compare"
	"github.com/YuminosukeSato/salescope/core/model"
	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// 出力サイズ
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 5 * vg.Inch
)

var bestColor = color.RGBA{R: 46, G: 139, B: 87, A: 255}

// Comparison draws the holdout RMSE of every compared model as bars. The best
// model's bar is highlighted.
func Comparison(report *compare.Report) (*plot.Plot, error) {
	const op = "chart.Comparison"
	if report == nil || len(report.Models) == 0 {
		return nil, errors.NewValueError(op, "report has no models")
	}

	values := make(plotter.Values, len(report.Models))
	names := make([]string, len(report.Models))
	best := -1
	for i, e := range report.Models {
		values[i] = e.TestRMSE
		names[i] = e.Name
		if e.IsBest {
			best = i
		}
	}

	p := plot.New()
	p.Title.Text = "Model comparison"
	p.Y.Label.Text = "Test RMSE"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build comparison bars")
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	if best >= 0 {
		// 最良モデルだけ別の棒で重ねる
		only := make(plotter.Values, len(values))
		only[best] = values[best]
		hl, err := plotter.NewBarChart(only, vg.Points(40))
		if err != nil {
			return nil, errors.Wrap(err, "failed to build best model bar")
		}
		hl.Color = bestColor
		hl.LineStyle.Width = vg.Length(0)
		p.Add(hl)
		p.Legend.Add("best: "+names[best], hl)
		p.Legend.Top = true
	}

	p.NominalX(names...)
	return p, nil
}

// ActualVsPredicted draws the daily actual and predicted totals as two lines.
func ActualVsPredicted(dates []time.Time, actual, predicted []float64) (*plot.Plot, error) {
	const op = "chart.ActualVsPredicted"
	if len(dates) == 0 {
		return nil, errors.NewValueError(op, "no dates to plot")
	}
	if len(actual) != len(dates) {
		return nil, errors.NewDimensionError(op, len(dates), len(actual), 0)
	}
	if len(predicted) != len(dates) {
		return nil, errors.NewDimensionError(op, len(dates), len(predicted), 0)
	}

	toXY := func(vals []float64) plotter.XYs {
		pts := make(plotter.XYs, len(dates))
		for i, d := range dates {
			pts[i].X = float64(d.Unix())
			pts[i].Y = vals[i]
		}
		return pts
	}

	p := plot.New()
	p.Title.Text = "Daily sales: actual vs predicted"
	p.Y.Label.Text = "Sales"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Add(plotter.NewGrid())

	if err := plotutil.AddLinePoints(p,
		"actual", toXY(actual),
		"predicted", toXY(predicted),
	); err != nil {
		return nil, errors.Wrap(err, "failed to add forecast lines")
	}
	p.Legend.Top = true
	return p, nil
}

// FeatureImportance draws the top n ranked importances as horizontal bars,
// most important on top. n <= 0 draws all of them.
func FeatureImportance(ranked []model.FeatureImportance, n int) (*plot.Plot, error) {
	const op = "chart.FeatureImportance"
	if len(ranked) == 0 {
		return nil, errors.NewValueError(op, "no feature importances")
	}
	if n <= 0 || n > len(ranked) {
		n = len(ranked)
	}

	// 横棒は下から描かれるので順序を反転する
	values := make(plotter.Values, n)
	names := make([]string, n)
	for i := 0; i < n; i++ {
		fi := ranked[n-1-i]
		values[i] = fi.Importance
		names[i] = fi.Feature
	}

	p := plot.New()
	p.Title.Text = "Feature importance"
	p.X.Label.Text = "Importance"
	p.X.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build importance bars")
	}
	bars.Horizontal = true
	bars.Color = plotutil.Color(1)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalY(names...)
	return p, nil
}

// WritePNG renders p as PNG to w at the default size.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, "png")
	if err != nil {
		return errors.Wrap(err, "failed to render png")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write png")
	}
	return nil
}

// SavePNG renders p to path, creating parent directories.
func SavePNG(path string, p *plot.Plot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := WritePNG(f, p); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "failed to close %s", path)
}
