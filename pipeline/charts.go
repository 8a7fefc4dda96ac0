package pipeline

import (
	"path/filepath"

	"github.com/YuminosukeSato/salescope/chart"
	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// グラフのファイル名
const (
	ComparisonChart = "comparison.png"
	ForecastChart   = "forecast.png"
	ImportanceChart = "feature_importance.png"
)

// topImportance is the number of features drawn in the importance chart.
const topImportance = 15

// SaveCharts renders the comparison, forecast and importance charts under
// dir and returns the written paths. Charts without data are skipped.
func (r *Run) SaveCharts(dir string) ([]string, error) {
	if !r.Compared() {
		return nil, errors.NewNoComparisonPerformedError("Run.SaveCharts")
	}

	var written []string
	p, err := chart.Comparison(r.Report)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, ComparisonChart)
	if err := chart.SavePNG(path, p); err != nil {
		return written, err
	}
	written = append(written, path)

	if len(r.Forecast) > 0 {
		dates, actual, predicted := Series(r.Forecast)
		p, err := chart.ActualVsPredicted(dates, actual, predicted)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, ForecastChart)
		if err := chart.SavePNG(path, p); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if len(r.Importance) > 0 {
		p, err := chart.FeatureImportance(r.Importance, topImportance)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, ImportanceChart)
		if err := chart.SavePNG(path, p); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
