package pipeline

import (
	"sort"
	"time"

	"github.com/YuminosukeSato/salescope/cleaning"
	"github.com/YuminosukeSato/salescope/core/model"
	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/features"
	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// ForecastPoint is one day of actual versus predicted sales.
type ForecastPoint struct {
	Date      time.Time `json:"date"`
	Actual    float64   `json:"actual"`
	Predicted float64   `json:"predicted"`
	Orders    int       `json:"orders"`
}

// DailyForecast predicts every row of proj with m and sums actual and
// predicted target values per calendar day. A table without a datetime
// column yields no points.
func DailyForecast(t *dataset.Table, proj *features.Projection, m model.Regressor) ([]ForecastPoint, error) {
	const op = "DailyForecast"
	if !proj.HasTarget() {
		return nil, errors.NewValueError(op, "projection has no target")
	}
	dt, ok := t.Column(cleaning.DatetimeColumn)
	if !ok || dt.Kind() != dataset.Time {
		return nil, nil
	}
	if dt.Len() != len(proj.Y) {
		return nil, errors.NewDimensionError(op, len(proj.Y), dt.Len(), 0)
	}

	preds, err := m.Predict(proj.X)
	if err != nil {
		return nil, err
	}

	byDay := make(map[time.Time]*ForecastPoint)
	for i, y := range proj.Y {
		if dt.IsMissing(i) {
			continue
		}
		ts := dt.TimeAt(i)
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
		pt, ok := byDay[day]
		if !ok {
			pt = &ForecastPoint{Date: day}
			byDay[day] = pt
		}
		pt.Actual += y
		pt.Predicted += preds[i]
		pt.Orders++
	}

	out := make([]ForecastPoint, 0, len(byDay))
	for _, pt := range byDay {
		out = append(out, *pt)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Date.Before(out[b].Date) })
	return out, nil
}

// Series splits points into the parallel slices the chart package draws.
func Series(points []ForecastPoint) (dates []time.Time, actual, predicted []float64) {
	dates = make([]time.Time, len(points))
	actual = make([]float64, len(points))
	predicted = make([]float64, len(points))
	for i, pt := range points {
		dates[i] = pt.Date
		actual[i] = pt.Actual
		predicted[i] = pt.Predicted
	}
	return dates, actual, predicted
}
