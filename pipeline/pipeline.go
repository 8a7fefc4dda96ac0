// Package pipeline runs the full sales analysis: clean, engineer, project,
// compare the registered models and derive the forecast series and product
// ranking from the result.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/salescope/cleaning"
	"github.com/YuminosukeSato/salescope/compare"
	"github.com/YuminosukeSato/salescope/config"
	"github.com/YuminosukeSato/salescope/core/model"
	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/features"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/pkg/log"
)

// 出力ファイル名
const (
	ResultsFile  = "comparison_results.json"
	EncodersFile = "encoders.json"
)

// DefaultTopProducts is the length of the product ranking in a Run.
const DefaultTopProducts = 10

// Run is the outcome of one pipeline execution.
type Run struct {
	ID         string
	Cleaned    *cleaning.Result
	Engineered *features.Engineered
	Projection *features.Projection

	// Report is nil when the data has no target column.
	Report      *compare.Report
	Best        model.Regressor
	Forecast    []ForecastPoint
	TopProducts []features.ProductPopularity
	Importance  []model.FeatureImportance
	Duration    time.Duration

	comparator *compare.Comparator
	models     *model.Registry
}

// Compared reports whether models were trained in this run.
func (r *Run) Compared() bool { return r.Report != nil }

// Pipeline wires the cleaner, the feature builder and the comparator with
// one configuration.
type Pipeline struct {
	cfg      *config.Config
	cleaner  *cleaning.Cleaner
	builder  *features.Builder
	registry func() *model.Registry
	logger   log.Logger
}

// New creates a pipeline. A nil cfg uses config.Default().
func New(cfg *config.Config) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		// 目的変数の候補は必ず数値化する
		cleaner:  cleaning.NewCleaner(cfg.Cleaning.WithNumeric(cfg.Features.TargetColumns...)),
		builder:  features.NewBuilder(cfg.Features),
		registry: func() *model.Registry { return NewRegistry(cfg.Models) },
		logger:   log.GetLoggerWithName("pipeline"),
	}
}

// WithRegistry replaces the model set; fn is called once per Run so every
// run trains fresh instances.
func (p *Pipeline) WithRegistry(fn func() *model.Registry) *Pipeline {
	p.registry = fn
	return p
}

// RunFile reads a CSV or XLSX file and runs it.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Run, error) {
	raw, err := dataset.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, raw)
}

// Run executes every stage on raw. Without a target column the run stops
// after projection and returns without a report; that is not an error.
func (p *Pipeline) Run(ctx context.Context, raw *dataset.Table) (*Run, error) {
	start := time.Now()
	run := &Run{ID: uuid.NewString()}
	logger := p.logger.With(log.RunIDKey, run.ID)

	cleaned, err := p.cleaner.Clean(raw)
	if err != nil {
		return nil, errors.Wrap(err, "cleaning failed")
	}
	run.Cleaned = cleaned

	eng, err := p.builder.Build(cleaned.Table)
	if err != nil {
		return nil, errors.Wrap(err, "feature engineering failed")
	}
	run.Engineered = eng
	run.TopProducts = eng.Aggregates.TopProducts(DefaultTopProducts)

	proj, err := p.builder.Project(eng)
	if err != nil {
		return nil, err
	}
	run.Projection = proj
	logger.Info("Features projected",
		log.SamplesKey, proj.X.NumRows(),
		log.FeaturesKey, proj.X.NumCols(),
	)

	if !proj.HasTarget() {
		logger.Warn("No target column, skipping model comparison", log.ColumnsKey, eng.Table.Columns())
		run.Duration = time.Since(start)
		return run, nil
	}

	run.models = p.registry()
	run.comparator = compare.NewComparator(p.cfg.Compare)
	if err := run.comparator.Compare(ctx, proj.X, proj.Y, run.models); err != nil {
		return run, err
	}

	run.Report, err = run.comparator.Report()
	if err != nil {
		return run, err
	}
	best, err := run.comparator.BestModel()
	if err != nil {
		return run, err
	}
	run.Best = best.Model

	run.Forecast, err = DailyForecast(eng.Table, proj, run.Best)
	if err != nil {
		return run, err
	}
	run.Importance = importanceOf(run.Best, run.comparator.Results())
	run.Duration = time.Since(start)

	logger.Info("Pipeline finished",
		log.ModelNameKey, run.Report.BestModel.Name,
		log.RMSEKey, run.Report.BestModel.TestRMSE,
		log.DurationSecondsKey, run.Duration.Seconds(),
	)
	return run, nil
}

// importanceOf returns the best model's importance ranking, falling back to
// the first compared model that has one.
func importanceOf(best model.Regressor, results []compare.Result) []model.FeatureImportance {
	get := func(m model.Regressor) []model.FeatureImportance {
		fi, _ := m.Diagnostics()["feature_importance"].([]model.FeatureImportance)
		return fi
	}
	if fi := get(best); len(fi) > 0 {
		return fi
	}
	for _, r := range results {
		if fi := get(r.Model); len(fi) > 0 {
			return fi
		}
	}
	return nil
}

// Save writes one <model_slug>.json bundle per compared model, the
// comparison bundle and the fitted encoders under dir.
func (r *Run) Save(dir string) error {
	if !r.Compared() {
		return errors.NewNoComparisonPerformedError("Run.Save")
	}
	for _, name := range r.models.Names() {
		m, _ := r.models.Get(name)
		if !m.IsTrained() {
			continue
		}
		if err := m.Save(filepath.Join(dir, model.Slug(name)+".json")); err != nil {
			return errors.Wrapf(err, "failed to save %s", name)
		}
	}
	if err := r.Engineered.Encoders.Save(filepath.Join(dir, EncodersFile)); err != nil {
		return err
	}
	return r.comparator.SaveResults(filepath.Join(dir, ResultsFile))
}
