// Package compare evaluates registered regressors under one protocol:
// a seeded train/test split, shuffled k-fold cross-validation on the
// training partition, then a full fit scored once on the holdout.
package compare

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/salescope/core/model"
	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/metrics"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/pkg/log"
)

// Options configures a comparison run.
type Options struct {
	TestSize float64 `yaml:"test_size" json:"test_size" envconfig:"TEST_SIZE" validate:"gt=0,lt=1"`
	Folds    int     `yaml:"folds" json:"folds" envconfig:"FOLDS" validate:"gte=2"`
	Seed     uint64  `yaml:"seed" json:"seed" envconfig:"SEED"`
	// Parallel dispatches the folds of a model on an errgroup. Results are
	// identical to the sequential run.
	Parallel bool `yaml:"parallel" json:"parallel" envconfig:"PARALLEL"`
	// Workers limits parallel folds; 0 means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers" envconfig:"WORKERS" validate:"gte=0"`
}

// DefaultOptions returns test_size=0.2, folds=5, seed=42, sequential.
func DefaultOptions() Options {
	return Options{TestSize: 0.2, Folds: 5, Seed: 42}
}

// Result is the outcome of one model in a run.
type Result struct {
	Name       string             `json:"name"`
	ModelType  string             `json:"model_type"`
	FoldRMSE   []float64          `json:"fold_rmse"`
	FoldR2     []float64          `json:"fold_r2"`
	CVMeanRMSE float64            `json:"cv_mean_rmse"`
	CVStdRMSE  float64            `json:"cv_std_rmse"`
	CVMeanR2   float64            `json:"cv_mean_r2"`
	CVStdR2    float64            `json:"cv_std_r2"`
	Test       metrics.Evaluation `json:"test"`
	// TrainingTime covers cross-validation and the final fit.
	TrainingTime time.Duration `json:"training_time"`
	// Model is the registered instance, trained on the whole training partition.
	Model model.Regressor `json:"-"`
}

// Comparator runs comparisons. It moves from unsplit to split on Split (or
// the first Compare), and holds the results of the latest Compare.
// A Comparator is not safe for concurrent use.
type Comparator struct {
	opts   Options
	logger log.Logger

	partition *Partition
	runID     string
	requested []string
	results   []*Result
	compared  bool
	best      *Result
	finished  time.Time
}

// NewComparator creates a comparator.
func NewComparator(opts Options) *Comparator {
	return &Comparator{opts: opts, logger: log.GetLoggerWithName("compare")}
}

// Split computes the train/test partition and the fold assignment. The
// partition is reused by every later Compare until Reset.
func (c *Comparator) Split(X *dataset.Frame, y []float64) (*Partition, error) {
	if X == nil || X.NumRows() == 0 {
		return nil, errors.NewModelError("Split", "empty data", errors.ErrEmptyData)
	}
	if y != nil && len(y) != X.NumRows() {
		return nil, errors.NewDimensionError("Split", X.NumRows(), len(y), 0)
	}
	p, err := newPartition(X.NumRows(), c.opts.TestSize, c.opts.Folds, c.opts.Seed)
	if err != nil {
		return nil, err
	}
	c.partition = p
	c.logger.Debug("Data split",
		log.OperationKey, log.OperationSplit,
		log.SamplesKey, p.N,
		log.TestSizeKey, c.opts.TestSize,
		log.FoldsKey, c.opts.Folds,
		log.RandomSeedKey, c.opts.Seed,
	)
	return p, nil
}

// Partition returns the current split, or nil before Split.
func (c *Comparator) Partition() *Partition { return c.partition }

// Reset forgets the split and all results.
func (c *Comparator) Reset() {
	*c = Comparator{opts: c.opts, logger: c.logger}
}

// Compare evaluates every registered model in registration order. The
// first model that fails aborts the run with a ModelTrainingError naming
// it; results of the models before it stay available. Cancelling ctx stops
// the run between folds and models and returns ctx.Err().
func (c *Comparator) Compare(ctx context.Context, X *dataset.Frame, y []float64, models *model.Registry) error {
	const op = "Compare"
	if models == nil || models.Len() == 0 {
		return errors.NewValueError(op, "no models registered")
	}
	if y == nil {
		return errors.NewValueError(op, "a target vector is required")
	}
	if X == nil || X.NumRows() != len(y) {
		n := 0
		if X != nil {
			n = X.NumRows()
		}
		return errors.NewDimensionError(op, n, len(y), 0)
	}
	if c.partition == nil || c.partition.N != X.NumRows() {
		if _, err := c.Split(X, y); err != nil {
			return err
		}
	}

	c.runID = uuid.NewString()
	c.requested = models.Names()
	c.results = nil
	c.best = nil
	c.compared = true
	defer func() { c.finished = time.Now() }()

	logger := c.logger.With(log.RunIDKey, c.runID)
	Xtr, ytr := subset(X, y, c.partition.Train)
	Xte, yte := subset(X, y, c.partition.Test)

	for _, name := range c.requested {
		if err := ctx.Err(); err != nil {
			logger.Warn("Comparison cancelled", log.ModelNameKey, name)
			return err
		}
		m, _ := models.Get(name)
		res, err := c.evaluate(ctx, name, m, X, y, Xtr, ytr, Xte, yte)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("Model failed", err, log.ModelNameKey, name)
			return err
		}
		c.results = append(c.results, res)
		logger.Info("Model evaluated",
			log.OperationKey, log.OperationCompare,
			log.ModelNameKey, name,
			log.RMSEKey, res.Test.RMSE,
			log.R2ScoreKey, res.Test.R2,
			"cv_mean_rmse", res.CVMeanRMSE,
			log.DurationSecondsKey, res.TrainingTime.Seconds(),
		)
	}
	return nil
}

func (c *Comparator) evaluate(ctx context.Context, name string, m model.Regressor,
	X *dataset.Frame, y []float64, Xtr *dataset.Frame, ytr []float64, Xte *dataset.Frame, yte []float64) (*Result, error) {
	start := time.Now()
	k := len(c.partition.Folds)
	res := &Result{
		Name:      name,
		ModelType: m.Name(),
		FoldRMSE:  make([]float64, k),
		FoldR2:    make([]float64, k),
		Model:     m,
	}

	runFold := func(f int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := errors.SafeExecute("compare.fold", func() error {
			Xf, yf := subset(X, y, c.partition.foldTrain(f))
			Xv, yv := subset(X, y, c.partition.Folds[f])
			clone := m.Clone()
			if err := clone.Train(Xf, yf); err != nil {
				return err
			}
			ev, err := clone.Evaluate(Xv, yv)
			if err != nil {
				return err
			}
			res.FoldRMSE[f] = ev.RMSE
			res.FoldR2[f] = ev.R2
			return nil
		})
		if err != nil {
			return errors.NewModelTrainingError(name, log.PhaseCrossValidation, f, err)
		}
		return nil
	}

	if err := c.runFolds(k, runFold); err != nil {
		return nil, err
	}
	res.CVMeanRMSE, res.CVStdRMSE = stat.PopMeanStdDev(res.FoldRMSE, nil)
	res.CVMeanR2, res.CVStdR2 = stat.PopMeanStdDev(res.FoldR2, nil)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := errors.SafeExecute("compare.final_fit", func() error { return m.Train(Xtr, ytr) }); err != nil {
		return nil, errors.NewModelTrainingError(name, log.PhaseFinalFit, -1, err)
	}
	res.TrainingTime = time.Since(start)

	err := errors.SafeExecute("compare.holdout", func() error {
		ev, err := m.Evaluate(Xte, yte)
		res.Test = ev
		return err
	})
	if err != nil {
		return nil, errors.NewModelTrainingError(name, log.PhaseHoldout, -1, err)
	}
	return res, nil
}

// runFolds runs fn for every fold, sequentially or on an errgroup. The
// error reported is the one of the lowest failing fold so both modes agree.
func (c *Comparator) runFolds(k int, fn func(f int) error) error {
	if !c.opts.Parallel {
		for f := 0; f < k; f++ {
			if err := fn(f); err != nil {
				return err
			}
		}
		return nil
	}

	workers := c.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	errs := make([]error, k)
	var g errgroup.Group
	g.SetLimit(workers)
	for f := 0; f < k; f++ {
		g.Go(func() error {
			errs[f] = fn(f)
			return errs[f]
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Results returns the completed results in registration order.
func (c *Comparator) Results() []Result {
	out := make([]Result, len(c.results))
	for i, r := range c.results {
		out[i] = *r
	}
	return out
}

// BestModel returns the result with the lowest holdout RMSE. On an exact
// tie the model registered first wins. The choice is cached until the next
// Compare.
func (c *Comparator) BestModel() (*Result, error) {
	if !c.compared || len(c.results) == 0 {
		return nil, errors.NewNoComparisonPerformedError("BestModel")
	}
	if c.best != nil {
		return c.best, nil
	}
	best := c.results[0]
	for _, r := range c.results[1:] {
		if r.Test.RMSE < best.Test.RMSE {
			best = r
		}
	}
	c.best = best
	return best, nil
}
