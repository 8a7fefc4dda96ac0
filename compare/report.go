package compare

import (
	"time"

	"github.com/YuminosukeSato/salescope/core/model"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/pkg/log"
)

// Row is one model's entry in the comparison table.
type Row struct {
	CVMeanRMSE          float64 `json:"cv_mean_rmse"`
	CVStdRMSE           float64 `json:"cv_std_rmse"`
	CVMeanR2            float64 `json:"cv_mean_r2"`
	CVStdR2             float64 `json:"cv_std_r2"`
	TestMSE             float64 `json:"test_mse"`
	TestRMSE            float64 `json:"test_rmse"`
	TestMAE             float64 `json:"test_mae"`
	TestR2              float64 `json:"test_r2"`
	TrainingTimeSeconds float64 `json:"training_time_seconds"`
}

// Entry is a Row with its model name, fold scores and best flag.
type Entry struct {
	Name      string    `json:"name"`
	ModelType string    `json:"model_type"`
	IsBest    bool      `json:"is_best"`
	FoldRMSE  []float64 `json:"fold_rmse"`
	FoldR2    []float64 `json:"fold_r2"`
	Row
}

// Best describes the selected model.
type Best struct {
	Name               string  `json:"name"`
	TestRMSE           float64 `json:"test_rmse"`
	TestR2             float64 `json:"test_r2"`
	ImprovementPercent float64 `json:"improvement_percent"`
}

// Report is the outcome of one comparison run. It is also the persisted
// comparison bundle.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Folds       int       `json:"folds"`
	TestSize    float64   `json:"test_size"`
	Seed        uint64    `json:"seed"`
	Requested   []string  `json:"models_requested"`
	Completed   []string  `json:"models_completed"`
	Models      []Entry   `json:"models"`
	BestModel   Best      `json:"best_model"`
}

// Table returns the comparison table keyed by model name.
func (r *Report) Table() map[string]Row {
	out := make(map[string]Row, len(r.Models))
	for _, e := range r.Models {
		out[e.Name] = e.Row
	}
	return out
}

// Best returns the best-model descriptor.
func (r *Report) Best() Best { return r.BestModel }

// Report builds the report of the latest Compare. improvement_percent is
// (worst - best) / worst * 100 over holdout RMSE, 0 when worst is 0.
func (c *Comparator) Report() (*Report, error) {
	best, err := c.BestModel()
	if err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:       c.runID,
		GeneratedAt: c.finished,
		Folds:       len(c.partition.Folds),
		TestSize:    c.opts.TestSize,
		Seed:        c.opts.Seed,
		Requested:   append([]string(nil), c.requested...),
	}
	if rep.GeneratedAt.IsZero() {
		rep.GeneratedAt = time.Now()
	}

	worst := best.Test.RMSE
	for _, r := range c.results {
		if r.Test.RMSE > worst {
			worst = r.Test.RMSE
		}
		rep.Completed = append(rep.Completed, r.Name)
		rep.Models = append(rep.Models, Entry{
			Name:      r.Name,
			ModelType: r.ModelType,
			IsBest:    r == best,
			FoldRMSE:  append([]float64(nil), r.FoldRMSE...),
			FoldR2:    append([]float64(nil), r.FoldR2...),
			Row: Row{
				CVMeanRMSE:          r.CVMeanRMSE,
				CVStdRMSE:           r.CVStdRMSE,
				CVMeanR2:            r.CVMeanR2,
				CVStdR2:             r.CVStdR2,
				TestMSE:             r.Test.MSE,
				TestRMSE:            r.Test.RMSE,
				TestMAE:             r.Test.MAE,
				TestR2:              r.Test.R2,
				TrainingTimeSeconds: r.TrainingTime.Seconds(),
			},
		})
	}

	var improvement float64
	if worst > 0 {
		improvement = (worst - best.Test.RMSE) / worst * 100
	}
	rep.BestModel = Best{
		Name:               best.Name,
		TestRMSE:           best.Test.RMSE,
		TestR2:             best.Test.R2,
		ImprovementPercent: improvement,
	}
	return rep, nil
}

// SaveResults writes the report of the latest Compare as JSON.
func (c *Comparator) SaveResults(path string) error {
	rep, err := c.Report()
	if err != nil {
		return err
	}
	if err := model.WriteJSONAtomic(path, rep); err != nil {
		return err
	}
	c.logger.Info("Comparison saved", log.OperationKey, log.OperationSave, log.PathKey, path, log.RunIDKey, rep.RunID)
	return nil
}

// LoadResults reads a report written by SaveResults.
func LoadResults(path string) (*Report, error) {
	var rep Report
	if err := model.ReadJSON(path, &rep); err != nil {
		return nil, err
	}
	if rep.BestModel.Name == "" || len(rep.Models) == 0 {
		return nil, errors.NewValueError("LoadResults", "comparison bundle has no models")
	}
	return &rep, nil
}
