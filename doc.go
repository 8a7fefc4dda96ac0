// Package salescope forecasts restaurant sales from point-of-sale records and
// compares regression models on them.
//
// A run cleans the raw transactions, engineers a numeric feature matrix,
// trains three interchangeable models under one cross-validation and holdout
// protocol, and picks the model with the lowest holdout RMSE.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/salescope/pipeline"
//	)
//
//	func main() {
//	    run, err := pipeline.New(nil).RunFile(context.Background(), "sales.csv")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println("best model:", run.Report.Best().Name)
//	    if err := run.Save("models"); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Packages
//
//   - dataset: heterogeneous tables, named numeric frames, CSV and XLSX readers
//   - cleaning: missing values, text normalization, numeric coercion, date parsing
//   - features: time features, size and one-hot encodings, daily and product aggregates
//   - linear, tree, svm: the regression models behind core/model.Regressor
//   - compare: train/test split, k-fold cross-validation, holdout, best model and report
//   - pipeline: the end-to-end run, forecast series, persistence and model loading
//   - chart: gonum/plot renderings of the comparison and the forecast
//   - config: defaults, YAML, SALESCOPE_* environment variables and validation
//   - server: the HTTP API; cmd/salescope: the CLI
//   - metrics, preprocessing, core/parallel, pkg/errors, pkg/log: shared infrastructure
//
// # Determinism
//
// Splits, fold assignment and the tree's feature order are seeded (default
// 42), so the same data and configuration always select the same model.
// Parallel fold evaluation gives the same results as the sequential path.
package salescope
