package features

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/pkg/log"
)

// Projection is the model input selected from an engineered table.
type Projection struct {
	// X has one column per FeatureNames entry and no NaN.
	X *dataset.Frame
	// Y is nil when the table has no target column.
	Y []float64
	// FeatureNames is the column order every later Predict must use.
	FeatureNames []string
	// Target names the column Y was taken from.
	Target string
}

// HasTarget reports whether a target column was found.
func (p *Projection) HasTarget() bool { return p.Y != nil }

// Project runs NewBuilder(DefaultOptions()).Project.
func Project(eng *Engineered) (*Projection, error) {
	return NewBuilder(DefaultOptions()).Project(eng)
}

// Project selects the priority features that are present, then the encoded
// columns of each categorical source in table order. Cells that are missing
// or do not parse as numbers become 0. A missing target is not an error;
// a target cell that is not a finite number is.
func (b *Builder) Project(eng *Engineered) (*Projection, error) {
	const op = "Project"
	if eng == nil || eng.Table == nil {
		return nil, errors.NewValueError(op, "nothing to project")
	}
	t := eng.Table

	var names []string
	seen := make(map[string]struct{})
	pick := func(name string) {
		if _, dup := seen[name]; dup || !t.Has(name) {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	for _, name := range priorityFeatures {
		pick(name)
	}
	for _, source := range eng.Categorical {
		if _, ok := eng.Encoders.Ordinal[source]; ok {
			pick(source + "_encoded")
			continue
		}
		for _, name := range eng.Encoders.OneHotColumns(source) {
			pick(name)
		}
	}
	if len(names) == 0 {
		return nil, errors.NewMissingColumnError(op, "features", priorityFeatures...)
	}

	cols := make([][]float64, len(names))
	for j, name := range names {
		col, _ := t.Column(name)
		vals := col.Floats()
		for i, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				vals[i] = 0
			}
		}
		cols[j] = vals
	}
	X, err := dataset.FrameFromColumns(names, cols)
	if err != nil {
		return nil, err
	}

	p := &Projection{X: X, FeatureNames: names}
	if target := firstPresent(t, b.opts.TargetColumns); target != nil {
		y := target.Floats()
		for i, v := range y {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewValueError(op,
					fmt.Sprintf("target %q row %d is not a finite number", target.Name(), i))
			}
		}
		p.Y = y
		p.Target = target.Name()
	}

	b.logger.Info("Features projected",
		log.OperationKey, log.OperationProject,
		log.SamplesKey, X.NumRows(),
		log.FeaturesKey, len(names),
		"target", p.Target,
	)
	return p, nil
}
