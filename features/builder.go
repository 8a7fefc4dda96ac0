// Package features derives model inputs from a cleaned sales table.
//
// Build adds time features, categorical encodings and aggregates without
// touching its input. Project then selects the feature matrix, the target
// and the authoritative feature name list.
package features

import (
	"math"
	"sort"
	"strings"

	"github.com/YuminosukeSato/salescope/cleaning"
	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/pkg/log"
)

// TimeOfDayColumn holds the named period of the hour.
const TimeOfDayColumn = "time_of_day"

// Engineered is the output of Build.
type Engineered struct {
	// Table is the cleaned table plus every added column.
	Table *dataset.Table
	// Added lists the columns Build added, in order.
	Added []string
	// Categorical lists encoded source columns in table order.
	Categorical []string
	Encoders    Encoders
	Aggregates  Aggregates
}

// Builder derives features. A Builder is safe for concurrent use.
type Builder struct {
	opts   Options
	logger log.Logger
}

// NewBuilder creates a builder. Non-positive MaxOneHot falls back to the default.
func NewBuilder(opts Options) *Builder {
	if opts.MaxOneHot <= 0 {
		opts.MaxOneHot = DefaultMaxOneHot
	}
	return &Builder{opts: opts, logger: log.GetLoggerWithName("features")}
}

// Build runs NewBuilder(DefaultOptions()).Build.
func Build(cleaned *dataset.Table) (*Engineered, error) {
	return NewBuilder(DefaultOptions()).Build(cleaned)
}

// Build adds time features, encodes categorical columns and computes the
// aggregates. A column that fails to encode is logged and left out.
func (b *Builder) Build(cleaned *dataset.Table) (*Engineered, error) {
	if cleaned == nil || cleaned.NumCols() == 0 {
		return nil, errors.NewValueError("Build", "table has no columns")
	}

	eng := &Engineered{Table: cleaned, Encoders: newEncoders()}
	add := func(cols ...*dataset.Column) error {
		next, err := eng.Table.With(cols...)
		if err != nil {
			return err
		}
		eng.Table = next
		for _, c := range cols {
			eng.Added = appendUnique(eng.Added, c.Name())
		}
		return nil
	}

	if cols := timeFeatures(cleaned); cols != nil {
		if err := add(cols...); err != nil {
			return nil, err
		}
	}

	for _, name := range cleaned.Columns() {
		col, _ := cleaned.Column(name)
		var cols []*dataset.Column
		err := errors.SafeExecute("features.encode", func() error {
			var err error
			cols, err = b.encode(col, &eng.Encoders)
			return err
		})
		if err != nil {
			b.logger.Warn("Failed to encode column", err, log.ColumnKey, name)
			continue
		}
		if len(cols) == 0 {
			continue
		}
		if err := add(cols...); err != nil {
			b.logger.Warn("Failed to encode column", err, log.ColumnKey, name)
			continue
		}
		eng.Categorical = append(eng.Categorical, name)
	}

	err := errors.SafeExecute("features.aggregates", func() error {
		eng.Aggregates = b.aggregates(eng.Table)
		return nil
	})
	if err != nil {
		b.logger.Warn("Failed to compute aggregates", err)
	}

	b.logger.Info("Features built",
		log.OperationKey, log.OperationBuild,
		log.SamplesKey, eng.Table.NumRows(),
		"added", len(eng.Added),
		"categorical", eng.Categorical,
		"skipped", eng.Encoders.Skipped,
	)
	return eng, nil
}

// timeFeatures derives calendar features from the canonical datetime column.
// It returns nil when the column is absent or not a timestamp.
func timeFeatures(t *dataset.Table) []*dataset.Column {
	dt, ok := t.Column(cleaning.DatetimeColumn)
	if !ok || dt.Kind() != dataset.Time {
		return nil
	}
	n := dt.Len()
	hour := make([]float64, n)
	dow := make([]float64, n)
	dom := make([]float64, n)
	month := make([]float64, n)
	year := make([]float64, n)
	weekend := make([]float64, n)
	period := make([]string, n)
	for i := 0; i < n; i++ {
		if dt.IsMissing(i) {
			hour[i], dow[i], dom[i], month[i], year[i], weekend[i] = nan(), nan(), nan(), nan(), nan(), nan()
			continue
		}
		ts := dt.TimeAt(i)
		d := (int(ts.Weekday()) + 6) % 7
		hour[i] = float64(ts.Hour())
		dow[i] = float64(d)
		dom[i] = float64(ts.Day())
		month[i] = float64(ts.Month())
		year[i] = float64(ts.Year())
		if d >= 5 {
			weekend[i] = 1
		}
		period[i] = TimeOfDay(ts.Hour())
	}
	return []*dataset.Column{
		dataset.NewNumericColumn("hour", hour),
		dataset.NewNumericColumn("day_of_week", dow),
		dataset.NewNumericColumn("day_of_month", dom),
		dataset.NewNumericColumn("month", month),
		dataset.NewNumericColumn("year", year),
		dataset.NewNumericColumn("is_weekend", weekend),
		dataset.NewTextColumn(TimeOfDayColumn, period),
	}
}

// TimeOfDay buckets an hour into night [0,6), morning [6,12),
// afternoon [12,18) or evening [18,24).
func TimeOfDay(hour int) string {
	switch {
	case hour < 6:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

// encode returns the encoded columns for col, or nil when col is not a
// categorical source or has too many distinct values.
func (b *Builder) encode(col *dataset.Column, enc *Encoders) ([]*dataset.Column, error) {
	name := col.Name()
	switch {
	case isSizeColumn(name):
		codes := make([]float64, col.Len())
		for i := range codes {
			code, ok := SizeOrder[strings.ToLower(strings.TrimSpace(col.String(i)))]
			if !ok {
				code = -1
			}
			codes[i] = float64(code)
		}
		mapping := make(map[string]int, len(SizeOrder))
		for k, v := range SizeOrder {
			mapping[k] = v
		}
		enc.Ordinal[name] = mapping
		return []*dataset.Column{dataset.NewNumericColumn(name+"_encoded", codes)}, nil

	case b.opts.isCategorical(name):
		values := distinct(col)
		if len(values) > b.opts.MaxOneHot {
			enc.Skipped = append(enc.Skipped, name)
			b.logger.Info("Skipping high-cardinality column",
				log.ColumnKey, name,
				log.DistinctKey, len(values),
			)
			return nil, nil
		}
		cols := make([]*dataset.Column, len(values))
		for k, v := range values {
			ind := make([]float64, col.Len())
			for i := range ind {
				if col.String(i) == v {
					ind[i] = 1
				}
			}
			cols[k] = dataset.NewNumericColumn(name+"_"+v, ind)
		}
		enc.OneHot[name] = values
		return cols, nil
	}
	return nil, nil
}

func distinct(col *dataset.Column) []string {
	seen := make(map[string]struct{})
	var out []string
	for i := 0; i < col.Len(); i++ {
		v := col.String(i)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func nan() float64 { return math.NaN() }

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
