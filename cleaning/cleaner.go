// Package cleaning turns raw point-of-sale records into a table without
// missing cells, with normalized text and a canonical datetime column.
package cleaning

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/pkg/log"
)

// DatetimeColumn is the canonical timestamp column added by the cleaner.
const DatetimeColumn = "datetime"

// Result is the output of Clean.
type Result struct {
	// Table is the cleaned table.
	Table *dataset.Table
	// Derived lists the columns the cleaner added, in order.
	Derived []string
	// Imputed counts the cells filled per column.
	Imputed map[string]int
	// Converted lists columns whose kind changed (text to numeric or time).
	Converted []string
}

// Cleaner applies the cleaning rules. A Cleaner is safe for concurrent use.
type Cleaner struct {
	opts   Options
	logger log.Logger
}

// NewCleaner creates a cleaner with the given options.
func NewCleaner(opts Options) *Cleaner {
	return &Cleaner{opts: opts, logger: log.GetLoggerWithName("cleaning")}
}

// Clean cleans raw with DefaultOptions.
func Clean(raw *dataset.Table) (*Result, error) {
	return NewCleaner(DefaultOptions()).Clean(raw)
}

// Clean runs the cleaning steps in order: missing values, text
// normalization, numeric coercion, date parsing and the canonical
// timestamp. A failure in one column is logged and that column is left as
// it was; only an empty table is an error.
func (c *Cleaner) Clean(raw *dataset.Table) (*Result, error) {
	const op = "Clean"
	if raw == nil || raw.NumCols() == 0 {
		return nil, errors.NewValueError(op, "table has no columns")
	}
	if raw.NumRows() == 0 {
		return nil, errors.NewValueError(op, "table has no rows")
	}

	res := &Result{Imputed: make(map[string]int)}

	// 元の欠損位置は補完後も日付・時刻の解析で使う
	missing := make(map[string][]bool, raw.NumCols())
	for _, name := range raw.Columns() {
		col, _ := raw.Column(name)
		mask := make([]bool, col.Len())
		for i := range mask {
			mask[i] = col.IsMissing(i)
		}
		missing[name] = mask
	}

	t := raw
	t = c.eachColumn(t, "impute", func(col *dataset.Column) (*dataset.Column, error) {
		out, n := imputeColumn(col)
		if n > 0 {
			res.Imputed[col.Name()] = n
		}
		return out, nil
	})
	t = c.eachColumn(t, "normalize_text", func(col *dataset.Column) (*dataset.Column, error) {
		if col.Kind() != dataset.Text {
			return col, nil
		}
		// 日付・時刻はレイアウトのT/Z/PMが大文字なので小文字化しない
		return normalizeText(col, c.opts.lowercases(col.Name())), nil
	})
	t = c.eachColumn(t, "coerce_numeric", func(col *dataset.Column) (*dataset.Column, error) {
		if col.Kind() != dataset.Text || !c.opts.isNumeric(col.Name()) {
			return col, nil
		}
		out, n := coerceNumeric(col, missing[col.Name()])
		if out != col {
			res.Converted = append(res.Converted, col.Name())
			res.Imputed[col.Name()] += n
		}
		return out, nil
	})
	t = c.eachColumn(t, "parse_dates", func(col *dataset.Column) (*dataset.Column, error) {
		if !isDateColumn(col.Name()) || col.Kind() != dataset.Text {
			return col, nil
		}
		out := parseDateColumn(col, missing[col.Name()])
		if out != col {
			res.Converted = append(res.Converted, col.Name())
		}
		return out, nil
	})

	t, res.Derived = c.addDatetime(t, missing)
	res.Table = t

	c.logger.Info("Data cleaned",
		log.OperationKey, log.OperationClean,
		log.SamplesKey, t.NumRows(),
		log.ColumnsKey, t.NumCols(),
		"derived", res.Derived,
		"converted", res.Converted,
	)
	return res, nil
}

// eachColumn applies fn to every column. A column whose step fails or
// panics keeps its previous value.
func (c *Cleaner) eachColumn(t *dataset.Table, step string, fn func(*dataset.Column) (*dataset.Column, error)) *dataset.Table {
	var replaced []*dataset.Column
	for i := 0; i < t.NumCols(); i++ {
		col := t.ColumnAt(i)
		var out *dataset.Column
		err := errors.SafeExecute("cleaning."+step, func() error {
			var err error
			out, err = fn(col)
			return err
		})
		if err != nil {
			c.logger.Warn("Column cleaning step failed", err, log.ColumnKey, col.Name(), log.PhaseKey, step)
			continue
		}
		if out != nil && out != col {
			replaced = append(replaced, out)
		}
	}
	if len(replaced) == 0 {
		return t
	}
	next, err := t.With(replaced...)
	if err != nil {
		c.logger.Warn("Column cleaning step failed", err, log.PhaseKey, step)
		return t
	}
	return next
}

// imputeColumn fills numeric gaps with the median and text gaps with MissingText.
func imputeColumn(col *dataset.Column) (*dataset.Column, int) {
	n := col.MissingCount()
	if n == 0 {
		return col, 0
	}
	switch col.Kind() {
	case dataset.Numeric:
		vals := col.Floats()
		med := median(vals)
		for i, v := range vals {
			if math.IsNaN(v) {
				vals[i] = med
			}
		}
		return dataset.NewNumericColumn(col.Name(), vals), n
	case dataset.Text:
		vals := col.Strings()
		for i, v := range vals {
			if v == "" {
				vals[i] = MissingText
			}
		}
		return dataset.NewTextColumn(col.Name(), vals), n
	default:
		return col, 0
	}
}

// median of the non-NaN values; the mean of the two middle values for even counts.
func median(vals []float64) float64 {
	present := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return 0
	}
	sort.Float64s(present)
	mid := len(present) / 2
	if len(present)%2 == 0 {
		return (present[mid-1] + present[mid]) / 2
	}
	return present[mid]
}

func normalizeText(col *dataset.Column, lower bool) *dataset.Column {
	vals := col.Strings()
	for i, v := range vals {
		v = strings.Join(strings.Fields(v), " ")
		if lower {
			v = strings.ToLower(v)
		}
		vals[i] = v
	}
	return dataset.NewTextColumn(col.Name(), vals)
}

var amountReplacer = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", ",", "", " ", "")

// coerceNumeric parses price-like text. Cells that were missing in the raw
// input or fail to parse are filled with the median of the parsed cells.
// When no cell parses the column is returned unchanged.
func coerceNumeric(col *dataset.Column, wasMissing []bool) (*dataset.Column, int) {
	vals := make([]float64, col.Len())
	var parsed, failed int
	for i := range vals {
		if wasMissing[i] {
			vals[i] = math.NaN()
			continue
		}
		v, ok := dataset.ParseNumber(amountReplacer.Replace(col.String(i)))
		if !ok {
			failed++
		} else {
			parsed++
		}
		vals[i] = v
	}
	if parsed == 0 {
		errors.Warn(errors.NewDataConversionWarning(col.Name(), "text", "numeric", "no cell could be parsed as a number"))
		return col, 0
	}
	if failed > 0 {
		errors.Warn(errors.NewDataConversionWarning(col.Name(), "text", "numeric",
			fmt.Sprintf("%d cells could not be parsed and were imputed", failed)))
	}

	med := median(vals)
	filled := 0
	for i, v := range vals {
		if math.IsNaN(v) {
			vals[i] = med
			filled++
		}
	}
	return dataset.NewNumericColumn(col.Name(), vals), filled
}

// parseDateColumn converts a day-first date column to a time column. Cells
// missing in the raw input take the median date. On any parse failure the
// column is returned unchanged.
func parseDateColumn(col *dataset.Column, wasMissing []bool) *dataset.Column {
	values := col.Strings()
	skip := func(i int) bool { return wasMissing[i] }

	present := 0
	for i := range values {
		if !skip(i) {
			present++
		}
	}
	if present == 0 {
		return col
	}

	times, bad := parseDates(values, skip)
	if bad >= 0 {
		errors.Warn(errors.NewDataConversionWarning(col.Name(), "text", "datetime",
			fmt.Sprintf("row %d value %q does not match a day-first date layout", bad, values[bad])))
		return col
	}
	med := medianTime(times)
	for i := range times {
		if times[i].IsZero() {
			times[i] = med
		}
	}
	return dataset.NewTimeColumn(col.Name(), times)
}

// addDatetime builds the canonical timestamp from the first parsed date
// column (order_date preferred) and, if present, a time-of-day column, then
// derives hour, day_of_week, month and year.
func (c *Cleaner) addDatetime(t *dataset.Table, missing map[string][]bool) (*dataset.Table, []string) {
	dateCol := pickColumn(t, "order_date", func(col *dataset.Column) bool {
		return isDateColumn(col.Name()) && col.Kind() == dataset.Time
	})
	if dateCol == nil {
		return t, nil
	}
	timeCol := pickColumn(t, "order_time", func(col *dataset.Column) bool {
		return isTimeColumn(col.Name())
	})

	stamps := dateCol.Times()
	if timeCol != nil {
		wasMissing := missing[timeCol.Name()]
		for i := range stamps {
			if wasMissing != nil && wasMissing[i] {
				continue
			}
			offset, ok := parseClock(timeCol.String(i))
			if !ok {
				err := errors.NewDataConversionWarning(timeCol.Name(), timeCol.Kind().String(), "datetime",
					fmt.Sprintf("row %d value %q is not a time of day", i, timeCol.String(i)))
				errors.Warn(err)
				c.logger.Warn("Failed to combine date and time", log.ColumnsKey, []string{dateCol.Name(), timeCol.Name()})
				return t, nil
			}
			stamps[i] = stamps[i].Add(offset)
		}
	}

	n := len(stamps)
	hour := make([]float64, n)
	dow := make([]float64, n)
	month := make([]float64, n)
	year := make([]float64, n)
	for i, s := range stamps {
		hour[i] = float64(s.Hour())
		dow[i] = float64(weekdayMondayFirst(s))
		month[i] = float64(s.Month())
		year[i] = float64(s.Year())
	}

	derived := []*dataset.Column{
		dataset.NewTimeColumn(DatetimeColumn, stamps),
		dataset.NewNumericColumn("hour", hour),
		dataset.NewNumericColumn("day_of_week", dow),
		dataset.NewNumericColumn("month", month),
		dataset.NewNumericColumn("year", year),
	}
	next, err := t.With(derived...)
	if err != nil {
		c.logger.Warn("Failed to add datetime columns", err)
		return t, nil
	}
	names := make([]string, len(derived))
	for i, col := range derived {
		names[i] = col.Name()
	}
	return next, names
}

// weekdayMondayFirst maps Monday to 0 and Sunday to 6.
func weekdayMondayFirst(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func pickColumn(t *dataset.Table, preferred string, match func(*dataset.Column) bool) *dataset.Column {
	if col, ok := t.Column(preferred); ok && match(col) {
		return col
	}
	for i := 0; i < t.NumCols(); i++ {
		if col := t.ColumnAt(i); match(col) {
			return col
		}
	}
	return nil
}
