package cleaning

import "strings"

// MissingText replaces missing cells in text columns.
const MissingText = "unknown"

// Options controls which columns receive special treatment.
type Options struct {
	// IdentifierColumns keep their case. Names ending in "_name_id" are
	// always treated as identifiers.
	IdentifierColumns []string `yaml:"identifier_columns" json:"identifier_columns" envconfig:"IDENTIFIER_COLUMNS"`

	// NumericColumns are coerced to numbers when they arrive as text,
	// after stripping currency symbols and thousands separators.
	NumericColumns []string `yaml:"numeric_columns" json:"numeric_columns" envconfig:"NUMERIC_COLUMNS"`
}

// DefaultOptions returns the options used for restaurant point-of-sale exports.
func DefaultOptions() Options {
	return Options{
		IdentifierColumns: []string{"pizza_name_id"},
		NumericColumns:    []string{"unit_price", "total_price", "quantity", "revenue", "total_revenue", "sales"},
	}
}

// WithNumeric returns a copy of o that also coerces names.
func (o Options) WithNumeric(names ...string) Options {
	out := o
	out.NumericColumns = append([]string(nil), o.NumericColumns...)
	for _, name := range names {
		if !contains(out.NumericColumns, name) {
			out.NumericColumns = append(out.NumericColumns, name)
		}
	}
	return out
}

func (o Options) isIdentifier(name string) bool {
	if strings.HasSuffix(name, "_name_id") {
		return true
	}
	return contains(o.IdentifierColumns, name)
}

func (o Options) lowercases(name string) bool {
	return !o.isIdentifier(name) && !isDateColumn(name) && !isTimeColumn(name)
}

func (o Options) isNumeric(name string) bool {
	return contains(o.NumericColumns, name)
}

func isDateColumn(name string) bool {
	return name == "order_date" || name == "date" || strings.HasSuffix(name, "_date")
}

func isTimeColumn(name string) bool {
	return name == "order_time" || name == "time" || strings.HasSuffix(name, "_time")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
