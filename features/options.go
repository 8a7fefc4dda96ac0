package features

import "strings"

// DefaultMaxOneHot is the largest distinct-value count that is one-hot encoded.
const DefaultMaxOneHot = 50

// Options controls column discovery during Build and Project.
type Options struct {
	// MaxOneHot skips categorical columns with more distinct values.
	MaxOneHot int `yaml:"max_one_hot" json:"max_one_hot" envconfig:"MAX_ONE_HOT" validate:"gte=1"`
	// ExtraCategorical are one-hot encoded in addition to *_category columns.
	ExtraCategorical []string `yaml:"extra_categorical" json:"extra_categorical" envconfig:"EXTRA_CATEGORICAL"`
	// TargetColumns are tried in order; the first present one is y.
	TargetColumns []string `yaml:"target_columns" json:"target_columns" envconfig:"TARGET_COLUMNS" validate:"min=1"`
	// ProductColumns are tried in order for product popularity.
	ProductColumns []string `yaml:"product_columns" json:"product_columns" envconfig:"PRODUCT_COLUMNS"`
}

// DefaultOptions returns the options for restaurant point-of-sale exports.
func DefaultOptions() Options {
	return Options{
		MaxOneHot:      DefaultMaxOneHot,
		TargetColumns:  []string{"total_price", "revenue", "total_revenue", "sales"},
		ProductColumns: []string{"pizza_name", "food_name", "product_name", "item_name", "name", "pizza_id"},
	}
}

// priorityFeatures are projected first, in this order, when present.
var priorityFeatures = []string{
	"hour", "day_of_week", "day_of_month", "month", "year", "is_weekend",
	"quantity", "unit_price",
}

// SizeOrder is the ordinal code of size-like values. Other values map to -1.
var SizeOrder = map[string]int{"s": 0, "m": 1, "l": 2, "xl": 3, "xxl": 4}

func isSizeColumn(name string) bool {
	return name == "size" || strings.HasSuffix(name, "_size")
}

func (o Options) isCategorical(name string) bool {
	if name == "category" || strings.HasSuffix(name, "_category") {
		return true
	}
	for _, c := range o.ExtraCategorical {
		if c == name {
			return true
		}
	}
	return false
}
