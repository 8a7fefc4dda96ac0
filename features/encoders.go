package features

import (
	"github.com/YuminosukeSato/salescope/core/model"
)

// Encoders records how categorical columns were encoded so the same
// mapping can be applied to later data.
type Encoders struct {
	// Ordinal maps a size-like source column to its value codes.
	Ordinal map[string]map[string]int `json:"ordinal"`
	// OneHot maps a categorical source column to its sorted values.
	OneHot map[string][]string `json:"one_hot"`
	// Skipped lists categorical columns above the cardinality limit.
	Skipped []string `json:"skipped"`
}

func newEncoders() Encoders {
	return Encoders{
		Ordinal: make(map[string]map[string]int),
		OneHot:  make(map[string][]string),
	}
}

// OneHotColumns returns the indicator column names produced for source.
func (e Encoders) OneHotColumns(source string) []string {
	values := e.OneHot[source]
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = source + "_" + v
	}
	return names
}

// Save writes the encoders as JSON.
func (e Encoders) Save(path string) error {
	return model.WriteJSONAtomic(path, e)
}

// LoadEncoders reads encoders written by Save.
func LoadEncoders(path string) (Encoders, error) {
	e := newEncoders()
	if err := model.ReadJSON(path, &e); err != nil {
		return Encoders{}, err
	}
	return e, nil
}
