package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/salescope/pipeline"
)

func writeSales(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("pizza_name,quantity,unit_price,order_date,order_time,total_price\n")
	for day := 1; day <= 12; day++ {
		for k := 0; k < 3; k++ {
			qty := 1 + (day+k)%3
			price := 10 + float64(k)*2.5
			fmt.Fprintf(&b, "pizza %d,%d,%.2f,%02d/05/2024,%02d:30:00,%.2f\n",
				k, qty, price, day, 12+3*k, float64(qty)*price)
		}
	}
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func TestRunCompare(t *testing.T) {
	t.Setenv("SALESCOPE_COMPARE_FOLDS", "3")
	t.Setenv("SALESCOPE_MODELS_SVR_MAX_ITER", "200")
	out := t.TempDir()

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"compare", "-input", writeSales(t), "-out", out, "-env", ""}, &stdout)
	require.NoError(t, err)

	var summary struct {
		Comparison map[string]json.RawMessage `json:"comparison"`
		Best       struct {
			Name string `json:"name"`
		} `json:"best_model"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.Len(t, summary.Comparison, 3)
	assert.Contains(t, summary.Comparison, summary.Best.Name)

	for _, f := range []string{"linear_regression.json", "decision_tree.json", "svm.json", pipeline.ResultsFile, pipeline.ComparisonChart} {
		_, err := os.Stat(filepath.Join(out, f))
		assert.NoError(t, err, f)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"train"}},
		{"missing input", []string{"compare"}},
		{"bad flag", []string{"compare", "-nope"}},
		{"missing file", []string{"compare", "-input", filepath.Join(t.TempDir(), "absent.csv")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, run(context.Background(), tt.args, &bytes.Buffer{}))
		})
	}
}
