package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scerrors "github.com/YuminosukeSato/salescope/pkg/errors"
)

func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationClean)
	testLogger.Warn("warning message", ColumnKey, "order_date")
	testLogger.Error("error message", fmt.Errorf("test error"), ModelNameKey, "svm")

	require.NotEmpty(t, buffer.String())
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, testLogger.ContainsMessage(msg), "missing %q", msg)
	}
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	// JSON unmarshaling converts numbers to float64
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrorKey, "test error"))
	assert.True(t, testLogger.ContainsField(ModelNameKey, "svm"))
}

func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		ModelNameKey, "decision_tree",
		RunIDKey, "run-001",
	)
	contextLogger.Info("fold completed", FoldKey, 3)

	assert.True(t, testLogger.ContainsField(ModelNameKey, "decision_tree"))
	assert.True(t, testLogger.ContainsField(RunIDKey, "run-001"))
	assert.True(t, testLogger.ContainsField(FoldKey, 3.0))
}

func TestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	assert.True(t, testLogger.Enabled(ctx, LevelInfo))
	assert.True(t, testLogger.Enabled(ctx, LevelError))
	assert.False(t, testLogger.Enabled(ctx, LevelDebug))

	testLogger.Debug("this should not appear")
	testLogger.Info("this should appear")

	assert.False(t, testLogger.ContainsMessage("this should not appear"))
	assert.True(t, testLogger.ContainsMessage("this should appear"))
}

func TestLoggerProviderIntegration(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelDebug)

	provider.GetLogger().Info("provider test message")
	provider.GetLoggerWithName("features").Info("named logger message")

	out := buffer.String()
	assert.Contains(t, out, "provider test message")
	assert.Contains(t, out, "named logger message")
	assert.True(t, provider.Logger().ContainsField(ComponentKey, "features"))

	provider.SetLevel(LevelError)
	provider.GetLogger().Info("suppressed")
	assert.NotContains(t, buffer.String(), "suppressed")
}

func TestTestLoggerConcurrent(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(fold int) {
			defer wg.Done()
			testLogger.With(FoldKey, fold).Info("fold done")
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProvider(&buf, LevelInfo, "json")
	logger := provider.GetLoggerWithName("compare").With(RunIDKey, "abc")

	logger.Debug("hidden")
	logger.Info("model evaluated", ModelNameKey, "linear_regression", RMSEKey, 1.5)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "model evaluated", entry["message"])
	assert.Equal(t, "compare", entry[ComponentKey])
	assert.Equal(t, "abc", entry[RunIDKey])
	assert.Equal(t, 1.5, entry[RMSEKey])

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	provider.SetLevel(LevelDebug)
	assert.True(t, provider.GetLogger().Enabled(context.Background(), LevelDebug))
}

func TestZerologErrorWithStack(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologProvider(&buf, LevelDebug, "json").GetLogger()

	err := scerrors.NewModelTrainingError("svm", PhaseCrossValidation, 1, scerrors.New("boom"))
	logger.Error("comparison aborted", err, PhaseKey, PhaseCrossValidation)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Contains(t, entry[ErrorKey], "boom")
	assert.Equal(t, PhaseCrossValidation, entry[PhaseKey])
	// WithStackの内側のModelTrainingErrorが展開される
	assert.Equal(t, "ModelTrainingError", entry["type"])
	assert.Equal(t, "svm", entry["model_name"])
	assert.Equal(t, 1.0, entry["fold"])
}

func TestZerologEmbedsWrappedTypedError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologProvider(&buf, LevelDebug, "json").GetLogger()

	err := scerrors.Wrap(scerrors.NewMissingColumnError("Project", "total_price", "revenue", "sales"), "projection failed")
	logger.Warn("no target", err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "MissingColumnError", entry["type"])
	assert.Equal(t, "total_price", entry["column"])
	assert.Equal(t, []interface{}{"revenue", "sales"}, entry["candidates"])
	assert.Contains(t, entry[ErrorKey], "projection failed")
}

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetProviderRoutesWarnings(t *testing.T) {
	provider, _ := NewTestLoggerProvider(LevelDebug)
	SetProvider(provider)
	t.Cleanup(func() { SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo, "json")) })

	scerrors.Warn(scerrors.NewDataConversionWarning("order_date", "text", "date", "bad cell"))

	assert.True(t, provider.Logger().ContainsMessage("order_date"))
	assert.True(t, provider.Logger().ContainsField(ComponentKey, "warnings"))
	assert.Same(t, provider.GetLogger(), GetLogger())
}
