package features

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/salescope/cleaning"
	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/pkg/errors"
)

func cleanCSV(t *testing.T, s string) *dataset.Table {
	t.Helper()
	raw, err := dataset.ReadCSV(strings.NewReader(s))
	require.NoError(t, err)
	res, err := cleaning.Clean(raw)
	require.NoError(t, err)
	return res.Table
}

// 30 rows over 15 days starting Monday 2024-03-04
func twoWeeksCSV() string {
	var sb strings.Builder
	sb.WriteString("food_name,total_price,order_date\n")
	for i := 0; i < 30; i++ {
		day := 4 + i/2
		fmt.Fprintf(&sb, "item %d,%d.50,%02d/03/2024\n", i%4, 10+i, day)
	}
	return sb.String()
}

func TestPriceOnlyScenario(t *testing.T) {
	cleaned := cleanCSV(t, twoWeeksCSV())
	require.Equal(t, 30, cleaned.NumRows())

	eng, err := Build(cleaned)
	require.NoError(t, err)
	assert.Empty(t, eng.Categorical)

	p, err := Project(eng)
	require.NoError(t, err)
	assert.Equal(t, []string{"hour", "day_of_week", "day_of_month", "month", "year", "is_weekend"}, p.FeatureNames)
	assert.Len(t, p.Y, 30)
	assert.Equal(t, "total_price", p.Target)
	assert.False(t, p.X.HasNaN())

	// 2024-03-09 (row 10) は土曜日
	dow, _ := p.X.Col("day_of_week")
	weekend, _ := p.X.Col("is_weekend")
	assert.Equal(t, 5.0, dow[10])
	assert.Equal(t, 1.0, weekend[10])
	assert.Equal(t, 0.0, weekend[0])
}

func TestTimeOfDay(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "night"}, {5, "night"}, {6, "morning"}, {11, "morning"},
		{12, "afternoon"}, {17, "afternoon"}, {18, "evening"}, {23, "evening"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TimeOfDay(tt.hour), "hour %d", tt.hour)
	}
}

func TestEncodingAndProjectionOrder(t *testing.T) {
	csv := `pizza_size,quantity,pizza_category,unit_price,total_price,order_date,order_time
M,1,Classic,10,10,01/01/2015,11:00:00
xl,2,Veggie,12,24,01/01/2015,19:30:00
S,1,Classic,8,8,02/01/2015,13:15:00
huge,1,Supreme,20,20,03/01/2015,09:45:00
`
	eng, err := Build(cleanCSV(t, csv))
	require.NoError(t, err)
	assert.Equal(t, []string{"pizza_size", "pizza_category"}, eng.Categorical)
	assert.Equal(t, []string{"classic", "supreme", "veggie"}, eng.Encoders.OneHot["pizza_category"])
	assert.Equal(t, SizeOrder, eng.Encoders.Ordinal["pizza_size"])

	p, err := Project(eng)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"hour", "day_of_week", "day_of_month", "month", "year", "is_weekend",
		"quantity", "unit_price",
		"pizza_size_encoded",
		"pizza_category_classic", "pizza_category_supreme", "pizza_category_veggie",
	}, p.FeatureNames)

	size, _ := p.X.Col("pizza_size_encoded")
	assert.Equal(t, []float64{1, 3, 0, -1}, size)
	veggie, _ := p.X.Col("pizza_category_veggie")
	assert.Equal(t, []float64{0, 1, 0, 0}, veggie)

	period, ok := eng.Table.Column(TimeOfDayColumn)
	require.True(t, ok)
	assert.Equal(t, []string{"morning", "evening", "afternoon", "morning"}, period.Strings())
}

func TestHighCardinalityColumnSkipped(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("food_category,quantity,total_price\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sb, "cat%02d,1,%d\n", i, i+1)
	}
	eng, err := Build(cleanCSV(t, sb.String()))
	require.NoError(t, err)
	assert.Equal(t, []string{"food_category"}, eng.Encoders.Skipped)
	assert.Empty(t, eng.Categorical)

	p, err := Project(eng)
	require.NoError(t, err)
	assert.Equal(t, []string{"quantity"}, p.FeatureNames)
	for _, name := range p.FeatureNames {
		assert.False(t, strings.HasPrefix(name, "food_category_"))
	}
}

func TestProjectWithoutTarget(t *testing.T) {
	eng, err := Build(cleanCSV(t, "quantity,unit_price\n1,2\n3,4\n"))
	require.NoError(t, err)
	p, err := Project(eng)
	require.NoError(t, err)
	assert.Nil(t, p.Y)
	assert.False(t, p.HasTarget())
	assert.Equal(t, []string{"quantity", "unit_price"}, p.FeatureNames)
}

func TestProjectNoFeatures(t *testing.T) {
	eng, err := Build(cleanCSV(t, "food_name,total_price\npizza,10\n"))
	require.NoError(t, err)
	_, err = Project(eng)
	var missing *errors.MissingColumnError
	assert.True(t, errors.As(err, &missing))
}

func TestAggregates(t *testing.T) {
	eng, err := Build(cleanCSV(t, twoWeeksCSV()))
	require.NoError(t, err)
	agg := eng.Aggregates

	require.Len(t, agg.Daily, 15)
	assert.Equal(t, 2, agg.Daily[0].Orders)
	assert.InDelta(t, 10.5+11.5, agg.Daily[0].Total, 1e-9)
	assert.Nil(t, agg.Daily[5].Rolling7)
	require.NotNil(t, agg.Daily[6].Rolling7)
	var first7 float64
	for _, d := range agg.Daily[:7] {
		first7 += d.Total
	}
	assert.InDelta(t, first7/7, *agg.Daily[6].Rolling7, 1e-9)
	assert.Nil(t, agg.Daily[14].Rolling30, "30-day window never fills")

	assert.Equal(t, "food_name", agg.ProductColumn)
	require.Len(t, agg.Products, 4)
	top := agg.TopProducts(1)
	require.Len(t, top, 1)
	// item 1 has rows 1,5,...,29: 8 orders, revenue 8*10.5 + 120
	assert.Equal(t, "item 1", top[0].Product)
	assert.Equal(t, 8, top[0].TotalOrders)
	assert.InDelta(t, 204.0, top[0].TotalRevenue, 1e-9)
	assert.InDelta(t, 204.0/8, top[0].AvgOrderValue, 1e-9)
	for i := 1; i < len(agg.Products); i++ {
		assert.GreaterOrEqual(t, agg.Products[i-1].TotalRevenue, agg.Products[i].TotalRevenue)
	}
}

func TestRollingMean(t *testing.T) {
	got := rollingMean([]float64{1, 2, 3, 4}, 3)
	assert.Nil(t, got[0])
	assert.Nil(t, got[1])
	assert.Equal(t, 2.0, *got[2])
	assert.Equal(t, 3.0, *got[3])
}

func TestEncodersRoundTrip(t *testing.T) {
	eng, err := Build(cleanCSV(t, "pizza_size,pizza_category,total_price\nM,Classic,1\nL,Veggie,2\n"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "encoders.json")
	require.NoError(t, eng.Encoders.Save(path))
	loaded, err := LoadEncoders(path)
	require.NoError(t, err)
	assert.Equal(t, eng.Encoders.OneHot, loaded.OneHot)
	assert.Equal(t, eng.Encoders.Ordinal, loaded.Ordinal)
	assert.Equal(t, []string{"pizza_category_classic", "pizza_category_veggie"}, loaded.OneHotColumns("pizza_category"))
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	cleaned := cleanCSV(t, twoWeeksCSV())
	before := cleaned.Columns()
	eng, err := Build(cleaned)
	require.NoError(t, err)
	assert.Equal(t, before, cleaned.Columns())
	assert.Contains(t, eng.Added, "day_of_month")
	assert.Contains(t, eng.Added, "is_weekend")
}

func TestProjectCoercesText(t *testing.T) {
	unit := dataset.NewTextColumn("unit_price", []string{"3.5", "oops"})
	tbl, err := dataset.NewTable(unit)
	require.NoError(t, err)
	p, err := Project(&Engineered{Table: tbl, Encoders: newEncoders()})
	require.NoError(t, err)
	col, _ := p.X.Col("unit_price")
	assert.Equal(t, []float64{3.5, 0}, col)
	assert.False(t, math.IsNaN(col[1]))
}

func TestProjectRejectsNonNumericTarget(t *testing.T) {
	unit := dataset.NewNumericColumn("unit_price", []float64{3.5, 4})
	revenue := dataset.NewTextColumn("revenue", []string{"7", "$8"})
	tbl, err := dataset.NewTable(unit, revenue)
	require.NoError(t, err)
	_, err = Project(&Engineered{Table: tbl, Encoders: newEncoders()})
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))
}
