package features

import (
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/salescope/cleaning"
	"github.com/YuminosukeSato/salescope/dataset"
)

// Rolling windows over consecutive sales days.
const (
	ShortWindow = 7
	LongWindow  = 30
)

// DailySales is the revenue of one calendar day.
type DailySales struct {
	Date      time.Time `json:"date"`
	Total     float64   `json:"daily_total_sales"`
	Orders    int       `json:"orders"`
	Rolling7  *float64  `json:"rolling_7day_avg,omitempty"`
	Rolling30 *float64  `json:"rolling_30day_avg,omitempty"`
}

// ProductPopularity summarizes the sales of one product.
type ProductPopularity struct {
	Product       string  `json:"product"`
	TotalQuantity float64 `json:"total_quantity"`
	TotalRevenue  float64 `json:"total_revenue"`
	TotalOrders   int     `json:"total_orders"`
	AvgOrderValue float64 `json:"avg_order_value"`
}

// Aggregates are summary tables computed alongside the features.
type Aggregates struct {
	RevenueColumn string              `json:"revenue_column,omitempty"`
	Daily         []DailySales        `json:"daily,omitempty"`
	ProductColumn string              `json:"product_column,omitempty"`
	Products      []ProductPopularity `json:"products,omitempty"`
}

// TopProducts returns at most n products by revenue.
func (a Aggregates) TopProducts(n int) []ProductPopularity {
	if n < 0 || n > len(a.Products) {
		n = len(a.Products)
	}
	return append([]ProductPopularity(nil), a.Products[:n]...)
}

func (b *Builder) aggregates(t *dataset.Table) Aggregates {
	var agg Aggregates
	revenue := firstPresent(t, b.opts.TargetColumns)
	if revenue == nil {
		return agg
	}
	agg.RevenueColumn = revenue.Name()

	if day := dayColumn(t); day != nil {
		agg.Daily = dailySales(day, revenue)
	}
	if product := firstPresent(t, b.opts.ProductColumns); product != nil {
		agg.ProductColumn = product.Name()
		quantity, _ := t.Column("quantity")
		agg.Products = productPopularity(product, quantity, revenue)
	}
	return agg
}

// dayColumn prefers the canonical datetime, then any parsed date column.
func dayColumn(t *dataset.Table) *dataset.Column {
	if col, ok := t.Column(cleaning.DatetimeColumn); ok && col.Kind() == dataset.Time {
		return col
	}
	for i := 0; i < t.NumCols(); i++ {
		col := t.ColumnAt(i)
		name := col.Name()
		if col.Kind() == dataset.Time && (name == "date" || strings.HasSuffix(name, "_date")) {
			return col
		}
	}
	return nil
}

func dailySales(day, revenue *dataset.Column) []DailySales {
	byDay := make(map[time.Time]*DailySales)
	for i := 0; i < day.Len(); i++ {
		if day.IsMissing(i) {
			continue
		}
		ts := day.TimeAt(i)
		key := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
		d, ok := byDay[key]
		if !ok {
			d = &DailySales{Date: key}
			byDay[key] = d
		}
		if v := revenue.Float(i); !math.IsNaN(v) {
			d.Total += v
		}
		d.Orders++
	}

	out := make([]DailySales, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	totals := make([]float64, len(out))
	for i, d := range out {
		totals[i] = d.Total
	}
	short := rollingMean(totals, ShortWindow)
	long := rollingMean(totals, LongWindow)
	for i := range out {
		out[i].Rolling7 = short[i]
		out[i].Rolling30 = long[i]
	}
	return out
}

// rollingMean returns the trailing mean over window values; entries before
// the window fills are nil.
func rollingMean(vals []float64, window int) []*float64 {
	out := make([]*float64, len(vals))
	for i := window - 1; i < len(vals); i++ {
		m := floats.Sum(vals[i-window+1:i+1]) / float64(window)
		out[i] = &m
	}
	return out
}

// productPopularity sorts products by revenue, descending, then by name.
// Rows count as quantity 1 when there is no quantity column.
func productPopularity(product, quantity, revenue *dataset.Column) []ProductPopularity {
	byName := make(map[string]*ProductPopularity)
	for i := 0; i < product.Len(); i++ {
		name := product.String(i)
		p, ok := byName[name]
		if !ok {
			p = &ProductPopularity{Product: name}
			byName[name] = p
		}
		q := 1.0
		if quantity != nil {
			q = quantity.Float(i)
		}
		if !math.IsNaN(q) {
			p.TotalQuantity += q
		}
		if v := revenue.Float(i); !math.IsNaN(v) {
			p.TotalRevenue += v
		}
		p.TotalOrders++
	}

	out := make([]ProductPopularity, 0, len(byName))
	for _, p := range byName {
		p.AvgOrderValue = p.TotalRevenue / float64(p.TotalOrders)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalRevenue != out[j].TotalRevenue {
			return out[i].TotalRevenue > out[j].TotalRevenue
		}
		return out[i].Product < out[j].Product
	})
	return out
}

func firstPresent(t *dataset.Table, names []string) *dataset.Column {
	for _, name := range names {
		if col, ok := t.Column(name); ok {
			return col
		}
	}
	return nil
}
