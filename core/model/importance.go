package model

import (
	"math"
	"sort"
)

// FeatureImportance は1つの特徴量の重要度
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// RankImportance は特徴量名と重要度を組にし、重要度の降順（同値は名前順）に並べる
//
// 重要度には絶対値を使う（線形モデルの係数は負にもなるため）。
func RankImportance(names []string, values []float64) []FeatureImportance {
	out := make([]FeatureImportance, 0, len(names))
	for i, n := range names {
		if i >= len(values) {
			break
		}
		out = append(out, FeatureImportance{Feature: n, Importance: math.Abs(values[i])})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Importance != out[b].Importance {
			return out[a].Importance > out[b].Importance
		}
		return out[a].Feature < out[b].Feature
	})
	return out
}
