// Package preprocessing は学習前の特徴量変換を提供します。
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/salescope/core/model"
	"github.com/YuminosukeSato/salescope/pkg/errors"
)

var _ model.Transformer = (*StandardScaler)(nil)

// StandardScaler は特徴量を平均0、標準偏差1に変換する
//
// 標準偏差は母標準偏差（nで割る）を使い、ほぼ0の列はスケール1として扱う。
// SVRパイプラインの前段として、推定器と一体で学習・保存される。
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64 `json:"mean"`

	// Scale は各特徴量の標準偏差
	Scale []float64 `json:"scale"`

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool `json:"with_mean"`

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool `json:"with_std"`
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから統計情報（平均、標準偏差）を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)

		mean, std := stat.PopMeanStdDev(col, nil)
		if !s.WithMean {
			mean = 0
		}
		s.Mean[j] = mean

		if !s.WithStd {
			s.Scale[j] = 1.0
			continue
		}
		// 標準偏差が0に近い場合は1に設定（ゼロ除算を避ける）
		if math.IsNaN(std) || std < 1e-8 {
			std = 1.0
		}
		s.Scale[j] = std
	}

	s.state.SetTrained(nil, r)
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireTrained("StandardScaler", "Transform"); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	if c != len(s.Mean) {
		return nil, errors.NewDimensionError("StandardScaler.Transform", len(s.Mean), c, 1)
	}
	if r == 0 {
		return nil, errors.NewModelError("StandardScaler.Transform", "empty data", errors.ErrEmptyData)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform はFitとTransformを同時に実行する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireTrained("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	if c != len(s.Mean) {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", len(s.Mean), c, 1)
	}
	if r == 0 {
		return nil, errors.NewModelError("StandardScaler.InverseTransform", "empty data", errors.ErrEmptyData)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return result, nil
}

// IsFitted はFit済みかどうかを返す
func (s *StandardScaler) IsFitted() bool {
	return s.state.IsTrained()
}

// Restore はデコード済みの統計情報からFit済みの状態を復元する
func (s *StandardScaler) Restore() error {
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return errors.NewValidationError("scaler", "mean and scale must be non-empty and equal length", len(s.Mean))
	}
	if s.state == nil {
		s.state = model.NewStateManager()
	}
	s.state.SetTrained(nil, 0)
	return nil
}

// GetParams はハイパーパラメータを返す
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, len(s.Mean))
}
