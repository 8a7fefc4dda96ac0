package model

import (
	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/metrics"
)

// Regressor は売上予測モデルの共通インターフェース
//
// 線形回帰・決定木・サポートベクター回帰の3つの実装が満たし、
// ModelComparatorはこのインターフェースだけを通してモデルを扱う。
//
// ライフサイクル: 未学習 → Train → 学習済み（特徴量名を固定）→ Predict/Evaluate → Save/Load
type Regressor interface {
	// Name はモデル種別（"linear_regression", "decision_tree", "svm"）を返す
	Name() string

	// Train はモデルを学習させる。XのNaNは0、yのNaNはyの平均で補完する
	Train(X *dataset.Frame, y []float64) error

	// Predict は学習時の特徴量名でXを並べ替えてから予測する。予測値は0以上に切り詰められる
	Predict(X *dataset.Frame) ([]float64, error)

	// Evaluate はMSE、RMSE、MAE、R²を計算する
	Evaluate(X *dataset.Frame, y []float64) (metrics.Evaluation, error)

	// Save は学習済みモデルをJSONバンドルとして保存する
	Save(path string) error

	// Load は保存されたバンドルからモデルを復元する
	Load(path string) error

	// IsTrained はモデルが学習済みかどうかを返す
	IsTrained() bool

	// FeatureNames は学習時の特徴量名を返す（未学習ならnil）
	FeatureNames() []string

	// Hyperparameters はハイパーパラメータを返す
	Hyperparameters() map[string]any

	// Diagnostics は学習結果の診断情報（係数、木の深さ、サポートベクター数など）を返す
	Diagnostics() map[string]any

	// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
	Clone() Regressor
}
