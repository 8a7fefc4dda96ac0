package model

import (
	"encoding/json"
	"time"

	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// BundleVersion はバンドル形式のバージョン（互換性チェック用）
const BundleVersion = "1"

// Bundle は学習済みモデルの保存形式
//
// ハイパーパラメータ・診断情報・推定器本体はモデル種別ごとに構造が異なるため、
// json.RawMessageとして保持し、各モデルのLoadで型付きの構造体にデコードする。
type Bundle struct {
	// ModelType はモデルの種類（linear_regression, decision_tree, svm）
	ModelType string `json:"model_type"`

	// Version はバンドル形式のバージョン
	Version string `json:"version"`

	// FeatureNames は学習時の特徴量名（予測時の列の並べ替えに使用）
	FeatureNames []string `json:"feature_names"`

	// NSamples は学習に使用したサンプル数
	NSamples int `json:"n_samples"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters json.RawMessage `json:"hyperparameters"`

	// Diagnostics は学習結果の診断情報
	Diagnostics json.RawMessage `json:"diagnostics,omitempty"`

	// Estimator は学習済みパラメータ（係数、木のノード、双対係数など）
	Estimator json.RawMessage `json:"estimator"`

	// SavedAt は保存時刻
	SavedAt time.Time `json:"saved_at"`
}

// NewBundle は学習済みモデルの状態からバンドルを作成する
//
// パラメータ:
//   - modelType: モデル種別
//   - state: 学習状態（未学習の場合はエラー）
//   - params: ハイパーパラメータ（JSONエンコード可能な値）
//   - diagnostics: 診断情報（nil可）
//   - estimator: 学習済みパラメータ
func NewBundle(modelType string, state *StateManager, params, diagnostics, estimator any) (*Bundle, error) {
	if err := state.RequireTrained(modelType, "Save"); err != nil {
		return nil, err
	}
	names, nSamples := state.FeatureNames(), state.GetState().NSamples

	b := &Bundle{
		ModelType:    modelType,
		Version:      BundleVersion,
		FeatureNames: names,
		NSamples:     nSamples,
		SavedAt:      time.Now().UTC(),
	}
	var err error
	if b.Hyperparameters, err = json.Marshal(params); err != nil {
		return nil, errors.Wrap(err, "failed to encode hyperparameters")
	}
	if diagnostics != nil {
		if b.Diagnostics, err = json.Marshal(diagnostics); err != nil {
			return nil, errors.Wrap(err, "failed to encode diagnostics")
		}
	}
	if b.Estimator, err = json.Marshal(estimator); err != nil {
		return nil, errors.Wrap(err, "failed to encode estimator")
	}
	return b, nil
}

// Validate はバンドルの妥当性を検証する
func (b *Bundle) Validate() error {
	if b.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", b.ModelType)
	}
	if b.Version != BundleVersion {
		return errors.NewValidationError("version", "unsupported bundle version", b.Version)
	}
	if len(b.FeatureNames) == 0 {
		return errors.NewValidationError("feature_names", "trained bundle must list its features", b.FeatureNames)
	}
	if len(b.Estimator) == 0 {
		return errors.NewValidationError("estimator", "is required", nil)
	}
	return nil
}

// Expect はバンドルが指定したモデル種別であることを確認する
func (b *Bundle) Expect(modelType string) error {
	if b.ModelType != modelType {
		return errors.NewValueError("Load", "bundle holds model_type "+b.ModelType+", expected "+modelType)
	}
	return nil
}

// Decode はハイパーパラメータと推定器本体をそれぞれの構造体にデコードする
func (b *Bundle) Decode(params, estimator any) error {
	if err := json.Unmarshal(b.Hyperparameters, params); err != nil {
		return errors.Wrap(err, "failed to decode hyperparameters")
	}
	if err := json.Unmarshal(b.Estimator, estimator); err != nil {
		return errors.Wrap(err, "failed to decode estimator")
	}
	return nil
}

// State はバンドルから復元した学習状態を返す
func (b *Bundle) State() ModelState {
	return ModelState{Trained: true, FeatureNames: b.FeatureNames, NSamples: b.NSamples}
}
