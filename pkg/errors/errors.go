// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// 前処理・特徴量生成・モデル比較の各段階で、どの前提条件が破られたかを型で識別できるようにします。
package errors

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("salescope-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// ConvergenceWarning は最適化アルゴリズムが収束しなかった場合に発生する警告です。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning は新しいConvergenceWarningを作成します。
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// DataConversionWarning は列の変換（日付解析・数値化・エンコード）に失敗し、
// その列から派生する特徴量が省略された場合に発生する警告です。
type DataConversionWarning struct {
	Column   string
	FromType string
	ToType   string
	Reason   string
}

func (w *DataConversionWarning) Error() string {
	if w.Column != "" {
		return fmt.Sprintf("column '%s' could not be converted from %s to %s. Reason: %s", w.Column, w.FromType, w.ToType, w.Reason)
	}
	return fmt.Sprintf("data converted from %s to %s. Reason: %s", w.FromType, w.ToType, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning は新しいDataConversionWarningを作成します。
func NewDataConversionWarning(column, from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{Column: column, FromType: from, ToType: to, Reason: reason}
}

// UndefinedMetricWarning は評価指標が定義できない場合に発生する警告です。
// 例えば、目的変数が定数の分割でR²を計算する場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	パイプラインの前提条件エラー
//
// ===========================================================================

// MissingColumnError は必須の特徴量列または目的変数列が入力に存在しない場合のエラーです。
type MissingColumnError struct {
	Op         string
	Column     string
	Candidates []string // 探索した列名の候補（任意）
}

func (e *MissingColumnError) Error() string {
	if len(e.Candidates) > 0 {
		return fmt.Sprintf("salescope: %s: required column %s not found (looked for: %s)",
			e.Op, e.Column, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("salescope: %s: required column %s not found", e.Op, e.Column)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *MissingColumnError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("column", e.Column).
		Strs("candidates", e.Candidates).
		Str("type", "MissingColumnError")
}

// NewMissingColumnError は新しいMissingColumnErrorを作成し、スタックトレースを付与します。
func NewMissingColumnError(op, column string, candidates ...string) error {
	err := &MissingColumnError{Op: op, Column: column, Candidates: candidates}
	return errors.WithStack(err)
}

// UntrainedModelError はモデルが未学習の状態で `Predict` や `Evaluate`、`Save` を呼び出した場合のエラーです。
type UntrainedModelError struct {
	ModelName string
	Method    string
}

func (e *UntrainedModelError) Error() string {
	return fmt.Sprintf("salescope: %s: this model is not trained yet. Call Train() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UntrainedModelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "UntrainedModelError")
}

// NewUntrainedModelError は新しいUntrainedModelErrorを作成し、スタックトレースを付与します。
func NewUntrainedModelError(modelName, method string) error {
	err := &UntrainedModelError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// ModelFileNotFoundError は保存済みモデル（または比較結果）のファイルが存在しない場合のエラーです。
type ModelFileNotFoundError struct {
	Path string
}

func (e *ModelFileNotFoundError) Error() string {
	return fmt.Sprintf("salescope: model file not found at %s", e.Path)
}

// NewModelFileNotFoundError は新しいModelFileNotFoundErrorを作成し、スタックトレースを付与します。
func NewModelFileNotFoundError(path string) error {
	err := &ModelFileNotFoundError{Path: path}
	return errors.WithStack(err)
}

// NoComparisonPerformedError は比較が一度も実行されていない状態で
// 最良モデルやレポートを要求した場合のエラーです。
type NoComparisonPerformedError struct {
	Op string
}

func (e *NoComparisonPerformedError) Error() string {
	return fmt.Sprintf("salescope: %s: no model comparison has been performed. Call Compare() first", e.Op)
}

// NewNoComparisonPerformedError は新しいNoComparisonPerformedErrorを作成し、スタックトレースを付与します。
func NewNoComparisonPerformedError(op string) error {
	err := &NoComparisonPerformedError{Op: op}
	return errors.WithStack(err)
}

// ModelTrainingError はモデル比較の途中で特定のモデルの学習・評価が失敗した場合のエラーです。
// Fold が -1 の場合は交差検証後の全訓練データでの学習・評価を表します。
type ModelTrainingError struct {
	ModelName string
	Phase     string // "cross_validation", "final_fit", "holdout"
	Fold      int
	Err       error
}

func (e *ModelTrainingError) Error() string {
	if e.Fold >= 0 {
		return fmt.Sprintf("salescope: model %q failed during %s (fold %d): %v", e.ModelName, e.Phase, e.Fold, e.Err)
	}
	return fmt.Sprintf("salescope: model %q failed during %s: %v", e.ModelName, e.Phase, e.Err)
}

func (e *ModelTrainingError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ModelTrainingError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("phase", e.Phase).
		Int("fold", e.Fold).
		Str("type", "ModelTrainingError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewModelTrainingError は新しいModelTrainingErrorを作成し、スタックトレースを付与します。
func NewModelTrainingError(modelName, phase string, fold int, err error) error {
	trainErr := &ModelTrainingError{ModelName: modelName, Phase: phase, Fold: fold, Err: err}
	return errors.WithStack(trainErr)
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("salescope: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("salescope: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("salescope: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError は推定器内部の一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("salescope: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("salescope: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// NaN、Inf などを検出します。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "predict", "kernel"）
	Values    []float64 // 問題のある値
	Iteration int       // 発生したイテレーション番号（該当しない場合は0）
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("salescope: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrNoFeatures は特徴量が一つもない行列で学習しようとした場合のエラーです。
	ErrNoFeatures = New("no feature columns")
)
