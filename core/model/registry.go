package model

import (
	"strings"
	"unicode"

	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// Registry は名前付きモデルを登録順に保持する
//
// ModelComparatorは登録順にモデルを評価し、テストRMSEが同値の場合は
// 先に登録されたモデルを最良とする。
type Registry struct {
	names  []string
	models map[string]Regressor
}

// NewRegistry は空のRegistryを作成する
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Regressor)}
}

// Register はモデルを登録する。空の名前、nil、重複名はエラー
func (r *Registry) Register(name string, m Regressor) error {
	if strings.TrimSpace(name) == "" {
		return errors.NewValidationError("name", "model name must not be empty", name)
	}
	if m == nil {
		return errors.NewValidationError("model", "model must not be nil", name)
	}
	if _, dup := r.models[name]; dup {
		return errors.NewValidationError("name", "model already registered", name)
	}
	r.names = append(r.names, name)
	r.models[name] = m
	return nil
}

// MustRegister is Register that panics on error. Intended for static setup.
func (r *Registry) MustRegister(name string, m Regressor) *Registry {
	if err := r.Register(name, m); err != nil {
		panic(err)
	}
	return r
}

// Names は登録順のモデル名を返す
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Get は名前からモデルを取得する
func (r *Registry) Get(name string) (Regressor, bool) {
	m, ok := r.models[name]
	return m, ok
}

// Len は登録されたモデル数を返す
func (r *Registry) Len() int {
	return len(r.names)
}

// Slug はモデル名をファイル名に使える形（小文字、英数字以外は"_"）に変換する
//
//	Slug("Decision Tree") == "decision_tree"
func Slug(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
