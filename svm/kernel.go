package svm

import (
	"math"

	"github.com/spf13/cast"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// Kernel names accepted by WithKernel.
const (
	KernelLinear  = "linear"
	KernelPoly    = "poly"
	KernelRBF     = "rbf"
	KernelSigmoid = "sigmoid"
)

// Gamma modes. Any positive number written as a string is also accepted.
const (
	GammaScale = "scale"
	GammaAuto  = "auto"
)

// kernelFunc は2つの標準化済みサンプル間のカーネル値を返す
type kernelFunc func(a, b []float64) float64

func newKernel(kind string, gamma float64, degree int, coef0 float64) (kernelFunc, error) {
	switch kind {
	case KernelLinear:
		return func(a, b []float64) float64 { return floats.Dot(a, b) }, nil
	case KernelPoly:
		d := float64(degree)
		return func(a, b []float64) float64 {
			return math.Pow(gamma*floats.Dot(a, b)+coef0, d)
		}, nil
	case KernelRBF:
		return func(a, b []float64) float64 {
			d := floats.Distance(a, b, 2)
			return math.Exp(-gamma * d * d)
		}, nil
	case KernelSigmoid:
		return func(a, b []float64) float64 {
			return math.Tanh(gamma*floats.Dot(a, b) + coef0)
		}, nil
	default:
		return nil, errors.NewValidationError("kernel", "must be one of linear, poly, rbf, sigmoid", kind)
	}
}

// resolveGamma は "scale"（1 / (n_features * Var(X))）、"auto"（1 / n_features）、
// または正の数値文字列からgammaを求める。data は標準化済みの行優先配列。
func resolveGamma(gamma string, data []float64, nFeatures int) (float64, error) {
	switch gamma {
	case GammaScale, "":
		v := stat.PopVariance(data, nil)
		if v <= 0 || math.IsNaN(v) {
			return 1.0, nil
		}
		return 1.0 / (float64(nFeatures) * v), nil
	case GammaAuto:
		return 1.0 / float64(nFeatures), nil
	}
	g, err := cast.ToFloat64E(gamma)
	if err != nil || g <= 0 || math.IsInf(g, 0) || math.IsNaN(g) {
		return 0, errors.NewValidationError("gamma", "must be scale, auto or a positive number", gamma)
	}
	return g, nil
}
