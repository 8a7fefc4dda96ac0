package svm

import "strconv"

// Option configures an SVR.
type Option func(*SVR)

// WithC sets the regularization parameter.
func WithC(c float64) Option { return func(s *SVR) { s.params.C = c } }

// WithEpsilon sets the width of the insensitive tube.
func WithEpsilon(eps float64) Option { return func(s *SVR) { s.params.Epsilon = eps } }

// WithKernel selects linear, poly, rbf or sigmoid.
func WithKernel(kernel string) Option { return func(s *SVR) { s.params.Kernel = kernel } }

// WithGamma sets gamma to "scale", "auto" or a number such as "0.5".
func WithGamma(gamma string) Option { return func(s *SVR) { s.params.Gamma = gamma } }

// WithGammaValue sets a numeric gamma.
func WithGammaValue(gamma float64) Option {
	return WithGamma(strconv.FormatFloat(gamma, 'g', -1, 64))
}

// WithDegree sets the degree of the poly kernel.
func WithDegree(d int) Option { return func(s *SVR) { s.params.Degree = d } }

// WithCoef0 sets the independent term of the poly and sigmoid kernels.
func WithCoef0(c float64) Option { return func(s *SVR) { s.params.Coef0 = c } }

// WithTol sets the stopping tolerance on the largest projected-gradient
// violation, relative to the first pass.
func WithTol(tol float64) Option { return func(s *SVR) { s.params.Tol = tol } }

// WithMaxIter sets the maximum number of passes over the data.
func WithMaxIter(n int) Option { return func(s *SVR) { s.params.MaxIter = n } }
