package linear

// Option is a function that configures Regression
type Option func(*Regression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *Regression) {
		lr.params.FitIntercept = fit
	}
}

// WithRcond sets the relative cutoff for small singular values.
// Zero selects machine epsilon times max(n_samples, n_features).
func WithRcond(rcond float64) Option {
	return func(lr *Regression) {
		lr.params.Rcond = rcond
	}
}
