package linear

// Option configures Regression and LogisticRegression.
type Option func(*config)

type config struct {
	penalty      float64 // L2 penalty (glmnet scaling: λ/2 ‖β‖² added to the mean loss)
	fitIntercept bool
	maxIter      int
	tol          float64 // gradient norm threshold for LBFGS
}

func defaultConfig() config {
	return config{
		penalty:      0,
		fitIntercept: true,
		maxIter:      200,
		tol:          1e-6,
	}
}

// WithPenalty sets the L2 penalty. Negative values are treated as 0.
func WithPenalty(penalty float64) Option {
	return func(c *config) {
		if penalty < 0 {
			penalty = 0
		}
		c.penalty = penalty
	}
}

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(c *config) {
		c.fitIntercept = fit
	}
}

// WithMaxIter sets the iteration budget of the optimizer
func WithMaxIter(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxIter = n
		}
	}
}

// WithTol sets the tolerance for the optimization
func WithTol(tol float64) Option {
	return func(c *config) {
		if tol > 0 {
			c.tol = tol
		}
	}
}
