package nn

import "math"

// Optimizer interface defines the contract for all optimizers
type Optimizer interface {
	// Step applies the accumulated gradients to the parameter list
	Step(params []Param, learningRate float32)

	// Reset clears optimizer state (moment estimates, step count)
	Reset()

	// Name returns the optimizer name
	Name() string
}

// =============================================================================
// Adam Optimizer
// =============================================================================

// AdamOptimizer implements Adam with per-parameter first and second moment
// estimates. Moment buffers are keyed by position in the parameter list,
// so Step must always be called with the same list.
type AdamOptimizer struct {
	beta1   float32
	beta2   float32
	epsilon float32
	step    int

	m [][]float32 // first moment estimates
	v [][]float32 // second moment estimates
}

func NewAdamOptimizer(beta1, beta2, epsilon float32) *AdamOptimizer {
	return &AdamOptimizer{
		beta1:   beta1,
		beta2:   beta2,
		epsilon: epsilon,
	}
}

// NewAdamOptimizerDefault returns Adam with betas (0.5, 0.999), the
// momentum pair used for Wasserstein-critic training.
func NewAdamOptimizerDefault() *AdamOptimizer {
	return NewAdamOptimizer(0.5, 0.999, 1e-8)
}

func (opt *AdamOptimizer) Step(params []Param, learningRate float32) {
	if opt.m == nil {
		opt.m = make([][]float32, len(params))
		opt.v = make([][]float32, len(params))
		for i, p := range params {
			opt.m[i] = make([]float32, len(p.Data))
			opt.v[i] = make([]float32, len(p.Data))
		}
	}

	opt.step++
	biasCorrection1 := 1.0 - float32(math.Pow(float64(opt.beta1), float64(opt.step)))
	biasCorrection2 := 1.0 - float32(math.Pow(float64(opt.beta2), float64(opt.step)))

	for i, p := range params {
		for j := range p.Data {
			grad := p.Grad[j]

			opt.m[i][j] = opt.beta1*opt.m[i][j] + (1-opt.beta1)*grad
			opt.v[i][j] = opt.beta2*opt.v[i][j] + (1-opt.beta2)*grad*grad

			mHat := opt.m[i][j] / biasCorrection1
			vHat := opt.v[i][j] / biasCorrection2

			p.Data[j] -= learningRate * mHat / (float32(math.Sqrt(float64(vHat))) + opt.epsilon)
		}
	}
}

func (opt *AdamOptimizer) Reset() {
	opt.step = 0
	opt.m = nil
	opt.v = nil
}

func (opt *AdamOptimizer) Name() string {
	return "Adam"
}
