package nn

import (
	"math"
	"math/rand"
)

// InitLinearBlock initializes a fused fully-connected block record.
// norm enables per-sample normalization, act selects the activation
// (ActivationLinear for none), dropout is the drop probability applied in
// training mode only.
func InitLinearBlock(in, out int, norm bool, act ActivationType, dropout float32, rng *rand.Rand) Layer {
	l := Layer{
		Kind:       LayerLinear,
		In:         in,
		Out:        out,
		Weight:     xavierNormal(in, out, rng),
		Bias:       make([]float32, out),
		Norm:       norm,
		Act:        act,
		Dropout:    dropout,
		GradWeight: make([]float32, in*out),
		GradBias:   make([]float32, out),
	}
	if norm {
		l.Gamma = make([]float32, out)
		for i := range l.Gamma {
			l.Gamma[i] = 1
		}
		l.Beta = make([]float32, out)
		l.GradGamma = make([]float32, out)
		l.GradBeta = make([]float32, out)
	}
	return l
}

// InitResidualBlock initializes a dimension-preserving residual record:
// a full dense block followed by a bare one, with the input added back
// before a final LeakyReLU.
func InitResidualBlock(dim int, rng *rand.Rand) Layer {
	return Layer{
		Kind: LayerResidual,
		In:   dim,
		Out:  dim,
		Act:  ActivationLeakyReLU,
		Inner: []Layer{
			InitLinearBlock(dim, dim, true, ActivationLeakyReLU, 0.1, rng),
			InitLinearBlock(dim, dim, false, ActivationLinear, 0, rng),
		},
	}
}

// xavierNormal draws a weight matrix with variance-scaling initialization,
// std = sqrt(2 / (fanIn + fanOut))
func xavierNormal(in, out int, rng *rand.Rand) []float32 {
	stddev := float32(math.Sqrt(2.0 / float64(in+out)))
	w := make([]float32, in*out)
	for i := range w {
		w[i] = float32(rng.NormFloat64()) * stddev
	}
	return w
}

// denseForward computes output = input @ weights + bias and caches the
// input for the backward pass.
// input: [batch * In], output: [batch * Out]
func denseForward(l *Layer, input []float32, batch int) []float32 {
	l.input = input
	out := make([]float32, batch*l.Out)
	for b := 0; b < batch; b++ {
		for o := 0; o < l.Out; o++ {
			sum := l.Bias[o]
			for i := 0; i < l.In; i++ {
				sum += input[b*l.In+i] * l.Weight[i*l.Out+o]
			}
			out[b*l.Out+o] = sum
		}
	}
	return out
}

// denseBackward accumulates weight and bias gradients from the cached
// input and returns the gradient w.r.t. the block input.
func denseBackward(l *Layer, grad []float32, batch int) []float32 {
	gradInput := make([]float32, batch*l.In)
	for b := 0; b < batch; b++ {
		for o := 0; o < l.Out; o++ {
			g := grad[b*l.Out+o]
			l.GradBias[o] += g
			for i := 0; i < l.In; i++ {
				l.GradWeight[i*l.Out+o] += l.input[b*l.In+i] * g
				gradInput[b*l.In+i] += l.Weight[i*l.Out+o] * g
			}
		}
	}
	return gradInput
}
