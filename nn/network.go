package nn

import (
	"fmt"
	"math"
	"math/rand"
)

// Network applies an ordered list of layer records in sequence. The
// optional output clamp rectifies the final output to non-negative values
// (expression counts cannot be negative).
type Network struct {
	Layers     []Layer
	OutputReLU bool

	training bool
	rng      *rand.Rand
	outPre   []float32
}

// NewNetwork builds a network over the given layer records. rng drives the
// dropout masks in training mode.
func NewNetwork(layers []Layer, rng *rand.Rand) *Network {
	return &Network{Layers: layers, rng: rng, training: true}
}

// SetTraining switches between training mode (dropout active) and
// evaluation mode (fully deterministic).
func (n *Network) SetTraining(v bool) {
	n.training = v
}

// InputDim returns the expected per-sample input dimension.
func (n *Network) InputDim() int {
	return n.Layers[0].In
}

// OutputDim returns the per-sample output dimension.
func (n *Network) OutputDim() int {
	return n.Layers[len(n.Layers)-1].Out
}

// Forward runs the layer stack over a flat batch and caches the
// intermediate state needed by Backward.
func (n *Network) Forward(input []float32, batch int) ([]float32, error) {
	if batch <= 0 || len(input) != batch*n.InputDim() {
		return nil, fmt.Errorf("input length %d does not match batch %d x dim %d",
			len(input), batch, n.InputDim())
	}

	h := input
	for i := range n.Layers {
		h = blockForward(&n.Layers[i], h, batch, n.training, n.rng)
	}

	if n.OutputReLU {
		n.outPre = h
		out := make([]float32, len(h))
		for i, v := range h {
			out[i] = activate(v, ActivationReLU)
		}
		return out, nil
	}
	n.outPre = nil
	return h, nil
}

// Backward propagates the output gradient through the stack, accumulating
// parameter gradients, and returns the gradient w.r.t. the input. Call
// ZeroGrad before the first backward pass of an update step.
func (n *Network) Backward(grad []float32, batch int) []float32 {
	g := grad
	if n.OutputReLU {
		g = make([]float32, len(grad))
		for i := range grad {
			g[i] = grad[i] * activateDerivative(n.outPre[i], ActivationReLU)
		}
	}
	for i := len(n.Layers) - 1; i >= 0; i-- {
		g = blockBackward(&n.Layers[i], g, batch)
	}
	return g
}

// ZeroGrad clears all accumulated parameter gradients.
func (n *Network) ZeroGrad() {
	for i := range n.Layers {
		zeroLayerGrad(&n.Layers[i])
	}
}

func zeroLayerGrad(l *Layer) {
	clearSlice(l.GradWeight)
	clearSlice(l.GradBias)
	clearSlice(l.GradGamma)
	clearSlice(l.GradBeta)
	for i := range l.Inner {
		zeroLayerGrad(&l.Inner[i])
	}
}

func clearSlice(s []float32) {
	for i := range s {
		s[i] = 0
	}
}

// Parameters returns the flattened parameter list in a stable order, for
// optimizer consumption.
func (n *Network) Parameters() []Param {
	var params []Param
	for i := range n.Layers {
		params = appendLayerParams(params, &n.Layers[i])
	}
	return params
}

func appendLayerParams(params []Param, l *Layer) []Param {
	if l.Kind == LayerLinear {
		params = append(params,
			Param{Data: l.Weight, Grad: l.GradWeight},
			Param{Data: l.Bias, Grad: l.GradBias})
		if l.Norm {
			params = append(params,
				Param{Data: l.Gamma, Grad: l.GradGamma},
				Param{Data: l.Beta, Grad: l.GradBeta})
		}
	}
	for i := range l.Inner {
		params = appendLayerParams(params, &l.Inner[i])
	}
	return params
}

// =============================================================================
// Input-gradient machinery for the Lipschitz penalty
// =============================================================================

// InputGradient differentiates the sum of the network outputs w.r.t. the
// input of the latest Forward call, per sample. It also returns the
// per-layer pre-activation gradients, which AddPenaltyGradient consumes.
//
// Only plain piecewise-linear stacks are supported: with the activation
// masks fixed, the input gradient is multilinear in the weights, which is
// what makes the penalty's exact weight gradient computable without
// generic double backpropagation.
func (n *Network) InputGradient(batch int) ([]float32, [][]float32, error) {
	layerGrads := make([][]float32, len(n.Layers))
	delta := make([]float32, batch*n.OutputDim())
	for i := range delta {
		delta[i] = 1
	}

	for li := len(n.Layers) - 1; li >= 0; li-- {
		l := &n.Layers[li]
		if l.Kind != LayerLinear || l.Norm || l.Dropout > 0 {
			return nil, nil, fmt.Errorf("input gradient requires plain linear blocks, layer %d is not", li)
		}

		dy := make([]float32, len(delta))
		for i := range delta {
			dy[i] = delta[i] * activateDerivative(l.preAct[i], l.Act)
		}
		layerGrads[li] = dy

		next := make([]float32, batch*l.In)
		for b := 0; b < batch; b++ {
			for o := 0; o < l.Out; o++ {
				g := dy[b*l.Out+o]
				for i := 0; i < l.In; i++ {
					next[b*l.In+i] += l.Weight[i*l.Out+o] * g
				}
			}
		}
		delta = next
	}
	return delta, layerGrads, nil
}

// AddPenaltyGradient accumulates d(seed . inputGradient)/dW into the
// weight gradients: seed is forward-propagated through the masked linear
// structure and outer-multiplied with the cached pre-activation gradients.
// Biases do not influence input gradients and receive nothing.
func (n *Network) AddPenaltyGradient(seed []float32, layerGrads [][]float32, batch int) {
	v := seed
	for li := range n.Layers {
		l := &n.Layers[li]
		dy := layerGrads[li]

		for b := 0; b < batch; b++ {
			for i := 0; i < l.In; i++ {
				vi := v[b*l.In+i]
				if vi == 0 {
					continue
				}
				for o := 0; o < l.Out; o++ {
					l.GradWeight[i*l.Out+o] += vi * dy[b*l.Out+o]
				}
			}
		}

		next := make([]float32, batch*l.Out)
		for b := 0; b < batch; b++ {
			for o := 0; o < l.Out; o++ {
				var sum float32
				for i := 0; i < l.In; i++ {
					sum += v[b*l.In+i] * l.Weight[i*l.Out+o]
				}
				next[b*l.Out+o] = sum * activateDerivative(l.preAct[b*l.Out+o], l.Act)
			}
		}
		v = next
	}
}

// GradNorm returns the global L2 norm of the accumulated gradients.
func (n *Network) GradNorm() float32 {
	var total float64
	for _, p := range n.Parameters() {
		for _, g := range p.Grad {
			total += float64(g) * float64(g)
		}
	}
	return float32(math.Sqrt(total))
}
