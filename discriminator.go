package argus

import (
	"math"
	"math/rand"

	"github.com/openfluke/argus/nn"
)

// Discriminator is a Wasserstein-style critic: an unbounded scalar
// realness score per sample, no sigmoid. The stack is deliberately built
// from plain piecewise-linear blocks (no normalization, no dropout) so
// the gradient penalty's weight gradient stays exactly computable.
type Discriminator struct {
	net   *nn.Network
	inDim int
	rng   *rand.Rand
}

// NewDiscriminator builds a critic over inputs of dimension inDim. rng
// seeds weight initialization and the interpolation coefficients of the
// gradient penalty.
func NewDiscriminator(inDim int, hidden []int, rng *rand.Rand) *Discriminator {
	var layers []nn.Layer
	prev := inDim
	for _, dim := range hidden {
		layers = append(layers, nn.InitLinearBlock(prev, dim, false, nn.ActivationLeakyReLU, 0, rng))
		prev = dim
	}
	layers = append(layers, nn.InitLinearBlock(prev, 1, false, nn.ActivationLinear, 0, rng))

	return &Discriminator{
		net:   nn.NewNetwork(layers, rng),
		inDim: inDim,
		rng:   rng,
	}
}

// Score returns the critic's realness score for each sample.
func (d *Discriminator) Score(x []float32, batch int) ([]float32, error) {
	return d.net.Forward(x, batch)
}

// Backward propagates per-sample score gradients through the critic,
// accumulating its weight gradients, and returns the gradient w.r.t. the
// input (the generator's adversarial feedback path).
func (d *Discriminator) Backward(grad []float32, batch int) []float32 {
	return d.net.Backward(grad, batch)
}

// GradientPenalty enforces the approximate 1-Lipschitz constraint: it
// samples per-sample interpolation coefficients in [0,1], forms
// interpolated samples between real and fake, and penalizes the squared
// deviation of the critic's input-gradient norm from 1.
//
// The returned value is the unscaled penalty mean((|g|-1)^2). The exact
// weight-space gradient of lambda times the penalty is accumulated into
// the critic's gradients: with the activation masks fixed the input
// gradient is multilinear in the weights, so one masked forward sweep of
// the seed vector yields d(penalty)/dW without generic double
// backpropagation.
func (d *Discriminator) GradientPenalty(real, fake []float32, batch int, lambda float32) (float32, error) {
	interp := make([]float32, len(real))
	for b := 0; b < batch; b++ {
		eps := d.rng.Float32()
		for i := 0; i < d.inDim; i++ {
			idx := b*d.inDim + i
			interp[idx] = eps*real[idx] + (1-eps)*fake[idx]
		}
	}

	if _, err := d.net.Forward(interp, batch); err != nil {
		return 0, err
	}
	grad, layerGrads, err := d.net.InputGradient(batch)
	if err != nil {
		return 0, err
	}

	var penalty float32
	seed := make([]float32, len(grad))
	for b := 0; b < batch; b++ {
		var sq float64
		for i := 0; i < d.inDim; i++ {
			g := grad[b*d.inDim+i]
			sq += float64(g) * float64(g)
		}
		norm := float32(math.Sqrt(sq))
		dev := norm - 1
		penalty += dev * dev

		// d(penalty)/dg per sample, scaled by lambda and the batch mean
		scale := lambda * 2 * dev / (float32(batch) * (norm + 1e-12))
		for i := 0; i < d.inDim; i++ {
			idx := b*d.inDim + i
			seed[idx] = scale * grad[idx]
		}
	}
	penalty /= float32(batch)

	if lambda != 0 {
		d.net.AddPenaltyGradient(seed, layerGrads, batch)
	}
	return penalty, nil
}

// Parameters returns the critic's trainable parameters.
func (d *Discriminator) Parameters() []nn.Param {
	return d.net.Parameters()
}

// ZeroGrad clears the critic's accumulated gradients.
func (d *Discriminator) ZeroGrad() {
	d.net.ZeroGrad()
}
