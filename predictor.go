package argus

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/openfluke/argus/nn"
)

// Predictor calibrates critic scores into anomaly probabilities. It is a
// small logistic classifier over a sample's (real, reconstruction) score
// pair, trained after the adversarial phase: observed pairs are labeled
// normal and swapped pairs anomalous, so a sample whose own score falls
// where reconstruction scores live is pushed toward probability 1.
type Predictor struct {
	net *nn.Network
}

// NewPredictor builds the calibrator with one hidden layer over the
// two-dimensional score pair.
func NewPredictor(hidden int, rng *rand.Rand) *Predictor {
	layers := []nn.Layer{
		nn.InitLinearBlock(2, hidden, false, nn.ActivationLeakyReLU, 0, rng),
		nn.InitLinearBlock(hidden, 1, false, nn.ActivationLinear, 0, rng),
	}
	return &Predictor{net: nn.NewNetwork(layers, rng)}
}

// TrainStep runs one full-batch epoch of binary cross-entropy on the
// frozen score vectors: each sample contributes its observed (real, fake)
// pair labeled 0 and the swapped pair labeled 1. The same pairs are
// reused every epoch, no mini-batching. Returns the epoch loss; gradients
// are left accumulated for the optimizer step.
func (p *Predictor) TrainStep(realScores, fakeScores []float32) (float32, error) {
	observed, err := pairScores(realScores, fakeScores)
	if err != nil {
		return 0, err
	}

	m := len(realScores)
	n := 2 * m
	pairs := make([]float32, n*2)
	copy(pairs, observed)
	y := make([]float32, n)
	for i := 0; i < m; i++ {
		pairs[(m+i)*2] = fakeScores[i]
		pairs[(m+i)*2+1] = realScores[i]
		y[m+i] = 1
	}

	logits, err := p.net.Forward(pairs, n)
	if err != nil {
		return 0, err
	}

	var loss float64
	grad := make([]float32, n)
	for i, logit := range logits {
		prob := sigmoid(float64(logit))
		prob = math.Min(math.Max(prob, 1e-7), 1-1e-7)
		if y[i] > 0 {
			loss -= math.Log(prob)
		} else {
			loss -= math.Log(1 - prob)
		}
		grad[i] = (float32(prob) - y[i]) / float32(n)
	}

	p.net.ZeroGrad()
	p.net.Backward(grad, n)
	return float32(loss / float64(n)), nil
}

// Probabilities maps each sample's (real, fake) score pair to a
// calibrated anomaly probability in [0,1].
func (p *Predictor) Probabilities(realScores, fakeScores []float32) ([]float64, error) {
	x, err := pairScores(realScores, fakeScores)
	if err != nil {
		return nil, err
	}
	logits, err := p.net.Forward(x, len(realScores))
	if err != nil {
		return nil, err
	}
	probs := make([]float64, len(logits))
	for i, logit := range logits {
		probs[i] = sigmoid(float64(logit))
	}
	return probs, nil
}

// Parameters returns the calibrator's trainable parameters.
func (p *Predictor) Parameters() []nn.Param {
	return p.net.Parameters()
}

// pairScores interleaves the per-sample score vectors into flat
// (real, fake) rows.
func pairScores(realScores, fakeScores []float32) ([]float32, error) {
	if len(realScores) != len(fakeScores) {
		return nil, fmt.Errorf("argus: %d real scores but %d fake scores",
			len(realScores), len(fakeScores))
	}
	x := make([]float32, len(realScores)*2)
	for i := range realScores {
		x[i*2] = realScores[i]
		x[i*2+1] = fakeScores[i]
	}
	return x, nil
}

func sigmoid(v float64) float64 {
	return 1.0 / (1.0 + math.Exp(-v))
}
