package argus

import (
	"math"
	"math/rand"
	"testing"

	"github.com/openfluke/argus/nn"
)

func TestDiscriminatorScoresOnePerSample(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := NewDiscriminator(6, []int{8, 4}, rng)

	batch := 5
	x := make([]float32, batch*6)
	for i := range x {
		x[i] = rng.Float32()
	}
	scores, err := d.Score(x, batch)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(scores) != batch {
		t.Errorf("got %d scores for %d samples", len(scores), batch)
	}
}

func TestGradientPenaltyZeroForUnitNormCritic(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	d := NewDiscriminator(2, nil, rng)
	// y = 0.6*x0 + 0.8*x1: the input gradient has norm exactly 1
	// everywhere, so the penalty and its weight gradient vanish.
	d.net.Layers[0].Weight = []float32{0.6, 0.8}
	d.net.Layers[0].Bias = []float32{0}

	real := []float32{1, 2, 0, -1}
	fake := []float32{0.5, 0.5, 1, 1}

	d.ZeroGrad()
	penalty, err := d.GradientPenalty(real, fake, 2, 10)
	if err != nil {
		t.Fatalf("gradient penalty: %v", err)
	}
	if penalty > 1e-10 {
		t.Errorf("penalty = %v, want ~0 for a 1-Lipschitz critic", penalty)
	}
	for i, g := range d.net.Layers[0].GradWeight {
		if math.Abs(float64(g)) > 1e-6 {
			t.Errorf("penalty weight gradient[%d] = %v, want ~0", i, g)
		}
	}
}

func TestGradientPenaltyDetectsScaledCritic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	d := NewDiscriminator(2, nil, rng)
	// Doubled weights give gradient norm 2: penalty (2-1)^2 = 1.
	d.net.Layers[0].Weight = []float32{1.2, 1.6}
	d.net.Layers[0].Bias = []float32{0}

	real := []float32{1, 0}
	fake := []float32{0, 1}

	d.ZeroGrad()
	penalty, err := d.GradientPenalty(real, fake, 1, 10)
	if err != nil {
		t.Fatalf("gradient penalty: %v", err)
	}
	if math.Abs(float64(penalty)-1) > 1e-5 {
		t.Errorf("penalty = %v, want 1", penalty)
	}
}

func TestGradientPenaltyStepShrinksOverlongGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	d := NewDiscriminator(2, nil, rng)
	d.net.Layers[0].Weight = []float32{1.2, 1.6}
	d.net.Layers[0].Bias = []float32{0}

	real := []float32{1, 0}
	fake := []float32{0, 1}

	// Repeated penalty-only steps should pull the weight norm toward 1.
	opt := nn.NewAdamOptimizerDefault()
	for step := 0; step < 400; step++ {
		d.ZeroGrad()
		if _, err := d.GradientPenalty(real, fake, 1, 10); err != nil {
			t.Fatalf("gradient penalty: %v", err)
		}
		opt.Step(d.Parameters(), 1e-2)
	}

	w := d.net.Layers[0].Weight
	norm := math.Sqrt(float64(w[0]*w[0] + w[1]*w[1]))
	if math.Abs(norm-1) > 0.05 {
		t.Errorf("weight norm after penalty training = %v, want ~1", norm)
	}
}
