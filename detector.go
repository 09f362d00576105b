package argus

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/openfluke/argus/accel"
	"github.com/openfluke/argus/nn"
)

// Config holds the construction-time training configuration. Zero-value
// fields take the defaults below.
type Config struct {
	PrepareEpochs int     // autoencoder pre-training epochs
	TrainEpochs   int     // adversarial epochs
	PredictEpochs int     // calibration epochs
	BatchSize     int     // training and scoring batch size
	LearningRate  float64 // initial learning rate for all optimizers
	NCritic       int     // critic updates per generator update
	GPU           bool    // request an accelerator; absent falls back to host
	Seed          int64   // seeds every random stream

	// Weights maps the loss terms: "rec" (reconstruction), "adv"
	// (adversarial), "gp" (gradient penalty).
	Weights map[string]float64

	Generator       GeneratorConfig
	CriticHidden    []int
	PredictorHidden int
}

// DefaultConfig returns the reference hyperparameters.
func DefaultConfig() *Config {
	return &Config{
		PrepareEpochs:   20,
		TrainEpochs:     100,
		PredictEpochs:   20,
		BatchSize:       256,
		LearningRate:    1e-4,
		NCritic:         1,
		Weights:         map[string]float64{"rec": 50, "adv": 1, "gp": 10},
		Generator:       DefaultGeneratorConfig(),
		CriticHidden:    []int{512, 256},
		PredictorHidden: 32,
	}
}

// Detector owns the two-phase adversarial training loop and the scoring
// pipeline. Lifecycle: New -> Detect (prepare + adversarial phases) ->
// Predict (scoring + calibration). Predict before Detect, or with a
// different gene vector, fails immediately.
type Detector struct {
	cfg Config

	G *Generator
	D *Discriminator

	genes   []string
	trained bool

	log *logrus.Entry
}

// New builds a detector. cfg may be nil; zero-value fields take defaults.
func New(cfg *Config) *Detector {
	c := DefaultConfig()
	if cfg != nil {
		merged := *cfg
		applyDefaults(&merged, c)
		c = &merged
	}
	return &Detector{
		cfg: *c,
		log: logrus.WithField("component", "argus"),
	}
}

func applyDefaults(c, def *Config) {
	if c.PrepareEpochs == 0 {
		c.PrepareEpochs = def.PrepareEpochs
	}
	if c.TrainEpochs == 0 {
		c.TrainEpochs = def.TrainEpochs
	}
	if c.PredictEpochs == 0 {
		c.PredictEpochs = def.PredictEpochs
	}
	if c.BatchSize == 0 {
		c.BatchSize = def.BatchSize
	}
	if c.LearningRate == 0 {
		c.LearningRate = def.LearningRate
	}
	if c.NCritic == 0 {
		c.NCritic = def.NCritic
	}
	if c.Weights == nil {
		c.Weights = map[string]float64{}
	}
	for k, v := range def.Weights {
		if _, ok := c.Weights[k]; !ok {
			c.Weights[k] = v
		}
	}
	if c.Generator.HiddenDims == nil {
		c.Generator.HiddenDims = def.Generator.HiddenDims
	}
	if c.Generator.ResidualBlocks == 0 {
		c.Generator.ResidualBlocks = def.Generator.ResidualBlocks
	}
	if c.Generator.MemorySlots == 0 {
		c.Generator.MemorySlots = def.Generator.MemorySlots
	}
	if c.Generator.Threshold == 0 {
		c.Generator.Threshold = def.Generator.Threshold
	}
	if c.Generator.Temperature == 0 {
		c.Generator.Temperature = def.Generator.Temperature
	}
	if c.CriticHidden == nil {
		c.CriticHidden = def.CriticHidden
	}
	if c.PredictorHidden == 0 {
		c.PredictorHidden = def.PredictorHidden
	}
}

// Detect trains the generator and critic on the reference dataset: the
// prepare phase pre-trains the plain autoencoder path, then the
// adversarial phase alternates critic and generator updates with the
// memory-gated forward.
func (dt *Detector) Detect(ref *Dataset) error {
	if ref.Rows() < dt.cfg.BatchSize {
		return fmt.Errorf("argus: reference has %d cells, need at least the batch size %d",
			ref.Rows(), dt.cfg.BatchSize)
	}

	if dt.cfg.GPU {
		if h, err := accel.Open(); err != nil {
			dt.log.WithError(err).Warn("no usable accelerator, continuing on host")
		} else {
			// Residency is decided once per run; the device is held until
			// training completes.
			defer h.Release()
			dt.log.WithFields(logrus.Fields{
				"backend": h.Report.Backend,
				"adapter": h.Report.Name,
			}).Info("accelerator adapter present")
		}
	}

	seed := dt.cfg.Seed
	rngG := rand.New(rand.NewSource(seed))
	rngD := rand.New(rand.NewSource(seed + 1))
	rngS := rand.New(rand.NewSource(seed + 2))

	dt.genes = append([]string(nil), ref.Genes...)
	dt.G = NewGenerator(ref.Cols(), dt.cfg.Generator, rngG)
	dt.D = NewDiscriminator(ref.Cols(), dt.cfg.CriticHidden, rngD)
	dt.G.SetTraining(true)

	lr := float32(dt.cfg.LearningRate)
	optG := nn.NewAdamOptimizerDefault()
	optD := nn.NewAdamOptimizerDefault()
	schG := dt.annealSchedule()
	schD := dt.annealSchedule()

	batches := newBatcher(ref, dt.cfg.BatchSize, true, true, rngS)

	dt.log.WithField("cells", ref.Rows()).Info("training on the reference dataset")

	// Prepare phase: memory bypassed, one critic update per batch,
	// base learning rate throughout.
	for epoch := 0; epoch < dt.cfg.PrepareEpochs; epoch++ {
		gLoss, dLoss, err := dt.runEpoch(batches, rngS, optG, optD, lr, lr, true, 1)
		if err != nil {
			return err
		}
		dt.log.WithFields(logrus.Fields{
			"epoch":  epoch + 1,
			"g_loss": gLoss,
			"d_loss": dLoss,
		}).Debug("prepare epoch")
	}

	// Adversarial phase: memory-gated forward, n_critic critic updates,
	// cosine annealing stepped once per epoch.
	for epoch := 0; epoch < dt.cfg.TrainEpochs; epoch++ {
		gLoss, dLoss, err := dt.runEpoch(batches, rngS, optG, optD,
			schG.GetLR(epoch), schD.GetLR(epoch), false, dt.cfg.NCritic)
		if err != nil {
			return err
		}
		dt.log.WithFields(logrus.Fields{
			"epoch":  epoch + 1,
			"g_loss": gLoss,
			"d_loss": dLoss,
		}).Debug("train epoch")
	}

	dt.trained = true
	dt.log.Info("training finished")
	return nil
}

// Fit is an equivalent entry point for Detect.
func (dt *Detector) Fit(ref *Dataset) error {
	return dt.Detect(ref)
}

// annealSchedule covers the adversarial phase only: annealing starts at
// the base learning rate on the first train epoch and reaches zero at the
// last. Prepare epochs do not advance it.
func (dt *Detector) annealSchedule() *nn.CosineAnnealingScheduler {
	return nn.NewCosineAnnealingScheduler(float32(dt.cfg.LearningRate), 0, dt.cfg.TrainEpochs)
}

// runEpoch makes one pass over the shuffled reference batches and returns
// the losses of the last batch.
func (dt *Detector) runEpoch(batches *batcher, rng *rand.Rand, optG, optD nn.Optimizer,
	lrG, lrD float32, prepare bool, nCritic int) (gLoss, dLoss float32, err error) {

	batches.reset(true, rng)
	for {
		x, count, ok := batches.next()
		if !ok {
			break
		}
		for c := 0; c < nCritic; c++ {
			dLoss, err = dt.updateCritic(x, count, prepare, optD, lrD)
			if err != nil {
				return 0, 0, err
			}
		}
		gLoss, err = dt.updateGenerator(x, count, prepare, optG, lrG)
		if err != nil {
			return 0, 0, err
		}
	}
	return gLoss, dLoss, nil
}

// updateCritic takes one critic step:
// loss = -E[D(real)] + E[D(fake)] + w_gp * gradient_penalty.
// The fake batch is treated as a constant, no gradient reaches the
// generator.
func (dt *Detector) updateCritic(x []float32, count int, prepare bool, opt nn.Optimizer, lr float32) (float32, error) {
	var fake []float32
	var err error
	if prepare {
		fake, _, err = dt.G.Prepare(x, count)
	} else {
		fake, _, err = dt.G.Forward(x, count)
	}
	if err != nil {
		return 0, err
	}

	wGP := float32(dt.cfg.Weights["gp"])
	dt.D.ZeroGrad()

	sReal, err := dt.D.Score(x, count)
	if err != nil {
		return 0, err
	}
	dt.D.Backward(fillGrad(count, -1/float32(count)), count)

	sFake, err := dt.D.Score(fake, count)
	if err != nil {
		return 0, err
	}
	dt.D.Backward(fillGrad(count, 1/float32(count)), count)

	gp, err := dt.D.GradientPenalty(x, fake, count, wGP)
	if err != nil {
		return 0, err
	}

	opt.Step(dt.D.Parameters(), lr)
	return -nn.Mean(sReal) + nn.Mean(sFake) + wGP*gp, nil
}

// updateGenerator takes one generator step:
// loss = w_rec * L1(real, fake) + w_adv * (-E[D(fake)]).
// In the adversarial phase the memory slots are updated from the batch
// latents after the step.
func (dt *Detector) updateGenerator(x []float32, count int, prepare bool, opt nn.Optimizer, lr float32) (float32, error) {
	wRec := float32(dt.cfg.Weights["rec"])
	wAdv := float32(dt.cfg.Weights["adv"])

	dt.G.ZeroGrad()

	var recon, z []float32
	var err error
	if prepare {
		recon, z, err = dt.G.Prepare(x, count)
	} else {
		recon, z, err = dt.G.Forward(x, count)
	}
	if err != nil {
		return 0, err
	}

	// Critic feedback; the critic's own gradients from this pass are
	// discarded at its next ZeroGrad.
	s, err := dt.D.Score(recon, count)
	if err != nil {
		return 0, err
	}
	dRecon := dt.D.Backward(fillGrad(count, -wAdv/float32(count)), count)

	var l1 float64
	n := float32(len(x))
	for i := range x {
		diff := recon[i] - x[i]
		if diff > 0 {
			l1 += float64(diff)
			dRecon[i] += wRec / n
		} else if diff < 0 {
			l1 -= float64(diff)
			dRecon[i] -= wRec / n
		}
	}
	l1 /= float64(len(x))

	dt.G.Backward(dRecon, count, !prepare)
	opt.Step(dt.G.Parameters(), lr)

	if !prepare {
		dt.G.Memory.Update(z, count)
	}
	return wRec*float32(l1) + wAdv*(-nn.Mean(s)), nil
}

// Predict scores the target dataset against the trained reference models:
// critic scores are collected for the real samples and their memory-gated
// reconstructions, a fresh predictor is calibrated on the per-sample
// score pairs, and the calibrated anomaly probabilities are returned,
// one per target cell.
func (dt *Detector) Predict(tgt *Dataset) ([]float64, error) {
	if !dt.trained {
		return nil, ErrNotTrained
	}
	if !sameGenes(tgt.Genes, dt.genes) {
		return nil, ErrGeneMismatch
	}

	dt.log.WithField("cells", tgt.Rows()).Info("scoring the target dataset")

	dt.G.SetTraining(false)
	realScores := make([]float32, 0, tgt.Rows())
	fakeScores := make([]float32, 0, tgt.Rows())

	batches := newBatcher(tgt, dt.cfg.BatchSize, false, false, nil)
	for {
		x, count, ok := batches.next()
		if !ok {
			break
		}
		recon, _, err := dt.G.Forward(x, count)
		if err != nil {
			return nil, err
		}
		sReal, err := dt.D.Score(x, count)
		if err != nil {
			return nil, err
		}
		sFake, err := dt.D.Score(recon, count)
		if err != nil {
			return nil, err
		}
		realScores = append(realScores, sReal...)
		fakeScores = append(fakeScores, sFake...)
	}

	// Calibration: the predictor stream is re-derived from the seed so
	// repeated predictions on the same target are bit-identical.
	rngP := rand.New(rand.NewSource(dt.cfg.Seed + 3))
	pred := NewPredictor(dt.cfg.PredictorHidden, rngP)
	optP := nn.NewAdamOptimizerDefault()
	schP := nn.NewCosineAnnealingScheduler(float32(dt.cfg.LearningRate), 0, dt.cfg.PredictEpochs)

	for epoch := 0; epoch < dt.cfg.PredictEpochs; epoch++ {
		loss, err := pred.TrainStep(realScores, fakeScores)
		if err != nil {
			return nil, err
		}
		optP.Step(pred.Parameters(), schP.GetLR(epoch))
		dt.log.WithFields(logrus.Fields{
			"epoch":  epoch + 1,
			"p_loss": loss,
		}).Debug("predict epoch")
	}

	probs, err := pred.Probabilities(realScores, fakeScores)
	if err != nil {
		return nil, err
	}
	dt.log.WithFields(logrus.Fields{
		"mean": stat.Mean(probs, nil),
		"min":  floats.Min(probs),
		"max":  floats.Max(probs),
	}).Info("anomaly probabilities computed")
	return probs, nil
}

// Score is an equivalent entry point for Predict.
func (dt *Detector) Score(tgt *Dataset) ([]float64, error) {
	return dt.Predict(tgt)
}

func fillGrad(n int, v float32) []float32 {
	g := make([]float32, n)
	for i := range g {
		g[i] = v
	}
	return g
}
