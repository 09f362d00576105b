package argus

import (
	"errors"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func tinyConfig() *Config {
	return &Config{
		PrepareEpochs: 2,
		TrainEpochs:   3,
		PredictEpochs: 5,
		BatchSize:     16,
		LearningRate:  1e-3,
		NCritic:       1,
		Seed:          7,
		Generator: GeneratorConfig{
			HiddenDims:     []int{16, 8},
			ResidualBlocks: 1,
			MemorySlots:    16,
			Threshold:      0.01,
			Temperature:    1,
		},
		CriticHidden:    []int{16, 8},
		PredictorHidden: 8,
	}
}

// expressionDataset draws non-negative counts around a per-gene baseline.
func expressionDataset(t *testing.T, rows, cols int, scale float64, seed int64) *Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, rows*cols)
	for i := range data {
		v := scale * (1 + 0.3*rng.NormFloat64())
		if v < 0 {
			v = 0
		}
		data[i] = v
	}
	genes := make([]string, cols)
	for i := range genes {
		genes[i] = "g" + string(rune('A'+i))
	}
	d, err := NewDataset(mat.NewDense(rows, cols, data), genes)
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	return d
}

func TestPredictBeforeDetect(t *testing.T) {
	det := New(tinyConfig())
	tgt := expressionDataset(t, 8, 4, 1, 1)

	if _, err := det.Predict(tgt); !errors.Is(err, ErrNotTrained) {
		t.Errorf("error = %v, want ErrNotTrained", err)
	}
}

func TestDetectRejectsUndersizedReference(t *testing.T) {
	det := New(tinyConfig())
	ref := expressionDataset(t, 10, 4, 1, 2)

	if err := det.Detect(ref); err == nil {
		t.Error("expected an error for a reference smaller than one batch")
	}
}

func TestPredictRejectsGeneMismatch(t *testing.T) {
	det := New(tinyConfig())
	ref := expressionDataset(t, 32, 6, 1, 3)
	if err := det.Detect(ref); err != nil {
		t.Fatalf("detect: %v", err)
	}

	tgt := expressionDataset(t, 8, 6, 1, 4)
	tgt.Genes[0], tgt.Genes[1] = tgt.Genes[1], tgt.Genes[0]

	if _, err := det.Predict(tgt); !errors.Is(err, ErrGeneMismatch) {
		t.Errorf("error = %v, want ErrGeneMismatch", err)
	}
}

func TestDetectPredictEndToEnd(t *testing.T) {
	det := New(tinyConfig())
	ref := expressionDataset(t, 64, 12, 1, 5)
	if err := det.Detect(ref); err != nil {
		t.Fatalf("detect: %v", err)
	}

	tgt := expressionDataset(t, 40, 12, 1, 6)
	probs, err := det.Predict(tgt)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(probs) != 40 {
		t.Fatalf("got %d probabilities for 40 cells", len(probs))
	}
	for i, p := range probs {
		if p < 0 || p > 1 {
			t.Errorf("prob[%d] = %v, outside [0,1]", i, p)
		}
	}
}

func TestPredictIsIdempotent(t *testing.T) {
	det := New(tinyConfig())
	ref := expressionDataset(t, 32, 8, 1, 7)
	if err := det.Detect(ref); err != nil {
		t.Fatalf("detect: %v", err)
	}

	tgt := expressionDataset(t, 20, 8, 1, 8)
	first, err := det.Predict(tgt)
	if err != nil {
		t.Fatalf("first predict: %v", err)
	}
	second, err := det.Predict(tgt)
	if err != nil {
		t.Fatalf("second predict: %v", err)
	}

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("prob[%d] changed between calls: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestFitScoreAliases(t *testing.T) {
	det := New(tinyConfig())
	ref := expressionDataset(t, 32, 6, 1, 9)
	if err := det.Fit(ref); err != nil {
		t.Fatalf("fit: %v", err)
	}

	tgt := expressionDataset(t, 10, 6, 1, 10)
	probs, err := det.Score(tgt)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(probs) != 10 {
		t.Errorf("got %d probabilities for 10 cells", len(probs))
	}
}

func TestAnnealingCoversAdversarialPhaseOnly(t *testing.T) {
	det := New(tinyConfig())
	sch := det.annealSchedule()

	base := float32(det.cfg.LearningRate)
	if lr := sch.GetLR(0); lr != base {
		t.Errorf("first adversarial epoch lr = %v, want the base %v", lr, base)
	}
	if lr := sch.GetLR(det.cfg.TrainEpochs - 1); lr <= 0 || lr >= base {
		t.Errorf("last adversarial epoch lr = %v, want strictly inside (0, %v)", lr, base)
	}
	if lr := sch.GetLR(det.cfg.TrainEpochs); lr != 0 {
		t.Errorf("lr at the horizon = %v, want 0", lr)
	}
}

func TestNewFillsDefaults(t *testing.T) {
	det := New(&Config{BatchSize: 32})

	if det.cfg.BatchSize != 32 {
		t.Errorf("batch size = %d, want the configured 32", det.cfg.BatchSize)
	}
	if det.cfg.PrepareEpochs != 20 || det.cfg.TrainEpochs != 100 {
		t.Errorf("epoch defaults not applied: %+v", det.cfg)
	}
	if det.cfg.Weights["rec"] != 50 || det.cfg.Weights["adv"] != 1 || det.cfg.Weights["gp"] != 10 {
		t.Errorf("weight defaults not applied: %v", det.cfg.Weights)
	}
	if len(det.cfg.Generator.HiddenDims) != 2 {
		t.Errorf("generator defaults not applied: %+v", det.cfg.Generator)
	}
}
