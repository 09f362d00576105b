package nn

import "math"

// LRScheduler interface defines learning rate scheduling strategies
type LRScheduler interface {
	// GetLR returns the learning rate for the given step
	GetLR(step int) float32

	// Reset resets the scheduler state
	Reset()

	// Name returns the scheduler name
	Name() string
}

// =============================================================================
// Constant Scheduler - Fixed learning rate
// =============================================================================

type ConstantScheduler struct {
	baseLR float32
}

func NewConstantScheduler(baseLR float32) *ConstantScheduler {
	return &ConstantScheduler{baseLR: baseLR}
}

func (s *ConstantScheduler) GetLR(step int) float32 {
	return s.baseLR
}

func (s *ConstantScheduler) Reset() {
	// No state to reset
}

func (s *ConstantScheduler) Name() string {
	return "Constant"
}

// =============================================================================
// Cosine Annealing Scheduler
// =============================================================================

type CosineAnnealingScheduler struct {
	initialLR  float32
	minLR      float32
	totalSteps int
}

func NewCosineAnnealingScheduler(initialLR, minLR float32, totalSteps int) *CosineAnnealingScheduler {
	return &CosineAnnealingScheduler{
		initialLR:  initialLR,
		minLR:      minLR,
		totalSteps: totalSteps,
	}
}

func (s *CosineAnnealingScheduler) GetLR(step int) float32 {
	if step >= s.totalSteps {
		return s.minLR
	}
	progress := float32(step) / float32(s.totalSteps)

	// lr = minLR + (initialLR - minLR) * (1 + cos(pi * progress)) / 2
	cosineDecay := (1.0 + float32(math.Cos(math.Pi*float64(progress)))) / 2.0
	return s.minLR + (s.initialLR-s.minLR)*cosineDecay
}

func (s *CosineAnnealingScheduler) Reset() {
	// No state to reset
}

func (s *CosineAnnealingScheduler) Name() string {
	return "CosineAnnealing"
}
