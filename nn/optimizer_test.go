package nn

import (
	"math"
	"testing"
)

func TestAdamMinimizesQuadratic(t *testing.T) {
	opt := NewAdamOptimizerDefault()

	x := []float32{5, -3}
	g := make([]float32, 2)
	params := []Param{{Data: x, Grad: g}}

	// loss = 0.5 * |x|^2, gradient = x
	for step := 0; step < 500; step++ {
		copy(g, x)
		opt.Step(params, 0.1)
	}

	for i, v := range x {
		if math.Abs(float64(v)) > 1e-2 {
			t.Errorf("x[%d] = %v after 500 steps, want ~0", i, v)
		}
	}
}

func TestAdamResetClearsMoments(t *testing.T) {
	opt := NewAdamOptimizerDefault()
	params := []Param{{Data: []float32{1}, Grad: []float32{1}}}
	opt.Step(params, 0.01)

	opt.Reset()
	if opt.step != 0 || opt.m != nil {
		t.Error("reset left optimizer state behind")
	}
}

func TestCosineAnnealingEndpoints(t *testing.T) {
	s := NewCosineAnnealingScheduler(1.0, 0.1, 100)

	if lr := s.GetLR(0); lr != 1.0 {
		t.Errorf("lr at step 0 = %v, want 1.0", lr)
	}
	if lr := s.GetLR(100); lr != 0.1 {
		t.Errorf("lr at the horizon = %v, want 0.1", lr)
	}
	if lr := s.GetLR(200); lr != 0.1 {
		t.Errorf("lr past the horizon = %v, want 0.1", lr)
	}

	mid := s.GetLR(50)
	if mid <= 0.1 || mid >= 1.0 {
		t.Errorf("lr at midpoint = %v, want strictly between the endpoints", mid)
	}

	prev := s.GetLR(0)
	for step := 1; step <= 100; step++ {
		lr := s.GetLR(step)
		if lr > prev {
			t.Fatalf("lr increased at step %d: %v -> %v", step, prev, lr)
		}
		prev = lr
	}
}

func TestConstantSchedulerIsConstant(t *testing.T) {
	s := NewConstantScheduler(0.5)
	for _, step := range []int{0, 1, 1000} {
		if lr := s.GetLR(step); lr != 0.5 {
			t.Errorf("lr at step %d = %v, want 0.5", step, lr)
		}
	}
}
