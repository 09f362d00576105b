package nn

import (
	"math"
	"math/rand"
	"testing"
)

func TestReadAttentionIsConvex(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := NewMemory(8, 4, 0.01, 1, rng)

	batch := 3
	z := make([]float32, batch*4)
	for i := range z {
		z[i] = float32(rng.NormFloat64())
	}
	out := m.Read(z, batch)
	if len(out) != batch*4 {
		t.Fatalf("read output length = %d, want %d", len(out), batch*4)
	}

	for b := 0; b < batch; b++ {
		var sum float32
		for i := 0; i < m.M; i++ {
			w := m.attn[b*m.M+i]
			if w < 0 {
				t.Fatalf("negative attention weight %v", w)
			}
			sum += w
		}
		if math.Abs(float64(sum)-1) > 1e-5 {
			t.Errorf("sample %d attention sums to %v, want 1", b, sum)
		}
	}
}

func TestReadThresholdKeepsDominantSlot(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	m := NewMemory(4, 2, 0.3, 1, rng)
	m.Slots = []float32{
		10, 0,
		0, 10,
		-10, 0,
		0, -10,
	}

	// A query aligned with slot 0 concentrates the softmax there; the
	// other weights fall below the threshold and are zeroed.
	out := m.Read([]float32{1, 0}, 1)

	if m.attn[0] < 0.999 {
		t.Errorf("dominant slot weight = %v, want ~1", m.attn[0])
	}
	for i := 1; i < 4; i++ {
		if m.attn[i] != 0 {
			t.Errorf("slot %d weight = %v, want 0", i, m.attn[i])
		}
	}
	if math.Abs(float64(out[0])-10) > 1e-2 || math.Abs(float64(out[1])) > 1e-2 {
		t.Errorf("read = %v, want ~[10 0]", out)
	}
}

func TestReadFallbackWhenNothingPasses(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	// 8 uniform slots with threshold 0.5: no single weight can reach it,
	// so the full distribution is kept.
	m := NewMemory(8, 2, 0.5, 1, rng)
	for i := range m.Slots {
		m.Slots[i] = 0
	}

	m.Read([]float32{1, 1}, 1)

	var sum float32
	for i := 0; i < m.M; i++ {
		if !m.mask[i] {
			t.Fatalf("slot %d masked out by the fallback", i)
		}
		sum += m.attn[i]
	}
	if math.Abs(float64(sum)-1) > 1e-5 {
		t.Errorf("fallback attention sums to %v, want 1", sum)
	}
}

func TestBackwardMatchesFiniteDifferenceOnQuery(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	// Threshold 0 keeps every slot, so the analytic gradient is exact for
	// small perturbations.
	m := NewMemory(5, 3, 0, 1, rng)

	z := make([]float32, 3)
	for i := range z {
		z[i] = float32(rng.NormFloat64())
	}

	loss := func(q []float32) float64 {
		out := m.Read(q, 1)
		var s float64
		for _, v := range out {
			s += float64(v)
		}
		return s
	}

	m.Read(z, 1)
	ones := []float32{1, 1, 1}
	gradZ := m.Backward(ones, 1)

	const h = 1e-3
	for i := range z {
		orig := z[i]
		z[i] = orig + h
		up := loss(z)
		z[i] = orig - h
		down := loss(z)
		z[i] = orig

		numeric := (up - down) / (2 * h)
		if math.Abs(numeric-float64(gradZ[i])) > 1e-3 {
			t.Errorf("query grad[%d]: analytic %g vs numeric %g", i, gradZ[i], numeric)
		}
	}
}

func TestUpdateMovesNearestSlot(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	m := NewMemory(2, 2, 0.01, 1, rng)
	m.Slots = []float32{
		1, 0,
		0, 1,
	}
	m.UpdateRate = 0.5

	m.Update([]float32{2, 0}, 1)

	// Slot 0 moves halfway toward the query, slot 1 stays put.
	want := []float32{1.5, 0, 0, 1}
	if MaxAbsDiff(m.Slots, want) > 1e-6 {
		t.Errorf("slots after update = %v, want %v", m.Slots, want)
	}
}
