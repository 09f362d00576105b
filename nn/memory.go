package nn

import (
	"math"
	"math/rand"
)

const renormEpsilon = 1e-12

// Memory is a fixed-capacity bank of prototype vectors over the latent
// space. Reads are attention-weighted combinations of the slots; writes
// move the slot nearest to each query toward it by an exponential moving
// average. The bank belongs exclusively to its generator: reads and
// updates are strictly sequential within a batch.
type Memory struct {
	Slots []float32 // [M*H], Slots[i*H+h]
	M     int
	H     int

	Threshold   float32 // attention weights below this are zeroed
	Temperature float32 // softmax temperature
	UpdateRate  float32 // EMA step toward the query

	// caches for the backward pass
	soft []float32 // [batch*M] softmax before thresholding
	attn []float32 // [batch*M] thresholded, renormalized attention
	tsum []float32 // [batch] renormalization denominators
	mask []bool    // [batch*M] threshold survivors
}

// NewMemory initializes a bank of slots prototype vectors of dimension dim.
func NewMemory(slots, dim int, threshold, temperature float32, rng *rand.Rand) *Memory {
	m := &Memory{
		Slots:       make([]float32, slots*dim),
		M:           slots,
		H:           dim,
		Threshold:   threshold,
		Temperature: temperature,
		UpdateRate:  0.05,
	}
	stddev := 1 / float32(math.Sqrt(float64(dim)))
	for i := range m.Slots {
		m.Slots[i] = float32(rng.NormFloat64()) * stddev
	}
	return m
}

// Read returns the attention-weighted reconstruction of each query from
// the memory slots. Attention is a temperature-scaled softmax over
// dot-product similarities, hard-thresholded and renormalized so the
// weights stay non-negative and sum to one: the output lies in the convex
// hull of the slots.
func (m *Memory) Read(z []float32, batch int) []float32 {
	m.soft = make([]float32, batch*m.M)
	m.attn = make([]float32, batch*m.M)
	m.tsum = make([]float32, batch)
	m.mask = make([]bool, batch*m.M)

	for b := 0; b < batch; b++ {
		row := m.soft[b*m.M : (b+1)*m.M]

		maxSim := float32(math.Inf(-1))
		for i := 0; i < m.M; i++ {
			var sim float32
			for h := 0; h < m.H; h++ {
				sim += z[b*m.H+h] * m.Slots[i*m.H+h]
			}
			row[i] = sim / m.Temperature
			if row[i] > maxSim {
				maxSim = row[i]
			}
		}

		var total float32
		for i := 0; i < m.M; i++ {
			row[i] = float32(math.Exp(float64(row[i] - maxSim)))
			total += row[i]
		}
		for i := 0; i < m.M; i++ {
			row[i] /= total
		}

		// Hard threshold, then renormalize the survivors. When every
		// weight falls below the threshold, keep the full distribution.
		var kept float32
		anyKept := false
		for i := 0; i < m.M; i++ {
			if row[i] >= m.Threshold {
				m.mask[b*m.M+i] = true
				kept += row[i]
				anyKept = true
			}
		}
		if !anyKept {
			for i := 0; i < m.M; i++ {
				m.mask[b*m.M+i] = true
				kept += row[i]
			}
		}

		t := kept + renormEpsilon
		m.tsum[b] = t
		for i := 0; i < m.M; i++ {
			if m.mask[b*m.M+i] {
				m.attn[b*m.M+i] = row[i] / t
			}
		}
	}

	out := make([]float32, batch*m.H)
	for b := 0; b < batch; b++ {
		for i := 0; i < m.M; i++ {
			w := m.attn[b*m.M+i]
			if w == 0 {
				continue
			}
			for h := 0; h < m.H; h++ {
				out[b*m.H+h] += w * m.Slots[i*m.H+h]
			}
		}
	}
	return out
}

// Backward propagates the read-output gradient to the query, through the
// renormalization and the softmax with the threshold mask held fixed.
// Slots receive no gradient: they are maintained by Update.
func (m *Memory) Backward(grad []float32, batch int) []float32 {
	gradZ := make([]float32, batch*m.H)
	dAttn := make([]float32, m.M)
	dSoft := make([]float32, m.M)

	for b := 0; b < batch; b++ {
		// through the combination: dAttn_i = dOut . slot_i
		for i := 0; i < m.M; i++ {
			var sum float32
			for h := 0; h < m.H; h++ {
				sum += grad[b*m.H+h] * m.Slots[i*m.H+h]
			}
			dAttn[i] = sum
		}

		// through the renormalization (mask fixed):
		// dSoft_j = mask_j/t * (dAttn_j - sum_i dAttn_i*attn_i)
		var dot float32
		for i := 0; i < m.M; i++ {
			dot += dAttn[i] * m.attn[b*m.M+i]
		}
		for j := 0; j < m.M; j++ {
			if m.mask[b*m.M+j] {
				dSoft[j] = (dAttn[j] - dot) / m.tsum[b]
			} else {
				dSoft[j] = 0
			}
		}

		// through the softmax: dSim_i = soft_i*(dSoft_i - sum_j soft_j*dSoft_j)/T
		var sdot float32
		for j := 0; j < m.M; j++ {
			sdot += m.soft[b*m.M+j] * dSoft[j]
		}
		for i := 0; i < m.M; i++ {
			dSim := m.soft[b*m.M+i] * (dSoft[i] - sdot) / m.Temperature
			if dSim == 0 {
				continue
			}
			for h := 0; h < m.H; h++ {
				gradZ[b*m.H+h] += dSim * m.Slots[i*m.H+h]
			}
		}
	}
	return gradZ
}

// Update moves the slot nearest to each latent vector toward it by an
// exponential moving average. In-place: the generator owns the bank and
// no concurrent readers exist during training.
func (m *Memory) Update(z []float32, batch int) {
	for b := 0; b < batch; b++ {
		best := 0
		bestSim := float32(math.Inf(-1))
		for i := 0; i < m.M; i++ {
			var sim float32
			for h := 0; h < m.H; h++ {
				sim += z[b*m.H+h] * m.Slots[i*m.H+h]
			}
			if sim > bestSim {
				bestSim = sim
				best = i
			}
		}
		for h := 0; h < m.H; h++ {
			idx := best*m.H + h
			m.Slots[idx] = (1-m.UpdateRate)*m.Slots[idx] + m.UpdateRate*z[b*m.H+h]
		}
	}
}
