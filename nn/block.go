package nn

import (
	"math"
	"math/rand"
)

const normEpsilon = 1e-5

// blockForward runs one layer record. training controls dropout; rng is
// the network's stream for dropout masks.
func blockForward(l *Layer, input []float32, batch int, training bool, rng *rand.Rand) []float32 {
	if l.Kind == LayerResidual {
		return residualForward(l, input, batch, training, rng)
	}

	h := denseForward(l, input, batch)
	l.dense = h
	if l.Norm {
		h = layerNormForward(l, h, batch)
	}
	l.preAct = h

	out := make([]float32, len(h))
	for i, v := range h {
		out[i] = activate(v, l.Act)
	}

	if l.Dropout > 0 && training {
		scale := 1 / (1 - l.Dropout)
		l.keep = make([]float32, len(out))
		for i := range out {
			if rng.Float32() < l.Dropout {
				out[i] = 0
			} else {
				l.keep[i] = scale
				out[i] *= scale
			}
		}
	} else {
		l.keep = nil
	}
	return out
}

// blockBackward mirrors blockForward, accumulating parameter gradients and
// returning the gradient w.r.t. the block input.
func blockBackward(l *Layer, grad []float32, batch int) []float32 {
	if l.Kind == LayerResidual {
		return residualBackward(l, grad, batch)
	}

	g := make([]float32, len(grad))
	copy(g, grad)

	if l.keep != nil {
		for i := range g {
			g[i] *= l.keep[i]
		}
	}
	for i := range g {
		g[i] *= activateDerivative(l.preAct[i], l.Act)
	}
	if l.Norm {
		g = layerNormBackward(l, g, batch)
	}
	return denseBackward(l, g, batch)
}

// residualForward: out = LeakyReLU(x + inner(x)). The skip gradient
// needs no input cache; only the summed pre-activation is retained.
func residualForward(l *Layer, input []float32, batch int, training bool, rng *rand.Rand) []float32 {
	h := input
	for i := range l.Inner {
		h = blockForward(&l.Inner[i], h, batch, training, rng)
	}

	sum := make([]float32, len(input))
	for i := range sum {
		sum[i] = input[i] + h[i]
	}
	l.preAct = sum

	out := make([]float32, len(sum))
	for i, v := range sum {
		out[i] = activate(v, l.Act)
	}
	return out
}

// residualBackward routes the gradient through both the inner blocks and
// the skip connection: d(x+f(x)) flows equally to each branch.
func residualBackward(l *Layer, grad []float32, batch int) []float32 {
	g := make([]float32, len(grad))
	for i := range g {
		g[i] = grad[i] * activateDerivative(l.preAct[i], l.Act)
	}

	inner := g
	for i := len(l.Inner) - 1; i >= 0; i-- {
		inner = blockBackward(&l.Inner[i], inner, batch)
	}

	gradInput := make([]float32, len(g))
	for i := range gradInput {
		gradInput[i] = g[i] + inner[i]
	}
	return gradInput
}

// layerNormForward normalizes each sample of the cached dense output and
// applies the learned scale and shift.
func layerNormForward(l *Layer, input []float32, batch int) []float32 {
	out := make([]float32, len(input))
	for b := 0; b < batch; b++ {
		start := b * l.Out
		mean, invStd := normStats(input[start : start+l.Out])
		for i := 0; i < l.Out; i++ {
			xhat := (float64(input[start+i]) - mean) * invStd
			out[start+i] = float32(xhat*float64(l.Gamma[i]) + float64(l.Beta[i]))
		}
	}
	return out
}

// layerNormBackward recomputes the per-sample statistics from the cached
// dense output, accumulates gamma/beta gradients and returns the gradient
// w.r.t. the dense output:
//
//	dL/dx_i = invStd * (dxhat_i - mean(dxhat) - xhat_i * mean(dxhat * xhat))
func layerNormBackward(l *Layer, grad []float32, batch int) []float32 {
	gradInput := make([]float32, len(grad))
	for b := 0; b < batch; b++ {
		start := b * l.Out
		mean, invStd := normStats(l.dense[start : start+l.Out])

		var sumDxhat, sumDxhatXhat float64
		for i := 0; i < l.Out; i++ {
			xhat := (float64(l.dense[start+i]) - mean) * invStd
			dy := float64(grad[start+i])

			l.GradBeta[i] += float32(dy)
			l.GradGamma[i] += float32(dy * xhat)

			dxhat := dy * float64(l.Gamma[i])
			sumDxhat += dxhat
			sumDxhatXhat += dxhat * xhat
		}
		meanDxhat := sumDxhat / float64(l.Out)
		meanDxhatXhat := sumDxhatXhat / float64(l.Out)

		for i := 0; i < l.Out; i++ {
			xhat := (float64(l.dense[start+i]) - mean) * invStd
			dxhat := float64(grad[start+i]) * float64(l.Gamma[i])
			gradInput[start+i] = float32(invStd * (dxhat - meanDxhat - xhat*meanDxhatXhat))
		}
	}
	return gradInput
}

func normStats(row []float32) (mean, invStd float64) {
	var sum float64
	for _, v := range row {
		sum += float64(v)
	}
	mean = sum / float64(len(row))

	var variance float64
	for _, v := range row {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(row))
	invStd = 1.0 / math.Sqrt(variance+normEpsilon)
	return mean, invStd
}
