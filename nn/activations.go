package nn

import "math"

const leakySlope = 0.2

// activate applies the element-wise activation function
func activate(v float32, act ActivationType) float32 {
	switch act {
	case ActivationLeakyReLU:
		if v < 0 {
			return v * leakySlope
		}
		return v
	case ActivationReLU:
		if v < 0 {
			return 0
		}
		return v
	case ActivationSigmoid:
		return float32(1.0 / (1.0 + math.Exp(-float64(v))))
	default:
		return v
	}
}

// activateDerivative computes the activation derivative from the
// pre-activation value
func activateDerivative(v float32, act ActivationType) float32 {
	switch act {
	case ActivationLeakyReLU:
		if v < 0 {
			return leakySlope
		}
		return 1
	case ActivationReLU:
		if v < 0 {
			return 0
		}
		return 1
	case ActivationSigmoid:
		s := float32(1.0 / (1.0 + math.Exp(-float64(v))))
		return s * (1 - s)
	default:
		return 1
	}
}
