// Package nn provides the numeric primitives for the adversarial
// anomaly-detection models: fused fully-connected blocks, residual blocks,
// a discrete memory module, and the Adam/cosine-annealing training
// machinery that drives them.
//
// Networks are described by an ordered list of layer records built once at
// construction and applied in sequence. All tensors are flat []float32
// slices in batch-major layout: a batch of B vectors of dimension D is a
// single slice of length B*D.
//
// Example usage:
//
//	rng := rand.New(rand.NewSource(42))
//	layers := []nn.Layer{
//		nn.InitLinearBlock(64, 32, true, nn.ActivationLeakyReLU, 0.1, rng),
//		nn.InitResidualBlock(32, rng),
//	}
//	net := nn.NewNetwork(layers, rng)
//
//	out, _ := net.Forward(input, batchSize)
//	gradIn := net.Backward(gradOut, batchSize)
package nn
