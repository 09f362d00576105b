package argus

import (
	"math/rand"

	"github.com/openfluke/argus/nn"
)

// GeneratorConfig fixes the encoder/decoder architecture and the memory
// module hyperparameters. Threshold and temperature are fixed, not
// learned.
type GeneratorConfig struct {
	HiddenDims     []int
	ResidualBlocks int
	MemorySlots    int
	Threshold      float32
	Temperature    float32
}

// DefaultGeneratorConfig mirrors the reference architecture: two hidden
// blocks down to a 256-dimensional latent with two residual refinement
// blocks on each side of a 512-slot memory bank.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		HiddenDims:     []int{512, 256},
		ResidualBlocks: 2,
		MemorySlots:    512,
		Threshold:      0.01,
		Temperature:    1,
	}
}

// Generator composes a symmetric encoder/decoder pair with a discrete
// memory module at the bottleneck. Prepare reconstructs through the plain
// autoencoder path; Forward gates the latent vector through the memory so
// only reference-like patterns reconstruct faithfully.
type Generator struct {
	Encoder *nn.Network
	Decoder *nn.Network
	Memory  *nn.Memory

	inDim     int
	latentDim int
}

// NewGenerator builds the generator for inputs of dimension inDim. rng
// seeds weight initialization, memory initialization and dropout.
func NewGenerator(inDim int, cfg GeneratorConfig, rng *rand.Rand) *Generator {
	latent := cfg.HiddenDims[len(cfg.HiddenDims)-1]

	// Encoder: dimension-reducing blocks, then residual refinement.
	var enc []nn.Layer
	prev := inDim
	for _, dim := range cfg.HiddenDims {
		enc = append(enc, nn.InitLinearBlock(prev, dim, true, nn.ActivationLeakyReLU, 0.1, rng))
		prev = dim
	}
	for i := 0; i < cfg.ResidualBlocks; i++ {
		enc = append(enc, nn.InitResidualBlock(latent, rng))
	}

	// Decoder: the mirror stack. The final block is bare and the output
	// is rectified, expression values cannot be negative.
	var dec []nn.Layer
	for i := 0; i < cfg.ResidualBlocks; i++ {
		dec = append(dec, nn.InitResidualBlock(latent, rng))
	}
	prev = latent
	for i := len(cfg.HiddenDims) - 2; i >= 0; i-- {
		dec = append(dec, nn.InitLinearBlock(prev, cfg.HiddenDims[i], true, nn.ActivationLeakyReLU, 0.1, rng))
		prev = cfg.HiddenDims[i]
	}
	dec = append(dec, nn.InitLinearBlock(prev, inDim, false, nn.ActivationLinear, 0, rng))

	decoder := nn.NewNetwork(dec, rng)
	decoder.OutputReLU = true

	return &Generator{
		Encoder:   nn.NewNetwork(enc, rng),
		Decoder:   decoder,
		Memory:    nn.NewMemory(cfg.MemorySlots, latent, cfg.Threshold, cfg.Temperature, rng),
		inDim:     inDim,
		latentDim: latent,
	}
}

// LatentDim returns the bottleneck dimension.
func (g *Generator) LatentDim() int {
	return g.latentDim
}

// Prepare reconstructs through the plain encoder/decoder path, bypassing
// the memory module. Used to pre-train the autoencoder path without
// memory interference.
func (g *Generator) Prepare(x []float32, batch int) (recon, z []float32, err error) {
	z, err = g.Encoder.Forward(x, batch)
	if err != nil {
		return nil, nil, err
	}
	recon, err = g.Decoder.Forward(z, batch)
	if err != nil {
		return nil, nil, err
	}
	return recon, z, nil
}

// Forward reconstructs through the memory-gated path: the latent vector
// is replaced by its attention-weighted read from the memory bank before
// decoding.
func (g *Generator) Forward(x []float32, batch int) (recon, z []float32, err error) {
	z, err = g.Encoder.Forward(x, batch)
	if err != nil {
		return nil, nil, err
	}
	read := g.Memory.Read(z, batch)
	recon, err = g.Decoder.Forward(read, batch)
	if err != nil {
		return nil, nil, err
	}
	return recon, z, nil
}

// Backward propagates the reconstruction gradient through the path used
// by the latest forward call: decoder, then (in full mode) the memory
// read, then the encoder.
func (g *Generator) Backward(grad []float32, batch int, memoryGated bool) {
	dz := g.Decoder.Backward(grad, batch)
	if memoryGated {
		dz = g.Memory.Backward(dz, batch)
	}
	g.Encoder.Backward(dz, batch)
}

// Parameters returns the trainable parameters of both networks. Memory
// slots are excluded: they are maintained by EMA updates, not gradients.
func (g *Generator) Parameters() []nn.Param {
	return append(g.Encoder.Parameters(), g.Decoder.Parameters()...)
}

// ZeroGrad clears accumulated gradients on both networks.
func (g *Generator) ZeroGrad() {
	g.Encoder.ZeroGrad()
	g.Decoder.ZeroGrad()
}

// SetTraining switches both networks between training and evaluation mode.
func (g *Generator) SetTraining(v bool) {
	g.Encoder.SetTraining(v)
	g.Decoder.SetTraining(v)
}
