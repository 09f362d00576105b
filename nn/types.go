package nn

// ActivationType selects the element-wise activation applied by a layer
type ActivationType int

const (
	ActivationLinear    ActivationType = 0 // identity
	ActivationLeakyReLU ActivationType = 1 // v if v >= 0, else v * 0.2
	ActivationReLU      ActivationType = 2 // max(0, v)
	ActivationSigmoid   ActivationType = 3 // 1 / (1 + exp(-v))
)

// LayerKind discriminates the layer records a network applies in sequence
type LayerKind int

const (
	LayerLinear   LayerKind = 0 // fused dense block: linear + optional norm/activation/dropout
	LayerResidual LayerKind = 1 // two inner dense blocks with a skip connection
)

// Layer is a single record in a network's ordered layer list. The record
// is built once at construction; Forward/Backward dispatch on Kind with no
// dynamic dispatch at call time.
//
// A LayerLinear record applies, in order: dense transform, per-sample
// normalization (if Norm), activation, inverted dropout (if Dropout > 0
// and the network is in training mode).
//
// A LayerResidual record runs its two Inner blocks, adds the block input
// back onto the result and applies a LeakyReLU. Inner dims must preserve
// the record's dimension.
type Layer struct {
	Kind LayerKind
	In   int
	Out  int

	Weight []float32 // [In*Out], Weight[i*Out+o]
	Bias   []float32 // [Out]
	Gamma  []float32 // [Out], normalization scale (Norm only)
	Beta   []float32 // [Out], normalization shift (Norm only)

	Norm    bool
	Act     ActivationType
	Dropout float32

	Inner []Layer // LayerResidual body

	// Gradients accumulate across backward passes until ZeroGrad; the
	// critic loss back-propagates three additive terms in separate passes.
	GradWeight []float32
	GradBias   []float32
	GradGamma  []float32
	GradBeta   []float32

	// Forward caches consumed by the next backward pass.
	input  []float32
	dense  []float32 // dense output before normalization
	preAct []float32 // value fed to the activation
	keep   []float32 // inverted-dropout mask, training mode only
}

// Param pairs a parameter slice with its gradient slice. Optimizers
// operate on the flattened parameter list of one or more networks.
type Param struct {
	Data []float32
	Grad []float32
}
