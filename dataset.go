// Package argus trains a generative-adversarial anomaly detector on
// single-cell gene-expression references and scores target samples
// against the reference population.
package argus

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dataset pairs an expression matrix (rows = cells, columns = genes) with
// its gene-name vector. Gene-vector equality between reference and target
// is the only format contract the detector enforces.
type Dataset struct {
	X     *mat.Dense
	Genes []string
}

// NewDataset validates that the matrix width matches the gene vector.
func NewDataset(x *mat.Dense, genes []string) (*Dataset, error) {
	_, cols := x.Dims()
	if cols != len(genes) {
		return nil, fmt.Errorf("argus: matrix has %d columns but %d gene names", cols, len(genes))
	}
	return &Dataset{X: x, Genes: genes}, nil
}

// Rows returns the number of cells.
func (d *Dataset) Rows() int {
	r, _ := d.X.Dims()
	return r
}

// Cols returns the number of genes.
func (d *Dataset) Cols() int {
	_, c := d.X.Dims()
	return c
}

func sameGenes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// batcher walks a dataset in flat float32 batches. Training uses shuffled
// order and drops a trailing partial batch; scoring is sequential and
// keeps it. Host-to-model conversion happens once per batch.
type batcher struct {
	data      *Dataset
	batchSize int
	dropLast  bool
	order     []int
	pos       int
}

func newBatcher(d *Dataset, batchSize int, shuffle, dropLast bool, rng *rand.Rand) *batcher {
	order := make([]int, d.Rows())
	for i := range order {
		order[i] = i
	}
	if shuffle {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return &batcher{data: d, batchSize: batchSize, dropLast: dropLast, order: order}
}

// next returns the flat batch and its sample count; ok is false when the
// pass is exhausted.
func (b *batcher) next() (batch []float32, count int, ok bool) {
	remaining := len(b.order) - b.pos
	if remaining <= 0 || (b.dropLast && remaining < b.batchSize) {
		return nil, 0, false
	}

	count = b.batchSize
	if remaining < count {
		count = remaining
	}

	dim := b.data.Cols()
	batch = make([]float32, count*dim)
	for i := 0; i < count; i++ {
		row := b.data.X.RawRowView(b.order[b.pos+i])
		for j, v := range row {
			batch[i*dim+j] = float32(v)
		}
	}
	b.pos += count
	return batch, count, true
}

func (b *batcher) reset(shuffle bool, rng *rand.Rand) {
	b.pos = 0
	if shuffle {
		rng.Shuffle(len(b.order), func(i, j int) {
			b.order[i], b.order[j] = b.order[j], b.order[i]
		})
	}
}
