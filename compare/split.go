package compare

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// Partition is the train/test split of one comparison run plus the fold
// assignment of the training rows. Indices refer to rows of X.
type Partition struct {
	Train []int   `json:"train"`
	Test  []int   `json:"test"`
	Folds [][]int `json:"folds"`
	N     int     `json:"n"`
}

// foldSeedSalt keeps fold shuffling independent of the split permutation.
const foldSeedSalt = 0x9e3779b97f4a7c15

// newPartition shuffles rows with a PCG source seeded by seed, holds out
// ceil(testSize*n) of them, then deals the training rows into k shuffled
// folds. The first n%k folds get one extra row.
func newPartition(n int, testSize float64, k int, seed uint64) (*Partition, error) {
	const op = "Split"
	if testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	if k < 2 {
		return nil, errors.NewValidationError("folds", "must be at least 2", k)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < k {
		return nil, errors.NewValueError(op, "not enough rows for the requested test size and folds")
	}

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	p := &Partition{
		Test:  append([]int(nil), perm[:nTest]...),
		Train: append([]int(nil), perm[nTest:]...),
		N:     n,
	}

	order := rand.New(rand.NewPCG(seed, seed^foldSeedSalt)).Perm(nTrain)
	p.Folds = make([][]int, k)
	start := 0
	for f := 0; f < k; f++ {
		size := nTrain / k
		if f < nTrain%k {
			size++
		}
		fold := make([]int, size)
		for i := range fold {
			fold[i] = p.Train[order[start+i]]
		}
		p.Folds[f] = fold
		start += size
	}
	return p, nil
}

// foldTrain returns the training rows outside fold f.
func (p *Partition) foldTrain(f int) []int {
	held := make(map[int]struct{}, len(p.Folds[f]))
	for _, i := range p.Folds[f] {
		held[i] = struct{}{}
	}
	rows := make([]int, 0, len(p.Train)-len(p.Folds[f]))
	for _, i := range p.Train {
		if _, ok := held[i]; !ok {
			rows = append(rows, i)
		}
	}
	return rows
}

func subset(X *dataset.Frame, y []float64, rows []int) (*dataset.Frame, []float64) {
	ys := make([]float64, len(rows))
	for k, i := range rows {
		ys[k] = y[i]
	}
	return X.Rows(rows), ys
}
