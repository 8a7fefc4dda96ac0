// Package tree は平均二乗誤差を分割基準とするCART回帰木を提供します。
package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/salescope/core/model"
	"github.com/YuminosukeSato/salescope/core/parallel"
	"github.com/YuminosukeSato/salescope/dataset"
	"github.com/YuminosukeSato/salescope/metrics"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/pkg/log"
)

// ModelType はバンドルに記録されるモデル種別
const ModelType = "decision_tree"

// 不純度がこれ以下のノードは分割しない
const minImpurity = 1e-7

var _ model.Regressor = (*DecisionTree)(nil)

// Params は決定木のハイパーパラメータ
type Params struct {
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
	RandomState     uint64 `json:"random_state"`
}

// Node は木の1ノード。ノードはスライスに格納し、子はインデックスで参照する
type Node struct {
	Left      int     `json:"left"`  // 左の子ノード（葉なら-1）
	Right     int     `json:"right"` // 右の子ノード（葉なら-1）
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"` // x <= Threshold なら左へ
	Value     float64 `json:"value"`     // ノードに属する目的変数の平均
	Samples   int     `json:"samples"`
	Impurity  float64 `json:"impurity"` // ノード内の分散（MSE）
	Depth     int     `json:"depth"`
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.Left == -1 && n.Right == -1
}

// DecisionTree は回帰木
type DecisionTree struct {
	state  *model.StateManager
	params Params

	nodes      []Node
	importance []float64
	depth      int
	leaves     int
}

type estimatorState struct {
	Nodes      []Node    `json:"nodes"`
	Importance []float64 `json:"importance"`
	Depth      int       `json:"depth"`
	Leaves     int       `json:"leaves"`
}

// NewDecisionTree は新しい回帰木を作成する
//
// デフォルト: max_depth=10, min_samples_split=5, min_samples_leaf=2, random_state=42
func NewDecisionTree(opts ...Option) *DecisionTree {
	t := &DecisionTree{
		state: model.NewStateManager(),
		params: Params{
			MaxDepth:        10,
			MinSamplesSplit: 5,
			MinSamplesLeaf:  2,
			RandomState:     42,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements model.Regressor.
func (t *DecisionTree) Name() string { return ModelType }

func (t *DecisionTree) validateParams() error {
	if t.params.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", t.params.MinSamplesSplit)
	}
	if t.params.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", t.params.MinSamplesLeaf)
	}
	return nil
}

// builder holds the training data while the tree is grown.
type builder struct {
	params     Params
	X          *dataset.Frame
	y          []float64
	rng        *rand.Rand
	nodes      []Node
	importance []float64
	maxDepth   int
	leaves     int
}

type split struct {
	found     bool
	feature   int
	threshold float64
	childSSE  float64
}

// Train は訓練データから木を成長させる
func (t *DecisionTree) Train(X *dataset.Frame, y []float64) error {
	const op = "DecisionTree.Train"
	if err := t.validateParams(); err != nil {
		return err
	}
	Xc, yc, err := model.PrepareTraining(op, X, y)
	if err != nil {
		return err
	}

	b := &builder{
		params:     t.params,
		X:          Xc,
		y:          yc,
		rng:        rand.New(rand.NewPCG(t.params.RandomState, t.params.RandomState)),
		importance: make([]float64, Xc.NumCols()),
	}
	idx := make([]int, Xc.NumRows())
	for i := range idx {
		idx[i] = i
	}
	b.grow(idx, 0)

	// 重要度を正規化（合計1）
	var total float64
	for _, v := range b.importance {
		total += v
	}
	if total > 0 {
		for j := range b.importance {
			b.importance[j] /= total
		}
	}

	t.nodes = b.nodes
	t.importance = b.importance
	t.depth = b.maxDepth
	t.leaves = b.leaves
	t.state.SetTrained(Xc.Names(), Xc.NumRows())

	log.GetLoggerWithName("tree").Debug("Model trained",
		log.ModelNameKey, ModelType,
		log.SamplesKey, Xc.NumRows(),
		"depth", t.depth,
		"leaves", t.leaves,
	)
	return nil
}

func (b *builder) grow(idx []int, depth int) int {
	n := len(idx)
	var sum, sumSq float64
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	mean := sum / float64(n)
	sse := math.Max(sumSq-sum*sum/float64(n), 0)
	impurity := sse / float64(n)

	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Left: -1, Right: -1, Feature: -1,
		Value: mean, Samples: n, Impurity: impurity, Depth: depth,
	})
	if depth > b.maxDepth {
		b.maxDepth = depth
	}

	canSplit := (b.params.MaxDepth <= 0 || depth < b.params.MaxDepth) &&
		n >= b.params.MinSamplesSplit &&
		n >= 2*b.params.MinSamplesLeaf &&
		impurity > minImpurity
	if !canSplit {
		b.leaves++
		return id
	}

	best := b.bestSplit(idx, sse)
	if !best.found {
		b.leaves++
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.X.At(i, best.feature) <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.importance[best.feature] += sse - best.childSSE

	b.nodes[id].Feature = best.feature
	b.nodes[id].Threshold = best.threshold
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

// bestSplit visits features in a seeded random order and keeps a candidate
// only when it strictly lowers the summed squared error, so ties go to the
// feature visited first.
func (b *builder) bestSplit(idx []int, parentSSE float64) split {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf
	best := split{childSSE: parentSSE}

	order := make([]int, n)
	vals := make([]float64, n)
	for _, f := range b.rng.Perm(b.X.NumCols()) {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool {
			return b.X.At(order[a], f) < b.X.At(order[c], f)
		})
		for k, i := range order {
			vals[k] = b.X.At(i, f)
		}
		if vals[0] == vals[n-1] {
			continue
		}

		var totalSum, totalSq float64
		for _, i := range order {
			totalSum += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}

		var leftSum, leftSq float64
		for k := 1; k < n; k++ {
			yi := b.y[order[k-1]]
			leftSum += yi
			leftSq += yi * yi

			nl, nr := k, n-k
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			if vals[k-1] == vals[k] {
				continue
			}
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			childSSE := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if childSSE < best.childSSE-1e-12*math.Max(1, parentSSE) {
				threshold := vals[k-1] + (vals[k]-vals[k-1])/2
				if threshold >= vals[k] {
					threshold = vals[k-1]
				}
				best = split{found: true, feature: f, threshold: threshold, childSSE: childSSE}
			}
		}
	}
	return best
}

// Predict は各サンプルを葉までたどり、葉の平均値を返す
func (t *DecisionTree) Predict(X *dataset.Frame) ([]float64, error) {
	Xp, err := model.PrepareInput(ModelType, t.state, X)
	if err != nil {
		return nil, err
	}

	preds := make([]float64, Xp.NumRows())
	parallel.ParallelizeWithThreshold(len(preds), parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			preds[i] = t.predictRow(Xp.Row(i))
		}
	})
	return model.FinishPrediction(ModelType, preds)
}

func (t *DecisionTree) predictRow(row []float64) float64 {
	id := 0
	for {
		node := &t.nodes[id]
		if node.IsLeaf() {
			return node.Value
		}
		if row[node.Feature] <= node.Threshold {
			id = node.Left
		} else {
			id = node.Right
		}
	}
}

// Evaluate implements model.Regressor.
func (t *DecisionTree) Evaluate(X *dataset.Frame, y []float64) (metrics.Evaluation, error) {
	return model.EvaluateRegressor(t, X, y)
}

// Nodes returns a copy of the flattened tree; index 0 is the root.
func (t *DecisionTree) Nodes() []Node {
	return append([]Node(nil), t.nodes...)
}

// Depth returns the depth of the deepest leaf.
func (t *DecisionTree) Depth() int { return t.depth }

// Leaves returns the number of leaves.
func (t *DecisionTree) Leaves() int { return t.leaves }

// FeatureImportances returns the normalized impurity decrease per feature.
func (t *DecisionTree) FeatureImportances() []float64 {
	return append([]float64(nil), t.importance...)
}

// IsTrained implements model.Regressor.
func (t *DecisionTree) IsTrained() bool { return t.state.IsTrained() }

// FeatureNames implements model.Regressor.
func (t *DecisionTree) FeatureNames() []string { return t.state.FeatureNames() }

// Hyperparameters implements model.Regressor.
func (t *DecisionTree) Hyperparameters() map[string]any {
	return map[string]any{
		"max_depth":         t.params.MaxDepth,
		"min_samples_split": t.params.MinSamplesSplit,
		"min_samples_leaf":  t.params.MinSamplesLeaf,
		"random_state":      t.params.RandomState,
	}
}

// Diagnostics は木の深さ、葉の数、不純度減少による重要度を返す
func (t *DecisionTree) Diagnostics() map[string]any {
	if !t.IsTrained() {
		return map[string]any{}
	}
	return map[string]any{
		"depth":              t.depth,
		"n_leaves":           t.leaves,
		"n_nodes":            len(t.nodes),
		"feature_importance": model.RankImportance(t.state.FeatureNames(), t.importance),
	}
}

// Clone implements model.Regressor.
func (t *DecisionTree) Clone() model.Regressor {
	return &DecisionTree{state: model.NewStateManager(), params: t.params}
}

// Save は学習済みの木をJSONバンドルとして保存する
func (t *DecisionTree) Save(path string) error {
	b, err := model.NewBundle(ModelType, t.state, t.params, t.Diagnostics(), estimatorState{
		Nodes:      t.nodes,
		Importance: t.importance,
		Depth:      t.depth,
		Leaves:     t.leaves,
	})
	if err != nil {
		return err
	}
	return model.SaveBundle(path, b)
}

// Load は保存されたバンドルから木を復元する
func (t *DecisionTree) Load(path string) error {
	b, err := model.LoadBundle(path)
	if err != nil {
		return err
	}
	if err := b.Expect(ModelType); err != nil {
		return err
	}

	var params Params
	var est estimatorState
	if err := b.Decode(&params, &est); err != nil {
		return err
	}
	if err := validateNodes(est.Nodes, len(b.FeatureNames)); err != nil {
		return err
	}

	t.params = params
	t.nodes = est.Nodes
	t.importance = est.Importance
	t.depth = est.Depth
	t.leaves = est.Leaves
	t.state.SetState(b.State())
	return nil
}

// validateNodes guards Predict against a hand-edited bundle: every child
// index must point forward and every split feature must exist.
func validateNodes(nodes []Node, nFeatures int) error {
	if len(nodes) == 0 {
		return errors.NewValidationError("nodes", "tree has no nodes", 0)
	}
	for id, n := range nodes {
		if n.IsLeaf() {
			continue
		}
		if n.Left <= id || n.Right <= id || n.Left >= len(nodes) || n.Right >= len(nodes) {
			return errors.NewValidationError("nodes", "child index out of range", id)
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return errors.NewValidationError("nodes", "split feature out of range", n.Feature)
		}
	}
	return nil
}
