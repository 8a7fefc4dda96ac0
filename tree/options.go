package tree

// Option configures a DecisionTree.
type Option func(*DecisionTree)

// WithMaxDepth limits the depth of the tree. Zero or less means unlimited.
func WithMaxDepth(d int) Option { return func(t *DecisionTree) { t.params.MaxDepth = d } }

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTree) { t.params.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each child of a split.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTree) { t.params.MinSamplesLeaf = n }
}

// WithRandomState seeds the feature visiting order.
func WithRandomState(seed uint64) Option {
	return func(t *DecisionTree) { t.params.RandomState = seed }
}
