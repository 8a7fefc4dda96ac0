package pipeline

import (
	"github.com/YuminosukeSato/salescope/config"
	"github.com/YuminosukeSato/salescope/core/model"
	"github.com/YuminosukeSato/salescope/linear"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/svm"
	"github.com/YuminosukeSato/salescope/tree"
)

// 比較対象のモデル名（登録順 = 同点時の優先順）
const (
	LinearRegressionName = "Linear Regression"
	DecisionTreeName     = "Decision Tree"
	SVMName              = "SVM"
)

// NewRegistry registers the three compared models configured by cfg.
func NewRegistry(cfg config.ModelsConfig) *model.Registry {
	return model.NewRegistry().
		MustRegister(LinearRegressionName, linear.NewRegression(
			linear.WithFitIntercept(cfg.Linear.FitIntercept),
		)).
		MustRegister(DecisionTreeName, tree.NewDecisionTree(
			tree.WithMaxDepth(cfg.Tree.MaxDepth),
			tree.WithMinSamplesSplit(cfg.Tree.MinSamplesSplit),
			tree.WithMinSamplesLeaf(cfg.Tree.MinSamplesLeaf),
			tree.WithRandomState(cfg.Tree.RandomState),
		)).
		MustRegister(SVMName, svm.NewSVR(
			svm.WithC(cfg.SVR.C),
			svm.WithEpsilon(cfg.SVR.Epsilon),
			svm.WithKernel(cfg.SVR.Kernel),
			svm.WithGamma(cfg.SVR.Gamma),
			svm.WithDegree(cfg.SVR.Degree),
			svm.WithCoef0(cfg.SVR.Coef0),
			svm.WithTol(cfg.SVR.Tol),
			svm.WithMaxIter(cfg.SVR.MaxIter),
		))
}

// NewModel returns an untrained model for a bundle model_type.
func NewModel(modelType string) (model.Regressor, error) {
	switch modelType {
	case linear.ModelType:
		return linear.NewRegression(), nil
	case tree.ModelType:
		return tree.NewDecisionTree(), nil
	case svm.ModelType:
		return svm.NewSVR(), nil
	default:
		return nil, errors.NewValueError("NewModel", "unknown model type "+modelType)
	}
}

// LoadModel restores a saved model of any type, dispatching on the bundle's
// model_type.
func LoadModel(path string) (model.Regressor, error) {
	b, err := model.LoadBundle(path)
	if err != nil {
		return nil, err
	}
	m, err := NewModel(b.ModelType)
	if err != nil {
		return nil, err
	}
	if err := m.Load(path); err != nil {
		return nil, err
	}
	return m, nil
}
