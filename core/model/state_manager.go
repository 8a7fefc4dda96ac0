// Package model は回帰モデルの共通契約・学習状態・永続化・モデルレジストリを提供します。
package model

import (
	"sync"

	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// StateManager manages the trained state of a model in a thread-safe manner.
// Every Regressor embeds one by composition.
type StateManager struct {
	mu sync.RWMutex

	trained      bool
	featureNames []string
	nSamples     int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsTrained returns whether the model has been trained.
func (s *StateManager) IsTrained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trained
}

// SetTrained marks the model as trained and freezes its feature names.
func (s *StateManager) SetTrained(featureNames []string, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trained = true
	s.featureNames = append([]string(nil), featureNames...)
	s.nSamples = nSamples
}

// Reset returns the state to untrained.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trained = false
	s.featureNames = nil
	s.nSamples = 0
}

// FeatureNames returns a copy of the feature names frozen at training time.
func (s *StateManager) FeatureNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.featureNames == nil {
		return nil
	}
	return append([]string(nil), s.featureNames...)
}

// GetDimensions returns the number of features and samples seen during training.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.featureNames), s.nSamples
}

// RequireTrained returns an UntrainedModelError if the model has not been trained.
func (s *StateManager) RequireTrained(modelName, method string) error {
	if !s.IsTrained() {
		return errors.NewUntrainedModelError(modelName, method)
	}
	return nil
}

// ModelState is the serializable snapshot of a StateManager.
type ModelState struct {
	Trained      bool     `json:"trained"`
	FeatureNames []string `json:"feature_names"`
	NSamples     int      `json:"n_samples,omitempty"`
}

// GetState returns the current state as a ModelState struct.
func (s *StateManager) GetState() ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ModelState{
		Trained:      s.trained,
		FeatureNames: append([]string(nil), s.featureNames...),
		NSamples:     s.nSamples,
	}
}

// SetState sets the state from a ModelState struct.
func (s *StateManager) SetState(state ModelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trained = state.Trained
	s.featureNames = append([]string(nil), state.FeatureNames...)
	s.nSamples = state.NSamples
}
