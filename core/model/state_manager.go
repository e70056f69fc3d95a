// Package model provides the estimator interfaces and shared fitted-state handling.
package model

import (
	"sync"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// StateManager tracks whether an estimator is fitted and the input shape it
// was fitted on. Estimators embed it by pointer instead of a base struct.
type StateManager struct {
	mu        sync.RWMutex
	name      string
	fitted    bool
	nFeatures int
	nSamples  int
}

// NewStateManager creates a StateManager for the named estimator. The name
// appears in NotFittedError messages.
func NewStateManager(name string) *StateManager {
	return &StateManager{name: name}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the model as fitted with the given dimensions.
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted returns a NotFittedError if the model has not been fitted.
func (s *StateManager) RequireFitted(method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(s.name, method)
	}
	return nil
}

// CheckPredict verifies the model is fitted and X has the fitted feature count.
func (s *StateManager) CheckPredict(method string, X interface{ Dims() (int, int) }) error {
	if err := s.RequireFitted(method); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	nFeatures, _ := s.GetDimensions()
	if cols != nFeatures {
		return errors.NewDimensionError(s.name+"."+method, nFeatures, cols, 1)
	}
	return nil
}
