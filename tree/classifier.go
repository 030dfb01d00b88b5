// Package tree provides decision tree and random forest learners backed by
// golearn.
package tree

import (
	"github.com/sjwhitworth/golearn/trees"

	"github.com/YuminosukeSato/easyfit/core/grid"
	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// Classifier is a golearn ID3 decision tree. prune is the share of the
// training rows held out to prune the grown tree (0 disables pruning).
type Classifier struct {
	*grid.Adapter
}

// NewClassifier creates an ID3 classifier for nClasses levels.
func NewClassifier(nClasses int, prune float64) *Classifier {
	params := model.Params{model.Prune: prune}
	return &Classifier{grid.NewAdapter("decision_tree", nClasses, params, func(_, _ int) (grid.Classifier, error) {
		if prune < 0 || prune >= 1 {
			return nil, errors.NewValidationError(model.Prune, "must be in [0, 1)", prune)
		}
		return trees.NewID3DecisionTree(prune), nil
	})}
}
