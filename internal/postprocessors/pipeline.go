// Package postprocessors assembles the classification stage from pluggable strategies.
package postprocessors

import (
	"errors"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// ChainName is the registry name of the chain classifier.
const ChainName = "chain"

var (
	_ driven.Classifier        = (*Chain)(nil)
	_ driven.AmbiguityReporter = (*Chain)(nil)
)

// Chain runs classifiers in order and returns the first decisive answer.
// A result is decisive when it is neither rule nor unclassified; when no
// member is decisive the first member's answer is used.
type Chain struct {
	classifiers []driven.Classifier
}

// NewChain creates a classifier chain with the given members.
// Members are consulted in the order provided.
func NewChain(classifiers ...driven.Classifier) *Chain {
	return &Chain{
		classifiers: classifiers,
	}
}

// Name returns "chain".
func (c *Chain) Name() string {
	return ChainName
}

// Classify returns the first decisive content type.
func (c *Chain) Classify(seg domain.RawSegment) domain.ContentType {
	typ, _ := c.ClassifyReport(seg)
	return typ
}

// ClassifyReport returns the first decisive content type. When no member is
// decisive, ambiguity reported by any member is returned alongside.
func (c *Chain) ClassifyReport(seg domain.RawSegment) (domain.ContentType, error) {
	fallback := domain.ContentTypeRule
	var errs []error
	for i, cl := range c.classifiers {
		typ, err := classify(cl, seg)
		if err != nil {
			errs = append(errs, err)
		}
		if i == 0 {
			fallback = typ
		}
		if typ != domain.ContentTypeRule && typ != domain.ContentTypeUnclassified {
			return typ, nil
		}
	}
	return fallback, errors.Join(errs...)
}

// Add appends a classifier to the chain.
func (c *Chain) Add(cl driven.Classifier) {
	c.classifiers = append(c.classifiers, cl)
}

// Len returns the number of classifiers in the chain.
func (c *Chain) Len() int {
	return len(c.classifiers)
}

func classify(cl driven.Classifier, seg domain.RawSegment) (domain.ContentType, error) {
	if r, ok := cl.(driven.AmbiguityReporter); ok {
		return r.ClassifyReport(seg)
	}
	return cl.Classify(seg), nil
}
