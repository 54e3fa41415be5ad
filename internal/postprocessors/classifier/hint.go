package classifier

import (
	"strings"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// HintName is the registry name of the hint classifier.
const HintName = "hint"

var _ driven.Classifier = (*Hint)(nil)

// Hint classifies from the extractor's structural hint alone.
// It is useful when the extractor already knows table boundaries and
// everything else should be treated as prose.
type Hint struct{}

// NewHint creates a hint classifier.
func NewHint() *Hint {
	return &Hint{}
}

// Name returns "hint".
func (h *Hint) Name() string {
	return HintName
}

// Classify maps the structural hint to a content type.
func (h *Hint) Classify(seg domain.RawSegment) domain.ContentType {
	switch {
	case strings.TrimSpace(seg.Text) == "":
		return domain.ContentTypeUnclassified
	case seg.Hint == domain.HintTable:
		return domain.ContentTypeTable
	default:
		return domain.ContentTypeRule
	}
}
