package postprocessors

import (
	"errors"
	"testing"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/postprocessors/classifier"
)

// mockClassifier is a test classifier that returns a fixed type.
type mockClassifier struct {
	name string
	typ  domain.ContentType
}

func (m *mockClassifier) Name() string {
	return m.name
}

func (m *mockClassifier) Classify(_ domain.RawSegment) domain.ContentType {
	return m.typ
}

func TestChain_FirstDecisiveWins(t *testing.T) {
	chain := NewChain(
		&mockClassifier{name: "a", typ: domain.ContentTypeRule},
		&mockClassifier{name: "b", typ: domain.ContentTypeFeat},
		&mockClassifier{name: "c", typ: domain.ContentTypeSpell},
	)

	if got := chain.Classify(domain.RawSegment{Text: "x"}); got != domain.ContentTypeFeat {
		t.Errorf("expected feat, got %s", got)
	}
}

func TestChain_FallsBackToFirst(t *testing.T) {
	chain := NewChain(
		&mockClassifier{name: "a", typ: domain.ContentTypeUnclassified},
		&mockClassifier{name: "b", typ: domain.ContentTypeRule},
	)

	if got := chain.Classify(domain.RawSegment{}); got != domain.ContentTypeUnclassified {
		t.Errorf("expected unclassified, got %s", got)
	}
}

func TestChain_Empty(t *testing.T) {
	chain := NewChain()
	if got := chain.Classify(domain.RawSegment{Text: "x"}); got != domain.ContentTypeRule {
		t.Errorf("expected rule, got %s", got)
	}
	if chain.Len() != 0 {
		t.Errorf("expected empty chain")
	}
}

func TestChain_ReportsAmbiguity(t *testing.T) {
	chain := NewChain(classifier.NewHint(), classifier.NewHeuristic())

	typ, err := chain.ClassifyReport(domain.RawSegment{Text: "Starting at 3rd level you may buy a mule.\nCost: 8 gp"})
	if typ != domain.ContentTypeRule {
		t.Errorf("expected rule, got %s", typ)
	}
	if !errors.Is(err, domain.ErrClassificationAmbiguous) {
		t.Errorf("expected ambiguity error, got %v", err)
	}
}

func TestChain_HintThenHeuristic(t *testing.T) {
	chain := NewChain(classifier.NewHint(), classifier.NewHeuristic())

	table := domain.RawSegment{Text: "Armor Class 14", Hint: domain.HintTable}
	if got := chain.Classify(table); got != domain.ContentTypeTable {
		t.Errorf("expected table, got %s", got)
	}

	spell := domain.RawSegment{Text: "Shield\n1st-level abjuration\nCasting Time: 1 reaction\nRange: Self"}
	if got := chain.Classify(spell); got != domain.ContentTypeSpell {
		t.Errorf("expected spell, got %s", got)
	}
}
