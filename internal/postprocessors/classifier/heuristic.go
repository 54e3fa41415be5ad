// Package classifier provides content type classification strategies.
package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// HeuristicName is the registry name of the heuristic classifier.
const HeuristicName = "heuristic"

var (
	_ driven.Classifier        = (*Heuristic)(nil)
	_ driven.AmbiguityReporter = (*Heuristic)(nil)
)

const schools = `abjuration|conjuration|divination|enchantment|evocation|illusion|necromancy|transmutation`

// cue is a textual pattern that votes for a content type.
type cue struct {
	pattern *regexp.Regexp
	weight  int
}

// rule scores one content type. A type is a candidate once its score
// reaches min.
type rule struct {
	typ  domain.ContentType
	min  int
	cues []cue
}

var rules = []rule{
	{
		typ: domain.ContentTypeSpell,
		min: 2,
		cues: []cue{
			{regexp.MustCompile(`(?im)^\s*\d+(st|nd|rd|th)-level\s+(` + schools + `)`), 2},
			{regexp.MustCompile(`(?im)^\s*(` + schools + `)\s+cantrip`), 2},
			{regexp.MustCompile(`(?i)casting time:`), 1},
			{regexp.MustCompile(`(?im)^\s*range:`), 1},
			{regexp.MustCompile(`(?i)components:`), 1},
			{regexp.MustCompile(`(?im)^\s*duration:`), 1},
		},
	},
	{
		typ: domain.ContentTypeFeat,
		min: 1,
		cues: []cue{
			{regexp.MustCompile(`(?im)^\s*prerequisites?:`), 1},
			{regexp.MustCompile(`(?i)you gain the following benefits?`), 2},
		},
	},
	{
		typ: domain.ContentTypeClassFeature,
		min: 2,
		cues: []cue{
			{regexp.MustCompile(`(?i)\b(starting at|beginning at|when you reach|at)\s+\d+(st|nd|rd|th)\s+level`), 2},
		},
	},
	{
		typ: domain.ContentTypeEquipment,
		min: 2,
		cues: []cue{
			{regexp.MustCompile(`(?i)\b(cost|price):?\s*\d+\s*(cp|sp|ep|gp|pp)\b`), 2},
			{regexp.MustCompile(`(?i)\bweight:?\s*\d+(\.\d+)?\s*(lb|lbs|pounds?)\b`), 1},
			{regexp.MustCompile(`(?i)\b(armor class|ac):?\s*\d+`), 1},
			{regexp.MustCompile(`(?i)\bdamage:?\s*\d+d\d+`), 1},
		},
	},
}

var (
	pipeRow = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	tabRow  = regexp.MustCompile(`\S\t+\S`)
)

// Heuristic classifies segments from structural hints and textual cues.
type Heuristic struct{}

// NewHeuristic creates a heuristic classifier.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Name returns "heuristic".
func (h *Heuristic) Name() string {
	return HeuristicName
}

// Classify returns the segment's content type. Ambiguous segments degrade to rule.
func (h *Heuristic) Classify(seg domain.RawSegment) domain.ContentType {
	typ, _ := h.ClassifyReport(seg)
	return typ
}

// ClassifyReport classifies the segment and explains ambiguous decisions.
func (h *Heuristic) ClassifyReport(seg domain.RawSegment) (domain.ContentType, error) {
	text := strings.TrimSpace(seg.Text)
	if text == "" {
		return domain.ContentTypeUnclassified, nil
	}
	if seg.Hint == domain.HintTable || looksTabular(text) {
		return domain.ContentTypeTable, nil
	}

	best, bestScore := domain.ContentTypeRule, 0
	var tied []domain.ContentType
	for _, r := range rules {
		score := 0
		for _, c := range r.cues {
			if c.pattern.MatchString(text) {
				score += c.weight
			}
		}
		if score < r.min {
			continue
		}
		switch {
		case score > bestScore:
			best, bestScore = r.typ, score
			tied = tied[:0]
		case score == bestScore:
			tied = append(tied, r.typ)
		}
	}

	if len(tied) > 0 {
		return domain.ContentTypeRule, fmt.Errorf("%w: %s ties with %v at score %d",
			domain.ErrClassificationAmbiguous, best, tied, bestScore)
	}
	return best, nil
}

// looksTabular detects markdown pipe tables and tab-separated rows.
func looksTabular(text string) bool {
	pipes, tabs := 0, 0
	for _, line := range strings.Split(text, "\n") {
		if pipeRow.MatchString(line) {
			pipes++
		}
		if tabRow.MatchString(line) {
			tabs++
		}
	}
	return pipes >= 2 || tabs >= 3
}
