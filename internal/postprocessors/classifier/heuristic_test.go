package classifier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/tome/internal/core/domain"
)

const fireball = `Fireball
3rd-level evocation
Casting Time: 1 action
Range: 150 feet
Components: V, S, M (a tiny ball of bat guano and sulfur)
Duration: Instantaneous
A bright streak flashes from your pointing finger to a point you choose within range and then blossoms with a low roar into an explosion of flame.`

const fireBolt = `Fire Bolt
Evocation cantrip
Casting Time: 1 action
Range: 120 feet
Components: V, S
Duration: Instantaneous
This spell's damage increases by 1d10 when you reach 5th level (2d10).`

const alert = `Alert
Always on the lookout for danger, you gain the following benefits:
You gain a +5 bonus to initiative.`

const grappler = `Grappler
Prerequisite: Strength 13 or higher
You've developed the skills necessary to hold your own in close-quarters grappling.`

const extraAttack = `Extra Attack
Beginning at 5th level, you can attack twice, instead of once, whenever you take the Attack action on your turn.`

const longsword = `Longsword
Cost: 15 gp
Damage: 1d8 slashing
Weight: 3 lb.`

func seg(text string) domain.RawSegment {
	return domain.RawSegment{ID: "s1", Text: text, DocumentID: "doc"}
}

func TestHeuristic_Classify(t *testing.T) {
	tests := []struct {
		name string
		seg  domain.RawSegment
		want domain.ContentType
	}{
		{name: "levelled spell", seg: seg(fireball), want: domain.ContentTypeSpell},
		{name: "cantrip", seg: seg(fireBolt), want: domain.ContentTypeSpell},
		{name: "feat with benefits", seg: seg(alert), want: domain.ContentTypeFeat},
		{name: "feat with prerequisite", seg: seg(grappler), want: domain.ContentTypeFeat},
		{name: "class feature", seg: seg(extraAttack), want: domain.ContentTypeClassFeature},
		{name: "equipment", seg: seg(longsword), want: domain.ContentTypeEquipment},
		{name: "pipe table", seg: seg("| d6 | Trinket |\n|---|---|\n| 1 | A mummified goblin hand |"), want: domain.ContentTypeTable},
		{name: "tab table", seg: seg("Level\tBonus\n1st\t+2\n2nd\t+2\n3rd\t+2"), want: domain.ContentTypeTable},
		{name: "table hint", seg: domain.RawSegment{Text: "Level Proficiency", Hint: domain.HintTable}, want: domain.ContentTypeTable},
		{name: "plain prose", seg: seg("When you make an attack roll, roll a d20 and add the appropriate modifiers."), want: domain.ContentTypeRule},
		{name: "heading", seg: domain.RawSegment{Text: "Chapter 9: Combat", Hint: domain.HintHeading}, want: domain.ContentTypeRule},
		{name: "single weak equipment cue", seg: seg("Weight: 3 lb."), want: domain.ContentTypeRule},
		{name: "empty", seg: seg("  \n "), want: domain.ContentTypeUnclassified},
	}

	h := NewHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.Classify(tt.seg))
		})
	}
}

func TestHeuristic_Deterministic(t *testing.T) {
	h := NewHeuristic()
	for i := 0; i < 5; i++ {
		assert.Equal(t, domain.ContentTypeSpell, h.Classify(seg(fireball)))
	}
}

func TestHeuristic_AmbiguousDegradesToRule(t *testing.T) {
	// Two cues of equal weight for class feature and equipment.
	text := "Starting at 3rd level you may buy a mule.\nCost: 8 gp"

	h := NewHeuristic()
	typ, err := h.ClassifyReport(seg(text))

	assert.Equal(t, domain.ContentTypeRule, typ)
	assert.True(t, errors.Is(err, domain.ErrClassificationAmbiguous))
	assert.Equal(t, domain.ContentTypeRule, h.Classify(seg(text)))
}

func TestHeuristic_ReportClean(t *testing.T) {
	typ, err := NewHeuristic().ClassifyReport(seg(fireball))
	assert.NoError(t, err)
	assert.Equal(t, domain.ContentTypeSpell, typ)
}

func TestHint_Classify(t *testing.T) {
	h := NewHint()

	assert.Equal(t, "hint", h.Name())
	assert.Equal(t, domain.ContentTypeTable, h.Classify(domain.RawSegment{Text: "x", Hint: domain.HintTable}))
	assert.Equal(t, domain.ContentTypeRule, h.Classify(seg(fireball)))
	assert.Equal(t, domain.ContentTypeUnclassified, h.Classify(seg("")))
}
