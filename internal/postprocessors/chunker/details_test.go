package chunker

import (
	"testing"

	"github.com/custodia-labs/tome/internal/core/domain"
)

func TestChunks_SpellAndFeatDetails(t *testing.T) {
	p := mustNew(t, domain.DefaultChunkConfig())

	segs := []domain.ClassifiedSegment{
		segment("s1", domain.ContentTypeSpell, "Fireball\n3rd-level evocation\nCasting Time: 1 action\n"+
			"A bright streak flashes from your pointing finger.", 241),
		segment("s2", domain.ContentTypeSpell, "Fire Bolt. Evocation cantrip. You hurl a mote of fire.", 242),
		segment("s3", domain.ContentTypeFeat, "Grappler\nPrerequisite: Strength 13 or higher\n"+
			"You've developed the skills necessary to hold your own in close-quarters grappling.", 167),
		segment("s4", domain.ContentTypeRule, "Resistance halves the damage a creature takes.", 197),
	}
	chunks := p.ChunkAll(testDoc, segs)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}

	fireball, firebolt, grappler, rule := chunks[0], chunks[1], chunks[2], chunks[3]
	if fireball.Name != "Fireball" {
		t.Errorf("spell name = %q", fireball.Name)
	}
	if fireball.Spell == nil || *fireball.Spell != (domain.SpellDetails{Level: 3, School: "Evocation"}) {
		t.Errorf("spell details = %+v", fireball.Spell)
	}
	if firebolt.Name != "Fire Bolt" {
		t.Errorf("cantrip name = %q", firebolt.Name)
	}
	if firebolt.Spell == nil || firebolt.Spell.Level != 0 {
		t.Errorf("cantrip details = %+v", firebolt.Spell)
	}
	if grappler.Name != "Grappler" || grappler.Prerequisites != "Strength 13 or higher" {
		t.Errorf("feat details = %q / %q", grappler.Name, grappler.Prerequisites)
	}
	if grappler.Spell != nil {
		t.Error("feat must not carry spell details")
	}
	if rule.Name != "" || rule.Spell != nil || rule.Prerequisites != "" {
		t.Errorf("rule chunk carries details: %+v", rule)
	}
}

func TestChunks_SplitSpellHasNoDetails(t *testing.T) {
	p := mustNew(t, domain.ChunkConfig{Size: 100, Overlap: 10, PreserveSpells: false})

	chunks := p.ChunkAll(testDoc, []domain.ClassifiedSegment{
		segment("s1", domain.ContentTypeSpell, "Wish\n9th-level conjuration\n"+prose("x", 250), 1),
	})
	for _, c := range chunks {
		if c.Name != "" || c.Spell != nil {
			t.Errorf("non-atomic chunk %s carries spell details", c.ID)
		}
	}
}

func TestBlockName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fireball\n3rd-level evocation", "Fireball"},
		{"  Alert.\nAlways on the lookout", "Alert"},
		{"Fire Bolt. Evocation cantrip.", "Fire Bolt"},
		{"", ""},
		{prose("long", 20), ""},
	}
	for _, tt := range tests {
		if got := blockName(tt.in); got != tt.want {
			t.Errorf("blockName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLevelAndSchool(t *testing.T) {
	tests := []struct {
		in     string
		level  int
		school string
	}{
		{"Fireball\n3rd-level evocation", 3, "Evocation"},
		{"Shield\n1st level abjuration", 1, "Abjuration"},
		{"Mage Hand\nConjuration cantrip", 0, "Conjuration"},
		{"Homebrew Spell\nUnknown tradition", -1, ""},
	}
	for _, tt := range tests {
		if got := level(tt.in); got != tt.level {
			t.Errorf("level(%q) = %d, want %d", tt.in, got, tt.level)
		}
		if got := school(tt.in); got != tt.school {
			t.Errorf("school(%q) = %q, want %q", tt.in, got, tt.school)
		}
	}
}
