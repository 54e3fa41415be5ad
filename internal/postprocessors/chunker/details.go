package chunker

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/tome/internal/core/domain"
)

var (
	spellLevel   = regexp.MustCompile(`(?i)\b([1-9])(?:st|nd|rd|th)[- ]level\b`)
	cantrip      = regexp.MustCompile(`(?i)\bcantrip\b`)
	prerequisite = regexp.MustCompile(`(?i)\bprerequisites?\s*:\s*([^\n]+)`)
	schools      = []string{
		"abjuration", "conjuration", "divination", "enchantment",
		"evocation", "illusion", "necromancy", "transmutation",
	}
)

// maxNameLength bounds what is taken as a title line.
const maxNameLength = 60

// describe fills the spell or feat details of an atomic chunk.
func describe(c *domain.Chunk) {
	if !c.Atomic {
		return
	}
	switch c.Type {
	case domain.ContentTypeSpell:
		c.Name = blockName(c.Text)
		c.Spell = &domain.SpellDetails{Level: level(c.Text), School: school(c.Text)}
	case domain.ContentTypeFeat:
		c.Name = blockName(c.Text)
		if m := prerequisite.FindStringSubmatch(c.Text); m != nil {
			c.Prerequisites = strings.TrimRight(strings.TrimSpace(m[1]), ".")
		}
	}
}

// blockName returns the title of a stat block: its first line, or the
// text before the first full stop when the block is run together.
func blockName(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if i := strings.Index(line, ". "); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimRight(line, ".:")
	if line == "" || len([]rune(line)) > maxNameLength {
		return ""
	}
	return line
}

func level(text string) int {
	if m := spellLevel.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if cantrip.MatchString(text) {
		return 0
	}
	return -1
}

func school(text string) string {
	lower := strings.ToLower(text)
	for _, s := range schools {
		if strings.Contains(lower, s) {
			return strings.ToUpper(s[:1]) + s[1:]
		}
	}
	return ""
}
