package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"fireball", "deals", "8", "d6", "fire", "damage"},
		Terms("The Fireball deals 8 d6 fire damage"))
	assert.Equal(t, []string{"caster's", "spell"}, Terms("the caster's spell"))
	assert.Empty(t, Terms("the and of"))
}

func TestUniqueTerms(t *testing.T) {
	assert.Equal(t, []string{"fire", "bolt"}, UniqueTerms("fire bolt fire"))
}

func TestFirstSentenceWith(t *testing.T) {
	content := "A bright streak flashes. Each creature takes fire damage! Done"

	assert.Equal(t, "Each creature takes fire damage!", FirstSentenceWith(content, []string{"fire"}, 200))
	assert.Equal(t, "", FirstSentenceWith(content, []string{"cold"}, 200))
	assert.Equal(t, "", FirstSentenceWith(content, nil, 200))

	long := strings.Repeat("é", 150) + " fire."
	got := FirstSentenceWith(long, []string{"fire"}, 101)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), 104)
}
