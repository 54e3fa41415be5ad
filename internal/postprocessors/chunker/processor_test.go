package chunker

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/custodia-labs/tome/internal/adapters/driven/tokenizer/whitespace"
	"github.com/custodia-labs/tome/internal/core/domain"
)

var testDoc = domain.DocumentInfo{ID: "doc-phb", GameSystem: "dnd5e", Book: "PHB", Version: "5.1"}

// prose returns text of exactly n whitespace tokens with a sentence end
// every twelve words.
func prose(prefix string, n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString(fmt.Sprintf("%s%04d", prefix, i))
		switch {
		case i == n:
		case i%12 == 0:
			b.WriteString(". ")
		default:
			b.WriteString(" ")
		}
	}
	return b.String()
}

func segment(id string, typ domain.ContentType, text string, page int) domain.ClassifiedSegment {
	return domain.ClassifiedSegment{
		RawSegment: domain.RawSegment{
			ID:         id,
			Text:       text,
			Pages:      domain.PageRange{Start: page, End: page},
			DocumentID: testDoc.ID,
		},
		Type: typ,
	}
}

func mustNew(t *testing.T, cfg domain.ChunkConfig) *Processor {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestNew(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		p := mustNew(t, domain.DefaultChunkConfig())
		if p.Config().Size != domain.DefaultChunkSize {
			t.Errorf("expected size %d, got %d", domain.DefaultChunkSize, p.Config().Size)
		}
	})

	t.Run("overlap not smaller than chunk size", func(t *testing.T) {
		for _, overlap := range []int{100, 150} {
			_, err := New(domain.ChunkConfig{Size: 100, Overlap: overlap})
			if !errors.Is(err, domain.ErrChunkConfigInvalid) {
				t.Errorf("overlap %d: expected ErrChunkConfigInvalid, got %v", overlap, err)
			}
		}
	})

	t.Run("custom tokenizer", func(t *testing.T) {
		p, err := New(domain.DefaultChunkConfig(), WithTokenizer(whitespace.New()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.tokenizer.Name() != "whitespace" {
			t.Errorf("expected whitespace tokenizer, got %s", p.tokenizer.Name())
		}
	})
}

func TestProcessor_Name(t *testing.T) {
	p := mustNew(t, domain.DefaultChunkConfig())
	if p.Name() != "chunker" {
		t.Errorf("expected name 'chunker', got '%s'", p.Name())
	}
}

func TestChunks_RuleSectionScenario(t *testing.T) {
	cfg := domain.ChunkConfig{Size: 1000, Overlap: 200, Semantic: true}
	p := mustNew(t, cfg)
	tok := whitespace.New()

	text := prose("rule", 2400)
	if n := tok.Count(text); n != 2400 {
		t.Fatalf("fixture has %d tokens", n)
	}

	chunks := p.ChunkAll(testDoc, []domain.ClassifiedSegment{segment("s1", domain.ContentTypeRule, text, 10)})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	first := tok.Tokenize(chunks[0].Text)
	second := tok.Tokenize(chunks[1].Text)
	if !slices.Equal(first[len(first)-200:], second[:200]) {
		t.Error("chunk 2 does not start with the last 200 tokens of chunk 1")
	}

	for i, c := range chunks {
		if c.TokenCount > cfg.Size {
			t.Errorf("chunk %d has %d tokens, exceeds %d", i, c.TokenCount, cfg.Size)
		}
		if c.Atomic {
			t.Errorf("chunk %d should not be atomic", i)
		}
		if c.Type != domain.ContentTypeRule {
			t.Errorf("chunk %d: expected rule, got %s", i, c.Type)
		}
		if c.Position != i {
			t.Errorf("chunk %d: position %d", i, c.Position)
		}
	}
}

func TestChunks_SemanticCutsAtSentence(t *testing.T) {
	p := mustNew(t, domain.ChunkConfig{Size: 100, Overlap: 20, Semantic: true})
	tok := whitespace.New()

	chunks := p.ChunkAll(testDoc, []domain.ClassifiedSegment{segment("s1", domain.ContentTypeRule, prose("w", 250), 1)})
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for _, c := range chunks[:len(chunks)-1] {
		tokens := tok.Tokenize(c.Text)
		if !tok.IsSentenceEnd(tokens[len(tokens)-1]) {
			t.Errorf("chunk %d does not end at a sentence: %q", c.Position, tokens[len(tokens)-1])
		}
		if c.TokenCount < 90 {
			t.Errorf("chunk %d moved back beyond the window: %d tokens", c.Position, c.TokenCount)
		}
	}
}

func TestChunks_HardCutWithoutBoundary(t *testing.T) {
	// No punctuation at all: cuts fall exactly on the limit.
	words := make([]string, 250)
	for i := range words {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	text := strings.Join(words, " ")

	p := mustNew(t, domain.ChunkConfig{Size: 100, Overlap: 10, Semantic: true})
	chunks := p.ChunkAll(testDoc, []domain.ClassifiedSegment{segment("s1", domain.ContentTypeRule, text, 1)})

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].TokenCount != 100 || chunks[1].TokenCount != 100 {
		t.Errorf("expected hard cuts at 100 tokens, got %d and %d", chunks[0].TokenCount, chunks[1].TokenCount)
	}
	if chunks[2].TokenCount != 70 {
		t.Errorf("expected final chunk of 70 tokens, got %d", chunks[2].TokenCount)
	}
}

func TestChunks_AtomicSpellScenario(t *testing.T) {
	p := mustNew(t, domain.ChunkConfig{Size: 1000, Overlap: 200, PreserveSpells: true, Semantic: true})

	spell := "Fireball\n3rd-level evocation\n" + prose("flame", 1397)
	if n := whitespace.New().Count(spell); n != 1400 {
		t.Fatalf("fixture has %d tokens", n)
	}

	chunks := p.ChunkAll(testDoc, []domain.ClassifiedSegment{segment("s1", domain.ContentTypeSpell, spell, 241)})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if !c.Atomic {
		t.Error("expected atomic chunk")
	}
	if c.TokenCount != 1400 {
		t.Errorf("expected 1400 tokens, got %d", c.TokenCount)
	}
	if c.Text != spell {
		t.Error("atomic chunk text must equal the segment text")
	}
	if c.Pages != (domain.PageRange{Start: 241, End: 241}) {
		t.Errorf("unexpected pages %v", c.Pages)
	}
}

func TestChunks_AtomicOnlyWhenPreserved(t *testing.T) {
	p := mustNew(t, domain.ChunkConfig{Size: 100, Overlap: 10, PreserveSpells: false})

	chunks := p.ChunkAll(testDoc, []domain.ClassifiedSegment{segment("s1", domain.ContentTypeSpell, prose("x", 250), 1)})
	if len(chunks) < 3 {
		t.Fatalf("expected the spell to be split, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if c.Atomic {
			t.Error("no chunk should be atomic when preserve_spells is off")
		}
		if c.Type != domain.ContentTypeSpell {
			t.Errorf("expected spell type, got %s", c.Type)
		}
	}
}

func TestChunks_AtomicFlushesPending(t *testing.T) {
	p := mustNew(t, domain.ChunkConfig{Size: 100, Overlap: 10, PreserveTables: true, PreserveFeats: true})

	segs := []domain.ClassifiedSegment{
		segment("s1", domain.ContentTypeRule, prose("a", 40), 1),
		segment("s2", domain.ContentTypeTable, "| d6 | Result |\n| 1 | Goblin |", 2),
		segment("s3", domain.ContentTypeRule, prose("b", 30), 3),
		segment("s4", domain.ContentTypeFeat, "Alert\nYou gain the following benefits:", 4),
	}
	chunks := p.ChunkAll(testDoc, segs)

	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	wantTypes := []domain.ContentType{domain.ContentTypeRule, domain.ContentTypeTable, domain.ContentTypeRule, domain.ContentTypeFeat}
	wantAtomic := []bool{false, true, false, true}
	for i, c := range chunks {
		if c.Type != wantTypes[i] {
			t.Errorf("chunk %d: expected %s, got %s", i, wantTypes[i], c.Type)
		}
		if c.Atomic != wantAtomic[i] {
			t.Errorf("chunk %d: atomic %v", i, c.Atomic)
		}
		if len(c.SegmentIDs) != 1 || c.SegmentIDs[0] != segs[i].ID {
			t.Errorf("chunk %d: segment ids %v", i, c.SegmentIDs)
		}
	}
}

func TestChunks_AtomicNeverSplit(t *testing.T) {
	p := mustNew(t, domain.ChunkConfig{Size: 50, Overlap: 10, PreserveTables: true, PreserveSpells: true, PreserveFeats: true})

	var segs []domain.ClassifiedSegment
	types := []domain.ContentType{domain.ContentTypeRule, domain.ContentTypeSpell, domain.ContentTypeRule, domain.ContentTypeTable, domain.ContentTypeFeat}
	for i, typ := range types {
		segs = append(segs, segment(fmt.Sprintf("s%d", i), typ, prose(fmt.Sprintf("t%d", i), 30+i*40), i+1))
	}

	for _, c := range p.ChunkAll(testDoc, segs) {
		if !c.Atomic {
			continue
		}
		if len(c.SegmentIDs) != 1 {
			t.Errorf("atomic chunk spans %v", c.SegmentIDs)
		}
		for _, s := range segs {
			if s.ID == c.SegmentIDs[0] && s.Text != c.Text {
				t.Errorf("atomic segment %s was split", s.ID)
			}
		}
	}
}

func TestChunks_OverlapAcrossSegments(t *testing.T) {
	cfg := domain.ChunkConfig{Size: 60, Overlap: 15, Semantic: true}
	p := mustNew(t, cfg)
	tok := whitespace.New()

	segs := []domain.ClassifiedSegment{
		segment("s1", domain.ContentTypeRule, prose("a", 45), 1),
		segment("s2", domain.ContentTypeClassFeature, "  "+prose("b", 70), 2),
		segment("s3", domain.ContentTypeRule, prose("c", 33)+"\n", 3),
		segment("s4", domain.ContentTypeEquipment, prose("d", 51), 4),
	}
	chunks := p.ChunkAll(testDoc, segs)
	if len(chunks) < 4 {
		t.Fatalf("expected at least 4 chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := tok.Tokenize(chunks[i-1].Text)
		cur := tok.Tokenize(chunks[i].Text)
		if len(prev) != chunks[i-1].TokenCount {
			t.Errorf("chunk %d: token count %d, text has %d tokens", i-1, chunks[i-1].TokenCount, len(prev))
		}
		if !slices.Equal(prev[len(prev)-cfg.Overlap:], cur[:cfg.Overlap]) {
			t.Errorf("chunks %d and %d do not share an exact %d-token overlap", i-1, i, cfg.Overlap)
		}
	}
}

func TestChunks_SegmentIDsAndPages(t *testing.T) {
	p := mustNew(t, domain.ChunkConfig{Size: 100, Overlap: 10})

	segs := []domain.ClassifiedSegment{
		segment("s1", domain.ContentTypeRule, prose("a", 30), 7),
		segment("s2", domain.ContentTypeRule, prose("b", 30), 8),
		segment("s3", domain.ContentTypeClassFeature, prose("c", 20), 9),
	}
	chunks := p.ChunkAll(testDoc, segs)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	c := chunks[0]
	if !slices.Equal(c.SegmentIDs, []string{"s1", "s2", "s3"}) {
		t.Errorf("unexpected segment ids %v", c.SegmentIDs)
	}
	if c.Pages != (domain.PageRange{Start: 7, End: 9}) {
		t.Errorf("unexpected pages %v", c.Pages)
	}
	if c.Type != domain.ContentTypeRule {
		t.Errorf("expected dominant type rule, got %s", c.Type)
	}
	if c.Book != "PHB" || c.GameSystem != "dnd5e" || c.Version != "5.1" || c.DocumentID != "doc-phb" {
		t.Errorf("citation metadata not propagated: %+v", c)
	}
	if !strings.Contains(c.Text, "a0030\n\nb0001") {
		t.Error("segments should be joined with a paragraph break")
	}
}

func TestChunks_StableIDs(t *testing.T) {
	segs := []domain.ClassifiedSegment{
		segment("s1", domain.ContentTypeRule, prose("a", 300), 1),
		segment("s2", domain.ContentTypeSpell, prose("b", 50), 2),
	}
	ids := func(cfg domain.ChunkConfig) []string {
		var out []string
		for _, c := range mustNew(t, cfg).ChunkAll(testDoc, segs) {
			out = append(out, c.ID)
		}
		return out
	}

	cfg := domain.ChunkConfig{Size: 100, Overlap: 20, PreserveSpells: true, Semantic: true}
	first := ids(cfg)
	second := ids(cfg)
	if !slices.Equal(first, second) {
		t.Error("identical input and config must reproduce identical ids")
	}

	seen := make(map[string]bool)
	for _, id := range first {
		if seen[id] {
			t.Errorf("duplicate id %s", id)
		}
		seen[id] = true
	}

	changed := cfg
	changed.Overlap = 30
	if slices.Equal(first, ids(changed)) {
		t.Error("a config change must produce different ids")
	}
}

func TestChunks_LazyAndRestartable(t *testing.T) {
	p := mustNew(t, domain.ChunkConfig{Size: 50, Overlap: 5})
	segs := []domain.ClassifiedSegment{segment("s1", domain.ContentTypeRule, prose("a", 500), 1)}

	consumed := 0
	seq := p.Chunks(testDoc, slices.Values(segs))
	for range seq {
		consumed++
		if consumed == 2 {
			break
		}
	}
	if consumed != 2 {
		t.Fatalf("expected early stop after 2 chunks, got %d", consumed)
	}

	all := slices.Collect(seq)
	again := slices.Collect(seq)
	if len(all) == 0 || len(all) != len(again) {
		t.Fatalf("restarted sequence differs: %d vs %d", len(all), len(again))
	}
	for i := range all {
		if all[i].ID != again[i].ID || all[i].Text != again[i].Text {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunks_SkipsEmptyAndUnclassified(t *testing.T) {
	p := mustNew(t, domain.DefaultChunkConfig())
	segs := []domain.ClassifiedSegment{
		segment("s1", domain.ContentTypeUnclassified, "   ", 1),
		segment("s2", domain.ContentTypeRule, "", 1),
	}
	if chunks := p.ChunkAll(testDoc, segs); len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunks_GeneratesSegmentIDs(t *testing.T) {
	p := mustNew(t, domain.DefaultChunkConfig())
	seg := segment("", domain.ContentTypeRule, "Advantage and disadvantage.", 1)

	chunks := p.ChunkAll(testDoc, []domain.ClassifiedSegment{seg})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].SegmentIDs[0] != "doc-phb#000001" {
		t.Errorf("unexpected generated id %q", chunks[0].SegmentIDs[0])
	}
}
