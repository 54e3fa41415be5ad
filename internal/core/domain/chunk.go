package domain

import (
	"fmt"
	"strings"
)

// Chunking defaults.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// Chunk is a retrieval unit with citation metadata.
// Chunks are immutable once emitted by the chunker.
type Chunk struct {
	// ID is stable for a given source span and chunk configuration.
	ID string `json:"id" yaml:"id"`

	// DocumentID is the document this chunk belongs to.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// Text is the chunk content.
	Text string `json:"text" yaml:"text"`

	// Type is the content type of the chunk.
	Type ContentType `json:"content_type" yaml:"content_type"`

	// TokenCount is the number of tokens in Text.
	TokenCount int `json:"token_count" yaml:"token_count"`

	// SegmentIDs lists contributing segments in document order.
	SegmentIDs []string `json:"source_segment_ids" yaml:"source_segment_ids"`

	// Book is the book title.
	Book string `json:"book" yaml:"book"`

	// Pages is the printed page span of the chunk.
	Pages PageRange `json:"page_range" yaml:"page_range"`

	// GameSystem is the rules system.
	GameSystem string `json:"game_system" yaml:"game_system"`

	// Version is the book version.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Atomic is set when the chunk holds a single unsplittable unit
	// (spell, feat or table). Atomic chunks may exceed the chunk size.
	Atomic bool `json:"is_atomic" yaml:"is_atomic"`

	// Position is the chunk's ordinal within its document.
	Position int `json:"position" yaml:"position"`

	// Name is the spell or feat name of an atomic chunk.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Spell describes an atomic spell chunk.
	Spell *SpellDetails `json:"spell,omitempty" yaml:"spell,omitempty"`

	// Prerequisites is the prerequisite line of an atomic feat chunk.
	Prerequisites string `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
}

// SpellDetails is what a spell's stat block says about it.
type SpellDetails struct {
	// Level is the spell level: 0 for cantrips, -1 when not stated.
	Level int `json:"level" yaml:"level"`

	// School is the school of magic, capitalised, or empty when not stated.
	School string `json:"school,omitempty" yaml:"school,omitempty"`
}

// Citation returns the citation view of the chunk's metadata.
func (c *Chunk) Citation() Citation {
	return Citation{
		Book:    c.Book,
		Pages:   c.Pages,
		Version: c.Version,
	}
}

// ChunkConfig controls how classified segments are grouped into chunks.
type ChunkConfig struct {
	// Size is the token budget of a non-atomic chunk.
	Size int `json:"chunk_size"`

	// Overlap is the number of trailing tokens repeated at the start of the next chunk.
	Overlap int `json:"overlap"`

	// PreserveTables keeps tables whole.
	PreserveTables bool `json:"preserve_tables"`

	// PreserveSpells keeps spell blocks whole.
	PreserveSpells bool `json:"preserve_spells"`

	// PreserveFeats keeps feat blocks whole.
	PreserveFeats bool `json:"preserve_feats"`

	// Semantic moves cut points back to sentence or paragraph boundaries.
	Semantic bool `json:"semantic_chunking"`

	// BoundaryWindow is how far (in tokens) a semantic cut may move back
	// from the hard limit. Zero means Size/10.
	BoundaryWindow int `json:"boundary_window,omitempty"`
}

// DefaultChunkConfig returns the standard chunking configuration.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:           DefaultChunkSize,
		Overlap:        DefaultOverlap,
		PreserveTables: true,
		PreserveSpells: true,
		PreserveFeats:  true,
		Semantic:       true,
	}
}

// Validate fails when the configuration cannot produce progress.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrChunkConfigInvalid, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrChunkConfigInvalid, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d",
			ErrChunkConfigInvalid, c.Overlap, c.Size)
	}
	if c.BoundaryWindow < 0 {
		return fmt.Errorf("%w: boundary window must not be negative, got %d", ErrChunkConfigInvalid, c.BoundaryWindow)
	}
	return nil
}

// IsAtomic reports whether segments of type t are kept whole under this config.
func (c ChunkConfig) IsAtomic(t ContentType) bool {
	switch t {
	case ContentTypeTable:
		return c.PreserveTables
	case ContentTypeSpell:
		return c.PreserveSpells
	case ContentTypeFeat:
		return c.PreserveFeats
	default:
		return false
	}
}

// Window returns the effective semantic boundary window.
// The window never reaches back to or past the overlap region, so every
// cut makes progress.
func (c ChunkConfig) Window() int {
	w := c.BoundaryWindow
	if w == 0 {
		w = c.Size / 10
	}
	if limit := c.Size - c.Overlap - 1; w > limit {
		w = limit
	}
	if w < 0 {
		w = 0
	}
	return w
}

// Fingerprint encodes every setting that affects chunk boundaries.
// Chunk ids are derived from it so a config change yields new ids.
func (c ChunkConfig) Fingerprint(tokenizer string) string {
	return strings.Join([]string{
		fmt.Sprintf("size=%d", c.Size),
		fmt.Sprintf("overlap=%d", c.Overlap),
		fmt.Sprintf("tables=%t", c.PreserveTables),
		fmt.Sprintf("spells=%t", c.PreserveSpells),
		fmt.Sprintf("feats=%t", c.PreserveFeats),
		fmt.Sprintf("semantic=%t", c.Semantic),
		fmt.Sprintf("window=%d", c.Window()),
		"tokenizer=" + tokenizer,
	}, ";")
}

// Citation points a reader back to the printed source.
// It is derived from chunk metadata and never stored separately.
type Citation struct {
	Book    string    `json:"book" yaml:"book"`
	Pages   PageRange `json:"page_range" yaml:"page_range"`
	Version string    `json:"version,omitempty" yaml:"version,omitempty"`

	// Quote is a short excerpt supporting the result, if any.
	Quote string `json:"quote,omitempty" yaml:"quote,omitempty"`
}

// String formats the citation as "Book, p. 12, v5.1".
func (c Citation) String() string {
	parts := []string{c.Book}
	if pages := c.Pages.String(); pages != "" {
		parts = append(parts, pages)
	}
	if c.Version != "" {
		parts = append(parts, "v"+c.Version)
	}
	return strings.Join(parts, ", ")
}

// IsComplete returns true if the citation can point a reader somewhere.
func (c Citation) IsComplete() bool {
	return c.Book != "" && !c.Pages.IsZero()
}
