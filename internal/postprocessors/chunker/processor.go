// Package chunker groups classified segments into retrieval-sized chunks.
//
// Non-atomic text is accumulated token by token up to the configured size,
// with cut points pulled back to sentence or paragraph boundaries when
// semantic chunking is on. Consecutive non-atomic chunks share exactly
// Overlap tokens. Spells, feats and tables (when preserved) are emitted
// whole as atomic chunks regardless of size.
package chunker

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/tome/internal/adapters/driven/tokenizer/whitespace"
	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// segmentSeparator is appended to a segment's final token when the next
// segment would otherwise be glued onto it.
const segmentSeparator = "\n\n"

// chunkNamespace scopes chunk ids generated by this package.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/custodia-labs/tome/chunk"))

// Processor splits classified segments into chunks.
type Processor struct {
	cfg         domain.ChunkConfig
	tokenizer   driven.Tokenizer
	fingerprint string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithTokenizer sets the tokenizer used for budgeting and boundary detection.
func WithTokenizer(t driven.Tokenizer) Option {
	return func(p *Processor) {
		if t != nil {
			p.tokenizer = t
		}
	}
}

// New creates a chunker. It fails with domain.ErrChunkConfigInvalid before
// any segment is seen if the configuration cannot make progress.
func New(cfg domain.ChunkConfig, opts ...Option) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Processor{
		cfg:       cfg,
		tokenizer: whitespace.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.fingerprint = cfg.Fingerprint(p.tokenizer.Name())

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Config returns the chunk configuration.
func (p *Processor) Config() domain.ChunkConfig {
	return p.cfg
}

// Chunks returns the lazy chunk sequence for a document's segments.
// Ranging over the result again restarts chunking from the first segment,
// producing identical chunks and ids.
func (p *Processor) Chunks(doc domain.DocumentInfo, segments iter.Seq[domain.ClassifiedSegment]) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		r := &run{p: p, doc: doc}
		ordinal := 0
		for seg := range segments {
			ordinal++
			if seg.ID == "" {
				seg.ID = fmt.Sprintf("%s#%06d", doc.ID, ordinal)
			}
			if !r.add(seg, yield) {
				return
			}
		}
		r.flush(yield)
	}
}

// ChunkAll chunks a slice of segments eagerly.
func (p *Processor) ChunkAll(doc domain.DocumentInfo, segments []domain.ClassifiedSegment) []domain.Chunk {
	return slices.Collect(p.Chunks(doc, slices.Values(segments)))
}

// source is the citation metadata of one contributing segment.
type source struct {
	id    string
	pages domain.PageRange
	typ   domain.ContentType
}

// run holds the accumulation state of one pass over a document.
type run struct {
	p   *Processor
	doc domain.DocumentInfo

	// pending tokens and the segment each came from.
	pending []string
	owners  []*source

	// seeded is how many leading pending tokens were carried over as overlap.
	seeded int

	// start is the document-wide offset of pending[0]; next is the offset
	// of the next unseen token.
	start int
	next  int

	position int
}

// add consumes one segment. It returns false if the consumer stopped.
func (r *run) add(seg domain.ClassifiedSegment, yield func(domain.Chunk) bool) bool {
	if seg.Type == domain.ContentTypeUnclassified || strings.TrimSpace(seg.Text) == "" {
		return true
	}

	src := &source{id: seg.ID, pages: seg.Pages, typ: seg.Type}
	tokens := r.p.tokenizer.Tokenize(seg.Text)

	if r.p.cfg.IsAtomic(seg.Type) {
		if !r.flush(yield) {
			return false
		}
		chunk := r.build(seg.Text, len(tokens), []*source{src}, r.next, r.next+len(tokens), true)
		r.next += len(tokens)
		r.start = r.next
		return yield(chunk)
	}

	if n := len(r.pending); n > 0 && len(tokens) > 0 {
		// Keep whitespace between segments on the earlier token so the
		// joined text re-tokenizes to the same tokens.
		body := strings.TrimLeftFunc(tokens[0], unicode.IsSpace)
		if lead := tokens[0][:len(tokens[0])-len(body)]; lead != "" && body != "" {
			r.pending[n-1] += lead
			tokens[0] = body
		}
		if !endsWithSpace(r.pending[n-1]) {
			r.pending[n-1] += segmentSeparator
		}
	}
	for _, tok := range tokens {
		r.pending = append(r.pending, tok)
		r.owners = append(r.owners, src)
	}
	r.next += len(tokens)

	for len(r.pending) > r.p.cfg.Size {
		cut := r.p.cutPoint(r.pending)
		chunk := r.build(strings.Join(r.pending[:cut], ""), cut, r.owners[:cut], r.start, r.start+cut, false)
		if !yield(chunk) {
			return false
		}

		keep := cut - r.p.cfg.Overlap
		r.pending = slices.Clone(r.pending[keep:])
		r.owners = slices.Clone(r.owners[keep:])
		r.start += keep
		r.seeded = r.p.cfg.Overlap
	}
	return true
}

// flush emits pending tokens that have not appeared in a chunk yet.
// It returns false if the consumer stopped.
func (r *run) flush(yield func(domain.Chunk) bool) bool {
	defer r.reset()
	if len(r.pending) <= r.seeded {
		return true
	}
	n := len(r.pending)
	return yield(r.build(strings.Join(r.pending, ""), n, r.owners, r.start, r.start+n, false))
}

func (r *run) reset() {
	r.pending = nil
	r.owners = nil
	r.seeded = 0
	r.start = r.next
}

// cutPoint returns how many pending tokens go into the next chunk.
func (p *Processor) cutPoint(tokens []string) int {
	limit := p.cfg.Size
	if !p.cfg.Semantic {
		return limit
	}
	floor := limit - p.cfg.Window()
	for cut := limit; cut > floor; cut-- {
		tok := tokens[cut-1]
		if p.tokenizer.IsParagraphEnd(tok) || p.tokenizer.IsSentenceEnd(tok) {
			return cut
		}
	}
	return limit
}

func (r *run) build(text string, tokenCount int, owners []*source, start, end int, atomic bool) domain.Chunk {
	var (
		ids    []string
		pages  domain.PageRange
		counts = make(map[domain.ContentType]int)
		order  []domain.ContentType
	)
	var last *source
	for _, src := range owners {
		if _, seen := counts[src.typ]; !seen {
			order = append(order, src.typ)
		}
		counts[src.typ]++
		if src == last {
			continue
		}
		last = src
		if len(ids) == 0 || ids[len(ids)-1] != src.id {
			ids = append(ids, src.id)
		}
		pages = pages.Union(src.pages)
	}

	typ := domain.ContentTypeRule
	best := 0
	for _, t := range order {
		if counts[t] > best {
			typ, best = t, counts[t]
		}
	}

	chunk := domain.Chunk{
		ID:         r.p.chunkID(r.doc.ID, start, end, atomic),
		DocumentID: r.doc.ID,
		Text:       text,
		Type:       typ,
		TokenCount: tokenCount,
		SegmentIDs: ids,
		Book:       r.doc.Book,
		Pages:      pages,
		GameSystem: r.doc.GameSystem,
		Version:    r.doc.Version,
		Atomic:     atomic,
		Position:   r.position,
	}
	describe(&chunk)
	r.position++
	return chunk
}

// chunkID derives a stable id from the document, the token span and the
// chunk configuration.
func (p *Processor) chunkID(documentID string, start, end int, atomic bool) string {
	name := fmt.Sprintf("%s|%s|%d|%d|%t", documentID, p.fingerprint, start, end, atomic)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r != utf8.RuneError && unicode.IsSpace(r)
}
