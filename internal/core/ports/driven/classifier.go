package driven

import "github.com/custodia-labs/tome/internal/core/domain"

// Classifier assigns a content type to a segment.
// Classification is deterministic and performs no I/O. Low-confidence
// segments classify as domain.ContentTypeRule rather than failing.
type Classifier interface {
	// Name identifies the strategy.
	Name() string

	// Classify returns the segment's content type.
	Classify(seg domain.RawSegment) domain.ContentType
}

// AmbiguityReporter is implemented by classifiers that can explain a
// degraded decision. The returned error wraps domain.ErrClassificationAmbiguous
// when more than one content type matched equally well.
type AmbiguityReporter interface {
	ClassifyReport(seg domain.RawSegment) (domain.ContentType, error)
}

// Tokenizer splits text into tokens for chunk budgeting.
// Concatenating the tokens of a text must reproduce the text exactly.
type Tokenizer interface {
	// Name identifies the tokenizer; it is part of chunk ids.
	Name() string

	// Tokenize splits text into tokens.
	Tokenize(text string) []string

	// Count returns the number of tokens in text.
	Count(text string) int

	// IsSentenceEnd reports whether a token closes a sentence.
	IsSentenceEnd(token string) bool

	// IsParagraphEnd reports whether a token closes a paragraph.
	IsParagraphEnd(token string) bool
}
