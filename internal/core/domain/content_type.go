package domain

import (
	"fmt"
	"strings"
)

// ContentType categorises a segment or chunk of rulebook text.
// The set is closed; classifiers may only return one of these values.
type ContentType string

// Content types recognised by the pipeline.
const (
	// ContentTypeSpell is a spell block (name, level line, casting fields, description).
	ContentTypeSpell ContentType = "spell"

	// ContentTypeFeat is a feat block (name, prerequisite, benefits).
	ContentTypeFeat ContentType = "feat"

	// ContentTypeTable is tabular data.
	ContentTypeTable ContentType = "table"

	// ContentTypeClassFeature is a level-gated class ability.
	ContentTypeClassFeature ContentType = "class_feature"

	// ContentTypeEquipment is an item, weapon or armour entry.
	ContentTypeEquipment ContentType = "equipment"

	// ContentTypeRule is general rules prose. Ambiguous content degrades to this type.
	ContentTypeRule ContentType = "rule"

	// ContentTypeUnclassified marks segments with no usable text.
	ContentTypeUnclassified ContentType = "unclassified"
)

// IsValid returns true if the content type is recognised.
func (c ContentType) IsValid() bool {
	switch c {
	case ContentTypeSpell, ContentTypeFeat, ContentTypeTable, ContentTypeClassFeature,
		ContentTypeEquipment, ContentTypeRule, ContentTypeUnclassified:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (c ContentType) String() string {
	return string(c)
}

// Label returns a short display label, e.g. "Spell" or "Class Feature".
func (c ContentType) Label() string {
	switch c {
	case ContentTypeSpell:
		return "Spell"
	case ContentTypeFeat:
		return "Feat"
	case ContentTypeTable:
		return "Table"
	case ContentTypeClassFeature:
		return "Class Feature"
	case ContentTypeEquipment:
		return "Equipment"
	case ContentTypeRule:
		return "Rule"
	case ContentTypeUnclassified:
		return "Unclassified"
	default:
		return unknownDescription
	}
}

// ParseContentType converts user input into a ContentType.
// Matching is case-insensitive and accepts labels ("Class Feature") and
// identifiers ("class_feature", "classfeature").
func ParseContentType(s string) (ContentType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	if norm == "classfeature" {
		norm = string(ContentTypeClassFeature)
	}
	ct := ContentType(norm)
	if !ct.IsValid() {
		return "", fmt.Errorf("%w: unknown content type %q", ErrInvalidInput, s)
	}
	return ct, nil
}

// AllContentTypes returns every content type in display order.
func AllContentTypes() []ContentType {
	return []ContentType{
		ContentTypeSpell,
		ContentTypeFeat,
		ContentTypeTable,
		ContentTypeClassFeature,
		ContentTypeEquipment,
		ContentTypeRule,
		ContentTypeUnclassified,
	}
}
