// Package domain defines the core business entities for Tome.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawSegment: A piece of extracted text with page metadata
//   - ContentType: The closed set of rulebook content categories
//   - Chunk: A retrieval unit with citation metadata
//   - IndexEntry: A chunk plus its embedding, as stored in the index
//   - SearchResult: A scored, cited hit returned to callers
//   - Job: The progress record of one document's ingestion
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
