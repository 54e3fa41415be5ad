// Package extractors provides the Extractor implementations for rulebook
// formats and the registry that selects between them.
//
// Extractors are registered with the Registry at startup. Each one reads
// a local file and yields raw segments in reading order; ranging over the
// returned sequence again re-reads the file from the start.
package extractors
