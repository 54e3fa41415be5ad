// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Extractor: Turns a document into raw text segments
//   - Classifier: Assigns a content type to each segment
//   - Tokenizer: Splits text into tokens for chunk budgeting
//   - EmbeddingService: Generates vector embeddings
//   - Index: Stores chunk vectors and answers vector and keyword queries
//   - JobStore: Persists ingestion progress records
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingCache: Without it every chunk is sent to the model.
//   - Reranker: Without it results keep their fused ordering.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or postprocessor package
package driven
