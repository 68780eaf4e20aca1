// Package reindex rebuilds a release's embeddings and vector index with a
// new or updated embedding model.
//
// This package supports batch processing of chunks, progress tracking, retry
// logic with exponential backoff, and vector normalization to ensure
// compatibility with cosine similarity search.
package reindex
