package ai

// ModelInfo identifies the embedding implementation behind a vector.
type ModelInfo struct {
	// Provider is the implementation family, e.g. "openai" or "hash".
	Provider string

	// Model is the model identifier, e.g. "mxbai-embed-large".
	Model string

	// Dimension is the vector width when known up front. Zero means the
	// provider only learns the width from its first response.
	Dimension int
}
