package model

// ChunkConfig holds the semantic chunker parameters
type ChunkConfig struct {
	// Fixed-window fallback parameters
	ChunkSize int `json:"chunk_size"`
	Overlap   int `json:"overlap"`

	// Refinement parameters
	MinChunkSize int `json:"min_chunk_size"`
}

// DefaultChunkConfig returns the standard chunker parameters
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize:    1000,
		Overlap:      200,
		MinChunkSize: 100,
	}
}

// ResolveConfig holds the entity-resolution parameters
type ResolveConfig struct {
	// Similarity ratio at or above which two mentions of the same
	// type are grouped
	Threshold float64 `json:"threshold"`
}

// DefaultResolveConfig returns the standard resolution parameters
func DefaultResolveConfig() ResolveConfig {
	return ResolveConfig{
		Threshold: 0.8,
	}
}
