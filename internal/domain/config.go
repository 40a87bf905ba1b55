package domain

// KeyPrefix namespaces every key paperfeed writes to a shared key-value store.
const KeyPrefix = "paperfeed:"

// VectorConfig holds internal vectorization settings.
type VectorConfig struct {
	Model      string
	Dimensions int
	BatchSize  int
}

// DefaultVectorConfig returns the defaults for text-embedding-3-small.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		BatchSize:  10,
	}
}
