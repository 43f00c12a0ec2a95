package config

// ProviderPreset describes the models to use with a given provider.
type ProviderPreset struct {
	Model          string
	EmbeddingModel string
}

// presets maps each provider to its default model choices.
var presets = map[ProviderType]ProviderPreset{
	ProviderMistral:    {Model: "mistral-small", EmbeddingModel: "mistral-embed"},
	ProviderOpenAI:     {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
	ProviderOpenRouter: {Model: "mistralai/mistral-small", EmbeddingModel: "text-embedding-3-small"},
	ProviderOllama:     {Model: "llama3", EmbeddingModel: "all-minilm"},
}

// DefaultConfigFile is the config path used when none is given.
const DefaultConfigFile = ".pdfqa.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderMistral,
		Model:             "mistral-small",
		EmbeddingProvider: ProviderOllama,
		EmbeddingModel:    "all-minilm",
		DataDir:           ".pdfqa",
		LogLevel:          "info",
		LogFormat:         "text",
		Storage: StorageConfig{
			Driver:        StorageSQLite,
			MongoDatabase: "pdf_qa_system",
		},
		Chunking: ChunkingConfig{
			Size:    500,
			Overlap: 100,
		},
		Retrieval: RetrievalConfig{
			TopK:            3,
			SummaryPassages: 100,
			SummaryChars:    8000,
		},
		Answer: AnswerConfig{
			QATimeoutSeconds:      30,
			SummaryTimeoutSeconds: 60,
			QATemperature:         0.3,
			SummaryTemperature:    0.2,
			RequestsPerMinute:     60,
		},
		Server: ServerConfig{
			Port:          8080,
			TokenTTLHours: 24,
			MaxUploadMB:   50,
		},
	}
}

// GetPreset returns the preset for the given provider.
// Returns the Mistral preset if the provider is not known.
func GetPreset(provider ProviderType) ProviderPreset {
	if preset, ok := presets[provider]; ok {
		return preset
	}
	return presets[ProviderMistral]
}
