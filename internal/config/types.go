package config

// ProviderType identifies a completion or embedding provider.
type ProviderType string

const (
	ProviderMistral    ProviderType = "mistral"
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOllama     ProviderType = "ollama"
)

// StorageDriver selects the durable store.
type StorageDriver string

const (
	StorageSQLite StorageDriver = "sqlite"
	StorageMongo  StorageDriver = "mongo"
)

// Config is the top-level pdfqa configuration, corresponding to .pdfqa.yml.
type Config struct {
	Provider ProviderType `yaml:"provider" koanf:"provider"`
	Model    string       `yaml:"model" koanf:"model"`
	BaseURL  string       `yaml:"base_url,omitempty" koanf:"base_url"`
	// APIKey is only read from the environment (PDFQA_API_KEY).
	APIKey string `yaml:"-" koanf:"api_key"`

	EmbeddingProvider   ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel      string       `yaml:"embedding_model" koanf:"embedding_model"`
	EmbeddingDimensions int          `yaml:"embedding_dimensions,omitempty" koanf:"embedding_dimensions"`
	EmbeddingBaseURL    string       `yaml:"embedding_base_url,omitempty" koanf:"embedding_base_url"`

	DataDir   string `yaml:"data_dir" koanf:"data_dir"`
	TempDir   string `yaml:"temp_dir,omitempty" koanf:"temp_dir"`
	LogLevel  string `yaml:"log_level" koanf:"log_level"`
	LogFormat string `yaml:"log_format" koanf:"log_format"`

	Storage   StorageConfig   `yaml:"storage" koanf:"storage"`
	Chunking  ChunkingConfig  `yaml:"chunking" koanf:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
	Answer    AnswerConfig    `yaml:"answer" koanf:"answer"`
	Server    ServerConfig    `yaml:"server" koanf:"server"`
}

// StorageConfig holds durable storage settings.
type StorageConfig struct {
	Driver        StorageDriver `yaml:"driver" koanf:"driver"`
	SQLitePath    string        `yaml:"sqlite_path,omitempty" koanf:"sqlite_path"`
	MongoURI      string        `yaml:"mongo_uri,omitempty" koanf:"mongo_uri"`
	MongoDatabase string        `yaml:"mongo_database" koanf:"mongo_database"`
}

// ChunkingConfig controls passage segmentation.
type ChunkingConfig struct {
	Size    int `yaml:"size" koanf:"size"`
	Overlap int `yaml:"overlap" koanf:"overlap"`
}

// RetrievalConfig controls passage selection.
type RetrievalConfig struct {
	TopK            int `yaml:"top_k" koanf:"top_k"`
	SummaryPassages int `yaml:"summary_passages" koanf:"summary_passages"`
	SummaryChars    int `yaml:"summary_chars" koanf:"summary_chars"`
}

// AnswerConfig controls calls to the answering service.
type AnswerConfig struct {
	QATimeoutSeconds      int     `yaml:"qa_timeout_seconds" koanf:"qa_timeout_seconds"`
	SummaryTimeoutSeconds int     `yaml:"summary_timeout_seconds" koanf:"summary_timeout_seconds"`
	QATemperature         float64 `yaml:"qa_temperature" koanf:"qa_temperature"`
	SummaryTemperature    float64 `yaml:"summary_temperature" koanf:"summary_temperature"`
	RequestsPerMinute     int     `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int    `yaml:"port" koanf:"port"`
	AllowAllOrigins bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	JWTSecret       string `yaml:"jwt_secret,omitempty" koanf:"jwt_secret"`
	TokenTTLHours   int    `yaml:"token_ttl_hours" koanf:"token_ttl_hours"`
	MaxUploadMB     int    `yaml:"max_upload_mb" koanf:"max_upload_mb"`
}
