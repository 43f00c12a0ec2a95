package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ziadkadry99/pdf-inquiry/internal/answer"
	"github.com/ziadkadry99/pdf-inquiry/internal/auth"
	"github.com/ziadkadry99/pdf-inquiry/internal/blobstore"
	"github.com/ziadkadry99/pdf-inquiry/internal/config"
	"github.com/ziadkadry99/pdf-inquiry/internal/conversation"
	"github.com/ziadkadry99/pdf-inquiry/internal/db"
	"github.com/ziadkadry99/pdf-inquiry/internal/embeddings"
	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
	"github.com/ziadkadry99/pdf-inquiry/internal/index"
	"github.com/ziadkadry99/pdf-inquiry/internal/indexcache"
	"github.com/ziadkadry99/pdf-inquiry/internal/llm"
	"github.com/ziadkadry99/pdf-inquiry/internal/logging"
	"github.com/ziadkadry99/pdf-inquiry/internal/mongostore"
	"github.com/ziadkadry99/pdf-inquiry/internal/rag"
	"github.com/ziadkadry99/pdf-inquiry/internal/retrieval"
	"github.com/ziadkadry99/pdf-inquiry/internal/segment"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `pdfqa init` to create a config file", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = config.GetPreset(provider).EmbeddingModel
	}

	switch provider {
	case config.ProviderOllama:
		baseURL := cfg.EmbeddingBaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OLLAMA_HOST")
		}
		return embeddings.NewOllamaEmbedder(model, cfg.EmbeddingDimensions, baseURL), nil
	case config.ProviderMistral, config.ProviderOpenAI, config.ProviderOpenRouter:
		envVar := config.APIKeyEnvVar(provider)
		apiKey := os.Getenv(envVar)
		if apiKey == "" && provider == cfg.Provider {
			apiKey = cfg.APIKey
		}
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is required for %s embeddings", envVar, provider)
		}
		baseURL := cfg.EmbeddingBaseURL
		if baseURL == "" {
			switch provider {
			case config.ProviderMistral:
				baseURL = llm.MistralBaseURL
			case config.ProviderOpenRouter:
				baseURL = llm.OpenRouterBaseURL
			}
		}
		return embeddings.NewOpenAIEmbedder(apiKey, baseURL, model, cfg.EmbeddingDimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", provider)
	}
}

// createLLMProviderFromConfig creates a rate-limited answering provider.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	p, err := llm.NewProvider(llm.Options{
		Provider: string(cfg.Provider),
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedProvider(p, cfg.Answer.RequestsPerMinute), nil
}

// stores are the durable stores of the configured storage driver.
type stores struct {
	blobs blobstore.Store
	convs conversation.Store
	users auth.Store
	close func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case config.StorageMongo:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongostore.Connect(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase)
		if err != nil {
			return nil, err
		}
		logger.Debug("connected to mongodb", "database", cfg.Storage.MongoDatabase)
		return &stores{
			blobs: client.Blobs(),
			convs: client.Conversations(),
			users: client.Users(),
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Close(ctx)
			},
		}, nil

	default:
		path := cfg.SQLitePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		database, err := db.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		logger.Debug("opened sqlite database", "path", path)
		return &stores{
			blobs: blobstore.NewSQLiteStore(database),
			convs: conversation.NewSQLiteStore(database),
			users: auth.NewSQLiteStore(database),
			close: func() { database.Close() },
		}, nil
	}
}

// app bundles everything a command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	rag    *rag.Service
	users  *auth.Service
	close  func()
}

// newApp wires the configured providers and stores into a rag.Service.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.LoggingOptions())
	if err != nil {
		return nil, err
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	segmenter, err := segment.New(segment.Options{
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
		TempDir:      cfg.TempDir,
	})
	if err != nil {
		return nil, err
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	svc, err := rag.New(rag.Config{
		Segmenter:     segmenter,
		Builder:       index.NewBuilder(embedder),
		Cache:         indexcache.New(),
		Blobs:         st.blobs,
		Conversations: st.convs,
		Composer: answer.New(provider, answer.Options{
			Model:              cfg.Model,
			QATimeout:          cfg.QATimeout(),
			SummaryTimeout:     cfg.SummaryTimeout(),
			QATemperature:      &cfg.Answer.QATemperature,
			SummaryTemperature: &cfg.Answer.SummaryTemperature,
		}, logger),
		TopK: cfg.Retrieval.TopK,
		Sample: retrieval.SampleOptions{
			MaxPassages: cfg.Retrieval.SummaryPassages,
			MaxChars:    cfg.Retrieval.SummaryChars,
		},
		Logger: logger,
	})
	if err != nil {
		st.close()
		return nil, err
	}

	logger.Debug("pdfqa ready",
		"provider", provider.Name(), "model", cfg.Model,
		"embedder", embedder.Name(), "storage", cfg.Storage.Driver)

	return &app{
		cfg:    cfg,
		logger: logger,
		rag:    svc,
		users:  auth.NewService(st.users),
		close:  st.close,
	}, nil
}

// resolveDocument accepts a fingerprint or a path to a PDF. A path is
// ingested; a fingerprint is reopened from the blob store. Either way the
// document is indexed on return.
func (a *app) resolveDocument(ctx context.Context, arg string) (fingerprint.Fingerprint, error) {
	if fp, err := fingerprint.Parse(arg); err == nil {
		if _, err := a.rag.Open(ctx, fp); err != nil {
			return "", err
		}
		return fp, nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", arg, err)
	}
	res, err := a.rag.Ingest(ctx, data, filepath.Base(arg))
	if err != nil {
		return "", err
	}
	return res.Fingerprint, nil
}
