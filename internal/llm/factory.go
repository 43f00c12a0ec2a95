package llm

import (
	"fmt"
	"os"
)

// Default endpoints for the OpenAI-compatible providers.
const (
	MistralBaseURL    = "https://api.mistral.ai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Options selects and configures a provider.
type Options struct {
	Provider string
	Model    string
	// BaseURL overrides the provider's default endpoint.
	BaseURL string
	// APIKey overrides the provider's conventional environment variable.
	APIKey string
}

// NewProvider creates a provider. Supported providers: "mistral", "openai",
// "openrouter", "ollama".
func NewProvider(opts Options) (Provider, error) {
	switch opts.Provider {
	case "mistral", "openai", "openrouter":
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURL(opts.Provider)
		}
		apiKey := opts.APIKey
		if apiKey == "" {
			apiKey = os.Getenv(APIKeyEnvVar(opts.Provider))
		}
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is not set", APIKeyEnvVar(opts.Provider))
		}
		return NewOpenAIProvider(opts.Provider, apiKey, baseURL, opts.Model), nil

	case "ollama":
		host := opts.BaseURL
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		return NewOllamaProvider(host, opts.Model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", opts.Provider)
	}
}

// APIKeyEnvVar returns the conventional environment variable holding the
// API key of the given provider.
func APIKeyEnvVar(provider string) string {
	switch provider {
	case "mistral":
		return "MISTRAL_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}

func defaultBaseURL(provider string) string {
	switch provider {
	case "mistral":
		return MistralBaseURL
	case "openrouter":
		return OpenRouterBaseURL
	default:
		return ""
	}
}
