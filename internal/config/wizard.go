package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to pdfqa! Let's configure your workspace.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Answering provider.
	providerPrompt := promptui.Select{
		Label: "Select answering provider",
		Items: []string{"mistral", "openai", "openrouter", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	cfg.Model = GetPreset(cfg.Provider).Model

	// 2. Embedding provider.
	embedPrompt := promptui.Select{
		Label: "Select embedding provider",
		Items: []string{
			"ollama  — local all-minilm (384 dims)",
			"mistral — mistral-embed",
			"openai  — text-embedding-3-small",
		},
	}
	embedIdx, _, err := embedPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding selection: %w", err)
	}
	cfg.EmbeddingProvider = []ProviderType{ProviderOllama, ProviderMistral, ProviderOpenAI}[embedIdx]
	cfg.EmbeddingModel = GetPreset(cfg.EmbeddingProvider).EmbeddingModel

	// 3. Storage.
	storagePrompt := promptui.Select{
		Label: "Select storage",
		Items: []string{"sqlite", "mongo"},
	}
	_, driver, err := storagePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("storage selection: %w", err)
	}
	cfg.Storage.Driver = StorageDriver(driver)

	if cfg.Storage.Driver == StorageMongo {
		uriPrompt := promptui.Prompt{
			Label:   "MongoDB URI (leave blank to read MONGO_URI)",
			Default: "",
		}
		if cfg.Storage.MongoURI, err = uriPrompt.Run(); err != nil {
			return nil, fmt.Errorf("mongo uri: %w", err)
		}
	} else {
		dirPrompt := promptui.Prompt{
			Label:   "Data directory",
			Default: cfg.DataDir,
		}
		if cfg.DataDir, err = dirPrompt.Run(); err != nil {
			return nil, fmt.Errorf("data dir: %w", err)
		}
	}

	// 4. Server port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	for _, p := range []ProviderType{cfg.Provider, cfg.EmbeddingProvider} {
		if envVar := APIKeyEnvVar(p); envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment or .env file before running pdfqa.\n", envVar)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}
