package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		EmbedModel  string  `yaml:"embed_model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Database struct {
		URL       string `yaml:"url"`
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"database"`

	Chunker struct {
		TargetTokens  int    `yaml:"target_tokens"`
		OverlapTokens int    `yaml:"overlap_tokens"`
		Encoding      string `yaml:"encoding"`
	} `yaml:"chunker"`

	Enricher struct {
		MaxDocChars int     `yaml:"max_doc_chars"`
		Concurrency int     `yaml:"concurrency"`
		RateLimit   float64 `yaml:"rate_limit"`
	} `yaml:"enricher"`

	Search struct {
		TopK int `yaml:"top_k"`
	} `yaml:"search"`

	UI struct {
		Streaming bool `yaml:"streaming"`
	} `yaml:"ui"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docsage/config.yaml"),
			"/etc/docsage/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Streaming defaults on; set before unmarshal so only an explicit
	// "streaming: false" turns it off.
	var config Config
	config.UI.Streaming = true
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	config.UI.Streaming = true
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.EmbedModel == "" {
		config.LLM.EmbedModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}

	if config.Chunker.TargetTokens == 0 {
		config.Chunker.TargetTokens = 500
	}
	if config.Chunker.OverlapTokens == 0 {
		config.Chunker.OverlapTokens = 50
	}
	if config.Chunker.Encoding == "" {
		config.Chunker.Encoding = "cl100k_base"
	}

	if config.Enricher.MaxDocChars == 0 {
		config.Enricher.MaxDocChars = 100_000
	}
	if config.Enricher.Concurrency == 0 {
		config.Enricher.Concurrency = 4
	}
	if config.Enricher.RateLimit == 0 {
		config.Enricher.RateLimit = 4.0
	}

	if config.Search.TopK == 0 {
		config.Search.TopK = 10
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
}
