package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Models   ModelsConfig   `yaml:"models"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Index    IndexConfig    `yaml:"index"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Search   SearchConfig   `yaml:"search"`
	Agent    AgentConfig    `yaml:"agent"`
	Office   OfficeConfig   `yaml:"office"`
	Import   ImportConfig   `yaml:"import"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// LLMConfig describes a hosted model endpoint. Provider is one of
// "openai", "azure" or "ollama".
type LLMConfig struct {
	Provider   string        `yaml:"provider"`
	BaseURL    string        `yaml:"base_url"`
	Key        string        `yaml:"key"`
	APIVersion string        `yaml:"api_version"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	// Retries is nil when unset so that an explicit 0 disables retrying.
	Retries *int `yaml:"retries"`
}

// ModelsConfig overrides the model (or Azure deployment) per agent.
type ModelsConfig struct {
	GazExpert     string `yaml:"gaz_expert"`
	Veille        string `yaml:"veille"`
	Visualization string `yaml:"visualization"`
	QA            string `yaml:"qa"`
}

type RAGConfig struct {
	ChunkSize          int    `yaml:"chunk_size"`
	ChunkOverlap       *int   `yaml:"chunk_overlap"`
	SearchLimit        int    `yaml:"search_limit"`
	ExpertContextLimit int    `yaml:"expert_context_limit"`
	VectorDBPath       string `yaml:"vector_db_path"`
	Collection         string `yaml:"collection"`
	InMemory           bool   `yaml:"in_memory"`
	Compress           bool   `yaml:"compress"`
	EncryptionKey      string `yaml:"encryption_key"`
}

type IndexConfig struct {
	Backend string `yaml:"backend"` // chromem | pgvector
}

type StorageConfig struct {
	Backend           string `yaml:"backend"` // json | postgres
	UploadDir         string `yaml:"upload_dir"`
	DocumentIndexPath string `yaml:"document_index_path"`
}

type DatabaseConfig struct {
	DSN        string `yaml:"dsn"`
	Password   string `yaml:"password"`
	Driver     string `yaml:"driver"` // pgdriver | pq
	Debug      bool   `yaml:"debug"`
	VectorSize int    `yaml:"vector_size"`
}

type SearchConfig struct {
	SerpAPIKey string `yaml:"serpapi_key"`
}

type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

type OfficeConfig struct {
	SofficePath    string        `yaml:"soffice_path"`
	ConvertTimeout time.Duration `yaml:"convert_timeout"`
}

type ImportConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Interval    time.Duration `yaml:"interval"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// LoadConfig reads the YAML file at path. Variables from a .env file in the
// working directory are loaded first and ${VAR} references in the file are
// expanded from the environment. Defaults are derived after the file is
// read, so unset agent models follow llm.model and an unset embed_llm
// follows llm. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, err
		}
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is given: Azure
// OpenAI with the credentials found in the environment.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "azure"
	}
	if cfg.LLM.Provider == "azure" {
		fromEnv(&cfg.LLM.BaseURL, "AZURE_OPENAI_ENDPOINT")
		fromEnv(&cfg.LLM.Key, "AZURE_OPENAI_API_KEY")
		fromEnv(&cfg.LLM.APIVersion, "AZURE_API_VERSION")
		fromEnv(&cfg.LLM.Model, "AZURE_DEPLOYMENT_NAME")
		if cfg.LLM.APIVersion == "" {
			cfg.LLM.APIVersion = "2023-03-15-preview"
		}
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.Retries == nil || *cfg.LLM.Retries < 0 {
		cfg.LLM.Retries = intPtr(1)
	}
	if cfg.Models.GazExpert == "" {
		cfg.Models.GazExpert = cfg.LLM.Model
	}
	if cfg.Models.Veille == "" {
		cfg.Models.Veille = cfg.LLM.Model
	}
	if cfg.Models.Visualization == "" {
		cfg.Models.Visualization = cfg.LLM.Model
	}
	if cfg.Models.QA == "" {
		cfg.Models.QA = cfg.LLM.Model
	}

	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = cfg.LLM.Provider
	}
	if cfg.EmbedLLM.BaseURL == "" {
		cfg.EmbedLLM.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.EmbedLLM.Key == "" {
		cfg.EmbedLLM.Key = cfg.LLM.Key
	}
	if cfg.EmbedLLM.APIVersion == "" {
		cfg.EmbedLLM.APIVersion = cfg.LLM.APIVersion
	}
	if cfg.EmbedLLM.Model == "" {
		if cfg.EmbedLLM.Provider == "ollama" {
			cfg.EmbedLLM.Model = "nomic-embed-text"
		} else {
			cfg.EmbedLLM.Model = "text-embedding-ada-002"
		}
	}

	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if o := cfg.RAG.ChunkOverlap; o == nil || *o < 0 || *o >= cfg.RAG.ChunkSize {
		cfg.RAG.ChunkOverlap = intPtr(min(200, cfg.RAG.ChunkSize/5))
	}
	if cfg.RAG.SearchLimit <= 0 {
		cfg.RAG.SearchLimit = 5
	}
	if cfg.RAG.ExpertContextLimit <= 0 {
		cfg.RAG.ExpertContextLimit = 3
	}
	if cfg.RAG.VectorDBPath == "" {
		cfg.RAG.VectorDBPath = "./vectordb"
	}
	if cfg.RAG.Collection == "" {
		cfg.RAG.Collection = "documents"
	}

	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "chromem"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "json"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "./uploads"
	}
	if cfg.Storage.DocumentIndexPath == "" {
		cfg.Storage.DocumentIndexPath = "./document_index.json"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "pgdriver"
	}
	if cfg.Database.VectorSize == 0 {
		cfg.Database.VectorSize = 1536
	}

	if cfg.Agent.MaxIterations <= 0 {
		cfg.Agent.MaxIterations = 3
	}
	if cfg.Office.SofficePath == "" {
		cfg.Office.SofficePath = "soffice"
	}
	if cfg.Office.ConvertTimeout == 0 {
		cfg.Office.ConvertTimeout = 10 * time.Second
	}
	if cfg.Import.Concurrency <= 0 {
		cfg.Import.Concurrency = 1
	}
	if cfg.Import.Interval == 0 {
		cfg.Import.Interval = 500 * time.Millisecond
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	fromEnv(&cfg.Search.SerpAPIKey, "SERPER_API_KEY")
}

// fromEnv fills an unset value from the environment.
func fromEnv(v *string, key string) {
	if *v == "" {
		*v = os.Getenv(key)
	}
}

func intPtr(n int) *int { return &n }
