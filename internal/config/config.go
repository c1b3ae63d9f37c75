package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the ragpack service configuration.
type Config struct {
	HTTP       HTTPConfig                `yaml:"http"`
	Database   DatabaseConfig            `yaml:"database"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Embedding  EmbeddingConfig           `yaml:"embedding"`
	LLM        LLMConfig                 `yaml:"llm"`
	Extraction ExtractionConfig          `yaml:"extraction"`
	Retrieval  RetrievalConfig           `yaml:"retrieval"`
	Scope      ScopeConfig               `yaml:"scope"`
	Packing    PackingConfig             `yaml:"packing"`
	Memory     MemoryConfig              `yaml:"memory"`
	Tokenizer  TokenizerConfig           `yaml:"tokenizer"`
	Index      IndexConfig               `yaml:"index"`
	Auth       AuthConfig                `yaml:"auth"`
	Logging    LoggingConfig             `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ProviderConfig holds the credentials of an OpenAI-compatible API.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig holds query embedding settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	CacheTTLSec      int    `yaml:"cache_ttl_sec"`   // 0 disables the cache
	MaxQueryRunes    int    `yaml:"max_query_runes"` // 0 uses the embedding package default
}

// LLMConfig holds the completion model used by /v1/chat. An empty provider disables chat.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// ExtractionConfig holds term extraction settings. An empty provider disables boosting.
type ExtractionConfig struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	PoolSize      int           `yaml:"pool_size"`
	PassTimeoutMs int           `yaml:"pass_timeout_ms"`
	Weights       WeightsConfig `yaml:"weights"`
}

// WeightsConfig holds boost weights per extraction pass.
type WeightsConfig struct {
	Query     float64 `yaml:"query"`
	User      float64 `yaml:"user"`
	Assistant float64 `yaml:"assistant"`
}

// RetrievalConfig holds hybrid search settings.
type RetrievalConfig struct {
	MatchMode   string `yaml:"match_mode"` // phrase, fuzzy, prefix, freetext
	MaxTerms    int    `yaml:"max_terms"`
	ResultSize  int    `yaml:"result_size"`
	RRFConstant int    `yaml:"rrf_constant"`
	RRFWindow   int    `yaml:"rrf_window"`
	TimeoutMs   int    `yaml:"timeout_ms"`
}

// ScopeConfig holds scope gate settings.
// MinMessages and ErrorBuffer are pointers because 0 is a valid setting for both:
// 0 messages gates every conversation, a 0 buffer uses the unexpanded band.
type ScopeConfig struct {
	MinMessages   *int     `yaml:"min_messages"`
	MaxCandidates int      `yaml:"max_candidates"`
	IQRMultiplier float64  `yaml:"iqr_multiplier"`
	ErrorBuffer   *float64 `yaml:"error_buffer"`
}

// PackingConfig holds the default chat configuration; requests may override it.
type PackingConfig struct {
	MaxContextTokens        int    `yaml:"max_context_tokens"`
	ReserveCompletionTokens int    `yaml:"reserve_completion_tokens"`
	ReserveHeadroomTokens   int    `yaml:"reserve_headroom_tokens"`
	ContextPrefix           string `yaml:"context_prefix"`
	OutOfScopeMessage       string `yaml:"out_of_scope_message"`
}

// MemoryConfig holds fact store settings.
type MemoryConfig struct {
	Backend string `yaml:"backend"` // redis (default), memory
	TTLSec  int    `yaml:"ttl_sec"` // 0 keeps facts forever
	Prefix  string `yaml:"prefix"`
}

// TokenizerConfig selects the token counter.
type TokenizerConfig struct {
	Kind          string `yaml:"kind"` // approx (default), tiktoken
	Encoding      string `yaml:"encoding"`
	CharsPerToken int    `yaml:"chars_per_token"`
}

// IndexConfig holds chunk index settings.
type IndexConfig struct {
	Bootstrap       bool `yaml:"bootstrap"`
	HNSWM           int  `yaml:"hnsw_m"`
	HNSWEFConstruct int  `yaml:"hnsw_ef_construction"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Extraction.PoolSize <= 0 {
		c.Extraction.PoolSize = 16
	}
	if c.Extraction.PassTimeoutMs <= 0 {
		c.Extraction.PassTimeoutMs = 3000
	}
	if c.Extraction.Weights == (WeightsConfig{}) {
		c.Extraction.Weights = WeightsConfig{Query: 5, User: 2, Assistant: 1}
	}
	if c.Retrieval.MatchMode == "" {
		c.Retrieval.MatchMode = "freetext"
	}
	if c.Retrieval.MaxTerms <= 0 {
		c.Retrieval.MaxTerms = 12
	}
	if c.Retrieval.ResultSize <= 0 {
		c.Retrieval.ResultSize = 25
	}
	if c.Retrieval.RRFConstant <= 0 {
		c.Retrieval.RRFConstant = 60
	}
	if c.Retrieval.RRFWindow <= 0 {
		c.Retrieval.RRFWindow = 50
	}
	if c.Retrieval.TimeoutMs <= 0 {
		c.Retrieval.TimeoutMs = 5000
	}
	if c.Scope.MinMessages == nil {
		c.Scope.MinMessages = ptr(4)
	}
	if c.Scope.MaxCandidates <= 0 {
		c.Scope.MaxCandidates = 25
	}
	if c.Scope.IQRMultiplier <= 0 {
		c.Scope.IQRMultiplier = 1.5
	}
	if c.Scope.ErrorBuffer == nil {
		c.Scope.ErrorBuffer = ptr(0.5)
	}
	if c.Packing.MaxContextTokens <= 0 {
		c.Packing.MaxContextTokens = 8192
	}
	if c.Packing.ReserveCompletionTokens <= 0 {
		c.Packing.ReserveCompletionTokens = 1024
	}
	if c.Packing.ReserveHeadroomTokens <= 0 {
		c.Packing.ReserveHeadroomTokens = 256
	}
	if c.Memory.Backend == "" {
		c.Memory.Backend = "redis"
	}
	if c.Tokenizer.Kind == "" {
		c.Tokenizer.Kind = "approx"
	}
	if c.Tokenizer.Encoding == "" {
		c.Tokenizer.Encoding = "cl100k_base"
	}
	if c.Tokenizer.CharsPerToken <= 0 {
		c.Tokenizer.CharsPerToken = 4
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if err := c.requireProvider("embedding.provider", c.Embedding.Provider, true); err != nil {
		return err
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.MaxQueryRunes < 0 {
		return fmt.Errorf("embedding.max_query_runes must not be negative, got %d", c.Embedding.MaxQueryRunes)
	}
	if c.Scope.MinMessages != nil && *c.Scope.MinMessages < 0 {
		return fmt.Errorf("scope.min_messages must not be negative, got %d", *c.Scope.MinMessages)
	}
	if c.Scope.ErrorBuffer != nil && *c.Scope.ErrorBuffer < 0 {
		return fmt.Errorf("scope.error_buffer must not be negative, got %g", *c.Scope.ErrorBuffer)
	}
	if err := c.requireProvider("llm.provider", c.LLM.Provider, false); err != nil {
		return err
	}
	if err := c.requireProvider("extraction.provider", c.Extraction.Provider, false); err != nil {
		return err
	}
	if err := oneOf("retrieval.match_mode", c.Retrieval.MatchMode, "phrase", "fuzzy", "prefix", "freetext"); err != nil {
		return err
	}
	if err := oneOf("memory.backend", c.Memory.Backend, "redis", "memory"); err != nil {
		return err
	}
	if err := oneOf("tokenizer.kind", c.Tokenizer.Kind, "approx", "tiktoken"); err != nil {
		return err
	}
	if c.Retrieval.RRFWindow < c.Retrieval.ResultSize {
		return fmt.Errorf("retrieval.rrf_window (%d) must be at least retrieval.result_size (%d)",
			c.Retrieval.RRFWindow, c.Retrieval.ResultSize)
	}
	if c.Packing.ReserveCompletionTokens+c.Packing.ReserveHeadroomTokens >= c.Packing.MaxContextTokens {
		return fmt.Errorf("packing reserves (%d) leave no room in max_context_tokens (%d)",
			c.Packing.ReserveCompletionTokens+c.Packing.ReserveHeadroomTokens, c.Packing.MaxContextTokens)
	}
	return nil
}

func (c *Config) requireProvider(field, name string, required bool) error {
	if name == "" {
		if required {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	if _, ok := c.Providers[name]; !ok {
		return fmt.Errorf("%s references unknown provider %q", field, name)
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}

// Provider returns the provider settings referenced by name.
func (c *Config) Provider(name string) ProviderConfig {
	return c.Providers[name]
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

func ptr[T any](v T) *T { return &v }
