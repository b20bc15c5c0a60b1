package model

import "time"

// Config is the complete runtime configuration.
// Loaded by viper (mapstructure tags) and rendered by `config show` (yaml tags).
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Decay     DecayConfig     `yaml:"decay" mapstructure:"decay"`
	Retrieval RetrievalConfig `yaml:"retrieval" mapstructure:"retrieval"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Trend     TrendConfig     `yaml:"trend" mapstructure:"trend"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Timeouts  TimeoutConfig   `yaml:"timeouts" mapstructure:"timeouts"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Authority AuthorityConfig `yaml:"authority" mapstructure:"authority"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// StoreConfig locates the on-disk stores
type StoreConfig struct {
	GraphPath       string `yaml:"graph_path" mapstructure:"graph_path"`             // sqlite: claims + edges
	VectorPath      string `yaml:"vector_path" mapstructure:"vector_path"`           // sqlite: embeddings
	RemediationPath string `yaml:"remediation_path" mapstructure:"remediation_path"` // bbolt: triage log
	Collection      string `yaml:"collection" mapstructure:"collection"`
}

// DecayConfig holds the forecaster tunables
type DecayConfig struct {
	ImmutableHalfLifeDays int           `yaml:"immutable_half_life_days" mapstructure:"immutable_half_life_days"`
	MutableHalfLifeDays   int           `yaml:"mutable_half_life_days" mapstructure:"mutable_half_life_days"`
	ImmutableBaseScore    float64       `yaml:"immutable_base_score" mapstructure:"immutable_base_score"`
	MutableBaseScore      float64       `yaml:"mutable_base_score" mapstructure:"mutable_base_score"`
	MaxTrendEntities      int           `yaml:"max_trend_entities" mapstructure:"max_trend_entities"`
	CheckTrending         bool          `yaml:"check_trending" mapstructure:"check_trending"`
	RefreshInterval       time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"` // 0 disables
}

// RetrievalConfig holds the adversarial retrieval tunables
type RetrievalConfig struct {
	DefaultLanguages    []string `yaml:"default_languages" mapstructure:"default_languages"`
	SimilarityThreshold float64  `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	SimilarThreshold    float64  `yaml:"similar_threshold" mapstructure:"similar_threshold"`
	CandidateLimit      int      `yaml:"candidate_limit" mapstructure:"candidate_limit"`
	MaxResults          int      `yaml:"max_results" mapstructure:"max_results"`
	Concurrency         int      `yaml:"concurrency" mapstructure:"concurrency"`
	Assessor            string   `yaml:"assessor" mapstructure:"assessor"` // heuristic, llm
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider       string        `yaml:"provider" mapstructure:"provider"` // openai, ollama
	Model          string        `yaml:"model" mapstructure:"model"`
	APIKey         string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	Dimension      int           `yaml:"dimension" mapstructure:"dimension"`
	BatchSize      int           `yaml:"batch_size" mapstructure:"batch_size"`
	DocumentPrefix string        `yaml:"document_prefix" mapstructure:"document_prefix"`
	QueryPrefix    string        `yaml:"query_prefix" mapstructure:"query_prefix"`
	CacheEnabled   bool          `yaml:"cache_enabled" mapstructure:"cache_enabled"`
	CacheDir       string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	CacheTTL       time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// TrendConfig configures the mention-velocity adapter
type TrendConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	FeedURL           string        `yaml:"feed_url" mapstructure:"feed_url"` // {query} is replaced
	TrendingThreshold float64       `yaml:"trending_threshold" mapstructure:"trending_threshold"`
	CacheTTL          time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	RespectRobots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// LLMConfig contains LLM provider settings
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model          string `yaml:"model" mapstructure:"model"`
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	StrictEvidence bool   `yaml:"strict_evidence" mapstructure:"strict_evidence"`
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// WorkerConfig sizes the batch worker pool
type WorkerConfig struct {
	Concurrency  int           `yaml:"concurrency" mapstructure:"concurrency"`
	BatchTimeout time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout"`
}

// RateLimitConfig limits API requests per client
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
	// TrustProxy keys clients on X-Forwarded-For / X-Real-IP. Only set it when
	// the API is reachable solely through a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy" mapstructure:"trust_proxy"`
}

// TimeoutConfig bounds every call into an external collaborator
type TimeoutConfig struct {
	Graph     time.Duration `yaml:"graph" mapstructure:"graph"`
	Vector    time.Duration `yaml:"vector" mapstructure:"vector"`
	Embedding time.Duration `yaml:"embedding" mapstructure:"embedding"`
	Trend     time.Duration `yaml:"trend" mapstructure:"trend"`
}

// HTTPConfig is shared by the article fetcher and the trend feed client
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// AuthorityConfig drives source tier classification
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		Store: StoreConfig{
			GraphPath:       "antibody-graph.db",
			VectorPath:      "antibody-vectors.db",
			RemediationPath: "antibody-triage.db",
			Collection:      "claims",
		},
		Decay: DecayConfig{
			ImmutableHalfLifeDays: 3650,
			MutableHalfLifeDays:   365,
			ImmutableBaseScore:    0.1,
			MutableBaseScore:      0.5,
			MaxTrendEntities:      3,
			CheckTrending:         true,
		},
		Retrieval: RetrievalConfig{
			DefaultLanguages:    []string{"en", "es", "fr", "de", "zh", "ar", "ru", "ja"},
			SimilarityThreshold: 0.75,
			SimilarThreshold:    0.7,
			CandidateLimit:      20,
			MaxResults:          10,
			Concurrency:         20,
			Assessor:            "heuristic",
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			Model:          "bge-m3",
			BaseURL:        "http://localhost:11434",
			Dimension:      1024,
			BatchSize:      96,
			DocumentPrefix: "search_document: ",
			QueryPrefix:    "search_query: ",
			CacheEnabled:   true,
			CacheDir:       ".antibody-cache",
			CacheTTL:       7 * 24 * time.Hour,
		},
		Trend: TrendConfig{
			Enabled:           false,
			FeedURL:           "https://news.google.com/rss/search?q={query}&hl=en-US&gl=US&ceid=US:en",
			TrendingThreshold: 2.0,
			CacheTTL:          5 * time.Minute,
			RequestsPerSecond: 1.0,
			Burst:             3,
			RespectRobots:     true,
		},
		LLM: LLMConfig{
			Provider:       "",
			Timeout:        30,
			StrictEvidence: true,
			MaxTokens:      1000,
		},
		Worker: WorkerConfig{
			Concurrency:  4,
			BatchTimeout: 10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 100,
			Burst:             20,
		},
		Timeouts: TimeoutConfig{
			Graph:     10 * time.Second,
			Vector:    10 * time.Second,
			Embedding: 30 * time.Second,
			Trend:     5 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Antibody/0.1 (+https://github.com/ppiankov/antibody)",
			MaxBodyBytes: 2_000_000,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"doi.org", "legislation.gov.uk", "europa.eu", "who.int", "un.org", "arxiv.org",
			},
			SecondaryDomains: []string{
				"wikipedia.org", "britannica.com", "reuters.com", "apnews.com", "bbc.co.uk", "nature.com",
			},
		},
	}
}

// Validate reports configuration values that would break an invariant
func (c Config) Validate() error {
	if c.Decay.ImmutableHalfLifeDays <= 0 || c.Decay.MutableHalfLifeDays <= 0 {
		return Invalid("decay half-lives must be positive")
	}
	if c.Decay.ImmutableBaseScore > c.Decay.MutableBaseScore {
		return Invalid("immutable base decay score (%.2f) must not exceed mutable (%.2f)",
			c.Decay.ImmutableBaseScore, c.Decay.MutableBaseScore)
	}
	if c.Decay.MaxTrendEntities < 0 {
		return Invalid("max_trend_entities must be >= 0")
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return Invalid("similarity_threshold must be within [0,1]")
	}
	if c.Retrieval.CandidateLimit <= 0 {
		return Invalid("candidate_limit must be positive")
	}
	if c.Embedding.Dimension <= 0 {
		return Invalid("embedding dimension must be positive")
	}
	return nil
}
