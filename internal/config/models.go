package config

import "time"

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// ScannerConfig represents the configuration for the scan pipeline
type ScannerConfig struct {
	LLMEnabled     bool
	ScanTimeout    time.Duration
	MaxBodySize    int
	TrustedDomains []string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// StoreConfig represents the configuration for scan persistence
type StoreConfig struct {
	Type       string
	Enabled    bool
	MaxEntries int
	SQLitePath string
	MySQLDSN   string
	Retention  time.Duration
}

// ServerConfig represents the configuration for the filter frontend
type ServerConfig struct {
	FilterType       string
	ListenAddress    string
	BlockPhishing    bool
	VerdictHeader    string
	ConfidenceHeader string
	ReasonHeader     string
	PostfixAddress   string
	PostfixPort      int
	PostfixEnabled   bool
	ModifySubject    bool
	SubjectPrefix    string
	MetricsAddress   string
}

// DNSConfig represents the configuration for the DNS existence checker
type DNSConfig struct {
	Timeout          time.Duration
	CacheTTL         time.Duration
	CleanupFrequency time.Duration
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetScanner returns the scanner configuration
func (c *Config) GetScanner() ScannerConfig {
	timeout, err := c.GetDuration("scanner.scan_timeout")
	if err != nil {
		timeout = 15 * time.Second
	}
	return ScannerConfig{
		LLMEnabled:     c.GetBool("scanner.llm_enabled"),
		ScanTimeout:    timeout,
		MaxBodySize:    c.GetInt("scanner.max_body_size"),
		TrustedDomains: c.GetStringSlice("scanner.trusted_domains"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetStore returns the store configuration
func (c *Config) GetStore() StoreConfig {
	retention, err := c.GetDuration("store.retention")
	if err != nil {
		retention = 30 * 24 * time.Hour
	}
	return StoreConfig{
		Type:       c.GetString("store.type"),
		Enabled:    c.GetBool("store.enabled"),
		MaxEntries: c.GetInt("store.max_entries"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
		Retention:  retention,
	}
}

// GetServer returns the filter frontend configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:       c.GetString("server.filter_type"),
		ListenAddress:    c.GetString("server.listen_address"),
		BlockPhishing:    c.GetBool("server.block_phishing"),
		VerdictHeader:    c.GetString("server.headers.verdict"),
		ConfidenceHeader: c.GetString("server.headers.confidence"),
		ReasonHeader:     c.GetString("server.headers.reason"),
		PostfixAddress:   c.GetString("server.postfix.address"),
		PostfixPort:      c.GetInt("server.postfix.port"),
		PostfixEnabled:   c.GetBool("server.postfix.enabled"),
		ModifySubject:    c.GetBool("server.subject.modify"),
		SubjectPrefix:    c.GetString("server.subject.prefix"),
		MetricsAddress:   c.GetString("server.metrics_address"),
	}
}

// GetDNS returns the DNS checker configuration
func (c *Config) GetDNS() DNSConfig {
	timeout, err := c.GetDuration("dns.timeout")
	if err != nil {
		timeout = 3 * time.Second
	}
	ttl, err := c.GetDuration("dns.cache_ttl")
	if err != nil {
		ttl = time.Hour
	}
	cleanup, err := c.GetDuration("dns.cleanup_frequency")
	if err != nil {
		cleanup = 10 * time.Minute
	}
	return DNSConfig{
		Timeout:          timeout,
		CacheTTL:         ttl,
		CleanupFrequency: cleanup,
	}
}
