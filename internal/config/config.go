package config

// Config represents the full pipeline configuration.
type Config struct {
	Server      ServerConfig              `yaml:"server"`
	Webhook     WebhookConfig             `yaml:"webhook"`
	GitHub      GitHubConfig              `yaml:"github"`
	Redis       RedisConfig               `yaml:"redis"`
	HTTP        HTTPConfig                `yaml:"http"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
	Router      RouterConfig              `yaml:"router"`
	Collector   CollectorConfig           `yaml:"collector"`
	Review      ReviewConfig              `yaml:"review"`
	Policy      PolicyConfig              `yaml:"policy"`
	Idempotency IdempotencyConfig         `yaml:"idempotency"`
	Store       StoreConfig               `yaml:"store"`
	Logging     LoggingConfig             `yaml:"logging"`
}

// ServerConfig holds the webhook HTTP listener settings.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"readTimeout"`
	ShutdownTimeout string `yaml:"shutdownTimeout"`
}

// WebhookConfig configures inbound webhook verification.
type WebhookConfig struct {
	// Secret is the shared HMAC secret used to verify delivery signatures.
	Secret string `yaml:"secret"`
	// MaxBodyBytes caps the accepted request body size.
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`
}

// GitHubConfig configures the GitHub API client.
type GitHubConfig struct {
	Token      string `yaml:"token"`
	BaseURL    string `yaml:"baseURL"`
	APIVersion string `yaml:"apiVersion"`
}

// RedisConfig configures the Redis Streams event bus.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	Partitions int    `yaml:"partitions"`
	Group      string `yaml:"group"`
	Consumer   string `yaml:"consumer"`
	Block      string `yaml:"block"`
	MinIdle    string `yaml:"minIdle"`
	// MaxDeliveries caps redeliveries before an entry is dead-lettered.
	MaxDeliveries int `yaml:"maxDeliveries"`
}

// HTTPConfig holds global HTTP retry settings for outbound calls.
type HTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// ProviderConfig configures a single AI backend.
type ProviderConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"apiKey"`
	BaseURL   string `yaml:"baseURL"`
	MaxTokens int    `yaml:"maxTokens"`

	// HTTP overrides (optional, global HTTP config applies if unset)
	Timeout        *string `yaml:"timeout,omitempty"`
	MaxRetries     *int    `yaml:"maxRetries,omitempty"`
	InitialBackoff *string `yaml:"initialBackoff,omitempty"`
	MaxBackoff     *string `yaml:"maxBackoff,omitempty"`
}

// RouterConfig selects which AI backend handles reviews.
type RouterConfig struct {
	// Provider names the configured backend. When that backend is not
	// ready the router falls back to the first ready registered backend.
	Provider string `yaml:"provider"`
}

// CollectorConfig configures PR context collection.
type CollectorConfig struct {
	// MaxDiffBytes is the largest diff that will be reviewed. Larger
	// diffs are marked skipped instead of failing the pipeline.
	MaxDiffBytes int `yaml:"maxDiffBytes"`
}

// ReviewConfig configures review generation.
type ReviewConfig struct {
	// Instructions are custom instructions included in review prompts.
	Instructions string `yaml:"instructions"`
	// MergeEnabled runs the merge pass when a diff is split across
	// multiple AI calls.
	MergeEnabled bool `yaml:"mergeEnabled"`
}

// PolicyConfig configures the deterministic policy checks that run
// alongside the AI review.
type PolicyConfig struct {
	Enabled       bool `yaml:"enabled"`
	MaxFileLines  int  `yaml:"maxFileLines"`
	MaxFiles      int  `yaml:"maxFiles"`
	RequireIssue  bool `yaml:"requireIssue"`
	BlockSecrets  bool `yaml:"blockSecrets"`
	BlockBigFiles bool `yaml:"blockBigFiles"`
}

// IdempotencyConfig configures duplicate-event suppression.
type IdempotencyConfig struct {
	TTL        string `yaml:"ttl"`
	MaxEntries int    `yaml:"maxEntries"`
}

// StoreConfig configures the review log persistence layer.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`  // debug, info, warn, error
	Format    string `yaml:"format"` // text, json, auto
	AddSource bool   `yaml:"addSource"`
}

// Merge combines multiple configuration instances, prioritising the latter ones.
func Merge(configs ...Config) Config {
	result := Config{}
	for _, cfg := range configs {
		result = merge(result, cfg)
	}
	return result
}

func merge(base, overlay Config) Config {
	result := base

	result.Server = chooseServer(base.Server, overlay.Server)
	result.Webhook = chooseWebhook(base.Webhook, overlay.Webhook)
	result.GitHub = chooseGitHub(base.GitHub, overlay.GitHub)
	result.Redis = chooseRedis(base.Redis, overlay.Redis)
	result.HTTP = chooseHTTP(base.HTTP, overlay.HTTP)
	result.Router = chooseRouter(base.Router, overlay.Router)
	result.Collector = chooseCollector(base.Collector, overlay.Collector)
	result.Review = chooseReview(base.Review, overlay.Review)
	result.Policy = choosePolicy(base.Policy, overlay.Policy)
	result.Idempotency = chooseIdempotency(base.Idempotency, overlay.Idempotency)
	result.Store = chooseStore(base.Store, overlay.Store)
	result.Logging = chooseLogging(base.Logging, overlay.Logging)
	result.Providers = mergeProviders(base.Providers, overlay.Providers)

	return result
}

func mergeProviders(base, overlay map[string]ProviderConfig) map[string]ProviderConfig {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	result := make(map[string]ProviderConfig, len(base)+len(overlay))
	for key, value := range base {
		result[key] = value
	}
	for key, value := range overlay {
		result[key] = value
	}
	return result
}

func chooseServer(base, overlay ServerConfig) ServerConfig {
	if overlay.Addr != "" || overlay.ReadTimeout != "" || overlay.ShutdownTimeout != "" {
		return overlay
	}
	return base
}

func chooseWebhook(base, overlay WebhookConfig) WebhookConfig {
	if overlay.Secret != "" || overlay.MaxBodyBytes != 0 {
		return overlay
	}
	return base
}

func chooseGitHub(base, overlay GitHubConfig) GitHubConfig {
	if overlay.Token != "" || overlay.BaseURL != "" || overlay.APIVersion != "" {
		return overlay
	}
	return base
}

func chooseRedis(base, overlay RedisConfig) RedisConfig {
	if overlay.Addr != "" || overlay.Group != "" || overlay.Partitions != 0 {
		return overlay
	}
	return base
}

func chooseHTTP(base, overlay HTTPConfig) HTTPConfig {
	if overlay.Timeout != "" || overlay.MaxRetries != 0 || overlay.InitialBackoff != "" || overlay.MaxBackoff != "" || overlay.BackoffMultiplier != 0 {
		return overlay
	}
	return base
}

func chooseRouter(base, overlay RouterConfig) RouterConfig {
	if overlay.Provider != "" {
		return overlay
	}
	return base
}

func chooseCollector(base, overlay CollectorConfig) CollectorConfig {
	if overlay.MaxDiffBytes != 0 {
		return overlay
	}
	return base
}

func chooseReview(base, overlay ReviewConfig) ReviewConfig {
	result := base
	if overlay.Instructions != "" {
		result.Instructions = overlay.Instructions
	}
	if overlay.MergeEnabled {
		result.MergeEnabled = overlay.MergeEnabled
	}
	return result
}

func choosePolicy(base, overlay PolicyConfig) PolicyConfig {
	if overlay.Enabled || overlay.MaxFileLines != 0 || overlay.MaxFiles != 0 {
		return overlay
	}
	return base
}

func chooseIdempotency(base, overlay IdempotencyConfig) IdempotencyConfig {
	if overlay.TTL != "" || overlay.MaxEntries != 0 {
		return overlay
	}
	return base
}

func chooseStore(base, overlay StoreConfig) StoreConfig {
	if overlay.Enabled || overlay.Path != "" {
		return overlay
	}
	return base
}

func chooseLogging(base, overlay LoggingConfig) LoggingConfig {
	if overlay.Level != "" || overlay.Format != "" || overlay.AddSource {
		return overlay
	}
	return base
}
