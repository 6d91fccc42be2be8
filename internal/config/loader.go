package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	// ConfigFile, when set, is used verbatim instead of searching
	// ConfigPaths.
	ConfigFile  string
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files and environment
// variables. A .env file in the working directory is loaded first so
// local development does not need exported variables.
func Load(opts LoaderOptions) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "rp"
	}

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = locateConfigFile(name, opts.ConfigPaths)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "RP"
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	setDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg = expandEnvVars(cfg)

	return cfg, nil
}

// expandEnvVars expands ${VAR} and $VAR syntax in configuration strings.
func expandEnvVars(cfg Config) Config {
	for name, provider := range cfg.Providers {
		provider.APIKey = expandEnvString(provider.APIKey)
		provider.Model = expandEnvString(provider.Model)
		provider.BaseURL = expandEnvString(provider.BaseURL)

		if provider.Timeout != nil {
			timeout := expandEnvString(*provider.Timeout)
			provider.Timeout = &timeout
		}
		if provider.InitialBackoff != nil {
			backoff := expandEnvString(*provider.InitialBackoff)
			provider.InitialBackoff = &backoff
		}
		if provider.MaxBackoff != nil {
			backoff := expandEnvString(*provider.MaxBackoff)
			provider.MaxBackoff = &backoff
		}

		cfg.Providers[name] = provider
	}

	cfg.Webhook.Secret = expandEnvString(cfg.Webhook.Secret)
	cfg.GitHub.Token = expandEnvString(cfg.GitHub.Token)
	cfg.GitHub.BaseURL = expandEnvString(cfg.GitHub.BaseURL)
	cfg.Redis.Addr = expandEnvString(cfg.Redis.Addr)
	cfg.Redis.Password = expandEnvString(cfg.Redis.Password)

	cfg.HTTP.Timeout = expandEnvString(cfg.HTTP.Timeout)
	cfg.HTTP.InitialBackoff = expandEnvString(cfg.HTTP.InitialBackoff)
	cfg.HTTP.MaxBackoff = expandEnvString(cfg.HTTP.MaxBackoff)

	cfg.Router.Provider = expandEnvString(cfg.Router.Provider)
	cfg.Store.Path = expandEnvString(cfg.Store.Path)
	cfg.Logging.Level = expandEnvString(cfg.Logging.Level)
	cfg.Logging.Format = expandEnvString(cfg.Logging.Format)

	return cfg
}

// expandEnvString replaces ${VAR} or $VAR with environment variable values.
func expandEnvString(s string) string {
	if s == "" {
		return s
	}

	re := regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

func locateConfigFile(name string, paths []string) string {
	searchPaths := append([]string{}, paths...)
	searchPaths = append(searchPaths, ".")
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name+".yaml")
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.shutdownTimeout", "15s")

	// Webhook defaults
	v.SetDefault("webhook.maxBodyBytes", 1<<20)

	// GitHub defaults
	v.SetDefault("github.baseURL", "https://api.github.com")
	v.SetDefault("github.apiVersion", "2022-11-28")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.partitions", 4)
	v.SetDefault("redis.group", "review-pipeline")
	v.SetDefault("redis.block", "5s")
	v.SetDefault("redis.minIdle", "30s")
	v.SetDefault("redis.maxDeliveries", 5)

	// HTTP defaults
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.maxRetries", 3)
	v.SetDefault("http.initialBackoff", "100ms")
	v.SetDefault("http.maxBackoff", "1s")
	v.SetDefault("http.backoffMultiplier", 2.0)

	// Collector defaults
	v.SetDefault("collector.maxDiffBytes", 512000)

	// Review defaults
	v.SetDefault("review.mergeEnabled", true)

	// Policy defaults
	v.SetDefault("policy.enabled", true)
	v.SetDefault("policy.maxFileLines", 600)
	v.SetDefault("policy.maxFiles", 50)
	v.SetDefault("policy.blockSecrets", true)
	v.SetDefault("policy.blockBigFiles", true)

	// Idempotency defaults
	v.SetDefault("idempotency.ttl", "24h")
	v.SetDefault("idempotency.maxEntries", 10000)

	// Store defaults
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", defaultStorePath())

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")

	// Provider defaults
	v.SetDefault("router.provider", "static")
	v.SetDefault("providers.gemini.enabled", false)
	v.SetDefault("providers.gemini.model", "gemini-pro")
	v.SetDefault("providers.ollama.enabled", false)
	v.SetDefault("providers.ollama.model", "llama2")
	v.SetDefault("providers.ollama.baseURL", "http://localhost:11434")
	v.SetDefault("providers.static.enabled", true)
	v.SetDefault("providers.static.model", "static-v1")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./reviews.db"
	}
	return filepath.Join(home, ".config", "rp", "reviews.db")
}
