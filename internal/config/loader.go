package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files and environment variables.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "review-agent"
	}

	configFile := locateConfigFile(name, opts.ConfigPaths)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "REVIEW_AGENT"
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

	// Expand environment variables in config values
	cfg = expandEnvVars(cfg)

	return cfg, nil
}

// expandEnvVars expands ${VAR} and $VAR syntax in configuration strings.
func expandEnvVars(cfg Config) Config {
	// Expand server config
	cfg.Server.Listen = expandEnvString(cfg.Server.Listen)
	cfg.Server.WebhookSecret = expandEnvString(cfg.Server.WebhookSecret)

	// Expand github config
	cfg.GitHub.BaseURL = expandEnvString(cfg.GitHub.BaseURL)
	cfg.GitHub.Token = expandEnvString(cfg.GitHub.Token)

	// Expand provider config
	cfg.Providers.Claude.Command = expandEnvString(cfg.Providers.Claude.Command)
	cfg.Providers.Claude.Model = expandEnvString(cfg.Providers.Claude.Model)
	cfg.Providers.Gemini.Command = expandEnvString(cfg.Providers.Gemini.Command)
	cfg.Providers.Gemini.Model = expandEnvString(cfg.Providers.Gemini.Model)
	cfg.Providers.Gemini.FallbackModel = expandEnvString(cfg.Providers.Gemini.FallbackModel)

	// Expand workspace config
	cfg.Workspace.BaseDir = expandEnvString(cfg.Workspace.BaseDir)

	// Expand store config
	cfg.Store.Path = expandEnvString(cfg.Store.Path)

	// Expand observability config
	cfg.Observability.Logging.Level = expandEnvString(cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = expandEnvString(cfg.Observability.Logging.Format)

	// Expand prompts config
	cfg.Prompts.Dir = expandEnvString(cfg.Prompts.Dir)

	return cfg
}

// expandEnvString replaces ${VAR} or $VAR with environment variable values.
func expandEnvString(s string) string {
	if s == "" {
		return s
	}

	// Replace ${VAR} syntax
	re := regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1] // Remove ${ and }
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Keep original if not found
	})

	// Replace $VAR syntax (without braces)
	re = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:] // Remove $
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Keep original if not found
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
	// Server defaults; the secret has no usable default but registering
	// the key lets REVIEW_AGENT_SERVER_WEBHOOKSECRET bind.
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.webhookSecret", "")
	v.SetDefault("server.triggerLabel", "agent-fix")
	v.SetDefault("server.mentionCommand", "/agent")

	// GitHub defaults
	v.SetDefault("github.baseURL", "https://github.com")
	v.SetDefault("github.token", "")

	// Agent defaults
	v.SetDefault("agent.provider", "auto")
	v.SetDefault("agent.fallbackEnabled", true)
	v.SetDefault("agent.taskTimeout", "20m")
	v.SetDefault("agent.probeTimeout", "5s")

	// Provider defaults
	v.SetDefault("providers.claude.command", "claude")
	v.SetDefault("providers.claude.model", "")
	v.SetDefault("providers.gemini.command", "gemini")
	v.SetDefault("providers.gemini.model", "gemini-2.5-pro")
	v.SetDefault("providers.gemini.fallbackModel", "gemini-2.5-flash")
	v.SetDefault("providers.gemini.graceWindow", "10s")

	// Workspace defaults
	v.SetDefault("workspace.baseDir", "")

	// Store defaults
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", defaultStorePath())

	// Observability defaults
	v.SetDefault("observability.logging.enabled", true)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "human")
	v.SetDefault("observability.logging.redactSecrets", true)

	// Prompt defaults
	v.SetDefault("prompts.dir", "")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./review-agent.db"
	}
	return filepath.Join(home, ".config", "review-agent", "journal.db")
}
