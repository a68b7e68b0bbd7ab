package config

// Config represents the full application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	GitHub        GitHubConfig        `yaml:"github"`
	Agent         AgentConfig         `yaml:"agent"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Workspace     WorkspaceConfig     `yaml:"workspace"`
	Store         StoreConfig         `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
	Prompts       PromptsConfig       `yaml:"prompts"`
}

// ServerConfig configures the webhook HTTP server.
type ServerConfig struct {
	Listen string `yaml:"listen"`

	// WebhookSecret keys the X-Hub-Signature-256 verification. Usually
	// supplied as ${WEBHOOK_SECRET}.
	WebhookSecret string `yaml:"webhookSecret"`

	// TriggerLabel marks issues that should be dispatched as fix tasks.
	TriggerLabel string `yaml:"triggerLabel"`

	// MentionCommand is the comment substring that requests a response.
	MentionCommand string `yaml:"mentionCommand"`
}

// GitHubConfig configures repository access for workspace population.
type GitHubConfig struct {
	BaseURL string `yaml:"baseURL"`

	// Token authenticates clones of private repositories. Usually
	// supplied as ${GITHUB_TOKEN}.
	Token string `yaml:"token"`
}

// AgentConfig configures provider selection and run supervision.
type AgentConfig struct {
	// Provider names the default CLI: claude, gemini, or auto.
	Provider string `yaml:"provider"`

	// FallbackEnabled permits substituting the other provider when the
	// configured one fails its availability probe.
	FallbackEnabled bool `yaml:"fallbackEnabled"`

	// TaskTimeout is the per-task runtime ceiling (e.g. "20m").
	TaskTimeout string `yaml:"taskTimeout"`

	// ProbeTimeout bounds availability probes (e.g. "5s").
	ProbeTimeout string `yaml:"probeTimeout"`
}

// ProvidersConfig configures the external AI CLIs.
type ProvidersConfig struct {
	Claude ClaudeConfig `yaml:"claude"`
	Gemini GeminiConfig `yaml:"gemini"`
}

// ClaudeConfig configures the claude CLI invocation.
type ClaudeConfig struct {
	Command string `yaml:"command"`
	Model   string `yaml:"model"`
}

// GeminiConfig configures the gemini CLI invocation, including the
// quota-driven model fallback.
type GeminiConfig struct {
	Command       string `yaml:"command"`
	Model         string `yaml:"model"`
	FallbackModel string `yaml:"fallbackModel"`

	// GraceWindow is how long stderr is scanned for quota signatures
	// after spawn (e.g. "10s").
	GraceWindow string `yaml:"graceWindow"`
}

// WorkspaceConfig configures where task workspaces are materialized.
type WorkspaceConfig struct {
	// BaseDir roots all workspaces. Empty picks a directory under the
	// system temp dir.
	BaseDir string `yaml:"baseDir"`
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Level         string `yaml:"level"`  // debug, info, warning, error
	Format        string `yaml:"format"` // json, human
	RedactSecrets bool   `yaml:"redactSecrets"`
}

// PromptsConfig configures prompt template resolution.
type PromptsConfig struct {
	// Dir overrides the embedded prompt templates when set.
	Dir string `yaml:"dir"`
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
	result.GitHub = chooseGitHub(base.GitHub, overlay.GitHub)
	result.Agent = chooseAgent(base.Agent, overlay.Agent)
	result.Providers = chooseProviders(base.Providers, overlay.Providers)
	result.Workspace = chooseWorkspace(base.Workspace, overlay.Workspace)
	result.Store = chooseStore(base.Store, overlay.Store)
	result.Observability = chooseObservability(base.Observability, overlay.Observability)
	result.Prompts = choosePrompts(base.Prompts, overlay.Prompts)

	return result
}

func chooseServer(base, overlay ServerConfig) ServerConfig {
	result := base
	if overlay.Listen != "" {
		result.Listen = overlay.Listen
	}
	if overlay.WebhookSecret != "" {
		result.WebhookSecret = overlay.WebhookSecret
	}
	if overlay.TriggerLabel != "" {
		result.TriggerLabel = overlay.TriggerLabel
	}
	if overlay.MentionCommand != "" {
		result.MentionCommand = overlay.MentionCommand
	}
	return result
}

func chooseGitHub(base, overlay GitHubConfig) GitHubConfig {
	result := base
	if overlay.BaseURL != "" {
		result.BaseURL = overlay.BaseURL
	}
	if overlay.Token != "" {
		result.Token = overlay.Token
	}
	return result
}

func chooseAgent(base, overlay AgentConfig) AgentConfig {
	result := base
	if overlay.Provider != "" {
		result.Provider = overlay.Provider
	}
	if overlay.FallbackEnabled {
		result.FallbackEnabled = true
	}
	if overlay.TaskTimeout != "" {
		result.TaskTimeout = overlay.TaskTimeout
	}
	if overlay.ProbeTimeout != "" {
		result.ProbeTimeout = overlay.ProbeTimeout
	}
	return result
}

func chooseProviders(base, overlay ProvidersConfig) ProvidersConfig {
	result := base

	if overlay.Claude.Command != "" {
		result.Claude.Command = overlay.Claude.Command
	}
	if overlay.Claude.Model != "" {
		result.Claude.Model = overlay.Claude.Model
	}

	if overlay.Gemini.Command != "" {
		result.Gemini.Command = overlay.Gemini.Command
	}
	if overlay.Gemini.Model != "" {
		result.Gemini.Model = overlay.Gemini.Model
	}
	if overlay.Gemini.FallbackModel != "" {
		result.Gemini.FallbackModel = overlay.Gemini.FallbackModel
	}
	if overlay.Gemini.GraceWindow != "" {
		result.Gemini.GraceWindow = overlay.Gemini.GraceWindow
	}

	return result
}

func chooseWorkspace(base, overlay WorkspaceConfig) WorkspaceConfig {
	if overlay.BaseDir != "" {
		return overlay
	}
	return base
}

func chooseStore(base, overlay StoreConfig) StoreConfig {
	result := base
	if overlay.Enabled {
		result.Enabled = true
	}
	if overlay.Path != "" {
		result.Path = overlay.Path
	}
	return result
}

func chooseObservability(base, overlay ObservabilityConfig) ObservabilityConfig {
	result := base
	if overlay.Logging.Enabled {
		result.Logging.Enabled = true
	}
	if overlay.Logging.Level != "" {
		result.Logging.Level = overlay.Logging.Level
	}
	if overlay.Logging.Format != "" {
		result.Logging.Format = overlay.Logging.Format
	}
	if overlay.Logging.RedactSecrets {
		result.Logging.RedactSecrets = true
	}
	return result
}

func choosePrompts(base, overlay PromptsConfig) PromptsConfig {
	if overlay.Dir != "" {
		return overlay
	}
	return base
}
