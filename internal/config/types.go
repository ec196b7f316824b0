package config

// Config is the root configuration for Ochre.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Model   ModelConfig   `yaml:"model,omitempty"`
	Agent   AgentConfig   `yaml:"agent,omitempty"`
	Mounts  []MountEntry  `yaml:"mounts,omitempty"`
	Gmail   *GmailConfig  `yaml:"gmail,omitempty"`
	Hooks   HooksConfig   `yaml:"hooks,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket server.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// ModelConfig points at the upstream OpenAI-compatible completions endpoint.
type ModelConfig struct {
	BaseURL string `yaml:"baseUrl,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty"` // supports ${ENV_VAR} references
	Default string `yaml:"default,omitempty"`
}

// AgentConfig tunes the tool-calling loop.
type AgentConfig struct {
	MaxSteps    int      `yaml:"maxSteps,omitempty"`
	MaxTokens   int      `yaml:"maxTokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// MountEntry declares a host directory exposed under /fs/mnt/<name>.
type MountEntry struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	ReadOnly bool   `yaml:"readOnly,omitempty"`
}

// GmailConfig enables the read-only /fs/email provider.
type GmailConfig struct {
	CredentialsPath string `yaml:"credentialsPath"`
	TokenPath       string `yaml:"tokenPath"`
	AccountName     string `yaml:"accountName,omitempty"` // default "gmail"
	UserID          string `yaml:"userId,omitempty"`      // default "me"
}

// HooksConfig defines shell commands run on lifecycle events.
type HooksConfig struct {
	RunStarted  []HookEntry `yaml:"runStarted,omitempty"`
	RunFinished []HookEntry `yaml:"runFinished,omitempty"`
	ServerStart []HookEntry `yaml:"serverStart,omitempty"`
	ServerStop  []HookEntry `yaml:"serverStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}
