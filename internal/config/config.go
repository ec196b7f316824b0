package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8787,
			Bind: "loopback",
		},
		Model: ModelConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Default: "openai/gpt-4o-mini",
		},
		Agent: AgentConfig{
			MaxSteps: 8,
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}
