package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}
	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "server.customBindHost",
			Message: "required when bind: custom",
		})
	}

	if cfg.Model.BaseURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "model.baseUrl",
			Message: "base URL is required",
		})
	}
	if cfg.Model.Default == "" {
		issues = append(issues, ValidationIssue{
			Path:    "model.default",
			Message: "default model is required",
		})
	}

	if cfg.Agent.MaxSteps < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.maxSteps",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Agent.MaxSteps),
		})
	}
	if cfg.Agent.MaxTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.maxTokens",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Agent.MaxTokens),
		})
	}

	seen := map[string]bool{}
	for i, m := range cfg.Mounts {
		if m.Name == "" {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("mounts[%d].name", i),
				Message: "name is required",
			})
		}
		if m.Path == "" {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("mounts[%d].path", i),
				Message: "path is required",
			})
		}
		if m.Name != "" && seen[m.Name] {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("mounts[%d].name", i),
				Message: fmt.Sprintf("duplicate mount name %q", m.Name),
			})
		}
		seen[m.Name] = true
	}

	if cfg.Gmail != nil {
		if cfg.Gmail.CredentialsPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "gmail.credentialsPath",
				Message: "required when gmail is configured",
			})
		}
		if cfg.Gmail.TokenPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "gmail.tokenPath",
				Message: "required when gmail is configured",
			})
		}
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validStyles := []string{"pretty", "json"}
	if cfg.Logging.Style != "" && !slices.Contains(validStyles, cfg.Logging.Style) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.style",
			Message: fmt.Sprintf("must be one of %v, got %q", validStyles, cfg.Logging.Style),
		})
	}

	return issues
}
