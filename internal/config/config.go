// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"workbench/internal/tools"
)

// Config represents the application configuration
type Config struct {
	APIKey             string            `json:"api_key"`
	APIURL             string            `json:"api_url,omitempty"`
	Model              string            `json:"model"`
	Temperature        *float32          `json:"temperature,omitempty"`
	MaxTokens          *int              `json:"max_tokens,omitempty"`
	Workspace          string            `json:"workspace,omitempty"`
	Tools              ToolSettings      `json:"tools,omitempty"`
	ToolLimits         ToolLimits        `json:"tool_limits,omitempty"`
	ToolTimeouts       ToolTimeouts      `json:"tool_timeouts,omitempty"`
	ToolOutputFilters  ToolOutputFilters `json:"tool_output_filters,omitempty"`
	HistoryFile        string            `json:"history_file,omitempty"`
	CommandHistoryFile string            `json:"command_history_file,omitempty"`
	HistoryMaxMessages int               `json:"history_max_messages,omitempty"`
	AuditLogFile       string            `json:"audit_log_file,omitempty"`
}

// ToolSettings describes tool allow and confirmation lists.
type ToolSettings struct {
	Allow               []string `json:"allow,omitempty"`
	RequireConfirmation []string `json:"require_confirmation,omitempty"`
}

// ToolLimits configures resource limits for tool execution.
type ToolLimits struct {
	MaxFileSizeBytes    int64 `json:"max_file_size_bytes,omitempty"`
	MaxDirectoryDepth   int   `json:"max_directory_depth,omitempty"`
	MaxDirectoryEntries int   `json:"max_directory_entries,omitempty"`
	MaxSearchMatches    int   `json:"max_search_matches,omitempty"`
}

// ToolTimeouts configures tool execution timeouts.
type ToolTimeouts struct {
	DefaultSeconds int            `json:"default_seconds,omitempty"`
	PerToolSeconds map[string]int `json:"per_tool_seconds,omitempty"`
}

// ToolOutputFilters configures output sanitization for tool results.
type ToolOutputFilters struct {
	MaxChars     int  `json:"max_chars,omitempty"`
	StripControl bool `json:"strip_control,omitempty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	defaultModel := "deepseek-ai/DeepSeek-V3.2-Exp:novita"
	defaultAPIURL := "https://router.huggingface.co/v1"
	defaultWorkspace := "workspace"
	defaultHistoryFile := ".workbench_conversation_history"
	defaultCommandHistoryFile := ".workbench_history"
	defaultHistoryMax := 100
	defaultAuditLogFile := "agent.log"
	defaultToolLimits := ToolLimits{
		MaxFileSizeBytes:    tools.DefaultLimits().MaxFileSizeBytes,
		MaxDirectoryDepth:   tools.DefaultLimits().MaxDirectoryDepth,
		MaxDirectoryEntries: tools.DefaultLimits().MaxDirectoryEntries,
		MaxSearchMatches:    tools.DefaultLimits().MaxSearchMatches,
	}
	defaultToolTimeouts := ToolTimeouts{
		PerToolSeconds: map[string]int{
			"search_file": int(tools.DefaultTimeoutConfig().PerTool["search_file"].Seconds()),
			"copy":        int(tools.DefaultTimeoutConfig().PerTool["copy"].Seconds()),
			"delete":      int(tools.DefaultTimeoutConfig().PerTool["delete"].Seconds()),
		},
	}
	defaultToolOutputFilters := ToolOutputFilters{
		MaxChars:     tools.DefaultOutputFilterConfig().MaxChars,
		StripControl: tools.DefaultOutputFilterConfig().StripControl,
	}
	return &Config{
		Model:              defaultModel,
		APIURL:             defaultAPIURL,
		Workspace:          defaultWorkspace,
		ToolLimits:         defaultToolLimits,
		ToolTimeouts:       defaultToolTimeouts,
		ToolOutputFilters:  defaultToolOutputFilters,
		HistoryFile:        defaultHistoryFile,
		CommandHistoryFile: defaultCommandHistoryFile,
		HistoryMaxMessages: defaultHistoryMax,
		AuditLogFile:       defaultAuditLogFile,
	}
}

// LoadConfig loads configuration from a JSON file, applies env overrides, and validates required fields.
func LoadConfig(filepath string) (*Config, error) {
	config := DefaultConfig()

	// If config file exists, load it
	if _, err := os.Stat(filepath); err == nil {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", filepath, err)
		}
	}

	// Env overrides (apply regardless of whether config file exists)
	// Check OPENAI_API_KEY first, then HF_TOKEN
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		config.APIKey = val
	} else if val := os.Getenv("HF_TOKEN"); val != "" {
		config.APIKey = val
	}

	if val := os.Getenv("OPENAI_API_URL"); val != "" {
		config.APIURL = val
	}
	if val := os.Getenv("WORKBENCH_MODEL"); val != "" {
		config.Model = val
	}
	if val := os.Getenv("WORKBENCH_WORKSPACE"); val != "" {
		config.Workspace = val
	}

	// Set defaults for any missing values
	if config.Model == "" {
		config.Model = "deepseek-ai/DeepSeek-V3.2-Exp:novita"
	}
	if config.APIURL == "" {
		config.APIURL = "https://router.huggingface.co/v1"
	}
	if config.Workspace == "" {
		config.Workspace = "workspace"
	}

	// Validation
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required (set api_key in config.json or OPENAI_API_KEY/HF_TOKEN)")
	}

	return config, nil
}

// ToolPolicy converts config settings into a tool policy. Empty lists leave
// the registry defaults untouched.
func (c *Config) ToolPolicy() tools.Policy {
	policy := tools.Policy{}
	if len(c.Tools.Allow) > 0 || len(c.Tools.RequireConfirmation) > 0 {
		policy = tools.PolicyFromLists(c.Tools.Allow, c.Tools.RequireConfirmation)
	}
	return policy
}

// ToolLimitsConfig returns tool limits for runtime enforcement.
func (c *Config) ToolLimitsConfig() tools.Limits {
	return tools.Limits{
		MaxFileSizeBytes:    c.ToolLimits.MaxFileSizeBytes,
		MaxDirectoryDepth:   c.ToolLimits.MaxDirectoryDepth,
		MaxDirectoryEntries: c.ToolLimits.MaxDirectoryEntries,
		MaxSearchMatches:    c.ToolLimits.MaxSearchMatches,
	}
}

// ToolTimeoutsConfig returns timeout configuration for tools.
func (c *Config) ToolTimeoutsConfig() tools.TimeoutConfig {
	perTool := make(map[string]time.Duration, len(c.ToolTimeouts.PerToolSeconds))
	for name, seconds := range c.ToolTimeouts.PerToolSeconds {
		if seconds <= 0 {
			continue
		}
		perTool[name] = time.Duration(seconds) * time.Second
	}

	var defaultTimeout time.Duration
	if c.ToolTimeouts.DefaultSeconds > 0 {
		defaultTimeout = time.Duration(c.ToolTimeouts.DefaultSeconds) * time.Second
	}

	return tools.TimeoutConfig{
		Default: defaultTimeout,
		PerTool: perTool,
	}
}

// ToolOutputFiltersConfig returns output filter configuration for tools.
func (c *Config) ToolOutputFiltersConfig() tools.OutputFilterConfig {
	return tools.OutputFilterConfig{
		MaxChars:     c.ToolOutputFilters.MaxChars,
		StripControl: c.ToolOutputFilters.StripControl,
	}
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate(registry *tools.Registry) []ValidationWarning {
	var warnings []ValidationWarning

	// Validate temperature range (OpenAI expects 0-2)
	if c.Temperature != nil {
		temp := *c.Temperature
		if temp < 0 || temp > 2 {
			warnings = append(warnings, ValidationWarning{
				Field:   "temperature",
				Message: fmt.Sprintf("temperature %.2f is outside recommended range [0, 2]", temp),
			})
		}
	}

	if c.MaxTokens != nil {
		tokens := *c.MaxTokens
		if tokens <= 0 {
			warnings = append(warnings, ValidationWarning{
				Field:   "max_tokens",
				Message: fmt.Sprintf("max_tokens %d must be positive", tokens),
			})
		}
	}

	// Validate tool policy against registered tools
	if registry != nil {
		registeredTools := make(map[string]bool)
		for _, name := range registry.GetToolNames() {
			registeredTools[name] = true
		}

		for _, toolName := range c.Tools.Allow {
			if !registeredTools[toolName] {
				warnings = append(warnings, ValidationWarning{
					Field:   "tools.allow",
					Message: fmt.Sprintf("tool %q in allow list is not registered", toolName),
				})
			}
		}

		for _, toolName := range c.Tools.RequireConfirmation {
			if !registeredTools[toolName] {
				warnings = append(warnings, ValidationWarning{
					Field:   "tools.require_confirmation",
					Message: fmt.Sprintf("tool %q in require_confirmation list is not registered", toolName),
				})
			}
		}
	}

	if c.HistoryMaxMessages <= 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "history_max_messages",
			Message: fmt.Sprintf("history_max_messages %d should be positive, using default", c.HistoryMaxMessages),
		})
	}

	return warnings
}
