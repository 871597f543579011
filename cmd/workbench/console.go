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

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"workbench/internal/chat"
	"workbench/internal/config"
	"workbench/internal/tools"
	"workbench/internal/workspace"
)

func runConsole(logger zerolog.Logger) {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}
	if *workspaceDir != "" {
		cfg.Workspace = *workspaceDir
	}

	tools.ConfigureLimits(cfg.ToolLimitsConfig())
	tools.ConfigureTimeouts(cfg.ToolTimeoutsConfig())
	tools.ConfigureOutputFilters(cfg.ToolOutputFiltersConfig())

	ws, err := workspace.New(cfg.Workspace)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to prepare workspace")
	}

	session := chat.NewSession(cfg, ws)
	defer session.Close()
	session.ToolApprover = newToolApprover()

	for _, warning := range cfg.Validate(session.ToolRegistry) {
		logger.Warn().Str("field", warning.Field).Msg(warning.Message)
	}

	auditCloser, err := attachAuditLog(session, cfg.AuditLogFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open audit log")
	}
	if auditCloser != nil {
		defer auditCloser.Close()
	}

	if err := session.LoadConversationHistory(cfg.HistoryFile, cfg.HistoryMaxMessages); err != nil {
		logger.Warn().Err(err).Msg("Failed to load conversation history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "❯ ",
		HistoryFile:     cfg.CommandHistoryFile,
		AutoComplete:    getCommandCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize readline")
	}
	defer rl.Close()

	fmt.Println("Workbench file agent")
	fmt.Printf("Workspace root: %s\n", ws.Root())
	fmt.Printf("Model in use: %s\n", session.Config.Model)
	fmt.Println("Type /help for commands, /quit or Ctrl+C to exit")
	fmt.Println()

	debugToggle := *debugMode

	for {
		line, err := rl.Readline()
		if action := classifyReadlineError(line, err); action == readlineExit {
			logger.Debug().Msg("Readline closed")
			break
		} else if action == readlineContinue {
			continue
		} else if err != nil {
			logger.Debug().Err(err).Msg("Readline interrupted")
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		logger.Info().Str("user_input", line).Msg("User input received")

		// bare exit/quit words work like the slash commands
		if line == "exit" || line == "quit" {
			break
		}

		if strings.HasPrefix(line, "/") {
			if handleCommand(line, session, logger, &debugToggle) {
				break
			}
			continue
		}

		handleConversation(line, session, cfg, logger)
	}

	logger.Info().Msg("Session ended")
}

// handleConversation runs one blocking user turn and prints the reply.
func handleConversation(input string, session *chat.Session, cfg *config.Config, logger zerolog.Logger) {
	reply, err := session.GetResponseWithContext(context.Background(), input)
	if err != nil {
		fmt.Printf("✗ Error: %v\n", err)
		logger.Error().Err(err).Msg("Conversation turn failed")
		return
	}

	fmt.Printf("⟫ %s\n\n", reply)
	logger.Info().Str("model_response", reply).Msg("AI response received")

	if err := session.SaveConversationHistory(cfg.HistoryFile); err != nil {
		logger.Warn().Err(err).Msg("Failed to save conversation history")
	}
}

// attachAuditLog opens an append-only log for tool dispatches and wires it
// into the registry. An empty path disables auditing.
func attachAuditLog(session *chat.Session, path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	session.ToolRegistry.SetAuditLogger(zerolog.New(file).With().Timestamp().Logger())
	return file, nil
}

// getCommandCompleter builds a readline completer from available commands
func getCommandCompleter() *readline.PrefixCompleter {
	commands := getAvailableCommands()
	items := make([]readline.PrefixCompleterInterface, len(commands))
	for i, cmd := range commands {
		items[i] = readline.PcItem("/" + cmd.Name)
	}
	return readline.NewPrefixCompleter(items...)
}
