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
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"workbench/internal/chat"
)

// Command represents a slash command
type Command struct {
	Name        string
	Description string
}

// getAvailableCommands returns the list of all slash commands
func getAvailableCommands() []Command {
	return []Command{
		{Name: "help", Description: "Show available commands"},
		{Name: "clear", Description: "Clear conversation history"},
		{Name: "history", Description: "Display conversation history"},
		{Name: "tools", Description: "List tools and their permissions"},
		{Name: "debug", Description: "Toggle debug mode"},
		{Name: "quit", Description: "Exit the application"},
		{Name: "exit", Description: "Exit the application"},
	}
}

// handleCommand processes slash commands, returns true if should quit
func handleCommand(input string, session *chat.Session, logger zerolog.Logger, debugMode *bool) bool {
	cmdName := strings.TrimPrefix(input, "/")
	cmdName = strings.ToLower(strings.TrimSpace(cmdName))

	logger.Debug().Str("command", cmdName).Msg("Executing command")

	switch cmdName {
	case "help":
		showHelp()
		return false

	case "clear":
		session.ClearHistory()
		fmt.Println("✓ Conversation history cleared")
		return false

	case "history":
		showHistory(session)
		return false

	case "tools":
		showTools(session)
		return false

	case "debug":
		*debugMode = !*debugMode
		if *debugMode {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
			fmt.Println("✓ Debug mode enabled")
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			fmt.Println("✓ Debug mode disabled")
		}
		return false

	case "quit", "exit":
		return true

	default:
		fmt.Printf("✗ Unknown command: /%s (type /help for available commands)\n", cmdName)
		return false
	}
}

func showHelp() {
	fmt.Println("\nAvailable Commands:")
	seen := make(map[string]bool)
	for _, cmd := range getAvailableCommands() {
		if seen[cmd.Name] {
			continue
		}
		seen[cmd.Name] = true
		fmt.Printf("  /%-12s - %s\n", cmd.Name, cmd.Description)
	}
	fmt.Println()
}

func showHistory(session *chat.Session) {
	messages := session.GetHistory()
	if len(messages) == 0 {
		fmt.Println("No conversation history")
		return
	}

	fmt.Println("\nConversation History:")
	for _, msg := range messages {
		switch msg.Role {
		case "user":
			fmt.Printf("❯ %s\n", msg.Content)
		case "assistant":
			if msg.Content != "" {
				fmt.Printf("⟫ %s\n", msg.Content)
			}
		case "tool":
			fmt.Printf("[%s] %s\n", msg.Name, msg.Content)
		}
	}
	fmt.Println()
}

func showTools(session *chat.Session) {
	fmt.Println("\nAvailable Tools:")

	toolNames := session.ToolRegistry.GetToolNames()
	if len(toolNames) == 0 {
		fmt.Println("No tools available")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, '\t', 0)
	fmt.Fprintln(w, "Tool\tPermission")
	fmt.Fprintln(w, "────\t──────────")

	for _, name := range toolNames {
		fmt.Fprintf(w, "%s\t%s\n", name, permissionLabel(session, name))
	}
	w.Flush()
	fmt.Println()
}

func permissionLabel(session *chat.Session, name string) string {
	perm := session.ToolRegistry.GetPermission(name)
	switch {
	case !perm.Allowed:
		return "blocked"
	case perm.RequireConfirmation:
		return "ask"
	default:
		return "allowed"
	}
}
