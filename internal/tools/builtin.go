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

package tools

import (
	"workbench/internal/workspace"
)

// Typed argument shapes. The JSON schema sent to the model is generated
// from these structs.

type datetimeArgs struct{}

type readFileArgs struct {
	Path string `json:"path" jsonschema:"description=Path to the file relative to the workspace root,minLength=1"`
}

type listDirectoryArgs struct {
	Path string `json:"path,omitempty" jsonschema:"description=Directory to list relative to the workspace root (default: the root)"`
}

type writeFileArgs struct {
	Path    string `json:"path" jsonschema:"description=Path to the file relative to the workspace root,minLength=1"`
	Content string `json:"content" jsonschema:"description=Text content to write"`
}

type editFileArgs struct {
	Path    string `json:"path" jsonschema:"description=Path to the file relative to the workspace root,minLength=1"`
	OldText string `json:"old_text,omitempty" jsonschema:"description=Text to replace; leave empty to create the file"`
	NewText string `json:"new_text" jsonschema:"description=Replacement text (or full content when creating)"`
}

type deleteArgs struct {
	Path string `json:"path" jsonschema:"description=File or directory to delete relative to the workspace root,minLength=1"`
}

type makeDirectoryArgs struct {
	Path string `json:"path" jsonschema:"description=Directory to create relative to the workspace root,minLength=1"`
}

type copyArgs struct {
	Source      string `json:"source" jsonschema:"description=Source file or directory relative to the workspace root,minLength=1"`
	Destination string `json:"destination" jsonschema:"description=Destination path relative to the workspace root,minLength=1"`
}

type moveArgs struct {
	Source      string `json:"source" jsonschema:"description=Source file or directory relative to the workspace root,minLength=1"`
	Destination string `json:"destination" jsonschema:"description=Destination path relative to the workspace root,minLength=1"`
}

type searchFileArgs struct {
	Directory     string `json:"directory,omitempty" jsonschema:"description=Directory to search relative to the workspace root (default: the root)"`
	SearchText    string `json:"search_text" jsonschema:"description=Text to look for (case-insensitive),minLength=1"`
	FileExtension string `json:"file_extension,omitempty" jsonschema:"description=Restrict to files with this suffix (e.g. .go)"`
}

// registerBuiltInTools registers the fixed file-manipulation tool set,
// bound to the given workspace.
func registerBuiltInTools(r *Registry, ws *workspace.Workspace) {
	ops := &fileOps{ws: ws}

	register := func(tool Tool) {
		if err := r.RegisterTool(tool); err != nil {
			panic(err)
		}
	}

	register(&ToolDefinition{
		NameValue:        "get_current_datetime",
		DescriptionValue: "Get the current date and time in ISO 8601 format",
		ParametersValue:  mustSchemaParametersFor[datetimeArgs](),
		ExecuteFunc:      ops.getCurrentDatetime,
	})

	register(&ToolDefinition{
		NameValue:        "read_file",
		DescriptionValue: "Read the contents of a text file in the workspace",
		ParametersValue:  mustSchemaParametersFor[readFileArgs](),
		ExecuteFunc:      ops.readFile,
		ValidateFunc:     RequireStringArg("path"),
	})

	register(&ToolDefinition{
		NameValue:        "list_directory",
		DescriptionValue: "List the entries of a workspace directory, marking files and subdirectories",
		ParametersValue:  mustSchemaParametersFor[listDirectoryArgs](),
		ExecuteFunc:      ops.listDirectory,
		ValidateFunc:     AllowStringArg("path"),
	})

	register(&ToolDefinition{
		NameValue:        "write_file",
		DescriptionValue: "Create or overwrite a text file, creating parent directories as needed",
		ParametersValue:  mustSchemaParametersFor[writeFileArgs](),
		ExecuteFunc:      ops.writeFile,
		ValidateFunc: ChainValidation(
			RequireStringArg("path"),
		),
	})

	register(&ToolDefinition{
		NameValue:        "edit_file",
		DescriptionValue: "Replace old_text with new_text in a file; creates the file when it does not exist",
		ParametersValue:  mustSchemaParametersFor[editFileArgs](),
		ExecuteFunc:      ops.editFile,
		ValidateFunc: ChainValidation(
			RequireStringArg("path"),
			AllowStringArg("old_text"),
		),
	})

	register(&ToolDefinition{
		NameValue:        "delete",
		DescriptionValue: "Delete a file or recursively delete a directory in the workspace",
		ParametersValue:  mustSchemaParametersFor[deleteArgs](),
		ExecuteFunc:      ops.deleteEntry,
		ValidateFunc:     RequireStringArg("path"),
	})

	register(&ToolDefinition{
		NameValue:        "make_directory",
		DescriptionValue: "Create a directory including missing parents; no-op if it already exists",
		ParametersValue:  mustSchemaParametersFor[makeDirectoryArgs](),
		ExecuteFunc:      ops.makeDirectory,
		ValidateFunc:     RequireStringArg("path"),
	})

	register(&ToolDefinition{
		NameValue:        "copy",
		DescriptionValue: "Copy a file or recursively copy a directory tree within the workspace",
		ParametersValue:  mustSchemaParametersFor[copyArgs](),
		ExecuteFunc:      ops.copyEntry,
		ValidateFunc: ChainValidation(
			RequireStringArg("source"),
			RequireStringArg("destination"),
		),
	})

	register(&ToolDefinition{
		NameValue:        "move",
		DescriptionValue: "Move or rename a file or directory within the workspace",
		ParametersValue:  mustSchemaParametersFor[moveArgs](),
		ExecuteFunc:      ops.moveEntry,
		ValidateFunc: ChainValidation(
			RequireStringArg("source"),
			RequireStringArg("destination"),
		),
	})

	register(&ToolDefinition{
		NameValue:        "search_file",
		DescriptionValue: "Search workspace files for matching text, optionally filtered by extension",
		ParametersValue:  mustSchemaParametersFor[searchFileArgs](),
		ExecuteFunc:      ops.searchFile,
		ValidateFunc: ChainValidation(
			RequireStringArg("search_text"),
			AllowStringArg("directory"),
			AllowStringArg("file_extension"),
		),
	})
}
