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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "workbench/internal/errors"
)

// searchFile walks a directory looking for files whose content contains
// search_text (case-insensitive), optionally filtered by extension. Binary
// and unreadable files are skipped.
func (f *fileOps) searchFile(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	directory := optionalStringArg(args, "directory")
	if strings.TrimSpace(directory) == "" {
		directory = "."
	}
	searchText, ok := stringArg(args, "search_text")
	if !ok {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "missing or invalid 'search_text' argument")
	}
	extension := optionalStringArg(args, "file_extension")

	resolved, err := f.ws.Resolve(directory)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.Newf(apperrors.CodeNotFound, "directory not found: %s", f.ws.Rel(resolved))
		}
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to stat directory", err)
	}
	if !info.IsDir() {
		return "", apperrors.Newf(apperrors.CodeWrongType, "%s is not a directory", f.ws.Rel(resolved))
	}

	limits := getLimits()
	needle := strings.ToLower(searchText)
	var matches []string

	walkErr := filepath.Walk(resolved, func(path string, entry os.FileInfo, err error) error {
		if ctxErr := ensureContext(ctx); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if entry.IsDir() {
			depth := strings.Count(strings.TrimPrefix(path, resolved), string(os.PathSeparator))
			if depth > limits.MaxDirectoryDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Mode().IsRegular() || entry.Size() > limits.MaxFileSizeBytes {
			return nil
		}
		if extension != "" && !strings.HasSuffix(entry.Name(), extension) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil || !isTextContent(content) {
			return nil
		}
		if strings.Contains(strings.ToLower(string(content)), needle) {
			matches = append(matches, f.ws.Rel(path))
			if len(matches) >= limits.MaxSearchMatches {
				return filepath.SkipAll
			}
		}
		return nil
	})
	if walkErr != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "search failed", walkErr)
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No files found containing %q in %s", searchText, f.ws.Rel(resolved)), nil
	}
	return fmt.Sprintf("Files containing %q:\n%s", searchText, strings.Join(matches, "\n")), nil
}
