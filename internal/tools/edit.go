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
	"strings"

	apperrors "workbench/internal/errors"
)

// editFile replaces old_text with new_text in an existing file. When the
// file does not exist, or old_text is empty, the file is created with
// new_text as its content.
func (f *fileOps) editFile(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	path, _ := stringArg(args, "path")
	oldText := optionalStringArg(args, "old_text")
	newText, ok := args["new_text"].(string)
	if !ok {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "missing or invalid 'new_text' argument")
	}

	resolved, err := f.ws.Resolve(path)
	if err != nil {
		return "", err
	}

	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		return "", apperrors.Newf(apperrors.CodeWrongType, "%s is a directory", f.ws.Rel(resolved))
	}

	exists := false
	if _, err := os.Stat(resolved); err == nil {
		exists = true
	} else if !os.IsNotExist(err) {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to stat file", err)
	}

	if !exists || oldText == "" {
		if !isTextContent([]byte(newText)) {
			return "", apperrors.New(apperrors.CodeWrongType, "content appears to be binary; edit_file supports text only")
		}
		if err := writeFileAtomic(resolved, []byte(newText), 0o644); err != nil {
			return "", err
		}
		return fmt.Sprintf("Successfully created %s", f.ws.Rel(resolved)), nil
	}

	limits := getLimits()
	info, err := os.Stat(resolved)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to stat file", err)
	}
	if info.Size() > limits.MaxFileSizeBytes {
		return "", apperrors.Newf(apperrors.CodeInvalidArgument, "file exceeds maximum size of %d bytes", limits.MaxFileSizeBytes)
	}

	original, err := os.ReadFile(resolved)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to read file", err)
	}
	if !isTextContent(original) {
		return "", apperrors.Newf(apperrors.CodeWrongType, "%s appears to be binary; edit_file supports text only", f.ws.Rel(resolved))
	}

	if !strings.Contains(string(original), oldText) {
		return "", apperrors.Newf(apperrors.CodeNotFound, "text not found in %s: %q", f.ws.Rel(resolved), oldText)
	}

	updated := strings.ReplaceAll(string(original), oldText, newText)
	if int64(len(updated)) > limits.MaxFileSizeBytes {
		return "", apperrors.Newf(apperrors.CodeInvalidArgument, "updated file exceeds maximum size of %d bytes", limits.MaxFileSizeBytes)
	}

	if err := writeFileAtomic(resolved, []byte(updated), info.Mode().Perm()); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully edited %s", f.ws.Rel(resolved)), nil
}
