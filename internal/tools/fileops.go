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
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "workbench/internal/errors"
	"workbench/internal/workspace"
)

// fileOps implements the built-in file tools. Every handler resolves its
// path arguments through the workspace before any I/O; a denied path returns
// immediately with no side effects.
type fileOps struct {
	ws *workspace.Workspace
}

func (f *fileOps) getCurrentDatetime(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	return time.Now().Format(time.RFC3339), nil
}

func (f *fileOps) readFile(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	path, _ := stringArg(args, "path")
	resolved, err := f.ws.Resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.Newf(apperrors.CodeNotFound, "file not found: %s", f.ws.Rel(resolved))
		}
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to stat file", err)
	}
	if info.IsDir() {
		return "", apperrors.Newf(apperrors.CodeWrongType, "%s is a directory, not a file", f.ws.Rel(resolved))
	}
	if info.Size() > getLimits().MaxFileSizeBytes {
		return "", apperrors.Newf(apperrors.CodeInvalidArgument, "file exceeds maximum size of %d bytes", getLimits().MaxFileSizeBytes)
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to read file", err)
	}
	if !isTextContent(content) {
		return "", apperrors.Newf(apperrors.CodeWrongType, "%s appears to be binary; read_file supports text only", f.ws.Rel(resolved))
	}

	return string(content), nil
}

func (f *fileOps) listDirectory(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	path := optionalStringArg(args, "path")
	if strings.TrimSpace(path) == "" {
		path = "."
	}
	resolved, err := f.ws.Resolve(path)
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

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to read directory", err)
	}
	if len(entries) > getLimits().MaxDirectoryEntries {
		return "", apperrors.Newf(apperrors.CodeInvalidArgument, "directory contains more than %d entries", getLimits().MaxDirectoryEntries)
	}

	if len(entries) == 0 {
		return fmt.Sprintf("Empty directory: %s", f.ws.Rel(resolved)), nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, fmt.Sprintf("[DIR]  %s/", entry.Name()))
		} else {
			names = append(names, fmt.Sprintf("[FILE] %s", entry.Name()))
		}
	}
	sort.Strings(names)

	return fmt.Sprintf("Contents of %s:\n%s", f.ws.Rel(resolved), strings.Join(names, "\n")), nil
}

func (f *fileOps) writeFile(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	path, _ := stringArg(args, "path")
	content, ok := args["content"].(string)
	if !ok {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "missing or invalid 'content' argument")
	}

	resolved, err := f.ws.Resolve(path)
	if err != nil {
		return "", err
	}

	if int64(len(content)) > getLimits().MaxFileSizeBytes {
		return "", apperrors.Newf(apperrors.CodeInvalidArgument, "content exceeds maximum size of %d bytes", getLimits().MaxFileSizeBytes)
	}
	if !isTextContent([]byte(content)) {
		return "", apperrors.New(apperrors.CodeWrongType, "content appears to be binary; write_file supports text only")
	}

	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		return "", apperrors.Newf(apperrors.CodeWrongType, "%s is a directory", f.ws.Rel(resolved))
	}

	if err := writeFileAtomic(resolved, []byte(content), 0o644); err != nil {
		return "", err
	}

	return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), f.ws.Rel(resolved)), nil
}

func (f *fileOps) deleteEntry(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	path, _ := stringArg(args, "path")
	resolved, err := f.ws.Resolve(path)
	if err != nil {
		return "", err
	}
	if resolved == f.ws.Root() {
		return "", apperrors.New(apperrors.CodeAccessDenied, "refusing to delete the workspace root")
	}

	info, err := os.Lstat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.Newf(apperrors.CodeNotFound, "path not found: %s", f.ws.Rel(resolved))
		}
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to stat path", err)
	}

	if info.IsDir() {
		// Best-effort recursive removal; a mid-walk OS failure can leave a
		// partially removed tree behind.
		if err := os.RemoveAll(resolved); err != nil {
			return "", apperrors.Wrap(apperrors.CodeInternal, "failed to delete directory", err)
		}
		return fmt.Sprintf("Successfully deleted directory: %s", f.ws.Rel(resolved)), nil
	}

	if err := os.Remove(resolved); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to delete file", err)
	}
	return fmt.Sprintf("Successfully deleted file: %s", f.ws.Rel(resolved)), nil
}

func (f *fileOps) makeDirectory(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	path, _ := stringArg(args, "path")
	resolved, err := f.ws.Resolve(path)
	if err != nil {
		return "", err
	}

	if info, err := os.Stat(resolved); err == nil {
		if info.IsDir() {
			return fmt.Sprintf("Directory already exists: %s", f.ws.Rel(resolved)), nil
		}
		return "", apperrors.Newf(apperrors.CodeAlreadyExists, "%s exists but is not a directory", f.ws.Rel(resolved))
	} else if !os.IsNotExist(err) {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to stat path", err)
	}

	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to create directory", err)
	}
	return fmt.Sprintf("Successfully created directory: %s", f.ws.Rel(resolved)), nil
}

func (f *fileOps) copyEntry(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	source, _ := stringArg(args, "source")
	destination, _ := stringArg(args, "destination")

	srcResolved, err := f.ws.Resolve(source)
	if err != nil {
		return "", err
	}
	dstResolved, err := f.ws.Resolve(destination)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(srcResolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.Newf(apperrors.CodeNotFound, "source not found: %s", f.ws.Rel(srcResolved))
		}
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to stat source", err)
	}

	if info.IsDir() {
		if strings.HasPrefix(dstResolved, srcResolved+string(os.PathSeparator)) || dstResolved == srcResolved {
			return "", apperrors.New(apperrors.CodeInvalidArgument, "cannot copy a directory into itself")
		}
		count, err := copyTree(ctx, srcResolved, dstResolved)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Successfully copied %d files from %s to %s", count, f.ws.Rel(srcResolved), f.ws.Rel(dstResolved)), nil
	}

	if err := copyFileContents(srcResolved, dstResolved, info.Mode().Perm()); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully copied %s to %s", f.ws.Rel(srcResolved), f.ws.Rel(dstResolved)), nil
}

func (f *fileOps) moveEntry(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	source, _ := stringArg(args, "source")
	destination, _ := stringArg(args, "destination")

	srcResolved, err := f.ws.Resolve(source)
	if err != nil {
		return "", err
	}
	dstResolved, err := f.ws.Resolve(destination)
	if err != nil {
		return "", err
	}

	if _, err := os.Lstat(srcResolved); err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.Newf(apperrors.CodeNotFound, "source not found: %s", f.ws.Rel(srcResolved))
		}
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to stat source", err)
	}

	if err := os.MkdirAll(filepath.Dir(dstResolved), 0o755); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to create destination parent", err)
	}
	if err := os.Rename(srcResolved, dstResolved); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to move", err)
	}
	return fmt.Sprintf("Successfully moved %s to %s", f.ws.Rel(srcResolved), f.ws.Rel(dstResolved)), nil
}

// writeFileAtomic creates parent directories as needed and replaces the
// target via a temp file + rename, so readers never observe a partial write.
func writeFileAtomic(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to create parent directories", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeInternal, "failed to write temp file", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeInternal, "failed to set file mode", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeInternal, "failed to close temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeInternal, "failed to replace file", err)
	}
	return nil
}

func copyFileContents(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to open source", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to create destination parent", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeInternal, "failed to copy contents", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeInternal, "failed to set file mode", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeInternal, "failed to close temp file", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeInternal, "failed to place destination file", err)
	}
	return nil
}

// copyTree copies a directory recursively. Best-effort: it stops on the
// first OS-level failure and does not roll back files already copied.
func copyTree(ctx context.Context, src, dst string) (int, error) {
	count := 0
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if ctxErr := ensureContext(ctx); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		if !info.Mode().IsRegular() {
			// Symlinks and specials are skipped rather than followed.
			return nil
		}
		if err := copyFileContents(path, target, info.Mode().Perm()); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		if _, ok := err.(*apperrors.Error); ok {
			return count, err
		}
		return count, apperrors.Wrap(apperrors.CodeInternal, "failed to copy directory tree", err)
	}
	return count, nil
}

func isTextContent(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	if !utf8.Valid(data) {
		return false
	}

	const sampleSize = 8192
	limit := len(data)
	if limit > sampleSize {
		limit = sampleSize
	}

	var nonPrintable int
	for _, b := range data[:limit] {
		switch b {
		case '\n', '\r', '\t':
			continue
		}
		if b == 0 {
			return false
		}
		if b < 0x20 || b == 0x7f {
			nonPrintable++
		}
	}

	return nonPrintable*20 < limit
}

func ensureContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
