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

package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	apperrors "workbench/internal/errors"
)

const maxPathLength = 4096

// Workspace confines every tool path to a single root directory. The root is
// canonicalized once at construction and fixed for the process lifetime.
type Workspace struct {
	root string
}

// New creates the root directory if absent and canonicalizes it.
func New(root string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "workspace root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid workspace root", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to create workspace root", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to resolve workspace root", err)
	}
	return &Workspace{root: resolved}, nil
}

// Root returns the canonical absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve validates a candidate path and returns its canonical absolute form
// inside the workspace. Relative candidates are joined to the root; absolute
// candidates are accepted only when they already lie inside it. Literal ".."
// segments are fine as long as the collapsed result stays within the root;
// symlinks that point outside the root are denied.
func (w *Workspace) Resolve(candidate string) (string, error) {
	if err := validatePathString(candidate); err != nil {
		return "", err
	}

	abs := candidate
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.root, abs)
	}
	abs = filepath.Clean(abs)

	if !hasPathPrefix(abs, w.root) {
		return "", apperrors.Newf(apperrors.CodeAccessDenied, "path %q is outside the workspace", candidate)
	}

	resolved, err := resolveSymlinked(abs)
	if err != nil {
		return "", err
	}
	if !hasPathPrefix(resolved, w.root) {
		return "", apperrors.Newf(apperrors.CodeAccessDenied, "path %q is outside the workspace", candidate)
	}

	return resolved, nil
}

// Rel returns p relative to the root for display in tool payloads. Falls back
// to p itself when it cannot be made relative.
func (w *Workspace) Rel(p string) string {
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return p
	}
	if rel == "." {
		return "."
	}
	return rel
}

func validatePathString(path string) error {
	if strings.TrimSpace(path) == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "path cannot be empty")
	}
	if strings.IndexByte(path, 0) != -1 {
		return apperrors.New(apperrors.CodeInvalidArgument, "path contains null byte")
	}
	if !utf8.ValidString(path) {
		return apperrors.New(apperrors.CodeInvalidArgument, "path is not valid UTF-8")
	}
	if len(path) > maxPathLength {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "path exceeds maximum length of %d characters", maxPathLength)
	}
	return nil
}

// resolveSymlinked canonicalizes the nearest existing ancestor of path and
// rejoins the non-existing remainder, so symlink escapes are caught even for
// targets that are yet to be created.
func resolveSymlinked(path string) (string, error) {
	existing := path
	var pending []string
	for {
		_, err := os.Lstat(existing)
		if err == nil {
			break
		}
		if !os.IsNotExist(err) {
			return "", apperrors.Wrap(apperrors.CodeInternal, fmt.Sprintf("failed to stat %q", existing), err)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		pending = append([]string{filepath.Base(existing)}, pending...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, fmt.Sprintf("failed to resolve %q", existing), err)
	}
	return filepath.Join(append([]string{resolved}, pending...)...), nil
}

// hasPathPrefix returns true when path is base or lies within base.
func hasPathPrefix(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}
