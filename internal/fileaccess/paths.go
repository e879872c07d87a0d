package fileaccess

import (
	"path/filepath"
	"strings"

	bankerrors "github.com/standardbeagle/membank/internal/errors"
)

// resolve maps a logical name to an absolute path under the root.
// Every caller-supplied name passes through here; a name that cleans
// or resolves to anything outside the root fails with PathEscapeError.
func (l *Layer) resolve(name string) (string, error) {
	if name == "" {
		return "", bankerrors.NewPathEscape(name, "", l.root)
	}
	if strings.ContainsRune(name, '\x00') {
		return "", bankerrors.NewPathEscape(name, "", l.root)
	}
	if filepath.IsAbs(name) {
		return "", bankerrors.NewPathEscape(name, name, l.root)
	}

	resolved := filepath.Join(l.root, filepath.Clean(name))

	rel, err := filepath.Rel(l.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", bankerrors.NewPathEscape(name, resolved, l.root)
	}

	return resolved, nil
}
