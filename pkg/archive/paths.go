package archive

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/suddencreator/kibank/pkg/common"
)

// SanitizeBankPath normalizes a bank-internal path to safe POSIX form:
// backslashes become forward slashes, leading slashes are stripped, empty
// and "." segments are dropped, and any ".." segment is rejected.
func SanitizeBankPath(rel string) (string, error) {
	normalized := strings.ReplaceAll(rel, "\\", common.PathSeparator)
	normalized = strings.TrimLeft(normalized, common.PathSeparator)

	var parts []string
	for _, segment := range strings.Split(normalized, common.PathSeparator) {
		switch segment {
		case "", ".":
			continue
		case "..":
			return "", &common.TraversalError{Path: rel}
		default:
			parts = append(parts, segment)
		}
	}

	return strings.Join(parts, common.PathSeparator), nil
}

// SafeJoin anchors a bank-internal path under root, refusing to produce
// anything outside it. Segment inspection rejects explicit traversal;
// canonical containment of the joined result catches anything else, such as
// a symlinked directory component pointing outside the root.
func SafeJoin(root string, rel string) (string, error) {
	sanitized, err := SanitizeBankPath(rel)
	if err != nil {
		return "", err
	}

	joined := filepath.Join(root, filepath.FromSlash(sanitized))

	rootResolved, err := canonicalize(root)
	if err != nil {
		return "", err
	}
	candidate, err := canonicalize(joined)
	if err != nil {
		return "", err
	}

	if candidate != rootResolved && !strings.HasPrefix(candidate, rootResolved+string(filepath.Separator)) {
		return "", &common.EscapeError{Path: rel, Root: root}
	}

	return joined, nil
}

// canonicalize resolves a path to absolute, symlink-free form. Extraction
// targets usually do not exist yet, so symlinks are resolved on the deepest
// existing ancestor and the missing tail is re-appended lexically.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	prefix := abs
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(prefix)
		if err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(prefix)
		if parent == prefix {
			return abs, nil
		}
		tail = append([]string{filepath.Base(prefix)}, tail...)
		prefix = parent
	}
}
