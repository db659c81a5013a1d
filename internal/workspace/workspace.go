// Package workspace maps root directories to stable workspace
// identities and owns the on-disk layout of their indexes.
//
// One Primary workspace exists per running instance; any number of
// Reference workspaces can be registered alongside it for
// cross-project lookups. Each workspace stores its index in its own
// directory keyed by id, so no two workspaces ever share storage.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	symerrors "github.com/symdex-dev/symdex/internal/errors"
)

// Kind distinguishes the primary workspace from reference workspaces.
type Kind string

const (
	// KindPrimary is the workspace the instance was started in.
	KindPrimary Kind = "primary"
	// KindReference is an additional tree indexed for cross-project
	// lookups, stored separately from the primary index.
	KindReference Kind = "reference"
)

// Descriptor identifies one workspace. Root is always the canonical
// (symlink-resolved, absolute) path.
type Descriptor struct {
	ID   string `json:"id"`
	Root string `json:"root"`
	Kind Kind   `json:"kind"`
}

// Canonicalize resolves a root path to its canonical absolute form.
// Two textual paths naming the same directory canonicalize to the same
// string, which is what keeps workspace ids stable. Errors are
// surfaced: an unreadable or missing root must never silently produce
// a fresh workspace identity.
func Canonicalize(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", symerrors.New(symerrors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot resolve path %s", root), err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", symerrors.New(symerrors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot canonicalize path %s", abs), err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", symerrors.New(symerrors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot access workspace root %s", resolved), err)
	}
	if !info.IsDir() {
		return "", symerrors.New(symerrors.ErrCodeInvalidPath,
			fmt.Sprintf("workspace root %s is not a directory", resolved), nil)
	}
	return resolved, nil
}

// GenerateID derives the deterministic workspace id from a canonical
// root path: `{sanitized_dir_name}_{hash8}`. The hash covers the
// normalized path, so the same directory yields the same id forever,
// across platforms and process restarts.
func GenerateID(canonicalRoot string) string {
	normalized := strings.ToLower(canonicalRoot)
	normalized = strings.ReplaceAll(normalized, "\\", "/")
	normalized = strings.TrimRight(normalized, "/")

	sum := sha256.Sum256([]byte(normalized))
	hash8 := hex.EncodeToString(sum[:])[:8]

	name := sanitizeName(filepath.Base(canonicalRoot))
	return name + "_" + hash8
}

// maxNameLen bounds the readable prefix of a workspace id.
const maxNameLen = 50

// sanitizeName makes a directory name safe for use in paths on every
// platform. Anything outside [a-zA-Z0-9-_] becomes an underscore, and
// names that do not start with a letter or digit get a ws_ prefix.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > maxNameLen {
		s = s[:maxNameLen]
	}
	if s == "" || !isAlnum(rune(s[0])) {
		s = "ws_" + s
	}
	return s
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// Resolve canonicalizes root and returns its descriptor with the given
// kind. The descriptor is purely computed; registration in the
// Registry is a separate step.
func Resolve(root string, kind Kind) (Descriptor, error) {
	canonical, err := Canonicalize(root)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{
		ID:   GenerateID(canonical),
		Root: canonical,
		Kind: kind,
	}, nil
}
