// Package scanner discovers indexable files in a workspace. It walks
// the tree while honoring exclusion patterns, .gitignore rules, and
// sensitive-file protections, and classifies each file by language and
// content type.
package scanner

import "time"

// ContentType is the coarse classification of a file's content.
type ContentType string

const (
	// ContentTypeCode is source code.
	ContentTypeCode ContentType = "code"
	// ContentTypeMarkdown is markdown or similar documentation.
	ContentTypeMarkdown ContentType = "markdown"
	// ContentTypeText is plain text.
	ContentTypeText ContentType = "text"
	// ContentTypeConfig is configuration data such as YAML or TOML.
	ContentTypeConfig ContentType = "config"
)

// FileInfo describes one discovered file.
type FileInfo struct {
	Path        string      // slash-separated path relative to the scan root
	AbsPath     string      // absolute path on disk
	Size        int64       // size in bytes
	ModTime     time.Time   // last modification time
	Language    string      // detected language, e.g. "go" or "yaml"
	ContentType ContentType // code, markdown, text, or config
	IsGenerated bool        // file carries a generated-code marker
}

// ScanResult is one entry on the scan channel. Exactly one of File and
// Error is set; per-file errors do not terminate the scan.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// ScanOptions configures a single scan.
type ScanOptions struct {
	// RootDir is the workspace root to walk. Required.
	RootDir string

	// IncludePatterns restricts the scan to matching files when
	// non-empty, e.g. "**/*.go" or "internal/**".
	IncludePatterns []string

	// ExcludePatterns removes matching files and directories on top
	// of the built-in exclusions.
	ExcludePatterns []string

	// RespectGitignore applies .gitignore rules found in the tree.
	RespectGitignore bool

	// Workers sets the number of concurrent file classifiers.
	// Zero means runtime.NumCPU.
	Workers int

	// MaxFileSize is the largest file to report, in bytes.
	// Zero means DefaultMaxFileSize.
	MaxFileSize int64
}

// DefaultMaxFileSize caps indexable files at 10MB.
const DefaultMaxFileSize = 10 * 1024 * 1024
