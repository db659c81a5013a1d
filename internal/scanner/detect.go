package scanner

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// languageByExtension maps file extensions (and a few exact filenames)
// to language identifiers understood by the extractors.
var languageByExtension = map[string]string{
	".go": "go",

	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",

	".py":    "python",
	".pyi":   "python",
	".rb":    "ruby",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cc":    "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".php":   "php",
	".scala": "scala",
	".ex":    "elixir",
	".exs":   "elixir",
	".lua":   "lua",

	".sh":   "shell",
	".bash": "shell",
	".zsh":  "shell",

	".html":    "html",
	".css":     "css",
	".scss":    "scss",
	".sql":     "sql",
	".proto":   "protobuf",
	".graphql": "graphql",

	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".xml":  "xml",
	".ini":  "ini",
	".conf": "config",

	".md":       "markdown",
	".mdx":      "markdown",
	".markdown": "markdown",
	".rst":      "rst",
	".txt":      "text",

	"Dockerfile":  "dockerfile",
	"Makefile":    "makefile",
	"makefile":    "makefile",
	"GNUmakefile": "makefile",
}

// contentTypeByLanguage classifies each language. Missing languages
// fall back to plain text.
var contentTypeByLanguage = map[string]ContentType{
	"go":         ContentTypeCode,
	"javascript": ContentTypeCode,
	"typescript": ContentTypeCode,
	"python":     ContentTypeCode,
	"ruby":       ContentTypeCode,
	"rust":       ContentTypeCode,
	"java":       ContentTypeCode,
	"kotlin":     ContentTypeCode,
	"c":          ContentTypeCode,
	"cpp":        ContentTypeCode,
	"csharp":     ContentTypeCode,
	"swift":      ContentTypeCode,
	"php":        ContentTypeCode,
	"scala":      ContentTypeCode,
	"elixir":     ContentTypeCode,
	"lua":        ContentTypeCode,
	"shell":      ContentTypeCode,
	"html":       ContentTypeCode,
	"css":        ContentTypeCode,
	"scss":       ContentTypeCode,
	"sql":        ContentTypeCode,
	"protobuf":   ContentTypeCode,
	"graphql":    ContentTypeCode,

	"markdown": ContentTypeMarkdown,
	"rst":      ContentTypeMarkdown,

	"text": ContentTypeText,

	"json":       ContentTypeConfig,
	"yaml":       ContentTypeConfig,
	"toml":       ContentTypeConfig,
	"xml":        ContentTypeConfig,
	"ini":        ContentTypeConfig,
	"config":     ContentTypeConfig,
	"dockerfile": ContentTypeConfig,
	"makefile":   ContentTypeConfig,
}

// DetectLanguage returns the language identifier for a path, or ""
// when the file type is not indexable. Exact filenames like Dockerfile
// win over extensions.
func DetectLanguage(path string) string {
	base := filepath.Base(filepath.ToSlash(path))
	if lang, ok := languageByExtension[base]; ok {
		return lang
	}
	if lang, ok := languageByExtension[strings.ToLower(filepath.Ext(base))]; ok {
		return lang
	}
	return ""
}

// DetectContentType maps a language to its content type.
func DetectContentType(language string) ContentType {
	if ct, ok := contentTypeByLanguage[language]; ok {
		return ct
	}
	return ContentTypeText
}

// HashFile returns the hex SHA-256 of the file contents, streaming so
// large files never load fully into memory.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex SHA-256 of content already held in memory.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// binarySniffLen is how many leading bytes are inspected for NUL.
const binarySniffLen = 512

// isBinaryFile reports whether the file looks binary, using the git
// heuristic of a NUL byte in the first block. Unreadable files count
// as binary so the scan skips them.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, binarySniffLen)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return true
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}

// generatedMarkers are strings that mark machine-written files. Only
// the first kilobyte is searched, where generators put their notice.
var generatedMarkers = []string{
	"Code generated",
	"DO NOT EDIT",
	"@generated",
	"Autogenerated",
	"automatically generated",
}

// isGeneratedFile reports whether the file opens with a generated-code
// marker.
func isGeneratedFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false
	}
	head := string(buf[:n])
	for _, marker := range generatedMarkers {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}
