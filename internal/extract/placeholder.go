package extract

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/symdex-dev/symdex/internal/store"
)

// placeholderLanguages are content types without a structural
// extractor. Each of their files gets a single whole-file symbol so
// full-text search can still reach it.
var placeholderLanguages = map[string]struct{}{
	"text":     {},
	"json":     {},
	"toml":     {},
	"yaml":     {},
	"yml":      {},
	"xml":      {},
	"markdown": {},
	"md":       {},
	"txt":      {},
	"config":   {},
}

// PlaceholderLanguage reports whether files of this language are
// represented by the whole-file placeholder symbol. The incremental
// indexer uses it to re-queue files indexed before placeholders
// existed: their hash is unchanged but their symbol count is zero.
func PlaceholderLanguage(language string) bool {
	_, ok := placeholderLanguages[language]
	return ok
}

// excerptLen bounds the doc excerpt taken from the file head.
const excerptLen = 200

// PlaceholderExtractor emits one symbol covering the entire file,
// named after its base name, with a leading-content excerpt as the doc
// comment.
type PlaceholderExtractor struct{}

var _ Extractor = (*PlaceholderExtractor)(nil)

// NewPlaceholderExtractor returns the whole-file extractor.
func NewPlaceholderExtractor() *PlaceholderExtractor {
	return &PlaceholderExtractor{}
}

// Extract implements Extractor.
func (e *PlaceholderExtractor) Extract(_ context.Context, file *SourceFile) ([]store.Symbol, []store.Relationship, error) {
	name := path.Base(file.Path)
	lines := bytes.Count(file.Content, []byte("\n")) + 1

	sym := store.Symbol{
		ID:          store.GenerateSymbolID(file.Path, name, store.KindFile, 1, 1),
		Name:        name,
		Kind:        store.KindFile,
		FilePath:    file.Path,
		StartLine:   1,
		StartColumn: 1,
		EndLine:     lines,
		EndColumn:   1,
		Visibility:  "public",
		DocComment:  headExcerpt(file.Content),
		ContentType: file.ContentType,
	}
	return []store.Symbol{sym}, nil, nil
}

// headExcerpt returns the first non-blank content of the file, capped
// at excerptLen runes, with runs of whitespace collapsed.
func headExcerpt(content []byte) string {
	head := content
	if len(head) > 4*excerptLen {
		head = head[:4*excerptLen]
	}
	collapsed := strings.Join(strings.Fields(string(head)), " ")
	runes := []rune(collapsed)
	if len(runes) > excerptLen {
		return string(runes[:excerptLen])
	}
	return collapsed
}
