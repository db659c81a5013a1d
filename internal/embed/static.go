package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// StaticEmbedder produces deterministic embeddings from token and
// character-trigram hashes. No network, no model files; quality is
// below a learned model but identical inputs always embed identically,
// which keeps the semantic index usable offline and in tests.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// Feature weights: whole identifiers dominate, trigrams catch near
// matches and typos.
const (
	staticTokenWeight  = 0.7
	staticngramWeight  = 0.3
	staticTrigramWidth = 3
)

// keywordStopSet drops language keywords that carry no identity.
var keywordStopSet = map[string]struct{}{
	"func": {}, "function": {}, "def": {}, "class": {}, "return": {},
	"import": {}, "const": {}, "var": {}, "let": {}, "int": {},
	"string": {}, "bool": {}, "void": {}, "true": {}, "false": {},
	"nil": {}, "null": {}, "this": {}, "self": {}, "new": {},
}

var staticTokenRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

// NewStaticEmbedder returns a ready static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed implements Embedder.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	vec := make([]float32, StaticDimensions)
	for _, token := range staticTokens(trimmed) {
		vec[hashToIndex(token)] += staticTokenWeight
	}
	for _, gram := range trigrams(trimmed) {
		vec[hashToIndex(gram)] += staticngramWeight
	}
	return normalizeVector(vec), nil
}

// EmbedBatch implements Embedder.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		result[i] = vec
	}
	return result, nil
}

// Dimensions implements Embedder.
func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

// ModelName implements Embedder.
func (e *StaticEmbedder) ModelName() string { return "static-hash-v1" }

// Available implements Embedder. The static embedder is always ready.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close implements Embedder.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// staticTokens splits text into lowercase identifier fragments,
// breaking camelCase and snake_case, with keywords removed.
func staticTokens(text string) []string {
	var tokens []string
	for _, word := range staticTokenRe.FindAllString(text, -1) {
		for _, part := range splitIdentifier(word) {
			lower := strings.ToLower(part)
			if _, stop := keywordStopSet[lower]; stop {
				continue
			}
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// splitIdentifier breaks snake_case then camelCase, keeping acronym
// runs together ("HTTPServer" -> "HTTP", "Server").
func splitIdentifier(word string) []string {
	var parts []string
	for _, segment := range strings.Split(word, "_") {
		if segment == "" {
			continue
		}
		runes := []rune(segment)
		start := 0
		for i := 1; i < len(runes); i++ {
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			if unicode.IsUpper(runes[i]) && prevLower {
				parts = append(parts, string(runes[start:i]))
				start = i
				continue
			}
			if i+1 < len(runes) && unicode.IsUpper(runes[i]) && unicode.IsLower(runes[i+1]) && i > start {
				parts = append(parts, string(runes[start:i]))
				start = i
			}
		}
		parts = append(parts, string(runes[start:]))
	}
	return parts
}

// trigrams returns the character trigrams of the lowercased text.
func trigrams(text string) []string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	runes := []rune(normalized)
	if len(runes) < staticTrigramWidth {
		return nil
	}
	grams := make([]string, 0, len(runes)-staticTrigramWidth+1)
	for i := 0; i+staticTrigramWidth <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+staticTrigramWidth]))
	}
	return grams
}

// hashToIndex maps a feature string to a vector slot.
func hashToIndex(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % StaticDimensions)
}
