package store

import (
	"regexp"
	"strings"
	"unicode"
)

// identRe matches identifier-like runs. Punctuation between them is a
// natural boundary for both code and prose.
var identRe = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// TokenizeIdentifiers splits text into lowercase search tokens with
// code-aware rules: snake_case and camelCase identifiers are broken into
// their parts so "parseHTTPRequest" matches a query for "parse request".
// Tokens shorter than two characters are dropped.
func TokenizeIdentifiers(text string) []string {
	var tokens []string
	for _, word := range identRe.FindAllString(text, -1) {
		for _, part := range SplitIdentifier(word) {
			lower := strings.ToLower(part)
			if len(lower) >= 2 {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

// SplitIdentifier breaks a single identifier into its word parts,
// handling snake_case first and then camelCase within each part.
func SplitIdentifier(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamel(part)...)
			}
		}
		return result
	}
	return splitCamel(token)
}

// splitCamel splits camelCase and PascalCase, keeping acronym runs
// together: "parseHTTPRequest" becomes ["parse", "HTTP", "Request"].
func splitCamel(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// searchText builds the pre-tokenized text stored in the text index for
// one symbol. Name parts are joined with signature and doc comment so a
// single MATCH query covers all three.
func searchText(sym *Symbol) string {
	parts := TokenizeIdentifiers(sym.Name)
	if sym.Signature != "" {
		parts = append(parts, TokenizeIdentifiers(sym.Signature)...)
	}
	if sym.DocComment != "" {
		parts = append(parts, TokenizeIdentifiers(sym.DocComment)...)
	}
	return strings.Join(parts, " ")
}
