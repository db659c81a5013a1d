package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"getUserById", []string{"get", "User", "By", "Id"}},
		{"HTTPHandler", []string{"HTTP", "Handler"}},
		{"parseHTTPRequest", []string{"parse", "HTTP", "Request"}},
		{"snake_case_name", []string{"snake", "case", "name"}},
		{"mixed_caseAndSnake", []string{"mixed", "case", "And", "Snake"}},
		{"__dunder__", []string{"dunder"}},
		{"simple", []string{"simple"}},
		{"", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitIdentifier(tt.input))
		})
	}
}

func TestTokenizeIdentifiers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "lowercases and splits",
			input: "func GetUserByID(ctx context.Context)",
			want:  []string{"func", "get", "user", "by", "id", "ctx", "context", "context"},
		},
		{
			name:  "drops single chars",
			input: "x := a + b2",
			want:  []string{"b2"},
		},
		{
			name:  "punctuation is a boundary",
			input: "store.Search(query, k)",
			want:  []string{"store", "search", "query"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizeIdentifiers(tt.input))
		})
	}
}

func TestSearchText_CombinesNameSignatureDoc(t *testing.T) {
	sym := &Symbol{
		Name:       "flushBuffer",
		Signature:  "func(w io.Writer) error",
		DocComment: "flushBuffer drains pendingWrites.",
	}

	text := searchText(sym)
	assert.Contains(t, text, "flush")
	assert.Contains(t, text, "buffer")
	assert.Contains(t, text, "writer")
	assert.Contains(t, text, "pending")
	assert.Contains(t, text, "writes")
}
