package gitignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Match_BasicPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{name: "extension glob matches basename", pattern: "*.log", path: "debug.log", want: true},
		{name: "extension glob matches nested file", pattern: "*.log", path: "logs/debug.log", want: true},
		{name: "extension glob ignores other files", pattern: "*.log", path: "main.go", want: false},
		{name: "plain name matches directory contents", pattern: "temp", path: "temp/file.go", want: true},
		{name: "plain name matches at any depth", pattern: "temp", path: "a/b/temp", isDir: true, want: true},
		{name: "question mark matches one char", pattern: "file?.txt", path: "file1.txt", want: true},
		{name: "question mark rejects two chars", pattern: "file?.txt", path: "file10.txt", want: false},
		{name: "char class", pattern: "v[0-9].md", path: "v2.md", want: true},
		{name: "char class non-member", pattern: "v[0-9].md", path: "vX.md", want: false},
		{name: "double star prefix", pattern: "**/logs", path: "a/b/logs", isDir: true, want: true},
		{name: "double star prefix covers contents", pattern: "**/logs", path: "a/b/logs/today.txt", want: true},
		{name: "double star suffix", pattern: "dist/**", path: "dist/js/app.js", want: true},
		{name: "escaped hash is literal", pattern: `\#notes`, path: "#notes", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			require.NoError(t, m.AddPattern(tt.pattern))
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_Match_AnchoredPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{name: "leading slash anchors to root", pattern: "/secret.txt", path: "secret.txt", want: true},
		{name: "anchored misses nested copy", pattern: "/secret.txt", path: "sub/secret.txt", want: false},
		{name: "internal slash anchors", pattern: "doc/frotz", path: "doc/frotz", isDir: true, want: true},
		{name: "internal slash misses nested copy", pattern: "doc/frotz", path: "a/doc/frotz", isDir: true, want: false},
		{name: "anchored dir covers contents", pattern: "/build/", path: "build/out/app", want: true},
		{name: "anchored dir rule requires directory", pattern: "/build/", path: "build", isDir: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			require.NoError(t, m.AddPattern(tt.pattern))
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_Match_DirOnlyPatterns(t *testing.T) {
	m := New()
	require.NoError(t, m.AddPattern("node_modules/"))

	// Given a directory-only rule
	// When matching the directory, its contents, and a same-named file
	// Then only the directory and its contents are ignored
	assert.True(t, m.Match("node_modules", true))
	assert.True(t, m.Match("node_modules/react/index.js", false))
	assert.True(t, m.Match("web/node_modules/react/index.js", false))
	assert.False(t, m.Match("node_modules", false))
}

func TestMatcher_Match_NegationLastMatchWins(t *testing.T) {
	m := New()
	require.NoError(t, m.AddPatterns([]string{
		"*.log",
		"!important.log",
	}))

	assert.True(t, m.Match("debug.log", false))
	assert.False(t, m.Match("important.log", false))

	// A later broad rule re-ignores what negation re-included.
	require.NoError(t, m.AddPattern("*.log"))
	assert.True(t, m.Match("important.log", false))
}

func TestMatcher_AddPattern_SkipsCommentsAndBlanks(t *testing.T) {
	m := New()
	require.NoError(t, m.AddPatterns([]string{
		"",
		"   ",
		"# generated artifacts",
		"*.tmp",
	}))

	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Match("scratch.tmp", false))
	assert.False(t, m.Match("# generated artifacts", false))
}

func TestMatcher_AddFromFile_LoadsRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	content := "# build output\nbin/\n*.exe\n!keep.exe\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := NewFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3, m.Len())
	assert.True(t, m.Match("bin/app", false))
	assert.True(t, m.Match("tool.exe", false))
	assert.False(t, m.Match("keep.exe", false))
}

func TestMatcher_AddFromFile_MissingFileIsEmpty(t *testing.T) {
	m, err := NewFromFile(filepath.Join(t.TempDir(), "nope", ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	assert.False(t, m.Match("anything.go", false))
}
