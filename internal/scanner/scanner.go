package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/symdex-dev/symdex/internal/gitignore"
)

// gitignoreCacheSize bounds the per-directory matcher cache. Large
// monorepos can hold thousands of .gitignore files.
const gitignoreCacheSize = 1024

// defaultExcludeDirs are directory patterns skipped on every scan.
var defaultExcludeDirs = []string{
	"**/.git/**",
	"**/.hg/**",
	"**/.svn/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/target/**",
	"**/.symdex/**",
	"**/.aws/**",
	"**/.ssh/**",
}

// defaultExcludeFiles are file patterns skipped on every scan, mostly
// minified bundles and lockfiles that drown the index in noise.
var defaultExcludeFiles = []string{
	"**/*.min.js",
	"**/*.min.css",
	"**/*.map",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/Cargo.lock",
	"**/go.sum",
}

// sensitiveFilePatterns are never indexed regardless of user patterns.
// They cover credentials, private keys, and tool auth files.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	".npmrc",
	".pypirc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}

// Scanner streams indexable files from a workspace tree. It caches
// compiled .gitignore matchers per directory, so one Scanner should be
// reused across scans of the same workspace. Safe for concurrent use.
type Scanner struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
}

// New returns a Scanner with an empty gitignore cache.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create gitignore cache: %w", err)
	}
	return &Scanner{gitignoreCache: cache}, nil
}

// InvalidateGitignoreCache drops every cached matcher. Callers invoke
// it when a .gitignore changes so the next scan rereads the rules.
func (s *Scanner) InvalidateGitignoreCache() {
	s.gitignoreCache.Purge()
}

// Scan walks opts.RootDir and streams one ScanResult per indexable
// file. The channel closes when the walk completes or ctx is
// cancelled. Per-file failures arrive as ScanResult.Error entries and
// do not stop the walk. Symlinks are not followed.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil || opts.RootDir == "" {
		return nil, fmt.Errorf("scan: root directory is required")
	}
	root, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, fmt.Errorf("scan: resolve root %s: %w", opts.RootDir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan: root %s is not a directory", root)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	candidates := make(chan string, workers*10)
	results := make(chan ScanResult, workers*10)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rel := range candidates {
				res := s.classify(root, rel, maxSize)
				if res == nil {
					continue
				}
				select {
				case results <- *res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(candidates)
		walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}
			if err != nil {
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if rel == "." {
					return nil
				}
				if s.shouldExcludeDir(rel, opts) {
					return filepath.SkipDir
				}
				if opts.RespectGitignore && s.isGitignored(root, rel, true) {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() {
				return nil
			}
			if s.shouldExcludeFile(rel, opts) {
				return nil
			}
			if opts.RespectGitignore && s.isGitignored(root, rel, false) {
				return nil
			}

			select {
			case candidates <- rel:
			case <-ctx.Done():
				return filepath.SkipAll
			}
			return nil
		})
		if walkErr != nil {
			select {
			case results <- ScanResult{Error: fmt.Errorf("walk %s: %w", root, walkErr)}:
			case <-ctx.Done():
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results, nil
}

// classify stats and inspects one candidate file. It returns nil when
// the file should be silently skipped, or a ScanResult carrying either
// the FileInfo or a stat error.
func (s *Scanner) classify(root, rel string, maxSize int64) *ScanResult {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return &ScanResult{Error: fmt.Errorf("stat %s: %w", rel, err)}
	}
	if info.Size() > maxSize {
		return nil
	}

	lang := DetectLanguage(rel)
	if lang == "" {
		return nil
	}
	if isBinaryFile(abs) {
		return nil
	}

	return &ScanResult{File: &FileInfo{
		Path:        rel,
		AbsPath:     abs,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Language:    lang,
		ContentType: DetectContentType(lang),
		IsGenerated: isGeneratedFile(abs),
	}}
}

// shouldExcludeDir applies built-in and user directory exclusions to a
// slash-separated path relative to the scan root.
func (s *Scanner) shouldExcludeDir(rel string, opts *ScanOptions) bool {
	for _, pattern := range defaultExcludeDirs {
		if matchDirPattern(pattern, rel) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchDirPattern(pattern, rel) {
			return true
		}
	}
	return false
}

// shouldExcludeFile applies sensitive-file, built-in, user exclude,
// and include filtering to a slash-separated relative path.
func (s *Scanner) shouldExcludeFile(rel string, opts *ScanOptions) bool {
	base := path.Base(rel)
	for _, pattern := range sensitiveFilePatterns {
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	for _, pattern := range defaultExcludeFiles {
		if matchFilePattern(pattern, rel) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchFilePattern(pattern, rel) {
			return true
		}
	}
	if len(opts.IncludePatterns) > 0 {
		for _, pattern := range opts.IncludePatterns {
			if matchFilePattern(pattern, rel) {
				return false
			}
		}
		return true
	}
	return false
}

// matchDirPattern matches directory exclude patterns of the forms
// "**/name/**", "name/**", "path/to/dir", and "name" against a
// relative directory path. Bare names match any path component.
func matchDirPattern(pattern, rel string) bool {
	core := strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "/**")
	if core == "" {
		return false
	}
	if strings.Contains(core, "/") {
		if ok, _ := path.Match(core, rel); ok {
			return true
		}
		return strings.HasPrefix(rel, core+"/")
	}
	for _, part := range strings.Split(rel, "/") {
		if ok, _ := path.Match(core, part); ok {
			return true
		}
	}
	return false
}

// matchFilePattern matches file patterns of the forms "**/*.ext",
// "*.ext", "dir/**", and explicit relative globs against a relative
// file path.
func matchFilePattern(pattern, rel string) bool {
	if strings.HasSuffix(pattern, "/**") {
		return matchDirPattern(pattern, path.Dir(rel))
	}

	trimmed := strings.TrimPrefix(pattern, "**/")
	if !strings.Contains(trimmed, "/") {
		if ok, _ := path.Match(trimmed, path.Base(rel)); ok {
			return true
		}
		return false
	}
	if ok, _ := path.Match(trimmed, rel); ok {
		return true
	}
	return false
}

// isGitignored consults every .gitignore from the workspace root down
// to the entry's directory. Deeper negations overriding shallower
// rules are not modeled; any level that ignores the path wins.
func (s *Scanner) isGitignored(root, rel string, isDir bool) bool {
	prefixes := []string{""}
	if dir := path.Dir(rel); dir != "." {
		parts := strings.Split(dir, "/")
		for i := range parts {
			prefixes = append(prefixes, strings.Join(parts[:i+1], "/"))
		}
	}

	for _, prefix := range prefixes {
		m := s.matcherFor(filepath.Join(root, filepath.FromSlash(prefix)))
		if m.Len() == 0 {
			continue
		}
		sub := strings.TrimPrefix(strings.TrimPrefix(rel, prefix), "/")
		if m.Match(sub, isDir) {
			return true
		}
	}
	return false
}

// matcherFor returns the cached matcher for one directory, loading its
// .gitignore on first use. Directories without a .gitignore cache an
// empty matcher so the lookup stays cheap.
func (s *Scanner) matcherFor(absDir string) *gitignore.Matcher {
	if m, ok := s.gitignoreCache.Get(absDir); ok {
		return m
	}
	m, err := gitignore.NewFromFile(filepath.Join(absDir, ".gitignore"))
	if err != nil {
		m = gitignore.New()
	}
	s.gitignoreCache.Add(absDir, m)
	return m
}
