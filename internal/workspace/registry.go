package workspace

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	symerrors "github.com/symdex-dev/symdex/internal/errors"
)

// registryVersion is stored in the registry file for future migrations.
const registryVersion = 1

// Entry is one registered workspace with its retention metadata.
type Entry struct {
	ID           string     `json:"id"`
	Root         string     `json:"root"`
	Kind         Kind       `json:"kind"`
	CreatedAt    time.Time  `json:"created_at"`
	LastAccessed time.Time  `json:"last_accessed"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	FileCount    int        `json:"file_count"`
	SymbolCount  int        `json:"symbol_count"`
}

// Stats summarizes the registry for status reporting.
type Stats struct {
	Primary        *Entry  `json:"primary,omitempty"`
	ReferenceCount int     `json:"reference_count"`
	TotalFiles     int     `json:"total_files"`
	TotalSymbols   int     `json:"total_symbols"`
	IndexSizeBytes int64   `json:"index_size_bytes"`
	Entries        []Entry `json:"entries"`
}

// registryFile is the persisted form.
type registryFile struct {
	Version    int              `json:"version"`
	UpdatedAt  time.Time        `json:"updated_at"`
	Primary    *Entry           `json:"primary,omitempty"`
	References map[string]Entry `json:"references"`
}

// Registry tracks the primary workspace and every registered reference
// workspace, persisted as JSON in the data directory. The primary
// never expires; reference entries carry a TTL refreshed on access.
type Registry struct {
	mu           sync.RWMutex
	layout       Layout
	referenceTTL time.Duration
	logger       *slog.Logger

	primary    *Entry
	references map[string]*Entry
}

// OpenRegistry loads the registry from the layout's data directory,
// creating an empty one when no file exists yet.
func OpenRegistry(layout Layout, referenceTTL time.Duration, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		layout:       layout,
		referenceTTL: referenceTTL,
		logger:       logger,
		references:   make(map[string]*Entry),
	}

	data, err := os.ReadFile(layout.RegistryPath())
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, symerrors.New(symerrors.ErrCodeStoreIO, "cannot read workspace registry", err)
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		// A corrupt registry is rebuilt from scratch; the indexes on
		// disk are the real data and re-registration restores entries.
		logger.Warn("workspace_registry_corrupt",
			slog.String("path", layout.RegistryPath()),
			slog.String("error", err.Error()))
		return r, nil
	}

	r.primary = file.Primary
	for id, entry := range file.References {
		e := entry
		r.references[id] = &e
	}
	return r, nil
}

// save writes the registry atomically via temp file and rename.
// Caller holds the write lock.
func (r *Registry) save() error {
	if err := r.layout.EnsureDataDir(); err != nil {
		return symerrors.New(symerrors.ErrCodeStoreIO, "cannot create data directory", err)
	}

	file := registryFile{
		Version:    registryVersion,
		UpdatedAt:  time.Now().UTC(),
		Primary:    r.primary,
		References: make(map[string]Entry, len(r.references)),
	}
	for id, entry := range r.references {
		file.References[id] = *entry
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return symerrors.New(symerrors.ErrCodeInternal, "cannot encode workspace registry", err)
	}

	path := r.layout.RegistryPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return symerrors.New(symerrors.ErrCodeStoreIO, "cannot write workspace registry", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return symerrors.New(symerrors.ErrCodeStoreIO, "cannot replace workspace registry", err)
	}
	return nil
}

// RegisterPrimary records root as the primary workspace. Registering a
// different root than the current primary is an error: one primary
// exists per instance.
func (r *Registry) RegisterPrimary(root string) (Descriptor, error) {
	ws, err := Resolve(root, KindPrimary)
	if err != nil {
		return Descriptor{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.primary != nil && r.primary.ID != ws.ID {
		return Descriptor{}, symerrors.New(symerrors.ErrCodeInvalidInput,
			fmt.Sprintf("primary workspace already registered as %s", r.primary.Root), nil)
	}

	now := time.Now().UTC()
	if r.primary == nil {
		r.primary = &Entry{ID: ws.ID, Root: ws.Root, Kind: KindPrimary, CreatedAt: now}
	}
	r.primary.LastAccessed = now

	if err := r.save(); err != nil {
		return Descriptor{}, err
	}
	return ws, nil
}

// RegisterReference records root as a reference workspace, refreshing
// its TTL when it already exists.
func (r *Registry) RegisterReference(root string) (Descriptor, error) {
	ws, err := Resolve(root, KindReference)
	if err != nil {
		return Descriptor{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.primary != nil && r.primary.ID == ws.ID {
		// The primary indexed as a reference would split one logical
		// workspace across two stores.
		return Descriptor{ID: ws.ID, Root: ws.Root, Kind: KindPrimary}, nil
	}

	now := time.Now().UTC()
	entry, ok := r.references[ws.ID]
	if !ok {
		entry = &Entry{ID: ws.ID, Root: ws.Root, Kind: KindReference, CreatedAt: now}
		r.references[ws.ID] = entry
	}
	entry.LastAccessed = now
	if r.referenceTTL > 0 {
		expires := now.Add(r.referenceTTL)
		entry.ExpiresAt = &expires
	}

	if err := r.save(); err != nil {
		return Descriptor{}, err
	}
	return ws, nil
}

// Lookup returns the registered descriptor for a workspace id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.primary != nil && r.primary.ID == id {
		return Descriptor{ID: id, Root: r.primary.Root, Kind: KindPrimary}, true
	}
	if entry, ok := r.references[id]; ok {
		return Descriptor{ID: id, Root: entry.Root, Kind: KindReference}, true
	}
	return Descriptor{}, false
}

// Primary returns the registered primary descriptor, if any.
func (r *Registry) Primary() (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.primary == nil {
		return Descriptor{}, false
	}
	return Descriptor{ID: r.primary.ID, Root: r.primary.Root, Kind: KindPrimary}, true
}

// Touch refreshes a reference workspace's TTL. Touching the primary or
// an unknown id is a no-op.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.references[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	entry.LastAccessed = now
	if r.referenceTTL > 0 {
		expires := now.Add(r.referenceTTL)
		entry.ExpiresAt = &expires
	}
	if err := r.save(); err != nil {
		r.logger.Warn("workspace_registry_save_failed", slog.String("error", err.Error()))
	}
}

// UpdateCounts records the file and symbol counts from the latest
// index pass for status reporting.
func (r *Registry) UpdateCounts(id string, files, symbols int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var entry *Entry
	switch {
	case r.primary != nil && r.primary.ID == id:
		entry = r.primary
	default:
		entry = r.references[id]
	}
	if entry == nil {
		return
	}
	entry.FileCount = files
	entry.SymbolCount = symbols
	if err := r.save(); err != nil {
		r.logger.Warn("workspace_registry_save_failed", slog.String("error", err.Error()))
	}
}

// CleanupExpired removes reference workspaces whose TTL has passed,
// deleting their index directories. The primary is never touched.
// Per-workspace removal failures are logged and skipped. Returns the
// ids that were removed.
func (r *Registry) CleanupExpired(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, entry := range r.references {
		if entry.ExpiresAt == nil || entry.ExpiresAt.After(now) {
			continue
		}
		if err := r.layout.RemoveIndex(id); err != nil {
			r.logger.Warn("workspace_cleanup_failed",
				slog.String("workspace", id),
				slog.String("error", err.Error()))
			continue
		}
		delete(r.references, id)
		removed = append(removed, id)
		r.logger.Info("workspace_expired_removed",
			slog.String("workspace", id),
			slog.String("root", entry.Root))
	}

	if len(removed) > 0 {
		if err := r.save(); err != nil {
			r.logger.Warn("workspace_registry_save_failed", slog.String("error", err.Error()))
		}
	}
	return removed
}

// Stats reports registry-wide statistics, including on-disk index
// sizes.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{ReferenceCount: len(r.references)}
	if r.primary != nil {
		p := *r.primary
		stats.Primary = &p
		stats.TotalFiles += p.FileCount
		stats.TotalSymbols += p.SymbolCount
		stats.Entries = append(stats.Entries, p)
	}
	for _, entry := range r.references {
		stats.TotalFiles += entry.FileCount
		stats.TotalSymbols += entry.SymbolCount
		stats.IndexSizeBytes += r.layout.IndexSize(entry.ID)
		stats.Entries = append(stats.Entries, *entry)
	}
	return stats
}
