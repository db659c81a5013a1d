package workspace

import (
	"os"
	"path/filepath"
)

// DataDirName is the directory symdex keeps under the primary
// workspace root.
const DataDirName = ".symdex"

// Layout maps workspace ids to their storage locations under one data
// directory. The primary workspace's store lives at a distinguished
// path; every reference workspace gets its own directory under
// indexes/ keyed by workspace id.
type Layout struct {
	// DataDir is the absolute path of the data directory, normally
	// {primary_root}/.symdex.
	DataDir string
}

// NewLayout returns the layout rooted at the primary workspace.
func NewLayout(primaryRoot string) Layout {
	return Layout{DataDir: filepath.Join(primaryRoot, DataDirName)}
}

// PrimaryStorePath is the primary workspace's SQLite database.
func (l Layout) PrimaryStorePath() string {
	return filepath.Join(l.DataDir, "db", "symbols.db")
}

// ReferenceStorePath is a reference workspace's SQLite database.
func (l Layout) ReferenceStorePath(workspaceID string) string {
	return filepath.Join(l.IndexDir(workspaceID), "db", "symbols.db")
}

// StorePath routes a descriptor to its database path.
func (l Layout) StorePath(ws Descriptor) string {
	if ws.Kind == KindPrimary {
		return l.PrimaryStorePath()
	}
	return l.ReferenceStorePath(ws.ID)
}

// IndexDir is the per-workspace directory holding everything derived
// from one workspace's tree.
func (l Layout) IndexDir(workspaceID string) string {
	return filepath.Join(l.DataDir, "indexes", workspaceID)
}

// VectorsPath is where a workspace's HNSW graph is cached.
func (l Layout) VectorsPath(workspaceID string) string {
	return filepath.Join(l.IndexDir(workspaceID), "vectors", "graph.hnsw")
}

// BleveIndexPath is where the optional bleve text index lives.
func (l Layout) BleveIndexPath(workspaceID string) string {
	return filepath.Join(l.IndexDir(workspaceID), "bleve")
}

// RegistryPath is the workspace registry file.
func (l Layout) RegistryPath() string {
	return filepath.Join(l.DataDir, "workspace_registry.json")
}

// LockPath is the cross-process indexing lock for one workspace.
func (l Layout) LockPath(workspaceID string) string {
	return filepath.Join(l.IndexDir(workspaceID), "index.lock")
}

// EnsureDataDir creates the data directory if needed.
func (l Layout) EnsureDataDir() error {
	return os.MkdirAll(l.DataDir, 0o755)
}

// RemoveIndex deletes everything stored for one workspace id. Used by
// registry cleanup when a reference workspace expires.
func (l Layout) RemoveIndex(workspaceID string) error {
	if workspaceID == "" {
		return nil
	}
	return os.RemoveAll(l.IndexDir(workspaceID))
}

// IndexSize reports the total on-disk size of one workspace's index in
// bytes. Missing directories count as zero.
func (l Layout) IndexSize(workspaceID string) int64 {
	var total int64
	_ = filepath.Walk(l.IndexDir(workspaceID), func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
