package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// CheckStatus is the outcome of one health check.
type CheckStatus int

const (
	// StatusPass means the check passed.
	StatusPass CheckStatus = iota
	// StatusWarn means degraded but usable.
	StatusWarn
	// StatusFail means the workspace cannot be used.
	StatusFail
)

// String returns PASS, WARN, or FAIL.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult is one health check outcome.
type CheckResult struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
}

// minDiskSpaceBytes is the free space below which indexing fails (100MB).
const minDiskSpaceBytes = 100 * 1024 * 1024

// CheckHealth verifies a workspace is usable before indexing: the root
// is readable, the data directory is writable, and the disk has room
// for the index.
func CheckHealth(ws Descriptor, layout Layout) []CheckResult {
	return []CheckResult{
		checkRoot(ws),
		checkDataDir(layout),
		checkDiskSpace(layout.DataDir),
	}
}

// Healthy reports whether no check failed.
func Healthy(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusFail {
			return false
		}
	}
	return true
}

func checkRoot(ws Descriptor) CheckResult {
	result := CheckResult{Name: "workspace_root"}

	info, err := os.Stat(ws.Root)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot access %s: %v", ws.Root, err)
		return result
	}
	if !info.IsDir() {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not a directory", ws.Root)
		return result
	}

	result.Status = StatusPass
	result.Message = ws.Root
	return result
}

func checkDataDir(layout Layout) CheckResult {
	result := CheckResult{Name: "data_dir"}

	if err := layout.EnsureDataDir(); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", layout.DataDir, err)
		return result
	}

	probe := filepath.Join(layout.DataDir, ".write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not writable: %v", layout.DataDir, err)
		return result
	}
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = layout.DataDir
	return result
}

func checkDiskSpace(path string) CheckResult {
	result := CheckResult{Name: "disk_space"}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		// Unknown free space is a warning, not a failure; some
		// filesystems cannot report it.
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot check disk space: %v", err)
		return result
	}

	available := stat.Bavail * uint64(stat.Bsize)
	if available < minDiskSpaceBytes {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s free (minimum 100 MB)", formatBytes(available))
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s free", formatBytes(available))
	return result
}

func formatBytes(bytes uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
