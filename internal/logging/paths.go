package logging

import (
	"os"
	"path/filepath"
)

// logFileName is the base name of the engine log file.
const logFileName = "symdex.log"

// LogPath returns the log file path inside a workspace data directory.
func LogPath(dataDir string) string {
	return filepath.Join(dataDir, "logs", logFileName)
}

// DefaultLogPath returns the fallback log path used before a workspace
// is resolved (~/.symdex/logs/symdex.log, or the temp dir without a home).
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".symdex", "logs", logFileName)
	}
	return filepath.Join(home, ".symdex", "logs", logFileName)
}
