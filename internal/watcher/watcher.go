package watcher

import (
	"time"
)

// Operation is a file system operation type.
type Operation int

const (
	// OpCreate is a new file or directory.
	OpCreate Operation = iota
	// OpModify is a change to an existing file.
	OpModify
	// OpDelete is a removed file or directory.
	OpDelete
	// OpRename is a renamed file or directory.
	OpRename
	// OpGitignoreChange is a modified .gitignore. The consumer should
	// reconcile the index against the new ignore rules.
	OpGitignoreChange
	// OpConfigChange is a modified .symdex.yaml.
	OpConfigChange
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	case OpGitignoreChange:
		return "GITIGNORE_CHANGE"
	case OpConfigChange:
		return "CONFIG_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed file system change.
type FileEvent struct {
	// Path is relative to the watched root.
	Path string

	// Operation is the change type.
	Operation Operation

	// IsDir reports whether the path is a directory.
	IsDir bool

	// Timestamp is when the event was observed.
	Timestamp time.Time
}

// Options configures a watcher.
type Options struct {
	// DebounceWindow is how long to coalesce events before emitting a
	// batch. Default 500ms.
	DebounceWindow time.Duration

	// EventBufferSize is the batch channel capacity. Default 1000.
	EventBufferSize int

	// IgnorePatterns are extra ignore rules in gitignore syntax,
	// applied on top of the workspace's .gitignore.
	IgnorePatterns []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		EventBufferSize: 1000,
	}
}

// WithDefaults fills zero values with defaults.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
