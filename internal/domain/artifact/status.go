package artifact

// Status tracks one artifact through the sync pipeline. Every artifact passes
// through AwaitingStaging before it can be Staged; Synced and SyncFailed are
// terminal.
type Status int

const (
	// StatusUnresolved means the artifact has been named but not processed yet.
	StatusUnresolved Status = iota
	// StatusAwaitingStaging means the run is blocked on the staging barrier.
	StatusAwaitingStaging
	// StatusStaged means the staging copy exists and the artifact is ready to sync.
	StatusStaged
	// StatusSynced means the destination copy is confirmed in place.
	StatusSynced
	// StatusSyncFailed means the copy to the destination failed.
	StatusSyncFailed
)

// String returns a stable lowercase label for logging.
func (s Status) String() string {
	switch s {
	case StatusUnresolved:
		return "unresolved"
	case StatusAwaitingStaging:
		return "awaiting-staging"
	case StatusStaged:
		return "staged"
	case StatusSynced:
		return "synced"
	case StatusSyncFailed:
		return "sync-failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status ends the pipeline for an artifact.
func (s Status) Terminal() bool {
	return s == StatusSynced || s == StatusSyncFailed
}
