// Package engine implements the progressive synchronization engine: a
// debounced, coalescing change-queue per tracked collection, the settings
// cache that gates which browser windows are tracked, and the flush engine
// that applies queued changes to the storage layer and recomputes aggregate
// counts. The engine is an explicitly constructed, lifecycle-scoped object so
// multiple instances can be tested in isolation and torn down
// deterministically.
package engine

// ChangeType is the closed set of queueable mutations. Payloads are decoded
// at the browser event boundary; each variant carries exactly one of the
// typed payloads below.
type ChangeType int

const (
	ChangeTabCreated ChangeType = iota
	ChangeTabRemoved
	ChangeTabUpdated
	ChangeTabMoved
	ChangeFolderCreated
	ChangeFolderUpdated
	ChangeFolderRemoved
	ChangeFolderMoved
)

// String returns the change type name used in logs.
func (t ChangeType) String() string {
	switch t {
	case ChangeTabCreated:
		return "tab-created"
	case ChangeTabRemoved:
		return "tab-removed"
	case ChangeTabUpdated:
		return "tab-updated"
	case ChangeTabMoved:
		return "tab-moved"
	case ChangeFolderCreated:
		return "folder-created"
	case ChangeFolderUpdated:
		return "folder-updated"
	case ChangeFolderRemoved:
		return "folder-removed"
	case ChangeFolderMoved:
		return "folder-moved"
	default:
		return "unknown"
	}
}

// TabChange is the payload of a tab-scoped change. Nil fields were not
// touched by the originating event; the merge rules rely on that.
type TabChange struct {
	TabID    int64
	WindowID int64

	Index   *int64
	GroupID *int64 // browser.GroupNone means ungrouped
	URL     *string
	Title   *string
	Favicon *string
	Pinned  *bool
}

// merge overlays the newer change's set fields onto t, preserving fields the
// newer event did not touch. This is what keeps an earlier title change alive
// when a later event only carries a URL change.
func (t *TabChange) merge(newer *TabChange) {
	if newer.Index != nil {
		t.Index = newer.Index
	}

	if newer.GroupID != nil {
		t.GroupID = newer.GroupID
	}

	if newer.URL != nil {
		t.URL = newer.URL
	}

	if newer.Title != nil {
		t.Title = newer.Title
	}

	if newer.Favicon != nil {
		t.Favicon = newer.Favicon
	}

	if newer.Pinned != nil {
		t.Pinned = newer.Pinned
	}
}

// FolderChange is the payload of a folder-scoped change, keyed by the live
// browser group id.
type FolderChange struct {
	GroupID  int64
	WindowID int64

	Name      *string
	Color     *string
	Collapsed *bool
	Index     *int64
}

// pendingChange is one queued mutation. Key is the live tab id for tab
// changes and the live group id for folder changes.
type pendingChange struct {
	Type   ChangeType
	Key    int64
	Tab    *TabChange
	Folder *FolderChange
}

// SyncStatus is the per-collection sync metadata exposed to callers.
type SyncStatus struct {
	LastSyncTime   int64 // Unix nanoseconds; zero if never flushed
	PendingChanges int
}

// --- small pointer helpers for building change payloads ---

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func boolPtr(b bool) *bool { return &b }
