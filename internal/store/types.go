// Package store implements the durable, transactional persistence layer for
// tab collections. It manages an embedded SQLite database with four logical
// stores (collections, folders, tabs, tasks), each with secondary indexes,
// and provides atomic multi-store transactions, index-based lookups, and a
// distinguished quota-error taxonomy.
package store

import "time"

// Collection is a logical workspace: a named group of folders and tabs,
// optionally bound to a live browser window.
type Collection struct {
	ID       string
	Name     string
	IsActive bool   // bound to a live window vs. dormant/saved
	WindowID *int64 // set iff IsActive

	Tags []string // stored as a JSON array, queried multi-valued

	// Per-collection tracking settings.
	TrackingEnabled bool
	SyncDebounceMs  int64
	AutoSync        bool

	// Metadata, maintained by the sync engine.
	CreatedAt    int64 // Unix nanoseconds
	LastAccessed int64 // Unix nanoseconds
	TabCount     int64 // recomputed after every flush, never incremented
	FolderCount  int64
}

// Debounce returns the collection's sync debounce interval as a Duration,
// or fallback if the collection has no interval configured.
func (c *Collection) Debounce(fallback time.Duration) time.Duration {
	if c.SyncDebounceMs <= 0 {
		return fallback
	}

	return time.Duration(c.SyncDebounceMs) * time.Millisecond
}

// Folder represents a browser tab-group inside a collection. Every folder
// belongs to exactly one collection.
type Folder struct {
	ID           string
	CollectionID string
	Name         string
	Color        string
	Collapsed    bool
	Position     int64
	GroupID      *int64 // live browser tab-group id, meaningful only while active
}

// Tab is a persisted snapshot of a browser tab's identity and content.
// FolderID is nil for ungrouped tabs; CollectionID is always set so that
// ungrouped tabs keep window-level ordering.
type Tab struct {
	ID           string
	CollectionID string
	FolderID     *string
	URL          string
	Title        string
	Favicon      string
	Note         string
	Position     int64
	IsPinned     bool
	TabID        *int64 // live browser tab id, used for event correlation while active
}

// Task statuses as stored in the tasks.status column.
const (
	TaskStatusOpen = "open"
	TaskStatusDone = "done"
)

// Task is a to-do item optionally associated with a collection and a set of
// tab references. Tasks are not touched by the live sync path; they share the
// database so multi-store transactions and quota handling cover them too.
type Task struct {
	ID           string
	CollectionID *string
	Title        string
	Note         string
	Status       string
	Priority     string
	DueDate      *int64 // Unix nanoseconds
	Tags         []string
	TabRefs      []string // tab record ids, stored as a JSON array
	CreatedAt    int64    // Unix nanoseconds
}

// DBStats holds the aggregate counts returned by Stats, computed inside a
// single read transaction for consistency.
type DBStats struct {
	ActiveCollections int64
	SavedCollections  int64
	Folders           int64
	Tabs              int64
	TasksByStatus     map[string]int64
}

// NowNano returns the current time as Unix nanoseconds. All internal
// timestamps use int64 Unix nanoseconds; conversion happens at boundaries.
func NowNano() int64 {
	return time.Now().UnixNano()
}
