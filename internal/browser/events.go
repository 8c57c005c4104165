// Package browser defines the boundary to the live browser: the typed tab,
// group, and window event payloads produced by the extension bridge, the
// Snapshot capability for fetching full objects on demand, and a websocket
// client that consumes the bridge's event stream. Payloads are decoded into
// these types exactly once, at this boundary; nothing loosely typed crosses
// into the sync engine.
package browser

import "context"

// GroupNone is the live group id of an ungrouped tab.
const GroupNone int64 = -1

// Tab is a live browser tab as reported by the event source.
type Tab struct {
	ID       int64  `json:"id"`
	WindowID int64  `json:"windowId"`
	Index    int64  `json:"index"`
	GroupID  int64  `json:"groupId"` // GroupNone when ungrouped
	URL      string `json:"url"`
	Title    string `json:"title"`
	Favicon  string `json:"favIconUrl"`
	Pinned   bool   `json:"pinned"`
}

// TabGroup is a live browser tab-group.
type TabGroup struct {
	ID        int64  `json:"id"`
	WindowID  int64  `json:"windowId"`
	Title     string `json:"title"`
	Color     string `json:"color"`
	Collapsed bool   `json:"collapsed"`
}

// TabDelta carries only the fields that changed in a tab-updated event.
// Nil fields were not touched by the event.
type TabDelta struct {
	URL     *string `json:"url,omitempty"`
	Title   *string `json:"title,omitempty"`
	Favicon *string `json:"favIconUrl,omitempty"`
	Pinned  *bool   `json:"pinned,omitempty"`
	GroupID *int64  `json:"groupId,omitempty"`
}

// Empty reports whether the delta carries no changed fields.
func (d *TabDelta) Empty() bool {
	return d.URL == nil && d.Title == nil && d.Favicon == nil &&
		d.Pinned == nil && d.GroupID == nil
}

// Handler receives decoded browser events. Implementations must not panic
// and must not block for long; the client dispatches events serially from
// its read loop.
type Handler interface {
	OnTabCreated(ctx context.Context, tab Tab)
	OnTabRemoved(ctx context.Context, tabID, windowID int64, isWindowClosing bool)
	OnTabUpdated(ctx context.Context, tabID, windowID int64, delta TabDelta)
	OnTabMoved(ctx context.Context, tabID, windowID, toIndex int64)
	OnTabAttached(ctx context.Context, tabID, newWindowID int64)
	OnTabDetached(ctx context.Context, tabID, oldWindowID int64)
	OnGroupCreated(ctx context.Context, group TabGroup)
	OnGroupUpdated(ctx context.Context, group TabGroup)
	OnGroupRemoved(ctx context.Context, group TabGroup)
	OnGroupMoved(ctx context.Context, group TabGroup, toIndex int64)
	OnWindowRemoved(ctx context.Context, windowID int64)
}

// Snapshot fetches full tab or group objects by id on demand, used when an
// event carries only a partial payload (tab-attached, folder find-or-create).
type Snapshot interface {
	// Tab returns the live tab, or (nil, nil) if it no longer exists.
	Tab(ctx context.Context, tabID int64) (*Tab, error)
	// Group returns the live group, or (nil, nil) if it no longer exists.
	Group(ctx context.Context, groupID int64) (*TabGroup, error)
}
