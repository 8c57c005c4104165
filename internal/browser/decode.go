package browser

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event names on the bridge wire protocol.
const (
	evTabCreated    = "tab.created"
	evTabRemoved    = "tab.removed"
	evTabUpdated    = "tab.updated"
	evTabMoved      = "tab.moved"
	evTabAttached   = "tab.attached"
	evTabDetached   = "tab.detached"
	evGroupCreated  = "group.created"
	evGroupUpdated  = "group.updated"
	evGroupRemoved  = "group.removed"
	evGroupMoved    = "group.moved"
	evWindowRemoved = "window.removed"
)

// eventFrame is the envelope of a bridge event message. Exactly one payload
// subset is populated depending on Event.
type eventFrame struct {
	Event string `json:"event"`

	Tab   *Tab      `json:"tab,omitempty"`
	Group *TabGroup `json:"group,omitempty"`
	Delta *TabDelta `json:"change,omitempty"`

	TabID           int64 `json:"tabId,omitempty"`
	WindowID        int64 `json:"windowId,omitempty"`
	NewWindowID     int64 `json:"newWindowId,omitempty"`
	OldWindowID     int64 `json:"oldWindowId,omitempty"`
	ToIndex         int64 `json:"toIndex,omitempty"`
	IsWindowClosing bool  `json:"isWindowClosing,omitempty"`
}

// dispatchEvent decodes one event frame and invokes the matching handler
// method. Unknown events are reported as errors so protocol drift between
// the bridge extension and this client surfaces in logs instead of being
// silently dropped.
func dispatchEvent(ctx context.Context, data []byte, h Handler) error {
	var f eventFrame

	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("browser: decoding event frame: %w", err)
	}

	switch f.Event {
	case evTabCreated:
		if f.Tab == nil {
			return fmt.Errorf("browser: %s without tab payload", f.Event)
		}

		h.OnTabCreated(ctx, *f.Tab)

	case evTabRemoved:
		h.OnTabRemoved(ctx, f.TabID, f.WindowID, f.IsWindowClosing)

	case evTabUpdated:
		delta := TabDelta{}
		if f.Delta != nil {
			delta = *f.Delta
		}

		h.OnTabUpdated(ctx, f.TabID, f.WindowID, delta)

	case evTabMoved:
		h.OnTabMoved(ctx, f.TabID, f.WindowID, f.ToIndex)

	case evTabAttached:
		h.OnTabAttached(ctx, f.TabID, f.NewWindowID)

	case evTabDetached:
		h.OnTabDetached(ctx, f.TabID, f.OldWindowID)

	case evGroupCreated, evGroupUpdated, evGroupRemoved, evGroupMoved:
		if f.Group == nil {
			return fmt.Errorf("browser: %s without group payload", f.Event)
		}

		switch f.Event {
		case evGroupCreated:
			h.OnGroupCreated(ctx, *f.Group)
		case evGroupUpdated:
			h.OnGroupUpdated(ctx, *f.Group)
		case evGroupRemoved:
			h.OnGroupRemoved(ctx, *f.Group)
		case evGroupMoved:
			h.OnGroupMoved(ctx, *f.Group, f.ToIndex)
		}

	case evWindowRemoved:
		h.OnWindowRemoved(ctx, f.WindowID)

	default:
		return fmt.Errorf("browser: unknown event %q", f.Event)
	}

	return nil
}
