// Package ui provides the key-toggled overlay registry for the viewer.
package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"
)

// OverlayID names a toggleable panel.
type OverlayID string

const (
	OverlayControls  OverlayID = "controls"
	OverlayThumbnail OverlayID = "thumbnail"
	OverlayDepthMap  OverlayID = "depth_map"
	OverlayLog       OverlayID = "log"
	OverlayHelp      OverlayID = "help"
)

// OverlayDescriptor describes a panel and the key that toggles it.
type OverlayDescriptor struct {
	ID          OverlayID
	Name        string
	Description string
	Key         int32  // 0 = no key
	KeyLabel    string // e.g. "Tab"
	Default     bool   // enabled at startup

	// Exclusive overlays are hidden when this one is shown. The corner
	// thumbnail slot and the right-hand text panel each hold one overlay.
	Exclusive []OverlayID
}

var defaultOverlays = []OverlayDescriptor{
	{
		ID:          OverlayControls,
		Name:        "Controls",
		Description: "Density, animation and point size controls",
		Key:         rl.KeyTab,
		KeyLabel:    "Tab",
		Default:     true,
	},
	{
		ID:          OverlayThumbnail,
		Name:        "Source Image",
		Description: "Thumbnail of the loaded image",
		Key:         rl.KeyT,
		KeyLabel:    "T",
		Default:     true,
		Exclusive:   []OverlayID{OverlayDepthMap},
	},
	{
		ID:          OverlayDepthMap,
		Name:        "Depth Map",
		Description: "Estimated depth of the loaded image (white = near)",
		Key:         rl.KeyM,
		KeyLabel:    "M",
		Exclusive:   []OverlayID{OverlayThumbnail},
	},
	{
		ID:          OverlayLog,
		Name:        "Event Log",
		Description: "Recent session events",
		Key:         rl.KeyL,
		KeyLabel:    "L",
		Exclusive:   []OverlayID{OverlayHelp},
	},
	{
		ID:          OverlayHelp,
		Name:        "Help",
		Description: "Key bindings",
		Key:         rl.KeyH,
		KeyLabel:    "H",
		Exclusive:   []OverlayID{OverlayLog},
	},
}

// OverlayRegistry tracks which overlays are shown. It is used from the
// render goroutine only.
type OverlayRegistry struct {
	overlays []OverlayDescriptor
	index    map[OverlayID]int
	enabled  map[OverlayID]bool
}

// NewOverlayRegistry returns a registry holding the viewer's overlays in
// their startup state.
func NewOverlayRegistry() *OverlayRegistry {
	r := &OverlayRegistry{
		index:   make(map[OverlayID]int, len(defaultOverlays)),
		enabled: make(map[OverlayID]bool, len(defaultOverlays)),
	}
	for _, d := range defaultOverlays {
		r.Register(d)
	}
	return r
}

// Register adds d, replacing any overlay with the same ID in place.
func (r *OverlayRegistry) Register(d OverlayDescriptor) {
	if i, ok := r.index[d.ID]; ok {
		r.overlays[i] = d
	} else {
		r.index[d.ID] = len(r.overlays)
		r.overlays = append(r.overlays, d)
	}
	r.enabled[d.ID] = d.Default
}

// Toggle flips id and returns its new state. Unknown IDs stay off.
func (r *OverlayRegistry) Toggle(id OverlayID) bool {
	if _, ok := r.index[id]; !ok {
		return false
	}
	on := !r.enabled[id]
	r.SetEnabled(id, on)
	return on
}

// SetEnabled shows or hides id. Showing it hides its exclusive overlays;
// hiding it leaves them alone.
func (r *OverlayRegistry) SetEnabled(id OverlayID, on bool) {
	i, ok := r.index[id]
	if !ok {
		return
	}
	r.enabled[id] = on
	if !on {
		return
	}
	for _, other := range r.overlays[i].Exclusive {
		r.enabled[other] = false
	}
}

// IsEnabled reports whether id is shown.
func (r *OverlayRegistry) IsEnabled(id OverlayID) bool {
	return r.enabled[id]
}

// All returns every overlay in registration order.
func (r *OverlayRegistry) All() []OverlayDescriptor {
	return r.overlays
}

// HandleKeyPress toggles the overlay bound to key. ok is false when no
// overlay uses the key.
func (r *OverlayRegistry) HandleKeyPress(key int32) (id OverlayID, on, ok bool) {
	if key == 0 {
		return "", false, false
	}
	for _, d := range r.overlays {
		if d.Key == key {
			return d.ID, r.Toggle(d.ID), true
		}
	}
	return "", false, false
}

// EnabledOverlays returns the shown overlays in registration order, which
// is also their draw order.
func (r *OverlayRegistry) EnabledOverlays() []OverlayID {
	out := make([]OverlayID, 0, len(r.overlays))
	for _, d := range r.overlays {
		if r.enabled[d.ID] {
			out = append(out, d.ID)
		}
	}
	return out
}
