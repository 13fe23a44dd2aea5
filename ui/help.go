package ui

import (
	"fmt"
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// KeyBinding is a non-overlay key listed in the help panel.
type KeyBinding struct {
	Label  string
	Action string
}

// ViewerKeys lists the viewer's fixed key bindings.
var ViewerKeys = []KeyBinding{
	{"Drag", "orbit"},
	{"Wheel, +/-", "zoom"},
	{"Home", "reset view"},
	{"Space", "pause animation"},
	{"E", "export PLY snapshot"},
	{"F9", "simulate graphics context loss / restore"},
	{"F11", "fullscreen"},
}

// HelpLines formats the overlay toggles followed by the fixed bindings.
func HelpLines(r *OverlayRegistry, keys []KeyBinding) []string {
	lines := make([]string, 0, len(r.overlays)+len(keys))
	for _, desc := range r.overlays {
		if desc.Key == 0 {
			continue
		}
		state := "off"
		if r.IsEnabled(desc.ID) {
			state = "on"
		}
		lines = append(lines, fmt.Sprintf("%-10s %s (%s)", desc.KeyLabel, desc.Name, state))
	}
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%-10s %s", k.Label, k.Action))
	}
	return lines
}

// DrawHelp draws the help panel with its top-left corner at (x, y).
func DrawHelp(x, y int32, r *OverlayRegistry, bg, text, border color.RGBA) {
	lines := HelpLines(r, ViewerKeys)
	const lineH = 18
	w := int32(360)
	h := int32(len(lines)*lineH + 16)

	bg.A = 230
	rl.DrawRectangle(x, y, w, h, bg)
	rl.DrawRectangleLines(x, y, w, h, border)
	for i, line := range lines {
		rl.DrawText(line, x+10, y+8+int32(i*lineH), 14, text)
	}
}
