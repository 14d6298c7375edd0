// SPDX-License-Identifier: MIT

// Package surface classifies which kind of capture surface the platform
// actually granted, which may differ from what was requested.
package surface

import (
	"strings"

	"github.com/reelcast/reelcast/internal/capture"
	"github.com/reelcast/reelcast/internal/recorder/model"
)

// surfaceTypes maps the platform's structured surface field to a kind.
var surfaceTypes = map[string]model.SurfaceKind{
	"monitor": model.SurfaceFullscreen,
	"window":  model.SurfaceWindow,
	"browser": model.SurfaceTab,
}

// LabelRule matches a case-insensitive substring of a track label.
type LabelRule struct {
	Substring string
	Kind      model.SurfaceKind
}

// DefaultLabelRules is the fallback heuristic for platforms that do not
// populate the structured surface field. The table is best-effort and
// platform-dependent; callers may supply their own via Config.LabelRules.
var DefaultLabelRules = []LabelRule{
	{Substring: "screen", Kind: model.SurfaceFullscreen},
	{Substring: "display", Kind: model.SurfaceFullscreen},
	{Substring: "monitor", Kind: model.SurfaceFullscreen},
	{Substring: "window", Kind: model.SurfaceWindow},
	{Substring: "application", Kind: model.SurfaceWindow},
	{Substring: "tab", Kind: model.SurfaceTab},
	{Substring: "browser", Kind: model.SurfaceTab},
}

// Classify inspects a settings snapshot and label. The structured surface
// field wins; label substrings are the fallback. ok is false when nothing
// matched, in which case the previous classification stands.
func Classify(settings capture.Settings, label string, rules []LabelRule) (kind model.SurfaceKind, ok bool) {
	if k, found := surfaceTypes[strings.ToLower(settings.DisplaySurface)]; found {
		return k, true
	}
	lower := strings.ToLower(label)
	for _, rule := range rules {
		if strings.Contains(lower, strings.ToLower(rule.Substring)) {
			return rule.Kind, true
		}
	}
	return model.SurfaceUnknown, false
}

// InitialGuess maps the requested mode to the kind assumed until detection
// says otherwise. Camera mode is known a priori and skips detection.
func InitialGuess(mode capture.Mode) model.SurfaceKind {
	switch mode {
	case capture.ModeCamera:
		return model.SurfaceCamera
	case capture.ModeFullscreen:
		return model.SurfaceFullscreen
	case capture.ModeWindow:
		return model.SurfaceWindow
	case capture.ModeTab:
		return model.SurfaceTab
	}
	return model.SurfaceUnknown
}
