// SPDX-License-Identifier: MIT

package surface

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelcast/reelcast/internal/capture"
	"github.com/reelcast/reelcast/internal/log"
	"github.com/reelcast/reelcast/internal/metrics"
	"github.com/reelcast/reelcast/internal/recorder/model"
)

// DefaultRetryOffsets are the points after acquisition at which the
// classification metadata is re-checked; some platforms populate it late.
var DefaultRetryOffsets = []time.Duration{
	120 * time.Millisecond,
	450 * time.Millisecond,
	1000 * time.Millisecond,
}

// Config tunes a Detector.
type Config struct {
	RetryOffsets []time.Duration
	LabelRules   []LabelRule
}

// Detector runs one detection cycle per Begin call: an immediate check,
// timed re-checks, and re-checks on the track's mute/unmute transitions.
// A monotonically increasing version counter makes every continuation of a
// superseded cycle a no-op, so stale timers never mutate newer state.
type Detector struct {
	mu       sync.Mutex
	version  uint64
	current  model.SurfaceKind
	timers   []*time.Timer
	removers []func()

	offsets []time.Duration
	rules   []LabelRule
	logger  zerolog.Logger
}

// New builds a Detector with the given config; zero values get defaults.
func New(cfg Config) *Detector {
	offsets := cfg.RetryOffsets
	if offsets == nil {
		offsets = DefaultRetryOffsets
	}
	rules := cfg.LabelRules
	if rules == nil {
		rules = DefaultLabelRules
	}
	return &Detector{
		offsets: offsets,
		rules:   rules,
		logger:  log.WithComponent("surface"),
	}
}

// Begin starts a new detection cycle for track, superseding any previous
// cycle. onChange is invoked only when the classification differs from the
// current value.
func (d *Detector) Begin(track capture.Track, initial model.SurfaceKind, onChange func(model.SurfaceKind)) {
	d.mu.Lock()
	d.cancelLocked()
	d.version++
	v := d.version
	d.current = initial

	for _, offset := range d.offsets {
		timer := time.AfterFunc(offset, func() {
			d.attempt(v, track, onChange)
		})
		d.timers = append(d.timers, timer)
	}
	recheck := func() { d.attempt(v, track, onChange) }
	d.removers = append(d.removers, track.OnMute(recheck), track.OnUnmute(recheck))
	d.mu.Unlock()

	// Immediate check with whatever settings were available at acquisition.
	d.attempt(v, track, onChange)
}

// Cancel stops all pending timers and removes all listeners of the current
// cycle. Safe to call repeatedly and after the session ended.
func (d *Detector) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.version++
}

func (d *Detector) cancelLocked() {
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = nil
	for _, remove := range d.removers {
		remove()
	}
	d.removers = nil
}

// Current returns the latest classification of the active cycle.
func (d *Detector) Current() model.SurfaceKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *Detector) attempt(v uint64, track capture.Track, onChange func(model.SurfaceKind)) {
	// Snapshot outside the lock; Settings/Label may consult the platform.
	kind, ok := Classify(track.Settings(), track.Label(), d.rules)
	if !ok {
		return
	}

	d.mu.Lock()
	if v != d.version || kind == d.current {
		d.mu.Unlock()
		return
	}
	d.current = kind
	d.mu.Unlock()

	d.logger.Debug().Str(log.FieldSurface, string(kind)).Msg("capture surface reclassified")
	metrics.SurfaceDetections.WithLabelValues(string(kind)).Inc()
	if onChange != nil {
		onChange(kind)
	}
}
