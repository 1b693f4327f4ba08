// Package mixer auditions ledger tracks with independent per-track gain.
// The engine exclusively owns a table of voices, creates playback handles
// lazily on first play and guarantees that at most one voice is playing.
package mixer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"dieter/pkg/models"

	"github.com/sirupsen/logrus"
)

// DefaultGain is the gain a voice starts with when none has been set
const DefaultGain = 80

var (
	ErrUnknownTrack   = errors.New("track does not exist")
	ErrGainOutOfRange = errors.New("gain must be between 0 and 100")
	ErrPlaybackFailed = errors.New("playback failed")
	ErrEngineClosed   = errors.New("mixer session has ended")
)

// TrackSource resolves track ids to tracks; the ledger satisfies it
type TrackSource interface {
	Track(id string) (models.Track, bool)
}

// RemovalNotifier announces tracks leaving the ledger
type RemovalNotifier interface {
	OnTrackRemoved(fn func(id string))
}

// Options configures an Engine
type Options struct {
	DefaultGain int
	Logger      *logrus.Logger
}

// Engine is a mixer session
type Engine struct {
	mu          sync.Mutex
	tracks      TrackSource
	factory     HandleFactory
	logger      *logrus.Logger
	defaultGain int

	voices  map[string]*voice
	current string
	closed  bool

	listeners []chan Event
}

// NewEngine creates a mixer session reading tracks from tracks
func NewEngine(tracks TrackSource, factory HandleFactory, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	gain := opts.DefaultGain
	if gain < 0 || gain > 100 {
		gain = DefaultGain
	}
	return &Engine{
		tracks:      tracks,
		factory:     factory,
		logger:      logger,
		defaultGain: gain,
		voices:      make(map[string]*voice),
	}
}

// Watch subscribes the engine to track removals so orphaned voices are
// stopped and discarded
func (e *Engine) Watch(n RemovalNotifier) {
	n.OnTrackRemoved(e.TrackRemoved)
}

// Play toggles a track. A playing track is paused; otherwise the currently
// playing voice (if any) is paused and this track starts. Handles that
// implement Loader are loaded outside the engine lock; pausing the previous
// voice and starting this one is always a single step under the lock.
func (e *Engine) Play(ctx context.Context, trackID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}

	track, ok := e.tracks.Track(trackID)
	if !ok {
		// A voice may outlive its track until the removal notice lands
		e.discardLocked(trackID)
		return fmt.Errorf("%w: %s", ErrUnknownTrack, trackID)
	}

	v := e.voices[trackID]
	if v != nil && v.state == Playing {
		v.handle.Pause()
		v.state = Paused
		e.current = ""
		e.emitLocked(EventState, v, "")
		return nil
	}

	if v == nil {
		v = &voice{trackID: trackID, gain: e.defaultGain}
		e.voices[trackID] = v
	}
	if v.handle == nil {
		v.gen++
		gen := v.gen
		handle, err := e.factory.NewHandle(track.AudioURL, func() { e.handleEnded(trackID, gen) })
		if err != nil {
			return e.failLocked(v, err)
		}
		v.handle = handle
	}

	if loader, ok := v.handle.(Loader); ok {
		handle := v.handle
		v.starting = true

		e.mu.Unlock()
		loadErr := loader.Load(ctx)
		e.mu.Lock()

		if e.closed {
			return ErrEngineClosed
		}
		if _, ok := e.tracks.Track(trackID); !ok {
			e.discardLocked(trackID)
			return fmt.Errorf("%w: %s", ErrUnknownTrack, trackID)
		}
		if e.voices[trackID] != v || v.handle != handle || !v.starting {
			// Stopped, paused or replaced while loading
			e.logger.WithField("track_id", trackID).Debug("Voice changed while loading, not starting")
			return nil
		}
		v.starting = false
		if v.state == Playing {
			return nil
		}
		if loadErr != nil {
			return e.failLocked(v, loadErr)
		}
	}

	return e.startLocked(ctx, v, track)
}

// startLocked pauses the previously playing voice and starts v
func (e *Engine) startLocked(ctx context.Context, v *voice, track models.Track) error {
	if e.current != "" && e.current != v.trackID {
		if prev := e.voices[e.current]; prev != nil && prev.state == Playing {
			prev.handle.Pause()
			prev.state = Paused
			e.emitLocked(EventState, prev, "")
		}
	}
	e.current = ""

	v.handle.SetVolume(float64(v.gain) / 100)
	if err := v.handle.Play(ctx); err != nil {
		return e.failLocked(v, err)
	}

	v.state = Playing
	e.current = v.trackID
	e.emitLocked(EventState, v, "")

	e.logger.WithFields(logrus.Fields{
		"track_id": v.trackID,
		"title":    track.Title,
		"gain":     v.gain,
	}).Debug("Voice playing")
	return nil
}

// Pause pauses a playing track; anything else is a no-op
func (e *Engine) Pause(trackID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.voices[trackID]
	if v == nil {
		return
	}
	// A pause during loading cancels the pending start
	v.starting = false
	if v.state != Playing {
		return
	}
	v.handle.Pause()
	v.state = Paused
	if e.current == trackID {
		e.current = ""
	}
	e.emitLocked(EventState, v, "")
}

// Stop releases a track's handle and returns it to Idle. The gain is kept.
func (e *Engine) Stop(trackID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.voices[trackID]
	if v == nil || v.handle == nil {
		return
	}
	v.handle.Close()
	v.handle = nil
	v.gen++
	v.state = Idle
	if e.current == trackID {
		e.current = ""
	}
	e.emitLocked(EventState, v, "")
}

// SetGain stores a gain in [0,100] for a track and applies it to a live
// handle without interrupting playback
func (e *Engine) SetGain(trackID string, value int) error {
	if value < 0 || value > 100 {
		return fmt.Errorf("%w: got %d", ErrGainOutOfRange, value)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if _, ok := e.tracks.Track(trackID); !ok {
		e.discardLocked(trackID)
		return fmt.Errorf("%w: %s", ErrUnknownTrack, trackID)
	}

	v := e.voices[trackID]
	if v == nil {
		v = &voice{trackID: trackID, gain: e.defaultGain}
		e.voices[trackID] = v
	}
	v.gain = value
	if v.handle != nil {
		v.handle.SetVolume(float64(value) / 100)
	}
	e.emitLocked(EventGain, v, "")
	return nil
}

// Gain returns the stored gain for a track, or the default
func (e *Engine) Gain(trackID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v := e.voices[trackID]; v != nil {
		return v.gain
	}
	return e.defaultGain
}

// State returns the playback state of a track
func (e *Engine) State(trackID string) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v := e.voices[trackID]; v != nil {
		return v.state
	}
	return Idle
}

// Playing returns the id of the playing track, if any
func (e *Engine) Playing() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.current, e.current != ""
}

// Voices returns the status of every known voice ordered by track id
func (e *Engine) Voices() []VoiceStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]VoiceStatus, 0, len(e.voices))
	for _, v := range e.voices {
		status := VoiceStatus{
			TrackID: v.trackID,
			State:   v.state,
			Gain:    v.gain,
			Loaded:  v.handle != nil,
		}
		if p, ok := v.handle.(Positioner); ok {
			status.Position = p.Position().Seconds()
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackID < out[j].TrackID })
	return out
}

// TrackRemoved stops and discards the voice of a track that left the ledger
func (e *Engine) TrackRemoved(trackID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.voices[trackID] == nil {
		return
	}
	e.discardLocked(trackID)
	e.logger.WithField("track_id", trackID).Debug("Discarded orphaned voice")
}

// Close ends the session: every handle is released and subscribers are closed
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	for id, v := range e.voices {
		if v.handle != nil {
			v.handle.Close()
		}
		delete(e.voices, id)
	}
	e.current = ""
	e.closed = true

	for _, ch := range e.listeners {
		close(ch)
	}
	e.listeners = nil
}

// Subscribe adds a listener for mixer events
func (e *Engine) Subscribe() <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan Event, 16) // buffered so publishing never blocks
	if e.closed {
		close(ch)
		return ch
	}
	e.listeners = append(e.listeners, ch)
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (e *Engine) Unsubscribe(ch <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, listener := range e.listeners {
		if listener == ch {
			close(listener)
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

// handleEnded moves a voice to Idle when its media finishes. Signals from a
// replaced handle or a voice that is no longer playing are ignored.
func (e *Engine) handleEnded(trackID string, gen int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.voices[trackID]
	if v == nil || v.gen != gen || v.state != Playing {
		return
	}
	v.state = Idle
	if e.current == trackID {
		e.current = ""
	}
	e.emitLocked(EventState, v, "")
}

// failLocked degrades a voice to Idle after a load or start failure and
// reports it once
func (e *Engine) failLocked(v *voice, cause error) error {
	if v.handle != nil {
		v.handle.Close()
		v.handle = nil
	}
	v.gen++
	v.state = Idle
	if e.current == v.trackID {
		e.current = ""
	}

	e.logger.WithError(cause).WithField("track_id", v.trackID).Warn("Playback failed")
	e.emitLocked(EventFailed, v, "Could not play track: "+cause.Error())
	return fmt.Errorf("%w: track %s: %w", ErrPlaybackFailed, v.trackID, cause)
}

func (e *Engine) discardLocked(trackID string) {
	v := e.voices[trackID]
	if v == nil {
		return
	}
	if v.handle != nil {
		v.handle.Close()
	}
	delete(e.voices, trackID)
	if e.current == trackID {
		e.current = ""
	}
	e.emitLocked(EventRemoved, &voice{trackID: trackID, state: Idle, gain: v.gain}, "")
}

// emitLocked sends an event to all subscribers (must be called with lock held).
// Subscribers that are not keeping up are dropped.
func (e *Engine) emitLocked(t EventType, v *voice, message string) {
	if len(e.listeners) == 0 {
		return
	}
	ev := Event{
		Type:    t,
		TrackID: v.trackID,
		State:   v.state,
		Gain:    v.gain,
		Message: message,
		At:      time.Now(),
	}
	kept := e.listeners[:0]
	for _, listener := range e.listeners {
		select {
		case listener <- ev:
			kept = append(kept, listener)
		default:
			close(listener)
		}
	}
	e.listeners = kept
}
