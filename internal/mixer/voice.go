package mixer

import (
	"context"
	"time"
)

// State is the playback state of a single voice
type State int

const (
	Idle State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// MarshalText lets State render as its name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Handle is a playback resource bound to one media URL. Volume is in the
// handle's native 0.0 to 1.0 range.
type Handle interface {
	Play(ctx context.Context) error
	Pause()
	SetVolume(v float64)
	Close()
}

// Loader is implemented by handles whose media must be fetched before Play.
// The engine calls Load without holding its lock, so Load may block on I/O
// and must return promptly once Close is called.
type Loader interface {
	Load(ctx context.Context) error
}

// Positioner is implemented by handles that can report playback progress
type Positioner interface {
	Position() time.Duration
}

// HandleFactory creates handles without doing I/O. onEnded must be called when the media
// finishes on its own, and never from inside a Handle method call.
type HandleFactory interface {
	NewHandle(mediaURL string, onEnded func()) (Handle, error)
}

// HandleFactoryFunc adapts a function to HandleFactory
type HandleFactoryFunc func(mediaURL string, onEnded func()) (Handle, error)

// NewHandle implements HandleFactory
func (f HandleFactoryFunc) NewHandle(mediaURL string, onEnded func()) (Handle, error) {
	return f(mediaURL, onEnded)
}

// voice is the engine-owned entry for one track id
type voice struct {
	trackID string
	handle  Handle
	gen     int // bumped whenever handle is replaced, so late end signals are ignored
	gain    int
	state   State

	// starting is set while a Loader handle loads; Pause clears it
	starting bool
}

// VoiceStatus is a read-only view of a voice
type VoiceStatus struct {
	TrackID  string  `json:"trackId"`
	State    State   `json:"state"`
	Gain     int     `json:"gain"`
	Loaded   bool    `json:"loaded"`
	Position float64 `json:"position"` // seconds into the media
}

// EventType classifies mixer events
type EventType string

const (
	EventState   EventType = "state"
	EventGain    EventType = "gain"
	EventFailed  EventType = "failed"
	EventRemoved EventType = "removed"
)

// Event is published to subscribers on every voice change
type Event struct {
	Type    EventType `json:"type"`
	TrackID string    `json:"trackId"`
	State   State     `json:"state"`
	Gain    int       `json:"gain"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}
