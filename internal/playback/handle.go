package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dieter/internal/cache"
	"dieter/internal/metadata"
	"dieter/internal/mixer"

	"github.com/sirupsen/logrus"
)

// ErrHandleClosed is returned when playing a released handle
var ErrHandleClosed = errors.New("playback handle is closed")

// Factory builds clock handles; it satisfies mixer.HandleFactory
type Factory struct {
	fetcher Fetcher
	prober  *metadata.Prober
	probes  *cache.ProbeCache
	logger  *logrus.Logger
}

var (
	_ mixer.HandleFactory = (*Factory)(nil)
	_ mixer.Loader        = (*ClockHandle)(nil)
)

// NewFactory creates a handle factory. probes may be nil to disable caching.
func NewFactory(fetcher Fetcher, prober *metadata.Prober, probes *cache.ProbeCache, logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.New()
	}
	return &Factory{
		fetcher: fetcher,
		prober:  prober,
		probes:  probes,
		logger:  logger,
	}
}

// NewHandle implements mixer.HandleFactory. Media is not fetched until the
// first Play.
func (f *Factory) NewHandle(mediaURL string, onEnded func()) (mixer.Handle, error) {
	if mediaURL == "" {
		return nil, errors.New("track has no media URL")
	}
	return &ClockHandle{
		factory: f,
		url:     mediaURL,
		onEnded: onEnded,
		volume:  1,
	}, nil
}

// load fetches and measures media, consulting the probe cache first
func (f *Factory) load(ctx context.Context, mediaURL string) (metadata.Info, error) {
	if f.probes != nil {
		if info, ok := f.probes.GetInfo(mediaURL); ok {
			return info, nil
		}
	}

	data, err := f.fetcher.Fetch(ctx, mediaURL)
	if err != nil {
		return metadata.Info{}, err
	}
	info, err := f.prober.Probe(data, mediaURL)
	if err != nil {
		return metadata.Info{}, fmt.Errorf("probe media: %w", err)
	}

	f.logger.WithFields(logrus.Fields{
		"url":      mediaURL,
		"format":   info.Format,
		"duration": info.Duration,
	}).Debug("Loaded media")

	if f.probes != nil {
		f.probes.SetInfo(mediaURL, info)
	}
	return info, nil
}

// ClockHandle plays media against a wall clock
type ClockHandle struct {
	loadMu  sync.Mutex // serialises loads; mu is never held during a fetch
	mu      sync.Mutex
	factory *Factory
	url     string
	onEnded func()

	cancelLoad context.CancelFunc

	loaded    bool
	duration  time.Duration
	position  time.Duration
	startedAt time.Time
	playing   bool
	timer     *time.Timer
	gen       int
	volume    float64
	closed    bool
}

// Load fetches and measures the media once. Close cancels a load in progress.
func (h *ClockHandle) Load(ctx context.Context) error {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHandleClosed
	}
	if h.loaded {
		h.mu.Unlock()
		return nil
	}
	loadCtx, cancel := context.WithCancel(ctx)
	h.cancelLoad = cancel
	h.mu.Unlock()
	defer cancel()

	info, err := h.factory.load(loadCtx, h.url)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.cancelLoad = nil
	if h.closed {
		return ErrHandleClosed
	}
	if err != nil {
		return err
	}
	h.duration = info.Duration
	h.loaded = true
	return nil
}

// Play loads the media if needed, then starts or resumes the clock. A
// handle that reached the end restarts from the beginning.
func (h *ClockHandle) Play(ctx context.Context) error {
	if err := h.Load(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHandleClosed
	}
	if h.playing {
		return nil
	}
	if h.duration > 0 && h.position >= h.duration {
		h.position = 0
	}

	h.playing = true
	h.startedAt = time.Now()
	h.gen++
	if h.duration > 0 {
		gen := h.gen
		h.timer = time.AfterFunc(h.duration-h.position, func() { h.finish(gen) })
	}
	return nil
}

// Pause freezes the position
func (h *ClockHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.playing {
		return
	}
	h.position += time.Since(h.startedAt)
	if h.duration > 0 && h.position > h.duration {
		h.position = h.duration
	}
	h.stopLocked()
}

// SetVolume stores a volume clamped to [0,1]
func (h *ClockHandle) SetVolume(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	h.volume = v
}

// Close releases the handle; later end signals are suppressed
func (h *ClockHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancelLoad != nil {
		h.cancelLoad()
		h.cancelLoad = nil
	}
	h.stopLocked()
	h.closed = true
}

// Volume returns the current volume
func (h *ClockHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

// Duration returns the measured media length, 0 if unknown or not loaded
func (h *ClockHandle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

// Position returns how far into the media the clock is
func (h *ClockHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	pos := h.position
	if h.playing {
		pos += time.Since(h.startedAt)
	}
	if h.duration > 0 && pos > h.duration {
		pos = h.duration
	}
	return pos
}

func (h *ClockHandle) stopLocked() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.playing = false
	h.gen++
}

// finish runs on the timer goroutine when the clock reaches the end
func (h *ClockHandle) finish(gen int) {
	h.mu.Lock()
	if h.closed || !h.playing || h.gen != gen {
		h.mu.Unlock()
		return
	}
	h.position = h.duration
	h.playing = false
	h.timer = nil
	onEnded := h.onEnded
	h.mu.Unlock()

	if onEnded != nil {
		onEnded()
	}
}
