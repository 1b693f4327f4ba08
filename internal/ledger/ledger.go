// Package ledger holds the workstation's record of generated assets and the
// credit balance. A Ledger is the single writer for its four collections;
// every mutation is written through to a Store before it returns.
package ledger

import (
	"errors"
	"sync"

	"dieter/pkg/models"

	"github.com/sirupsen/logrus"
)

// Options configures a Ledger
type Options struct {
	// Name is the snapshot record name; defaults to DefaultStoreName
	Name           string
	InitialCredits int
	MaxCredits     int
	Logger         *logrus.Logger
}

// Ledger is the in-memory, write-through state container
type Ledger struct {
	mu     sync.RWMutex
	store  Store
	name   string
	logger *logrus.Logger

	tracks  []models.Track
	videos  []models.VideoProject
	lyrics  []models.LyricEntry
	stems   []models.StemResult
	credits CreditAccount

	listenersMu      sync.Mutex
	removalListeners []func(id string)
}

// Open restores the ledger from store. A missing, unreadable or corrupt
// snapshot is logged and replaced by empty collections and the initial
// balance; Open never fails because of the stored state.
func Open(store Store, opts Options) *Ledger {
	if opts.Name == "" {
		opts.Name = DefaultStoreName
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	l := &Ledger{
		store:   store,
		name:    opts.Name,
		logger:  logger,
		tracks:  []models.Track{},
		videos:  []models.VideoProject{},
		lyrics:  []models.LyricEntry{},
		stems:   []models.StemResult{},
		credits: NewCreditAccount(opts.InitialCredits, opts.MaxCredits),
	}

	if store == nil {
		return l
	}

	snap, err := store.Load(opts.Name)
	switch {
	case errors.Is(err, ErrNoSnapshot):
		logger.WithField("store", opts.Name).Info("No saved ledger found, starting fresh")
	case err != nil:
		logger.WithError(err).WithField("store", opts.Name).Error("Failed to restore ledger, starting with empty state")
	default:
		restored := snap.normalized()
		if restored.Credits < 0 {
			logger.WithFields(logrus.Fields{
				"store":   opts.Name,
				"credits": restored.Credits,
			}).Warn("Stored credit balance is negative, resetting it to zero")
			restored.Credits = 0
		}
		l.tracks = restored.Tracks
		l.videos = restored.Videos
		l.lyrics = restored.Lyrics
		l.stems = restored.Stems
		l.credits = NewCreditAccount(restored.Credits, opts.MaxCredits)
		logger.WithFields(logrus.Fields{
			"store":   opts.Name,
			"tracks":  len(l.tracks),
			"videos":  len(l.videos),
			"lyrics":  len(l.lyrics),
			"stems":   len(l.stems),
			"credits": restored.Credits,
		}).Info("Ledger restored")
	}

	return l
}

// OnTrackRemoved registers fn to be called after a track leaves the ledger.
// Callbacks run outside the ledger lock, in registration order.
func (l *Ledger) OnTrackRemoved(fn func(id string)) {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	l.removalListeners = append(l.removalListeners, fn)
}

// AddTrack prepends a track. An entry sharing the id is replaced.
func (l *Ledger) AddTrack(t models.Track) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracks = prepend(l.tracks, t, func(x models.Track) string { return x.ID })
	l.persistLocked("add_track", t.ID)
}

// AddVideo prepends a video project
func (l *Ledger) AddVideo(v models.VideoProject) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.videos = prepend(l.videos, v, func(x models.VideoProject) string { return x.ID })
	l.persistLocked("add_video", v.ID)
}

// AddLyric prepends a lyric entry
func (l *Ledger) AddLyric(e models.LyricEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lyrics = prepend(l.lyrics, e, func(x models.LyricEntry) string { return x.ID })
	l.persistLocked("add_lyric", e.ID)
}

// AddStem prepends a stem result
func (l *Ledger) AddStem(s models.StemResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stems = prepend(l.stems, s, func(x models.StemResult) string { return x.ID })
	l.persistLocked("add_stem", s.ID)
}

// RemoveTrack deletes a track and reports whether it existed. Removal
// listeners are notified only when something was removed.
func (l *Ledger) RemoveTrack(id string) bool {
	l.mu.Lock()
	var removed bool
	l.tracks, removed = removeByID(l.tracks, id, func(x models.Track) string { return x.ID })
	if removed {
		l.persistLocked("remove_track", id)
	}
	l.mu.Unlock()

	if removed {
		l.notifyTrackRemoved(id)
	}
	return removed
}

// RemoveVideo deletes a video project and reports whether it existed
func (l *Ledger) RemoveVideo(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	var removed bool
	l.videos, removed = removeByID(l.videos, id, func(x models.VideoProject) string { return x.ID })
	if removed {
		l.persistLocked("remove_video", id)
	}
	return removed
}

// RemoveLyric deletes a lyric entry and reports whether it existed
func (l *Ledger) RemoveLyric(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	var removed bool
	l.lyrics, removed = removeByID(l.lyrics, id, func(x models.LyricEntry) string { return x.ID })
	if removed {
		l.persistLocked("remove_lyric", id)
	}
	return removed
}

// RemoveStem deletes a stem result and reports whether it existed
func (l *Ledger) RemoveStem(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	var removed bool
	l.stems, removed = removeByID(l.stems, id, func(x models.StemResult) string { return x.ID })
	if removed {
		l.persistLocked("remove_stem", id)
	}
	return removed
}

// Debit subtracts credits, flooring at zero, and returns the new balance
func (l *Ledger) Debit(amount int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.credits.Debit(amount)
	l.persistLocked("debit", "")
	return balance
}

// Credit adds credits and returns the new balance
func (l *Ledger) Credit(amount int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.credits.Credit(amount)
	l.persistLocked("credit", "")
	return balance
}

// Balance returns the current credit balance
func (l *Ledger) Balance() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.credits.Balance()
}

// Account returns a copy of the credit account
func (l *Ledger) Account() CreditAccount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.credits
}

// Tracks returns the tracks, newest first
func (l *Ledger) Tracks() []models.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Track{}, l.tracks...)
}

// Videos returns the video projects, newest first
func (l *Ledger) Videos() []models.VideoProject {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.VideoProject{}, l.videos...)
}

// Lyrics returns the lyric entries, newest first
func (l *Ledger) Lyrics() []models.LyricEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.LyricEntry{}, l.lyrics...)
}

// Stems returns the stem results, newest first
func (l *Ledger) Stems() []models.StemResult {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.StemResult{}, l.stems...)
}

// Track looks up a track by id
func (l *Ledger) Track(id string) (models.Track, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.tracks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Track{}, false
}

// Snapshot returns a copy of the full state
func (l *Ledger) Snapshot() *Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() *Snapshot {
	s := Snapshot{
		Tracks:  l.tracks,
		Videos:  l.videos,
		Lyrics:  l.lyrics,
		Stems:   l.stems,
		Credits: l.credits.Balance(),
	}
	out := s.normalized()
	return &out
}

// persistLocked writes the current state through to the store. Failures
// leave the in-memory state authoritative. Must be called with mu held so
// saves land in mutation order.
func (l *Ledger) persistLocked(op, id string) {
	if l.store == nil {
		return
	}
	if err := l.store.Save(l.name, l.snapshotLocked()); err != nil {
		entry := l.logger.WithError(err).WithFields(logrus.Fields{
			"store":     l.name,
			"operation": op,
		})
		if id != "" {
			entry = entry.WithField("id", id)
		}
		entry.Warn("Failed to persist ledger, keeping in-memory state")
	}
}

func (l *Ledger) notifyTrackRemoved(id string) {
	l.listenersMu.Lock()
	listeners := append([]func(string){}, l.removalListeners...)
	l.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
}

// prepend places entry at the head, dropping any older entry with its id
func prepend[T any](list []T, entry T, id func(T) string) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, entry)
	key := id(entry)
	for _, existing := range list {
		if id(existing) != key {
			out = append(out, existing)
		}
	}
	return out
}

func removeByID[T any](list []T, key string, id func(T) string) ([]T, bool) {
	for i, existing := range list {
		if id(existing) == key {
			out := make([]T, 0, len(list)-1)
			out = append(out, list[:i]...)
			out = append(out, list[i+1:]...)
			return out, true
		}
	}
	return list, false
}
