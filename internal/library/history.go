// Package library derives the read-only history and library views from the
// ledger. Nothing here mutates the ledger.
package library

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"dieter/pkg/models"
)

// Source is the read side of the ledger
type Source interface {
	Tracks() []models.Track
	Videos() []models.VideoProject
	Lyrics() []models.LyricEntry
	Stems() []models.StemResult
}

// Filter selects which asset kinds History returns
type Filter string

const (
	FilterAll    Filter = "all"
	FilterTracks Filter = "tracks"
	FilterVideos Filter = "videos"
	FilterLyrics Filter = "lyrics"
	FilterStems  Filter = "stems"
)

// Filters lists the accepted filters in display order
var Filters = []Filter{FilterAll, FilterTracks, FilterVideos, FilterLyrics, FilterStems}

// ParseFilter accepts a filter name; the empty string means all
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return FilterAll, nil
	}
	f := Filter(strings.ToLower(s))
	for _, known := range Filters {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown history filter %q", s)
}

func (f Filter) includes(kind models.AssetKind) bool {
	switch f {
	case FilterAll:
		return true
	case FilterTracks:
		return kind == models.KindTrack
	case FilterVideos:
		return kind == models.KindVideo
	case FilterLyrics:
		return kind == models.KindLyric
	case FilterStems:
		return kind == models.KindStem
	}
	return false
}

// Item is one row of the history view
type Item struct {
	Kind        models.AssetKind `json:"type"`
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Label       string           `json:"label"`
	CreatedAt   time.Time        `json:"createdAt"`
	DownloadURL string           `json:"downloadUrl,omitempty"`
}

// History merges every collection, newest first. Items created at the same
// instant keep collection order: tracks, videos, lyrics, stems.
func History(src Source, filter Filter) []Item {
	var items []Item

	if filter.includes(models.KindTrack) {
		for _, t := range src.Tracks() {
			items = append(items, Item{Kind: models.KindTrack, ID: t.ID, Title: t.Title, CreatedAt: t.CreatedAt, DownloadURL: t.AudioURL})
		}
	}
	if filter.includes(models.KindVideo) {
		for _, v := range src.Videos() {
			items = append(items, Item{Kind: models.KindVideo, ID: v.ID, Title: v.Title, CreatedAt: v.CreatedAt})
		}
	}
	if filter.includes(models.KindLyric) {
		for _, l := range src.Lyrics() {
			items = append(items, Item{Kind: models.KindLyric, ID: l.ID, Title: l.Title, CreatedAt: l.CreatedAt})
		}
	}
	if filter.includes(models.KindStem) {
		for _, s := range src.Stems() {
			items = append(items, Item{Kind: models.KindStem, ID: s.ID, Title: s.OriginalFile, CreatedAt: s.CreatedAt})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	for i := range items {
		items[i].Label = kindLabel(items[i].Kind) + " • " + FormatDate(items[i].CreatedAt)
	}
	if items == nil {
		items = []Item{}
	}
	return items
}

// FormatDate renders a timestamp like "Mar 1, 2026, 09:30 AM" in the
// timestamp's own location
func FormatDate(t time.Time) string {
	return t.Format("Jan 2, 2006, 03:04 PM")
}

func kindLabel(kind models.AssetKind) string {
	s := string(kind)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
