package models

import "time"

// AssetKind identifies one of the four ledger collections
type AssetKind string

const (
	KindTrack AssetKind = "track"
	KindVideo AssetKind = "video"
	KindLyric AssetKind = "lyric"
	KindStem  AssetKind = "stem"
)

// Track represents a generated music track
type Track struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Genre      string    `json:"genre"`
	Mood       string    `json:"mood"`
	BPM        int       `json:"bpm"`
	Duration   int       `json:"duration"` // in seconds
	VoiceModel string    `json:"voiceModel"`
	AudioURL   string    `json:"audioUrl"`
	CoverURL   string    `json:"coverUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// VideoProject represents a generated music video
type VideoProject struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Prompt       string    `json:"prompt"`
	VideoURL     string    `json:"videoUrl"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Duration     int       `json:"duration"` // in seconds
	CreatedAt    time.Time `json:"createdAt"`
}

// LyricEntry represents a generated set of song lyrics
type LyricEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Genre     string    `json:"genre"`
	Mood      string    `json:"mood"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stems holds the four separated stem URLs. An empty URL means the
// separator did not produce that stem.
type Stems struct {
	Vocals string `json:"vocals"`
	Drums  string `json:"drums"`
	Bass   string `json:"bass"`
	Other  string `json:"other"`
}

// StemResult represents one stem separation of an uploaded source file
type StemResult struct {
	ID           string    `json:"id"`
	OriginalFile string    `json:"originalFile"`
	Stems        Stems     `json:"stems"`
	CreatedAt    time.Time `json:"createdAt"`
}

// StemNames lists the stems in display order
var StemNames = []string{"vocals", "drums", "bass", "other"}

// URL returns the URL for a named stem and whether the name is known
func (s Stems) URL(name string) (string, bool) {
	switch name {
	case "vocals":
		return s.Vocals, true
	case "drums":
		return s.Drums, true
	case "bass":
		return s.Bass, true
	case "other":
		return s.Other, true
	default:
		return "", false
	}
}
