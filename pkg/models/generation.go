package models

// MusicRequest describes a music generation request
type MusicRequest struct {
	Prompt     string `json:"prompt"`
	Genre      string `json:"genre"`
	Mood       string `json:"mood"`
	BPM        int    `json:"bpm"`
	Duration   int    `json:"duration"`
	VoiceModel string `json:"voiceModel"`
}

// MusicResult is returned by the music back end
type MusicResult struct {
	AudioURL string `json:"audioUrl"`
	Title    string `json:"title"`
	Duration int    `json:"duration,omitempty"`
}

// LyricsRequest describes a lyrics generation request
type LyricsRequest struct {
	Genre string `json:"genre"`
	Mood  string `json:"mood"`
	Topic string `json:"topic"`
	Style string `json:"style"`
}

// LyricsResult is returned by the lyrics back end
type LyricsResult struct {
	Lyrics string `json:"lyrics"`
	Title  string `json:"title"`
}

// VideoRequest describes a video generation request
type VideoRequest struct {
	Prompt      string `json:"prompt"`
	Style       string `json:"style"`
	Duration    int    `json:"duration"`
	AspectRatio string `json:"aspectRatio"`
}

// VideoResult is returned by the video back end
type VideoResult struct {
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Title        string `json:"title,omitempty"`
}

// StemSource is an uploaded audio file awaiting separation
type StemSource struct {
	Filename    string
	ContentType string
	Data        []byte
}
