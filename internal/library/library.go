package library

import "dieter/pkg/models"

// Tab is one library tab with its item count
type Tab struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Overview is the library page: tabs plus the credit gauge
type Overview struct {
	Tabs    []Tab `json:"tabs"`
	Credits int   `json:"credits"`
	Max     int   `json:"max"`
}

// Tabs returns the library tabs in display order
func Tabs(src Source) []Tab {
	return []Tab{
		{ID: "tracks", Label: "Tracks", Count: len(src.Tracks())},
		{ID: "lyrics", Label: "Lyrics", Count: len(src.Lyrics())},
		{ID: "videos", Label: "Videos", Count: len(src.Videos())},
		{ID: "stems", Label: "Stems", Count: len(src.Stems())},
	}
}

// StemStatus describes one separated stem
type StemStatus struct {
	Name      string `json:"name"`
	URL       string `json:"url,omitempty"`
	Available bool   `json:"available"`
	Label     string `json:"label"`
}

// StemAvailability lists every stem of a result; an empty URL means the
// stem could not be produced
func StemAvailability(result models.StemResult) []StemStatus {
	out := make([]StemStatus, 0, len(models.StemNames))
	for _, name := range models.StemNames {
		url, _ := result.Stems.URL(name)
		status := StemStatus{Name: name, URL: url, Available: url != "", Label: "not available"}
		if status.Available {
			status.Label = "available"
		}
		out = append(out, status)
	}
	return out
}
