package studio

import (
	"errors"

	"dieter/internal/generation"
	"dieter/pkg/models"
)

// ValidationError is a request rejected before any back end call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// QuickCreateDefaults are the settings used by QuickCreate
var QuickCreateDefaults = models.MusicRequest{
	Genre:      "Hip-Hop",
	Mood:       "Energetic",
	BPM:        140,
	Duration:   15,
	VoiceModel: "No Vocals",
}

// QuickPrompts are the canned quick-start prompts
var QuickPrompts = []string{
	"Hard trap beat with 808s and dark melody",
	"Chill lo-fi hip hop with jazz samples",
	"Upbeat pop song with catchy chorus",
	"Deep house groove with synth bass",
	"Emotional R&B ballad with piano",
	"Aggressive drill beat with heavy bass",
}

// Notice turns a workflow error into the single message shown to the user
func Notice(err error) string {
	if err == nil {
		return ""
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}
	if errors.Is(err, ErrInsufficientCredits) {
		return "Not enough credits"
	}
	if errors.Is(err, generation.ErrNotConfigured) {
		return "Generation back end is not configured"
	}
	var apiErr *generation.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "Generation failed"
}
