package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"dieter/internal/mixer"
)

// MixerState is the mixer panel: every track with its voice status
type MixerState struct {
	Playing string              `json:"playing,omitempty"`
	Voices  []mixer.VoiceStatus `json:"voices"`
}

// mixerState lists one row per ledger track, using engine state where a
// voice exists and defaults otherwise
func (s *Server) mixerState() MixerState {
	known := make(map[string]mixer.VoiceStatus)
	for _, v := range s.mixer.Voices() {
		known[v.TrackID] = v
	}

	tracks := s.ledger.Tracks()
	state := MixerState{Voices: make([]mixer.VoiceStatus, 0, len(tracks))}
	for _, t := range tracks {
		v, ok := known[t.ID]
		if !ok {
			v = mixer.VoiceStatus{TrackID: t.ID, State: mixer.Idle, Gain: s.mixer.Gain(t.ID)}
		}
		state.Voices = append(state.Voices, v)
	}
	if id, ok := s.mixer.Playing(); ok {
		state.Playing = id
	}
	return state
}

func (s *Server) handleGetMixerState(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.mixerState())
}

// handleMixerPlay toggles a track
func (s *Server) handleMixerPlay(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mixerTrackID(w, r)
	if !ok {
		return
	}

	if err := s.mixer.Play(r.Context(), id); err != nil {
		s.respondWithMixerError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.mixerState())
}

func (s *Server) handleMixerPause(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mixerTrackID(w, r)
	if !ok {
		return
	}
	s.mixer.Pause(id)
	s.respondJSON(w, http.StatusOK, s.mixerState())
}

func (s *Server) handleMixerStop(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mixerTrackID(w, r)
	if !ok {
		return
	}
	s.mixer.Stop(id)
	s.respondJSON(w, http.StatusOK, s.mixerState())
}

func (s *Server) handleMixerGain(w http.ResponseWriter, r *http.Request) {
	id, ok := s.mixerTrackID(w, r)
	if !ok {
		return
	}

	var req struct {
		Gain *int `json:"gain"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if verr := validateGain(req.Gain); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	if err := s.mixer.SetGain(id, *req.Gain); err != nil {
		s.respondWithMixerError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.mixerState())
}

// handleMixerEvents streams mixer events as server-sent events
func (s *Server) handleMixerEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondWithError(w, r, http.StatusInternalServerError, "Streaming not supported", nil)
		return
	}

	events := s.mixer.Subscribe()
	defer s.mixer.Unsubscribe(events)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.WithError(err).Warn("Failed to encode mixer event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) mixerTrackID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := sanitizeInput(r.PathValue("id"))
	if verr := validateAssetID(id); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return "", false
	}
	return id, true
}

func (s *Server) respondWithMixerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, mixer.ErrUnknownTrack):
		s.respondWithError(w, r, http.StatusNotFound, "Track not found", err)
	case errors.Is(err, mixer.ErrGainOutOfRange):
		s.respondWithValidationError(w, r, []ValidationError{{
			Field:   "gain",
			Message: "Gain must be between 0 and 100",
			Code:    "GAIN_OUT_OF_RANGE",
		}})
	case errors.Is(err, mixer.ErrEngineClosed):
		s.respondWithError(w, r, http.StatusServiceUnavailable, "Mixer session has ended", err)
	case errors.Is(err, mixer.ErrPlaybackFailed):
		s.respondWithError(w, r, http.StatusBadGateway, "Could not play track", err)
	default:
		s.respondWithError(w, r, http.StatusInternalServerError, "Mixer error", err)
	}
}
