package server

import (
	"net/http"

	"dieter/internal/library"
)

func (s *Server) handleGetTracks(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.ledger.Tracks())
}

func (s *Server) handleGetVideos(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.ledger.Videos())
}

func (s *Server) handleGetLyrics(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.ledger.Lyrics())
}

// handleGetStems includes per-stem availability alongside each result
func (s *Server) handleGetStems(w http.ResponseWriter, r *http.Request) {
	type stemView struct {
		ID           string               `json:"id"`
		OriginalFile string               `json:"originalFile"`
		Stems        []library.StemStatus `json:"stems"`
		CreatedAt    string               `json:"createdAt"`
	}

	results := s.ledger.Stems()
	views := make([]stemView, 0, len(results))
	for _, result := range results {
		views = append(views, stemView{
			ID:           result.ID,
			OriginalFile: result.OriginalFile,
			Stems:        library.StemAvailability(result),
			CreatedAt:    library.FormatDate(result.CreatedAt),
		})
	}
	s.respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	s.deleteAsset(w, r, s.ledger.RemoveTrack, "Track")
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	s.deleteAsset(w, r, s.ledger.RemoveVideo, "Video")
}

func (s *Server) handleDeleteLyric(w http.ResponseWriter, r *http.Request) {
	s.deleteAsset(w, r, s.ledger.RemoveLyric, "Lyric")
}

func (s *Server) handleDeleteStem(w http.ResponseWriter, r *http.Request) {
	s.deleteAsset(w, r, s.ledger.RemoveStem, "Stem result")
}

// deleteAsset removes one entry; removing a track also discards its mixer voice
func (s *Server) deleteAsset(w http.ResponseWriter, r *http.Request, remove func(string) bool, noun string) {
	id := sanitizeInput(r.PathValue("id"))
	if verr := validateAssetID(id); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	if !remove(id) {
		s.respondWithError(w, r, http.StatusNotFound, noun+" not found", nil)
		return
	}
	s.respondSuccess(w, noun+" removed from history")
}

// handleGetHistory returns the merged newest-first history
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := library.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		s.respondWithValidationError(w, r, []ValidationError{{
			Field:   "filter",
			Message: "Filter must be one of all, tracks, videos, lyrics, stems",
			Code:    "INVALID_FILTER",
		}})
		return
	}
	s.respondJSON(w, http.StatusOK, library.History(s.ledger, filter))
}

// handleGetLibrary returns tab counts and the credit gauge
func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	account := s.ledger.Account()
	s.respondJSON(w, http.StatusOK, library.Overview{
		Tabs:    library.Tabs(s.ledger),
		Credits: account.Balance(),
		Max:     account.Max(),
	})
}
