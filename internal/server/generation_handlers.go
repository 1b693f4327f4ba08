package server

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"dieter/internal/generation"
	"dieter/internal/metadata"
	"dieter/internal/studio"
	"dieter/pkg/models"
)

// generationResponse wraps a created asset with the success notice and the
// new balance
type generationResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Asset   interface{} `json:"asset"`
	Credits int         `json:"credits"`
}

func (s *Server) respondGenerated(w http.ResponseWriter, message string, asset interface{}) {
	s.respondJSON(w, http.StatusOK, generationResponse{
		Success: true,
		Message: message,
		Asset:   asset,
		Credits: s.ledger.Balance(),
	})
}

// respondWithWorkflowError maps a studio error to a status and a single notice
func (s *Server) respondWithWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *studio.ValidationError
	if errors.As(err, &verr) {
		s.respondWithValidationError(w, r, []ValidationError{{
			Field:   verr.Field,
			Message: verr.Message,
			Code:    "INVALID_REQUEST",
		}})
		return
	}

	status := http.StatusBadGateway
	var apiErr *generation.APIError
	switch {
	case errors.Is(err, studio.ErrInsufficientCredits):
		status = http.StatusPaymentRequired
	case errors.Is(err, generation.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		status = apiErr.Status
	}
	s.respondWithError(w, r, status, studio.Notice(err), err)
}

func (s *Server) handleGenerateMusic(w http.ResponseWriter, r *http.Request) {
	var req models.MusicRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.Prompt = sanitizeInput(req.Prompt)

	track, err := s.studio.GenerateMusic(r.Context(), req)
	if err != nil {
		s.respondWithWorkflowError(w, r, err)
		return
	}
	s.respondGenerated(w, "Track generated successfully!", track)
}

func (s *Server) handleQuickCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	track, err := s.studio.QuickCreate(r.Context(), sanitizeInput(req.Prompt))
	if err != nil {
		s.respondWithWorkflowError(w, r, err)
		return
	}
	s.respondGenerated(w, "Track created!", track)
}

func (s *Server) handleQuickPrompts(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, studio.QuickPrompts)
}

// handleGenerationCosts returns the credit price of each generation kind
func (s *Server) handleGenerationCosts(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.studio.Costs())
}

func (s *Server) handleGenerateLyrics(w http.ResponseWriter, r *http.Request) {
	var req models.LyricsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.Topic = sanitizeInput(req.Topic)

	entry, err := s.studio.GenerateLyrics(r.Context(), req)
	if err != nil {
		s.respondWithWorkflowError(w, r, err)
		return
	}
	s.respondGenerated(w, "Lyrics generated!", entry)
}

func (s *Server) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req models.VideoRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.Prompt = sanitizeInput(req.Prompt)

	video, err := s.studio.GenerateVideo(r.Context(), req)
	if err != nil {
		s.respondWithWorkflowError(w, r, err)
		return
	}
	s.respondGenerated(w, "Video generated!", video)
}

// handleSplitStems accepts a multipart upload in field "audio"
func (s *Server) handleSplitStems(w http.ResponseWriter, r *http.Request) {
	maxSize := s.config.MaxUploadBytes()
	// Leave headroom for the multipart envelope; the studio enforces the exact limit
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondWithError(w, r, http.StatusRequestEntityTooLarge, "File exceeds the upload limit", err)
			return
		}
		s.respondWithError(w, r, http.StatusBadRequest, "Failed to parse upload form", err)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondWithWorkflowError(w, r, &studio.ValidationError{Field: "audio", Message: "Please upload an audio file first"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Failed to read upload", err)
		return
	}

	filename := filepath.Base(header.Filename)
	src := models.StemSource{
		Filename:    filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	if src.ContentType == "" {
		src.ContentType = metadata.GetContentType(filename)
	}

	result, err := s.studio.SplitStems(r.Context(), src)
	if err != nil {
		s.respondWithWorkflowError(w, r, err)
		return
	}
	s.respondGenerated(w, "Stems separated successfully!", result)
}
