// Package studio runs the generation workflows: validate the request, call
// the back end, record the result in the ledger and charge credits. Nothing
// is recorded or charged unless the back end call succeeds.
package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dieter/internal/generation"
	"dieter/internal/ledger"
	"dieter/internal/metadata"
	"dieter/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Policy decides what happens when a generation costs more than the balance
type Policy string

const (
	// PolicyAllow lets the generation through and clamps the balance at zero
	PolicyAllow Policy = "allow"
	// PolicyBlock rejects the generation before the back end is called
	PolicyBlock Policy = "block"
)

// ErrInsufficientCredits is returned under PolicyBlock
var ErrInsufficientCredits = errors.New("not enough credits")

// Costs are the credit prices per generation kind
type Costs struct {
	Music  int `json:"music"`
	Lyrics int `json:"lyrics"`
	Video  int `json:"video"`
	Stems  int `json:"stems"`
}

// DefaultCosts matches the shipped pricing
var DefaultCosts = Costs{Music: 10, Lyrics: 5, Video: 20, Stems: 15}

// Options configures a Studio
type Options struct {
	Costs          Costs
	Policy         Policy
	MaxUploadBytes int64
	Logger         *logrus.Logger
	Now            func() time.Time
	NewID          func() string
}

// Studio runs generation workflows against one ledger
type Studio struct {
	ledger  *ledger.Ledger
	backend generation.Backend
	prober  *metadata.Prober
	costs   Costs
	policy  Policy
	maxSize int64
	logger  *logrus.Logger
	now     func() time.Time
	newID   func() string
}

// New creates a Studio
func New(l *ledger.Ledger, backend generation.Backend, prober *metadata.Prober, opts Options) *Studio {
	s := &Studio{
		ledger:  l,
		backend: backend,
		prober:  prober,
		costs:   opts.Costs,
		policy:  opts.Policy,
		maxSize: opts.MaxUploadBytes,
		logger:  opts.Logger,
		now:     opts.Now,
		newID:   opts.NewID,
	}
	if s.policy == "" {
		s.policy = PolicyAllow
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Costs returns the configured prices
func (s *Studio) Costs() Costs {
	return s.costs
}

// GenerateMusic creates a track from a full request
func (s *Studio) GenerateMusic(ctx context.Context, req models.MusicRequest) (models.Track, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return models.Track{}, &ValidationError{Field: "prompt", Message: "Please describe your track"}
	}
	if req.BPM <= 0 {
		return models.Track{}, &ValidationError{Field: "bpm", Message: "BPM must be positive"}
	}
	if req.Duration <= 0 {
		return models.Track{}, &ValidationError{Field: "duration", Message: "Duration must be positive"}
	}
	return s.music(ctx, req)
}

// QuickCreate generates a track from a prompt using the quick-create defaults
func (s *Studio) QuickCreate(ctx context.Context, prompt string) (models.Track, error) {
	if strings.TrimSpace(prompt) == "" {
		return models.Track{}, &ValidationError{Field: "prompt", Message: "Enter a prompt or pick a quick start"}
	}
	req := QuickCreateDefaults
	req.Prompt = prompt
	return s.music(ctx, req)
}

func (s *Studio) music(ctx context.Context, req models.MusicRequest) (models.Track, error) {
	if err := s.checkCredits(s.costs.Music); err != nil {
		return models.Track{}, err
	}

	result, err := s.backend.GenerateMusic(ctx, req)
	if err != nil {
		return models.Track{}, fmt.Errorf("generate music: %w", err)
	}

	title := result.Title
	if title == "" {
		title = fmt.Sprintf("%s - %s Track", req.Genre, req.Mood)
	}
	track := models.Track{
		ID:         s.newID(),
		Title:      title,
		Genre:      req.Genre,
		Mood:       req.Mood,
		BPM:        req.BPM,
		Duration:   req.Duration,
		VoiceModel: req.VoiceModel,
		AudioURL:   result.AudioURL,
		CreatedAt:  s.now(),
	}
	s.ledger.AddTrack(track)
	balance := s.ledger.Debit(s.costs.Music)

	s.logger.WithFields(logrus.Fields{
		"track_id": track.ID,
		"title":    track.Title,
		"credits":  balance,
	}).Info("Track generated")
	return track, nil
}

// GenerateLyrics creates a lyric entry
func (s *Studio) GenerateLyrics(ctx context.Context, req models.LyricsRequest) (models.LyricEntry, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return models.LyricEntry{}, &ValidationError{Field: "topic", Message: "Please enter a topic for your lyrics"}
	}
	if err := s.checkCredits(s.costs.Lyrics); err != nil {
		return models.LyricEntry{}, err
	}

	result, err := s.backend.GenerateLyrics(ctx, req)
	if err != nil {
		return models.LyricEntry{}, fmt.Errorf("generate lyrics: %w", err)
	}

	title := result.Title
	if title == "" {
		title = truncate(fmt.Sprintf("%s - %s", req.Genre, req.Topic), 50)
	}
	entry := models.LyricEntry{
		ID:        s.newID(),
		Title:     title,
		Genre:     req.Genre,
		Mood:      req.Mood,
		Content:   result.Lyrics,
		CreatedAt: s.now(),
	}
	s.ledger.AddLyric(entry)
	balance := s.ledger.Debit(s.costs.Lyrics)

	s.logger.WithFields(logrus.Fields{
		"lyric_id": entry.ID,
		"credits":  balance,
	}).Info("Lyrics generated")
	return entry, nil
}

// GenerateVideo creates a video project titled after its prompt
func (s *Studio) GenerateVideo(ctx context.Context, req models.VideoRequest) (models.VideoProject, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return models.VideoProject{}, &ValidationError{Field: "prompt", Message: "Please describe your video"}
	}
	if req.Duration <= 0 {
		return models.VideoProject{}, &ValidationError{Field: "duration", Message: "Duration must be positive"}
	}
	if err := s.checkCredits(s.costs.Video); err != nil {
		return models.VideoProject{}, err
	}

	result, err := s.backend.GenerateVideo(ctx, req)
	if err != nil {
		return models.VideoProject{}, fmt.Errorf("generate video: %w", err)
	}

	video := models.VideoProject{
		ID:           s.newID(),
		Title:        truncate(req.Prompt, 50),
		Prompt:       req.Prompt,
		VideoURL:     result.VideoURL,
		ThumbnailURL: result.ThumbnailURL,
		Duration:     req.Duration,
		CreatedAt:    s.now(),
	}
	s.ledger.AddVideo(video)
	balance := s.ledger.Debit(s.costs.Video)

	s.logger.WithFields(logrus.Fields{
		"video_id": video.ID,
		"credits":  balance,
	}).Info("Video generated")
	return video, nil
}

// SplitStems separates an uploaded file. Stems the back end could not
// produce are kept as empty strings.
func (s *Studio) SplitStems(ctx context.Context, src models.StemSource) (models.StemResult, error) {
	if src.Filename == "" || len(src.Data) == 0 {
		return models.StemResult{}, &ValidationError{Field: "audio", Message: "Please upload an audio file first"}
	}
	if s.maxSize > 0 && int64(len(src.Data)) > s.maxSize {
		return models.StemResult{}, &ValidationError{
			Field:   "audio",
			Message: fmt.Sprintf("File is larger than %d MB", s.maxSize/(1024*1024)),
		}
	}
	notAudio := &ValidationError{Field: "audio", Message: "Please upload an audio file (MP3, WAV, FLAC)"}
	if !s.prober.IsAudioFile(src.Filename) || metadata.DetectFormat(src.Data) == "" {
		return models.StemResult{}, notAudio
	}
	info, err := s.prober.Probe(src.Data, src.Filename)
	if err != nil {
		return models.StemResult{}, notAudio
	}
	if src.ContentType == "" {
		src.ContentType = info.ContentType
	}
	if err := s.checkCredits(s.costs.Stems); err != nil {
		return models.StemResult{}, err
	}

	stems, err := s.backend.SplitStems(ctx, src)
	if err != nil {
		return models.StemResult{}, fmt.Errorf("split stems: %w", err)
	}

	result := models.StemResult{
		ID:           s.newID(),
		OriginalFile: src.Filename,
		Stems:        *stems,
		CreatedAt:    s.now(),
	}
	s.ledger.AddStem(result)
	balance := s.ledger.Debit(s.costs.Stems)

	s.logger.WithFields(logrus.Fields{
		"stem_id":  result.ID,
		"file":     src.Filename,
		"duration": info.Duration,
		"credits":  balance,
	}).Info("Stems separated")
	return result, nil
}

func (s *Studio) checkCredits(cost int) error {
	if s.policy != PolicyBlock {
		return nil
	}
	if balance := s.ledger.Balance(); balance < cost {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientCredits, cost, balance)
	}
	return nil
}

// truncate keeps at most n runes
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
