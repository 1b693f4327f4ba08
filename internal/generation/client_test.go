package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dieter/pkg/models"

	"github.com/sirupsen/logrus"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(srv.URL+"/", "secret", 5*time.Second, logger)
}

func TestGenerateMusic(t *testing.T) {
	var got models.MusicRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/music/generate" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Expected bearer token, got %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]interface{}{"audioUrl": "https://media.example/t1.mp3", "title": "Midnight Drive"})
	})

	req := models.MusicRequest{Prompt: "dark trap", Genre: "Trap", Mood: "Dark", BPM: 140, Duration: 15, VoiceModel: "No Vocals"}
	result, err := client.GenerateMusic(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateMusic failed: %v", err)
	}
	if result.AudioURL != "https://media.example/t1.mp3" || result.Title != "Midnight Drive" {
		t.Errorf("Unexpected result: %+v", result)
	}
	if got != req {
		t.Errorf("Expected request %+v to reach the back end, got %+v", req, got)
	}
}

func TestGenerateLyricsAndVideo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/lyrics/generate":
			json.NewEncoder(w).Encode(models.LyricsResult{Lyrics: "[Verse 1]\n...", Title: "City Lights"})
		case "/api/video/generate":
			json.NewEncoder(w).Encode(models.VideoResult{VideoURL: "https://media.example/v.mp4", ThumbnailURL: "https://media.example/v.jpg"})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	lyrics, err := client.GenerateLyrics(ctx, models.LyricsRequest{Genre: "Pop", Mood: "Happy", Topic: "city lights", Style: "Verse-Chorus"})
	if err != nil {
		t.Fatalf("GenerateLyrics failed: %v", err)
	}
	if lyrics.Title != "City Lights" {
		t.Errorf("Unexpected lyrics result: %+v", lyrics)
	}

	video, err := client.GenerateVideo(ctx, models.VideoRequest{Prompt: "neon city", Style: "Cinematic", Duration: 10, AspectRatio: "16:9"})
	if err != nil {
		t.Fatalf("GenerateVideo failed: %v", err)
	}
	if video.VideoURL != "https://media.example/v.mp4" {
		t.Errorf("Unexpected video result: %+v", video)
	}
}

func TestSplitStems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("Expected multipart field audio: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "song.mp3" || string(data) != "ID3data" {
			t.Errorf("Unexpected upload %s (%q)", header.Filename, data)
		}
		w.Write([]byte(`{"vocals":"","drums":"https://media.example/d.wav","bass":"https://media.example/b.wav","other":""}`))
	})

	stems, err := client.SplitStems(context.Background(), models.StemSource{Filename: "song.mp3", ContentType: "audio/mpeg", Data: []byte("ID3data")})
	if err != nil {
		t.Fatalf("SplitStems failed: %v", err)
	}
	want := models.Stems{Drums: "https://media.example/d.wav", Bass: "https://media.example/b.wav"}
	if *stems != want {
		t.Errorf("Expected %+v, got %+v", want, *stems)
	}
}

func TestAPIErrors(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"error field", http.StatusBadRequest, `{"error": "Prompt too long"}`, "Prompt too long"},
		{"no body", http.StatusInternalServerError, ``, "HTTP 500"},
		{"non json", http.StatusBadGateway, `<html>bad gateway</html>`, "HTTP 502"},
		{"empty error", http.StatusTooManyRequests, `{"error": ""}`, "HTTP 429"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			_, err := client.GenerateLyrics(context.Background(), models.LyricsRequest{Topic: "x"})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *APIError, got %v", err)
			}
			if apiErr.Status != tc.status || apiErr.Message != tc.expected {
				t.Errorf("Expected %d %q, got %d %q", tc.status, tc.expected, apiErr.Status, apiErr.Message)
			}
		})
	}
}

func TestMissingFieldsRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	if _, err := client.GenerateMusic(context.Background(), models.MusicRequest{Prompt: "x"}); err == nil {
		t.Error("Expected error when audioUrl is missing")
	}
	if _, err := client.GenerateVideo(context.Background(), models.VideoRequest{Prompt: "x"}); err == nil {
		t.Error("Expected error when videoUrl is missing")
	}
}

func TestNotConfigured(t *testing.T) {
	client := NewClient("", "", time.Second, nil)
	if client.Configured() {
		t.Error("Expected unconfigured client")
	}
	ctx := context.Background()
	if _, err := client.GenerateMusic(ctx, models.MusicRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
	if _, err := client.SplitStems(ctx, models.StemSource{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}
