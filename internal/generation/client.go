// Package generation talks to the external generation back ends. Each call
// is a single request without retries; failures are returned to the caller.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"dieter/pkg/models"

	"github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned when no back end base URL is set
var ErrNotConfigured = errors.New("generation back end is not configured")

// APIError is a non-2xx response from a back end
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Backend is the set of generation operations the studio needs
type Backend interface {
	GenerateMusic(ctx context.Context, req models.MusicRequest) (*models.MusicResult, error)
	GenerateLyrics(ctx context.Context, req models.LyricsRequest) (*models.LyricsResult, error)
	GenerateVideo(ctx context.Context, req models.VideoRequest) (*models.VideoResult, error)
	SplitStems(ctx context.Context, src models.StemSource) (*models.Stems, error)
}

// Client is the HTTP implementation of Backend
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *logrus.Logger
}

var _ Backend = (*Client)(nil)

// NewClient creates a back end client. An empty baseURL yields a client that
// fails every call with ErrNotConfigured.
func NewClient(baseURL, token string, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Configured reports whether a base URL is set
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// GenerateMusic requests a new track
func (c *Client) GenerateMusic(ctx context.Context, req models.MusicRequest) (*models.MusicResult, error) {
	var result models.MusicResult
	if err := c.postJSON(ctx, "/api/music/generate", req, &result); err != nil {
		return nil, err
	}
	if result.AudioURL == "" {
		return nil, errors.New("music response missing audioUrl")
	}
	return &result, nil
}

// GenerateLyrics requests lyrics
func (c *Client) GenerateLyrics(ctx context.Context, req models.LyricsRequest) (*models.LyricsResult, error) {
	var result models.LyricsResult
	if err := c.postJSON(ctx, "/api/lyrics/generate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GenerateVideo requests a video
func (c *Client) GenerateVideo(ctx context.Context, req models.VideoRequest) (*models.VideoResult, error) {
	var result models.VideoResult
	if err := c.postJSON(ctx, "/api/video/generate", req, &result); err != nil {
		return nil, err
	}
	if result.VideoURL == "" {
		return nil, errors.New("video response missing videoUrl")
	}
	return &result, nil
}

// SplitStems uploads a source file as multipart field "audio"
func (c *Client) SplitStems(ctx context.Context, src models.StemSource) (*models.Stems, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, src.Filename))
	contentType := src.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(src.Data); err != nil {
		return nil, fmt.Errorf("write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/stems/split", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	// The separator answers with a flat {vocals, drums, bass, other} object
	var stems models.Stems
	if err := c.do(httpReq, &stems); err != nil {
		return nil, err
	}
	return &stems, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq, out)
}

func (c *Client) do(httpReq *http.Request, out interface{}) error {
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request %s: %w", httpReq.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"path":     httpReq.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("Generation request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError prefers the back end's {"error": ...} message
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}
