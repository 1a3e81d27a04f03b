// Package transcript talks to the transcript service and lays transcript
// segments out as timeline elements.
package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/keagan/cutline/internal/monitor"
	"github.com/keagan/cutline/internal/timeline"
	"github.com/rs/zerolog"
)

// ErrUnsuccessful is returned when the service answers without success
// or without segments
var ErrUnsuccessful = errors.New("transcript service reported failure")

// GenerateResult is the /api/upload response
type GenerateResult struct {
	Success   bool               `json:"success"`
	Segments  []timeline.Segment `json:"segments"`
	ProcessID string             `json:"processID"`
}

// TranslateRequest is the /api/translate body
type TranslateRequest struct {
	Segments       []timeline.Segment `json:"segments"`
	TargetLanguage string             `json:"targetLanguage"`
}

// TranslateResult is the /api/translate response
type TranslateResult struct {
	Success  bool               `json:"success"`
	Segments []timeline.Segment `json:"segments"`
}

// Client calls the transcript and export services
type Client struct {
	logger    zerolog.Logger
	http      *http.Client
	apiURL    string
	exportURL string
	watcher   *monitor.Watcher
}

// NewClient creates a client. Calls are observed by watcher when non-nil.
func NewClient(logger zerolog.Logger, apiURL, exportURL string, timeout time.Duration, watcher *monitor.Watcher) *Client {
	return &Client{
		logger:    logger.With().Str("component", "transcript").Logger(),
		http:      &http.Client{Timeout: timeout},
		apiURL:    strings.TrimRight(apiURL, "/"),
		exportURL: strings.TrimRight(exportURL, "/"),
		watcher:   watcher,
	}
}

// Generate uploads a video and returns its transcript in lang
func (c *Client) Generate(ctx context.Context, video []byte, filename, lang string) (*GenerateResult, error) {
	if lang == "" {
		lang = "en"
	}
	if filename == "" {
		filename = "video.mp4"
	}
	args := map[string]any{"file": filename, "bytes": len(video), "language": lang}

	return monitor.Watch(ctx, c.watcher, "genTranscript", args, func(ctx context.Context) (*GenerateResult, error) {
		body, contentType, err := multipartBody(func(w *multipart.Writer) error {
			part, err := w.CreateFormFile("file", filename)
			if err != nil {
				return err
			}
			if _, err := part.Write(video); err != nil {
				return err
			}
			return w.WriteField("language", lang)
		})
		if err != nil {
			return nil, err
		}

		var res GenerateResult
		if err := c.do(ctx, c.apiURL+"/api/upload", contentType, body, &res); err != nil {
			return nil, err
		}
		if !res.Success || len(res.Segments) == 0 {
			return nil, fmt.Errorf("%w: generate returned %d segments", ErrUnsuccessful, len(res.Segments))
		}

		c.logger.Info().
			Str("language", lang).
			Int("segments", len(res.Segments)).
			Str("process", res.ProcessID).
			Msg("transcript generated")
		return &res, nil
	})
}

// Translate converts segments into the target language
func (c *Client) Translate(ctx context.Context, segments []timeline.Segment, lang string) (*TranslateResult, error) {
	if len(segments) == 0 {
		return nil, errors.New("no segments to translate")
	}
	req := TranslateRequest{Segments: segments, TargetLanguage: lang}

	return monitor.Watch(ctx, c.watcher, "translateTranscript", req, func(ctx context.Context) (*TranslateResult, error) {
		raw, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}

		var res TranslateResult
		if err := c.do(ctx, c.apiURL+"/api/translate", "application/json", bytes.NewReader(raw), &res); err != nil {
			return nil, err
		}
		if !res.Success || len(res.Segments) == 0 {
			return nil, fmt.Errorf("%w: translate returned %d segments", ErrUnsuccessful, len(res.Segments))
		}

		c.logger.Info().Str("language", lang).Int("segments", len(res.Segments)).Msg("transcript translated")
		return &res, nil
	})
}

// Export sends the video and its elements to the export service and
// returns the rendered video
func (c *Client) Export(ctx context.Context, video []byte, elements any) ([]byte, error) {
	args := map[string]any{"bytes": len(video)}

	return monitor.Watch(ctx, c.watcher, "exportVideo", args, func(ctx context.Context) ([]byte, error) {
		body, contentType, err := multipartBody(func(w *multipart.Writer) error {
			part, err := w.CreateFormFile("video", "video.mp4")
			if err != nil {
				return err
			}
			if _, err := part.Write(video); err != nil {
				return err
			}
			raw, err := json.Marshal(elements)
			if err != nil {
				return err
			}
			return w.WriteField("elements", string(raw))
		})
		if err != nil {
			return nil, err
		}

		resp, err := c.post(ctx, c.exportURL+"/process-video", contentType, body)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read exported video: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: empty export", ErrUnsuccessful)
		}
		return data, nil
	})
}

func (c *Client) do(ctx context.Context, url, contentType string, body io.Reader, out any) error {
	resp, err := c.post(ctx, url, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("request to %s failed: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func multipartBody(fill func(w *multipart.Writer) error) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := fill(w); err != nil {
		return nil, "", fmt.Errorf("failed to build form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to build form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
