package stt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/justspeak/internal/audio"
	"github.com/lexiqai/justspeak/internal/observability"
)

const maxTranscriptBytes = 1 << 20

// BatchClient uploads complete recordings to POST /transcribe/
type BatchClient struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewBatchClient creates a batch client for the service at serverURL
func NewBatchClient(serverURL string, timeout time.Duration, logger zerolog.Logger) (*BatchClient, error) {
	u, err := endpoint(serverURL, transcribePath)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &BatchClient{
		url:        u,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "batch").Logger(),
	}, nil
}

// Transcribe writes samples to a temporary WAV file and uploads it once.
// The returned text is trimmed and may be empty.
func (c *BatchClient) Transcribe(ctx context.Context, samples []float32) (string, error) {
	text, err := c.transcribe(ctx, samples)
	observability.RecordBatchRequest(err == nil)
	return text, err
}

func (c *BatchClient) transcribe(ctx context.Context, samples []float32) (string, error) {
	path, err := audio.WriteTempWAV(samples)
	if err != nil {
		return "", fmt.Errorf("write wav: %w", err)
	}
	defer os.Remove(path)

	body, contentType, err := multipartWAV(path)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTranscriptBytes))
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("transcribe request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	text := strings.TrimSpace(string(data))
	c.logger.Info().
		Int("samples", len(samples)).
		Dur("latency", time.Since(start)).
		Int("chars", len(text)).
		Msg("Batch transcription complete")
	return text, nil
}

// multipartWAV builds the form body with the WAV file as field "file"
func multipartWAV(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="audio.wav"`)
	header.Set("Content-Type", "audio/wav")

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy wav: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return &body, mw.FormDataContentType(), nil
}
