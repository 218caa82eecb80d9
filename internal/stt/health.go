package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/justspeak/internal/resilience"
)

// HealthInfo is the optional JSON body of GET /health
type HealthInfo struct {
	Status    string `json:"status"`
	Model     string `json:"model,omitempty"`
	Streaming bool   `json:"streaming,omitempty"`
}

// HealthChecker checks the transcription service
type HealthChecker struct {
	url        string
	httpClient *http.Client
}

// NewHealthChecker creates a checker for the service at serverURL
func NewHealthChecker(serverURL string, timeout time.Duration) (*HealthChecker, error) {
	u, err := endpoint(serverURL, healthPath)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		url:        u,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Check returns nil when the service answers GET /health with 2xx.
// A non-JSON body is accepted.
func (h *HealthChecker) Check(ctx context.Context) (HealthInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return HealthInfo{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return HealthInfo{}, fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return HealthInfo{}, resilience.NewRetryableError(fmt.Errorf("health check failed: status %d", resp.StatusCode))
	}

	var info HealthInfo
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &info)
	return info, nil
}

// Healthy adapts Check to a readiness check
func (h *HealthChecker) Healthy(ctx context.Context) (bool, error) {
	if _, err := h.Check(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Preflight checks the service at startup, retrying transient failures
func (h *HealthChecker) Preflight(ctx context.Context, cfg *resilience.RetryConfig, logger zerolog.Logger) (HealthInfo, error) {
	var info HealthInfo
	attempt := 0
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		attempt++
		var err error
		info, err = h.Check(ctx)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Str("url", h.url).Msg("Transcription service not ready")
		}
		return err
	}, cfg, resilience.IsRetryableNetworkError)
	if err != nil {
		return HealthInfo{}, fmt.Errorf("transcription service not reachable at %s: %w", h.url, err)
	}

	logger.Info().Str("url", h.url).Str("model", info.Model).Bool("streaming", info.Streaming).Msg("Transcription service ready")
	return info, nil
}
