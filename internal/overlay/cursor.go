package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// Default cursor position when the compositor cannot be queried
const (
	FallbackX = 960.0
	FallbackY = 800.0
)

// Locator reports the pointer position used to place the final overlay
type Locator interface {
	CursorPosition(ctx context.Context) (x, y float64)
}

// HyprlandLocator asks Hyprland for the cursor position via hyprctl
type HyprlandLocator struct {
	timeout time.Duration
	logger  zerolog.Logger
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewHyprlandLocator creates a locator that shells out to hyprctl
func NewHyprlandLocator(logger zerolog.Logger) *HyprlandLocator {
	return &HyprlandLocator{
		timeout: 500 * time.Millisecond,
		logger:  logger.With().Str("component", "cursor").Logger(),
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// CursorPosition returns the cursor position or (FallbackX, FallbackY)
func (l *HyprlandLocator) CursorPosition(ctx context.Context) (float64, float64) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	out, err := l.run(ctx, "hyprctl", "cursorpos", "-j")
	if err != nil {
		l.logger.Debug().Err(err).Msg("hyprctl unavailable, using fallback cursor position")
		return FallbackX, FallbackY
	}

	x, y, err := parseCursorPos(out)
	if err != nil {
		l.logger.Debug().Err(err).Msg("Unexpected hyprctl output, using fallback cursor position")
		return FallbackX, FallbackY
	}
	return x, y
}

func parseCursorPos(data []byte) (float64, float64, error) {
	var pos struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &pos); err != nil {
		return 0, 0, fmt.Errorf("decode cursorpos: %w", err)
	}
	if pos.X == nil || pos.Y == nil {
		return 0, 0, fmt.Errorf("cursorpos missing x or y")
	}
	return *pos.X, *pos.Y, nil
}
