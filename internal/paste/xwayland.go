package paste

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// FocusInspector reports whether the focused window is an XWayland client
type FocusInspector interface {
	FocusedXWayland(ctx context.Context) bool
}

// Typer types text into the focused window key by key
type Typer interface {
	Type(ctx context.Context, text string) error
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// HyprlandFocus asks Hyprland about the active window via hyprctl
type HyprlandFocus struct {
	timeout time.Duration
	logger  zerolog.Logger
	run     runFunc
}

// NewHyprlandFocus creates an inspector that shells out to hyprctl
func NewHyprlandFocus(logger zerolog.Logger) *HyprlandFocus {
	return &HyprlandFocus{
		timeout: 500 * time.Millisecond,
		logger:  logger.With().Str("component", "paste").Logger(),
		run:     runCommand,
	}
}

// FocusedXWayland reports false whenever Hyprland cannot be asked
func (h *HyprlandFocus) FocusedXWayland(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	out, err := h.run(ctx, "hyprctl", "activewindow", "-j")
	if err != nil {
		h.logger.Debug().Err(err).Msg("hyprctl unavailable, assuming native Wayland window")
		return false
	}

	xwayland, err := parseActiveWindow(out)
	if err != nil {
		h.logger.Debug().Err(err).Msg("Unexpected hyprctl output, assuming native Wayland window")
		return false
	}
	return xwayland
}

func parseActiveWindow(data []byte) (bool, error) {
	var win struct {
		XWayland bool `json:"xwayland"`
	}
	if err := json.Unmarshal(data, &win); err != nil {
		return false, fmt.Errorf("decode activewindow: %w", err)
	}
	return win.XWayland, nil
}

// XdotoolTyper types through xdotool, which X clients accept without a clipboard round trip
type XdotoolTyper struct {
	run runFunc
}

// NewXdotoolTyper returns nil when xdotool is not installed
func NewXdotoolTyper() *XdotoolTyper {
	if _, err := exec.LookPath("xdotool"); err != nil {
		return nil
	}
	return &XdotoolTyper{run: runCommand}
}

func (x *XdotoolTyper) Type(ctx context.Context, text string) error {
	if _, err := x.run(ctx, "xdotool", "type", "--clearmodifiers", "--", text); err != nil {
		return fmt.Errorf("xdotool type: %w", err)
	}
	return nil
}
