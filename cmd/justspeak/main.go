package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/lexiqai/justspeak/internal/audio"
	"github.com/lexiqai/justspeak/internal/config"
	"github.com/lexiqai/justspeak/internal/observability"
	"github.com/lexiqai/justspeak/internal/overlay"
	"github.com/lexiqai/justspeak/internal/paste"
	"github.com/lexiqai/justspeak/internal/resilience"
	"github.com/lexiqai/justspeak/internal/session"
	"github.com/lexiqai/justspeak/internal/stt"
	"github.com/lexiqai/justspeak/internal/trigger"
)

type options struct {
	server    string
	noOverlay bool
	noStream  bool
	logLevel  string
}

func main() {
	err := newRootCommand().Execute()
	midi.CloseDriver()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "justspeak",
		Short:         "Push-to-talk dictation: hold Right Alt or the foot pedal, speak, release to paste",
		Version:       observability.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
				return err
			}

			observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
			logger := observability.GetLogger()

			if err := run(cmd.Context(), cfg); err != nil {
				logger.Error().Err(err).Msg("justspeak stopped")
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.server, "server", "s", "", "transcription service URL (overrides NEMOSPEECH_URL and the config file)")
	flags.BoolVar(&opts.noOverlay, "no-overlay", false, "disable the live transcript overlay")
	flags.BoolVar(&opts.noStream, "no-stream", false, "skip live streaming and transcribe every session in one upload")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	return cmd
}

// loadConfig applies command-line flags on top of env and config file values.
// Validation runs after the flags, so a valid --server rescues a bad NEMOSPEECH_URL.
func loadConfig(cmd *cobra.Command, opts options) (*config.Config, error) {
	flags := cmd.Flags()
	return config.Load(func(cfg *config.Config) {
		if flags.Changed("server") {
			cfg.ServerURL = opts.server
		}
		if opts.noOverlay {
			cfg.OverlayEnabled = false
		}
		if opts.noStream {
			cfg.StreamingEnabled = false
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = opts.logLevel
		}
	})
}

// streamConfig derives pipeline timings from cfg. The dial threshold follows the
// minimum recording length so a discarded session never opens a connection.
func streamConfig(cfg *config.Config) stt.StreamConfig {
	streamCfg := stt.DefaultStreamConfig(cfg.ServerURL)
	streamCfg.TickInterval = cfg.TickInterval()
	streamCfg.FinalTimeout = cfg.FinalTimeout()
	streamCfg.DialTimeout = cfg.DialTimeout()
	streamCfg.MinSamples = audio.SamplesFor(cfg.MinRecordingDuration())
	return streamCfg
}

func run(parent context.Context, cfg *config.Config) error {
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.ConfigFileErr != nil {
		logger.Warn().Err(cfg.ConfigFileErr).Str("path", cfg.ConfigFile).Msg("Ignoring config file, using defaults")
	}

	logger.Info().
		Str("server_url", cfg.ServerURL).
		Bool("streaming", cfg.StreamingEnabled).
		Bool("overlay", cfg.OverlayEnabled).
		Str("log_level", cfg.LogLevel).
		Msg("justspeak starting")

	// Delivery first: without a clipboard there is nowhere to put text
	paster, err := paste.New(paste.Config{SettleDelay: cfg.PasteSettle()}, logger)
	if err != nil {
		return fmt.Errorf("paste unavailable: %w", err)
	}

	checker, err := stt.NewHealthChecker(cfg.ServerURL, cfg.DialTimeout())
	if err != nil {
		return err
	}
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.InitialBackoff = cfg.RetryBackoff()
	if _, err := checker.Preflight(ctx, retry, logger); err != nil {
		return err
	}

	capture, err := audio.NewCapture(audio.CaptureConfig{FramesPerBuffer: cfg.FramesPerBuffer}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := capture.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close audio capture")
		}
	}()

	breaker := resilience.NewCircuitBreaker("stream", cfg.CircuitBreakerMaxFailures, cfg.BreakerResetTimeout())
	breaker.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
		logger.Warn().Str("service", name).Str("state", state.String()).Msg("Circuit breaker state changed")
	})

	streamer, err := stt.NewStreamer(streamConfig(cfg), breaker, logger)
	if err != nil {
		return err
	}

	batch, err := stt.NewBatchClient(cfg.ServerURL, cfg.BatchRequestTimeout(), logger)
	if err != nil {
		return err
	}

	deps := session.Deps{
		Recorder:  capture,
		Streamer:  streamer,
		Batch:     batch,
		Locator:   overlay.NewHyprlandLocator(logger),
		Deliverer: paster,
	}
	if cfg.OverlayEnabled {
		deps.Overlays = overlay.NewConsoleFactory(os.Stdout, logger)
	}

	machine := session.New(session.Config{
		Streaming:   cfg.StreamingEnabled,
		MinDuration: cfg.MinRecordingDuration(),
	}, deps, logger)

	if cfg.MetricsEnabled {
		server := observability.NewStatusServer(cfg.StatusAddr, func() string {
			return machine.State().String()
		}, map[string]observability.HealthCheckFunc{
			"transcription": checker.Healthy,
		})

		go func() {
			logger.Info().Str("addr", cfg.StatusAddr).Msg("Status server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Status server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	inputs, err := listenTriggers(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("trigger unavailable: %w", err)
	}

	logger.Info().Int("keycode", cfg.TriggerKeycode).Msg("Ready, hold the trigger key to dictate")

	err = machine.Run(ctx, trigger.Merge(ctx, inputs...))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info().Msg("justspeak exited")
	return nil
}

// keyboardSources lists the keyboard backends to try, best first
func keyboardSources(cfg *config.Config, logger zerolog.Logger) []trigger.Source {
	evdevSource := trigger.NewEvdevSource(uint16(cfg.TriggerKeycode), logger)
	hookSource := trigger.NewHookSource(uint16(cfg.X11TriggerKeycode), logger)

	switch cfg.TriggerBackend {
	case config.TriggerEvdev:
		return []trigger.Source{evdevSource}
	case config.TriggerX11:
		return []trigger.Source{hookSource}
	}
	if os.Getenv("DISPLAY") == "" {
		return []trigger.Source{evdevSource}
	}
	return []trigger.Source{evdevSource, hookSource}
}

// listenTriggers starts the keyboard and, when one is plugged in, the foot pedal.
// The keyboard is required; the pedal is optional.
func listenTriggers(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ([]<-chan trigger.Event, error) {
	keys, err := trigger.FirstAvailable(ctx, logger, keyboardSources(cfg, logger)...)
	if err != nil {
		return nil, err
	}
	inputs := []<-chan trigger.Event{keys}

	if cfg.MIDIPort == "" {
		return inputs, nil
	}
	pedal, err := trigger.NewMIDISource(cfg.MIDIPort, uint8(cfg.MIDIController), logger).Listen(ctx)
	if err != nil {
		logger.Info().Err(err).Msg("No MIDI foot pedal, keyboard only")
		return inputs, nil
	}
	return append(inputs, pedal), nil
}
