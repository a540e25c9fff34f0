// cmd/root.go
package cmd

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ColonelBlimp/cwtrainer/internal/audio"
	"github.com/ColonelBlimp/cwtrainer/internal/config"
	"github.com/ColonelBlimp/cwtrainer/internal/history"
	"github.com/ColonelBlimp/cwtrainer/internal/keyer"
	"github.com/ColonelBlimp/cwtrainer/internal/logging"
	"github.com/ColonelBlimp/cwtrainer/internal/practice"
	"github.com/ColonelBlimp/cwtrainer/internal/tui"
)

var errNotTerminal = errors.New("practice needs an interactive terminal")

var rootCmd = &cobra.Command{
	Use:   "cwtrainer",
	Short: "Morse code (CW) copy practice",
	Long: `Plays random groups of characters as Morse code and scores what you copy.

Run without a subcommand for interactive practice: ctrl+s starts and stops a
session, ctrl+t shows the text, ctrl+r scores your copy and esc quits.`,
	SilenceUsage: true,
	RunE:         runPractice,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	flags := rootCmd.PersistentFlags()
	flags.IntP("device", "d", -1, "audio device index (-1 for default)")
	flags.Float64P("frequency", "f", 750, "tone frequency in Hz")
	flags.IntP("wpm", "w", 18, "character speed in WPM")
	flags.BoolP("debug", "D", false, "enable debug logging")
	flags.Int("farnsworth", 0, "effective speed for spacing in WPM (0 = off)")
	flags.Float64("volume", 0.7, "tone volume (0.0-1.0)")
	flags.IntP("group-size", "g", 4, "characters per group")
	flags.StringP("chars", "c", "", "characters to practice (overrides --lesson)")
	flags.StringP("lesson", "l", practice.DefaultLesson, "lesson id")
	flags.StringP("preamble", "p", "VVVV", "text keyed before each session")
	flags.IntP("total", "n", 120, "characters per session")
	flags.Bool("show-text", false, "show the text while it plays")

	rootCmd.AddCommand(newRenderCmd(), newLessonsCmd(), newHistoryCmd(), newDevicesCmd())
}

// bindFlags ties the persistent flags to their config keys. It runs on
// every initialization so the bindings survive a viper reset.
func bindFlags() {
	bindFlag("device_index", "device")
	bindFlag("tone_frequency", "frequency")
	bindFlag("wpm", "wpm")
	bindFlag("debug", "debug")
	bindFlag("farnsworth_wpm", "farnsworth")
	bindFlag("volume", "volume")
	bindFlag("group_size", "group-size")
	bindFlag("charset", "chars")
	bindFlag("lesson", "lesson")
	bindFlag("preamble", "preamble")
	bindFlag("total_chars", "total")
	bindFlag("show_text", "show-text")
}

func bindFlag(key, name string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

func initConfig() {
	bindFlags()
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

// loadSettings reads the config and builds the logger every command uses.
// The console core is left off while the TUI owns the terminal.
func loadSettings(console bool) (*config.Settings, *zap.Logger, error) {
	cfg, err := config.Get()
	if err != nil {
		return nil, nil, err
	}
	opts := logging.Options{File: cfg.LogFile, Debug: cfg.Debug}
	if console {
		opts.Console = os.Stderr
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, nil, err
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}

func runPractice(_ *cobra.Command, _ []string) error {
	cfg, logger, err := loadSettings(false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errNotTerminal
	}

	lessons, err := practice.LoadLessons(cfg.LessonsFile)
	if err != nil {
		return err
	}
	opts, err := cfg.Practice(lessons)
	if err != nil {
		return err
	}

	output := audio.NewOutput(cfg.Audio(), cfg.ToneFrequency)
	k, err := keyer.New(output, cfg.Keyer(), keyer.WithLogger(logger.Named("keyer")))
	if err != nil {
		return err
	}
	defer func() {
		if err := k.Close(); err != nil {
			logger.Warn("close audio", zap.Error(err))
		}
	}()

	audioReady := true
	if err := k.InitializeAudio(); err != nil {
		logger.Warn("audio unavailable", zap.Error(err))
		audioReady = false
	}

	ctrlOpts := []practice.Option{practice.WithLogger(logger.Named("practice"))}
	store, err := history.Open(cfg.HistoryFile(), cfg.HistoryLimit)
	if err != nil {
		logger.Warn("history unavailable", zap.String("path", cfg.HistoryFile()), zap.Error(err))
	} else {
		defer func() { _ = store.Close() }()
		ctrlOpts = append(ctrlOpts, practice.WithRecorder(store))
	}

	ctrl := practice.NewController(k, opts, ctrlOpts...)
	defer ctrl.Wait()
	events := tui.NewEvents()
	ctrl.SetCallback(events.Push)
	defer ctrl.SetCallback(nil)

	config.Watch(func(next *config.Settings, err error) {
		applyConfig(logger, k, ctrl, lessons, next, err)
	})

	logger.Info("practice started",
		zap.String("lesson", cfg.Lesson),
		zap.Int("wpm", cfg.WPM),
		zap.Bool("audio", audioReady))

	model := tui.NewModel(ctrl, events, tui.Config{
		ShowText:   cfg.ShowText,
		AudioReady: audioReady,
		WPM:        cfg.WPM,
		Lesson:     cfg.Lesson,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	ctrl.Stop()
	return nil
}

// applyConfig pushes a reloaded config into the running keyer and controller.
func applyConfig(logger *zap.Logger, k *keyer.Keyer, ctrl *practice.Controller, lessons []practice.Lesson, next *config.Settings, err error) {
	if err != nil {
		logger.Warn("config reload rejected", zap.Error(err))
		return
	}
	if err := k.UpdateSettings(k.Settings().Diff(next.Keyer())); err != nil {
		logger.Warn("keyer settings rejected", zap.Error(err))
		return
	}
	opts, err := next.Practice(lessons)
	if err != nil {
		logger.Warn("practice options rejected", zap.Error(err))
		return
	}
	ctrl.SetOptions(opts)
	logger.Info("config reloaded")
}
