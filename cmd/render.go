package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ColonelBlimp/cwtrainer/internal/cw"
	"github.com/ColonelBlimp/cwtrainer/internal/keyer"
	"github.com/ColonelBlimp/cwtrainer/internal/practice"
)

// checkTolerance is how far a measured tone edge may drift from the plan.
const checkTolerance = 12 * time.Millisecond

type renderParams struct {
	Out   string
	Text  string
	Seed  int64
	Check bool
	Code  bool
}

func newRenderCmd() *cobra.Command {
	var params renderParams

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render practice text to a WAV file",
		Long: `Keys generated practice text, or the text given with --text, into a
WAV file using the current speed, tone and lesson settings.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd, params)
		},
	}

	cmd.Flags().StringVarP(&params.Out, "out", "o", "", "output WAV file")
	cmd.Flags().StringVarP(&params.Text, "text", "t", "", "text to key instead of generated groups")
	cmd.Flags().Int64Var(&params.Seed, "seed", 0, "random seed for generated text (0 = random)")
	cmd.Flags().BoolVar(&params.Check, "check", false, "measure the rendered tones against the keying plan")
	cmd.Flags().BoolVar(&params.Code, "code", false, "also print the keyed text as dots and dashes")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runRender(cmd *cobra.Command, params renderParams) error {
	if params.Out == "" {
		return errors.New("--out is required")
	}

	cfg, logger, err := loadSettings(true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	settings := cfg.Keyer()
	text := params.Text
	if text == "" {
		lessons, err := practice.LoadLessons(cfg.LessonsFile)
		if err != nil {
			return err
		}
		opts, err := cfg.Practice(lessons)
		if err != nil {
			return err
		}
		gen := practice.NewGenerator()
		if params.Seed != 0 {
			gen = practice.NewSeededGenerator(params.Seed)
		}
		text, err = gen.Generate(opts.Charset, opts.TotalChars, settings.GroupSize)
		if err != nil {
			return err
		}
		if preamble := strings.TrimSpace(opts.Preamble); preamble != "" {
			text = preamble + " " + text
		}
	}

	f, err := os.Create(params.Out)
	if err != nil {
		return fmt.Errorf("create %s: %w", params.Out, err)
	}

	tl, err := keyer.Render(f, text, settings, cfg.SampleRate, nil)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", params.Out, cerr)
	}
	if err != nil {
		_ = os.Remove(params.Out)
		return err
	}

	logger.Debug("rendered",
		zap.String("path", params.Out),
		zap.Int("runes", len(tl.Progress)),
		zap.Duration("length", tl.Length))
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d characters, %s at %d WPM)\n",
		params.Out, len(tl.Progress), tl.Length.Round(time.Millisecond), settings.WPM)
	if params.Code {
		fmt.Fprintf(cmd.OutOrStdout(), "Code: %s\n", cw.DefaultTable.Encode(text))
	}

	if !params.Check {
		return nil
	}
	res, err := keyer.Check(tl, settings, cfg.SampleRate)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Check: %d/%d tones, max error %s\n",
		res.Detected, res.Expected, res.MaxError.Round(100*time.Microsecond))
	if !res.OK(checkTolerance) {
		return fmt.Errorf("rendered timing differs from the plan by more than %s", checkTolerance)
	}
	return nil
}
