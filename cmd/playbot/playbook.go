package main

import (
	"context"
	"encoding/json"
	"fmt"
	imagecolor "image/color"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/v0xg/playbot/internal/ai"
	"github.com/v0xg/playbot/internal/artifact"
	"github.com/v0xg/playbot/internal/automation"
	"github.com/v0xg/playbot/internal/browser"
	"github.com/v0xg/playbot/internal/config"
	"github.com/v0xg/playbot/internal/executor"
	"github.com/v0xg/playbot/internal/gifgen"
	"github.com/v0xg/playbot/internal/overlay"
	"github.com/v0xg/playbot/internal/playbook"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <playbook.json>",
		Short: "Check a playbook file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read playbook: %w", err)
			}
			res := playbook.Validate(data)
			printValidation(out, res)
			if !res.Valid() {
				color.New(color.FgRed, color.Bold).Fprintf(out, "✗ %s is invalid (%d errors)\n", args[0], len(res.Errors))
				return &exitError{code: exitFailed}
			}
			color.New(color.FgGreen).Fprintf(out, "✓ %s is valid", args[0])
			if n := len(res.Warnings); n > 0 {
				fmt.Fprintf(out, " (%d warnings)", n)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func printValidation(w io.Writer, res *playbook.Result) {
	for _, e := range res.Errors {
		color.New(color.FgRed).Fprintf(w, "  error: %s\n", e)
	}
	for _, msg := range res.Warnings {
		color.New(color.FgYellow).Fprintf(w, "  warning: %s\n", msg)
	}
}

func newPlayCmd() *cobra.Command {
	var (
		record string
		fps    int
		width  uint
	)

	cmd := &cobra.Command{
		Use:   "play <playbook.json>",
		Short: "Execute a playbook in the browser",
		Long: `Executes a playbook step by step and prints each step's outcome.
With --record every step is captured, the acted-on element is outlined
and the frames are written as an animated GIF.

Example:
  playbot play playbooks/login.json
  playbot play playbooks/login.json --record login.gif`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			pb, cfg, logger, closeLog, err := loadPlaybook(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeLog()

			ctx := cmd.Context()
			fmt.Fprint(out, "→ Launching browser... ")
			sess, err := automation.Launcher(cfg)(ctx)
			if err != nil {
				fmt.Fprintln(out, "failed")
				return err
			}
			defer sess.Close()
			fmt.Fprintln(out, "done")

			fmt.Fprintf(out, "→ Playing %s (%d steps)\n", pb.ID, len(pb.Steps))
			exec := newExecutor(cfg, sess.Page(), logger, record != "")
			rep := exec.Run(ctx, pb)
			printSteps(out, rep)

			if record != "" {
				if err := writeRecording(out, cfg, rep.Frames, record, fps, width); err != nil {
					return err
				}
			}
			if !rep.OK() {
				return &exitError{code: exitFailed, err: rep.Err()}
			}
			color.New(color.FgGreen).Fprintln(out, "✓ Playbook completed")
			return nil
		},
	}

	cmd.Flags().StringVarP(&record, "record", "r", "", "Write the run as an animated GIF")
	cmd.Flags().IntVar(&fps, "fps", 1, "Frames per second for --record")
	cmd.Flags().UintVar(&width, "width", 800, "Maximum GIF width for --record")
	return cmd
}

func newSuggestCmd() *cobra.Command {
	var (
		stepID   string
		provider string
		model    string
	)

	cmd := &cobra.Command{
		Use:   "suggest <playbook.json>",
		Short: "Ask a language model for fallback selectors",
		Long: `Runs the playbook up to the failing step (or up to --step), captures the
page's controls and asks the configured provider for fallback selectors.
The suggestions are printed; the playbook is not modified.

Example:
  playbot suggest playbooks/login.json
  playbot suggest playbooks/login.json --step login --provider openai`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			pb, cfg, logger, closeLog, err := loadPlaybook(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeLog()

			if provider == "" {
				provider = cfg.AI.Provider
			}
			if model == "" {
				model = cfg.AI.Model
			}
			p, err := ai.NewProvider(provider, model)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			fmt.Fprint(out, "→ Launching browser... ")
			sess, err := automation.Launcher(cfg)(ctx)
			if err != nil {
				fmt.Fprintln(out, "failed")
				return err
			}
			defer sess.Close()
			fmt.Fprintln(out, "done")

			exec := newExecutor(cfg, sess.Page(), logger, false)
			step, err := runUntil(ctx, out, exec, pb, stepID)
			if err != nil {
				return err
			}
			if step == nil {
				color.New(color.FgGreen).Fprintln(out, "✓ Every step resolved; nothing to suggest")
				return nil
			}

			fmt.Fprint(out, "→ Capturing page... ")
			pm, err := browser.Capture(ctx, sess.Page())
			if err != nil {
				fmt.Fprintln(out, "failed")
				return err
			}
			fmt.Fprintf(out, "done (%d controls)\n", len(pm.Controls))

			fmt.Fprintf(out, "→ Asking %s... ", provider)
			suggestions, err := ai.Suggest(ctx, p, ai.Request{Step: *step, Page: pm, Tried: step.Selector.Candidates()})
			if err != nil {
				fmt.Fprintln(out, "failed")
				return err
			}
			fmt.Fprintln(out, "done")
			return printSuggestions(out, step.ID, suggestions)
		},
	}

	cmd.Flags().StringVar(&stepID, "step", "", "Suggest for this step instead of the first failing one")
	cmd.Flags().StringVar(&provider, "provider", "", "claude or openai (default from settings)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (default per provider)")
	return cmd
}

// runUntil executes pb and returns the step to repair: the one named by id,
// with the steps before it run first, or else the step that failed. A nil
// step means the whole playbook passed.
func runUntil(ctx context.Context, out io.Writer, exec *executor.Executor, pb *playbook.Playbook, id string) (*playbook.Step, error) {
	if id != "" {
		idx := -1
		for i, s := range pb.Steps {
			if s.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("step %q not found in %s", id, pb.ID)
		}
		prefix := *pb
		prefix.Steps = pb.Steps[:idx]
		rep := exec.Run(ctx, &prefix)
		printSteps(out, rep)
		if !rep.OK() {
			return nil, fmt.Errorf("steps before %s failed: %w", id, rep.Err())
		}
		return selectorStep(pb.Steps[idx])
	}

	rep := exec.Run(ctx, pb)
	printSteps(out, rep)
	if rep.OK() {
		return nil, nil
	}
	for _, s := range pb.Steps {
		if s.ID == rep.FailedStep {
			return selectorStep(s)
		}
	}
	return nil, fmt.Errorf("run stopped before any step with a selector: %w", rep.Err())
}

func selectorStep(s playbook.Step) (*playbook.Step, error) {
	if s.Selector == nil {
		return nil, fmt.Errorf("step %s (%s) has no selector", s.ID, s.Type)
	}
	return &s, nil
}

func printSuggestions(out io.Writer, stepID string, suggestions []string) error {
	if len(suggestions) == 0 {
		color.New(color.FgYellow).Fprintf(out, "⚠ No new selectors suggested for %s\n", stepID)
		return nil
	}
	fmt.Fprintf(out, "\nSuggested fallbacks for %s:\n", stepID)
	for _, s := range suggestions {
		fmt.Fprintf(out, "  %s\n", s)
	}
	snippet, err := json.MarshalIndent(map[string][]string{"fallback": suggestions}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n", snippet)
	return nil
}

// loadPlaybook validates and decodes the playbook, then loads settings and
// the logger. Warnings are printed but do not stop the run.
func loadPlaybook(cmd *cobra.Command, path string) (*playbook.Playbook, *config.Config, *slog.Logger, func(), error) {
	pb, res, err := playbook.Load(path)
	if res != nil {
		printValidation(cmd.OutOrStdout(), res)
	}
	if err != nil {
		return nil, nil, nil, nil, err
	}
	cfg, logger, closeLog, err := loadEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return pb, cfg, logger, closeLog, nil
}

func newExecutor(cfg *config.Config, page browser.Page, logger *slog.Logger, record bool) *executor.Executor {
	return executor.New(page, nil, artifact.NewStore(cfg.Output.ScreenshotsDir), logger, executor.Options{
		SettleDelay: cfg.Automation.SettleDelay,
		StepTimeout: cfg.Automation.StepTimeout,
		Record:      record,
		Variables:   cfg.Variables(),
	})
}

func printSteps(out io.Writer, rep *executor.Report) {
	for i, s := range rep.Steps {
		if s.OK() {
			line := fmt.Sprintf("  [%d] ✓ %s", i+1, s.StepID)
			if s.Selector != "" {
				line += " → " + s.Selector
			}
			fmt.Fprint(out, line)
			if s.Healed {
				color.New(color.FgYellow).Fprint(out, " (fallback)")
			}
			fmt.Fprintln(out)
			continue
		}
		color.New(color.FgRed).Fprintf(out, "  [%d] ✗ %s: %s\n", i+1, s.StepID, s.Error)
		if s.Screenshot != "" {
			fmt.Fprintf(out, "      screenshot: %s\n", s.Screenshot)
		}
	}
}

// writeRecording outlines each frame's element and encodes the GIF. Frames
// are captured at device resolution, so boxes are scaled from the viewport.
func writeRecording(out io.Writer, cfg *config.Config, frames []executor.Frame, path string, fps int, width uint) error {
	scale := 1.0
	for _, f := range frames {
		if f.Image != nil && cfg.Browser.Width > 0 {
			scale = float64(f.Image.Bounds().Dx()) / float64(cfg.Browser.Width)
			break
		}
	}

	fmt.Fprintf(out, "→ Encoding GIF (%d frames)... ", len(frames))
	size, err := gifgen.Generate(overlay.Highlight(frames, scale), path, gifgen.Options{
		FPS:      fps,
		MaxWidth: width,
		Reserved: []imagecolor.Color{overlay.SuccessColor, overlay.FailureColor},
	})
	if err != nil {
		fmt.Fprintln(out, "failed")
		return fmt.Errorf("write recording: %w", err)
	}
	fmt.Fprintln(out, "done")
	color.New(color.FgGreen).Fprintf(out, "✓ Saved to %s (%.1f KB)\n", path, float64(size)/1024)
	return nil
}
