package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/v0xg/playbot/internal/automation"
	"github.com/v0xg/playbot/internal/records"
	"github.com/v0xg/playbot/internal/report"
)

func newRunCmd() *cobra.Command {
	var autoAuth bool

	cmd := &cobra.Command{
		Use:       "run <card|tax|transfer|all>",
		Short:     "Run a portal automation",
		Long:      "Runs one automation, or all three in order with a fresh browser session each.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"card", "tax", "transfer", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			if target != "all" {
				if _, ok := automation.Lookup(records.Kind(target)); !ok {
					return fmt.Errorf("unknown automation: %s (available: card, tax, transfer, all)", target)
				}
			}

			cfg, logger, closeLog, err := loadEnvironment(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			out := cmd.OutOrStdout()
			if autoAuth {
				color.New(color.FgYellow).Fprintln(out, "⚠ --auto-auth: certificate authentication will not be awaited")
			}

			ctx := cmd.Context()
			runner := automation.NewRunner(cfg, nil, logger, automation.Options{AutoAuth: autoAuth})

			var results []report.Result
			if target == "all" {
				fmt.Fprintln(out, "→ Running card, tax and transfer automations...")
				results = runner.RunAll(ctx)
			} else {
				a, _ := automation.Lookup(records.Kind(target))
				fmt.Fprintf(out, "→ Running %s...\n", a.Name)
				results = append(results, runner.Run(ctx, a.Kind))
			}

			printSummary(out, results)
			if err := ctx.Err(); err != nil {
				return err
			}
			if !allOK(results) {
				return &exitError{code: exitFailed}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoAuth, "auto-auth", false, "Skip the certificate wait (test portals only)")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available automations",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available automations:")
			for _, a := range automation.Automations {
				fmt.Fprintf(out, "  %-9s %s\n", a.Kind, a.Name)
				fmt.Fprintf(out, "  %-9s %s\n", "", a.Description)
			}
		},
	}
}

// allOK reports whether every run finished COMPLETED or NO_RECORDS.
func allOK(results []report.Result) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Status.OK() {
			return false
		}
	}
	return true
}

func printSummary(out io.Writer, results []report.Result) {
	fmt.Fprintln(out)
	for _, r := range results {
		mark, c := "✓", color.New(color.FgGreen)
		if !r.Status.OK() {
			mark, c = "✗", color.New(color.FgRed, color.Bold)
		}
		c.Fprintf(out, "%s %-9s %-22s", mark, r.Kind, r.Status)
		fmt.Fprintf(out, " processed=%d success=%d failure=%d", r.Processed, r.Success, r.Failure)
		if r.Kind == string(records.Transfer) && (r.Selected > 0 || r.Transferred > 0) {
			fmt.Fprintf(out, " selected=%d transferred=%d", r.Selected, r.Transferred)
		}
		fmt.Fprintln(out)

		if r.Error != "" {
			color.New(color.FgRed).Fprintf(out, "    error: %s\n", r.Error)
		}
		for _, w := range r.Warnings {
			color.New(color.FgYellow).Fprintf(out, "    ⚠ %s\n", w)
		}
		for _, item := range r.Items {
			if item.Outcome == report.Failure {
				fmt.Fprintf(out, "    - %s: %s\n", itemName(item), item.Message)
			}
		}
	}
}

func itemName(item report.Item) string {
	parts := make([]string, 0, 2)
	for _, s := range []string{item.Key, item.Label} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
