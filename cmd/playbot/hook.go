package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/v0xg/playbot/internal/playbook"
)

func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Editor hooks that read an edit request on stdin",
	}
	cmd.AddCommand(newHookValidateCmd(), newHookLintCmd())
	return cmd
}

// newHookValidateCmd blocks writes that leave a playbook invalid. Only files
// whose path names a playbook are checked; anything else passes.
func newHookValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Reject edits that leave a playbook invalid (exit 2)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stderr := cmd.ErrOrStderr()
			req, ok := readEditRequest(cmd.InOrStdin(), stderr)
			if !ok || !playbook.IsPlaybookFile(req.FilePath) {
				return nil
			}

			data, err := os.ReadFile(req.FilePath)
			if err != nil {
				fmt.Fprintf(stderr, "cannot read %s: %v\n", req.FilePath, err)
				return &exitError{code: exitBlocked}
			}
			res := playbook.Validate(data)
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s: %s\n", req.FilePath, w)
			}
			if res.Valid() {
				return nil
			}
			fmt.Fprintf(stderr, "%s is not a valid playbook:\n", req.FilePath)
			for _, e := range res.Errors {
				fmt.Fprintf(stderr, "  - %s\n", e)
			}
			return &exitError{code: exitBlocked}
		},
	}
}

// newHookLintCmd reports risky selectors in an edit. It never blocks.
func newHookLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Warn about brittle selectors in an edit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			req, ok := readEditRequest(cmd.InOrStdin(), cmd.ErrOrStderr())
			if !ok {
				return
			}
			for _, msg := range playbook.LintEdit(req) {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", msg)
			}
		},
	}
}

// readEditRequest decodes stdin. Malformed input is reported and skipped so a
// broken hook payload never blocks the editor.
func readEditRequest(in io.Reader, stderr io.Writer) (playbook.EditRequest, bool) {
	data, err := io.ReadAll(in)
	if err != nil {
		fmt.Fprintf(stderr, "read hook input: %v\n", err)
		return playbook.EditRequest{}, false
	}
	req, err := playbook.ParseEditRequest(data)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return playbook.EditRequest{}, false
	}
	return req, true
}
