package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/v0xg/playbot/internal/config"
	"github.com/v0xg/playbot/internal/logging"
)

// Exit codes
const (
	exitOK        = 0
	exitFailed    = 1
	exitBlocked   = 2 // hook validate rejected the write
	exitInterrupt = 130
)

var (
	configPath string
	verbose    bool
)

// exitError ends the process with code. A nil err means the command already
// reported the problem.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	code := exitCode(ctx, err)
	stop()

	if err != nil && code != exitInterrupt {
		var ee *exitError
		if !errors.As(err, &ee) || ee.err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	if code == exitInterrupt {
		fmt.Fprintln(os.Stderr, "interrupted")
	}
	os.Exit(code)
}

func exitCode(ctx context.Context, err error) int {
	if ctx.Err() != nil {
		return exitInterrupt
	}
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailed
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "playbot",
		Short: "Playbook-driven automation for the subsidy management portal",
		Long: `playbot registers subsidy-card charges and electronic tax invoices as
expenses and prepares bulk transfers on the subsidy management portal.
Every interaction is a playbook step whose selectors carry ranked fallbacks.

Example:
  playbot run card
  playbot run all --config config/settings.yaml
  playbot validate playbooks/login.json`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Settings file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug records to the console")

	root.AddCommand(
		newRunCmd(),
		newListCmd(),
		newValidateCmd(),
		newPlayCmd(),
		newSuggestCmd(),
		newHookCmd(),
	)
	return root
}

// loadEnvironment reads the settings file and builds the process logger.
// The returned function closes the log file.
func loadEnvironment(stderr io.Writer) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger, closeLog, err := logging.Setup(logging.Options{Console: stderr, Level: level, File: cfg.Logging.File})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, func() { _ = closeLog() }, nil
}
