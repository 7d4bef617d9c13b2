// Package cli is the eve-industry command line: production advice, ore
// compression plans, matcher management and a few ESI lookups.
package cli

import (
	"context"
	"errors"
	"os"
	"strings"

	"eve-industry/internal/config"
	"eve-industry/internal/engine"
	"eve-industry/internal/logger"

	"github.com/spf13/cobra"
)

type root struct {
	cfgPath string
	user    int64
	verbose bool

	open opener
	app  *app
}

// Execute runs the command line and returns the process exit code.
func Execute(version string) int {
	r := &root{open: openApp}
	defer r.close()
	cmd := r.command(version)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		failure(cmd.ErrOrStderr(), message(err))
		return 1
	}
	return 0
}

// message turns command errors into what the user should read. Usage
// errors from cobra pass through untouched.
func message(err error) string {
	var ue usageError
	if errors.As(err, &ue) {
		return ue.Error()
	}
	if strings.HasPrefix(err.Error(), "unknown command") {
		return err.Error()
	}
	return engine.UserMessage(err)
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func (r *root) command(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "eve-industry",
		Short:         "Industry advice and ore compression planning for EVE Online",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err.Error()}
	})
	cmd.PersistentFlags().StringVarP(&r.cfgPath, "config", "c", envOr("EVE_INDUSTRY_CONFIG", "eve-industry.yaml"), "config file")
	cmd.PersistentFlags().Int64VarP(&r.user, "user", "u", 0, "acting user id")
	cmd.PersistentFlags().BoolVarP(&r.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		r.adviseCommand(),
		r.refineCommand(),
		r.matcherCommand(),
		r.jobsCommand(),
		r.pagesCommand(),
		r.runsCommand(),
	)
	return cmd
}

// load reads configuration and opens the app on first use.
func (r *root) load(cmd *cobra.Command) (*app, error) {
	if r.app != nil {
		return r.app, nil
	}
	cfg, err := config.Load(r.cfgPath)
	if err != nil {
		return nil, usageError{err.Error()}
	}
	logger.SetLevel(cfg.LogLevel)
	if r.verbose {
		logger.SetLevel("debug")
	}
	a, err := r.open(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	r.app = a
	return a, nil
}

func (r *root) close() {
	if r.app != nil {
		r.app.close()
		r.app = nil
	}
}

// argRange validates the positional argument count.
func argRange(min, max int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < min || (max >= 0 && len(args) > max) {
			return usageError{"usage: " + cmd.UseLine()}
		}
		return nil
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
