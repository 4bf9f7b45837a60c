// Package cli implements the romforge command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"romforge/internal/config"
	"romforge/internal/ctxlog"
)

// app is the state shared by all subcommands once the root command has
// loaded the project configuration.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the romforge command tree writing to stdout/stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "romforge",
		Short: "Rebuild a console ROM from its decomposition and explain mismatches",
		Long: `romforge turns a segment manifest into a ninja build file that assembles,
links and verifies a matching ROM image, and reports where a built image
differs from the expected one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Project file (default "+config.DefaultFile+")")
	pf.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newConfigureCommand(a),
		newGraphCommand(a),
		newVerifyCommand(a),
		newDiffCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	switch a.logFormat {
	case "text", "json":
	default:
		return invalidInvocationf("invalid --log-format %q (expected text|json)", a.logFormat)
	}
	logger := ctxlog.New(a.logLevel, a.logFormat, a.stderr)
	cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return &InvocationError{ExitCode: ExitConfigError, Message: err.Error()}
	}
	a.cfg = cfg
	logger.Debug("Loaded configuration", "root", cfg.Root, "basename", cfg.Basename)
	return nil
}

// Execute runs romforge with args and returns the process exit code. Errors
// are printed to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	code := ExitCode(err)
	// Cobra reports unknown commands and bad arity as plain errors.
	if code == ExitInternalError && isUsageError(err) {
		code = ExitInvalidInvocation
	}
	if !errors.Is(err, ErrDivergence) {
		fmt.Fprintln(stderr, "romforge:", err)
	}
	return code
}
