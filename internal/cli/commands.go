package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"romforge/internal/checksum"
	"romforge/internal/configure"
	"romforge/internal/ctxlog"
	"romforge/internal/firstdiff"
)

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return invalidInvocationf("%s: expected %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

func isUsageError(err error) bool {
	return strings.HasPrefix(err.Error(), "unknown command") ||
		strings.HasPrefix(err.Error(), "unknown flag") ||
		strings.HasPrefix(err.Error(), "unknown shorthand flag")
}

func newConfigureCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Compile the segment manifest and write the ninja build file",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := configure.Run(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			state := "unchanged"
			if res.Changed() {
				state = "updated"
			}
			fmt.Fprintf(a.stdout, "wrote %s (%d actions, graph %s, %s)\n",
				res.NinjaFile, res.Graph.Len(), res.Graph.Hash(), state)
			return nil
		},
	}
}

func newGraphCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the build graph as JSON without writing any file",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := configure.Plan(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			b, err := g.Description().MarshalIndent()
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(b)
			return err
		},
	}
}

func newVerifyCommand(a *app) *cobra.Command {
	var touch string
	cmd := &cobra.Command{
		Use:   "verify <checksum-manifest>",
		Short: "Check artifacts against a checksum manifest",
		Long: `verify hashes every file listed in the manifest and compares it with the
expected digest. Relative paths are taken from the working directory, as with
sha1sum -c. With --touch, the sentinel file is created only when every digest
matches.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := ctxlog.FromContext(cmd.Context())
			entries, err := checksum.Load(args[0])
			if err != nil {
				return &InvocationError{ExitCode: ExitConfigError, Message: err.Error()}
			}
			results, verr := checksum.Verify(entries, "")
			for _, r := range results {
				status := "OK"
				switch {
				case r.Err != nil:
					status = "FAILED open or read"
				case !r.OK:
					status = "FAILED"
				}
				fmt.Fprintf(a.stdout, "%s: %s\n", r.Entry.Path, status)
			}
			if verr != nil {
				return verr
			}
			if touch != "" {
				if err := checksum.Touch(touch); err != nil {
					return err
				}
				log.Debug("Verification passed", "sentinel", touch)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&touch, "touch", "", "Sentinel file to create when verification succeeds")
	return cmd
}

func newDiffCommand(a *app) *cobra.Command {
	var (
		count      int
		separators bool
		color      string
	)
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Find the first differences between the built and the expected ROM",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("count") {
				count = a.cfg.Diff.Count
			}
			if count < 1 {
				return invalidInvocationf("--count must be at least 1 (got %d)", count)
			}
			if !cmd.Flags().Changed("color") {
				color = a.cfg.Diff.Color
			}
			colored, err := useColor(color, a.stdout)
			if err != nil {
				return err
			}

			cfg := a.cfg
			in, err := firstdiff.Open(cmd.Context(), firstdiff.Paths{
				CandidateRom: cfg.Resolve(cfg.Rom()),
				CandidateMap: cfg.Resolve(cfg.Map()),
				ReferenceRom: cfg.Resolve(cfg.ExpectedRom()),
				ReferenceMap: cfg.Resolve(cfg.ExpectedMap()),
			})
			if err != nil {
				return err
			}
			report := in.Diagnose(firstdiff.Engine{MaxCount: count, Separators: separators})
			writeReport(a.stdout, newStyles(a.stdout, colored), report)
			if !report.Empty() {
				return ErrDivergence
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&count, "count", "c", firstdiff.DefaultCount, "Find up to this many differences")
	f.BoolVarP(&separators, "add-colons", "a", false, "Add colons between bytes in output")
	f.StringVar(&color, "color", ColorAuto, "Colour output: auto, always or never")
	return cmd
}
