package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"provify/internal/format"
	"provify/internal/lifecycle"
	"provify/internal/orchestrate"
	"provify/internal/target"
	"provify/internal/wiring"
)

func newVerifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <bug-id>",
		Short: "Try to reproduce a bug on every connected device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, g, args[0], lifecycle.IntentVerify)
		},
	}
}

func newReverifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reverify <bug-id>",
		Short: "Check whether a fixed bug still reproduces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, g, args[0], lifecycle.IntentReverify)
		},
	}
}

func runOne(cmd *cobra.Command, g *globalFlags, bugID string, intent lifecycle.Intent) error {
	return g.withEngine(cmd, func(ctx context.Context, e *wiring.Engine) error {
		if err := e.CanVerifyLocally(); err != nil {
			return err
		}
		rep, err := e.Orchestrator.Run(ctx, bugID, intent)
		if rep != nil {
			if perr := g.print(cmd, func(m format.Mode) string { return format.RunReport(m, rep) }); perr != nil {
				return perr
			}
		}
		return err
	})
}

func newVerifyAllCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-all",
		Short: "Verify every pending bug, one bug at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, g, (*orchestrate.Orchestrator).VerifyPending)
		},
	}
}

func newReverifyFixedCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reverify-fixed",
		Short: "Re-verify every fixed bug, one bug at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, g, (*orchestrate.Orchestrator).ReverifyFixed)
		},
	}
}

func runBatch(cmd *cobra.Command, g *globalFlags, batch func(*orchestrate.Orchestrator, context.Context) (orchestrate.BatchReport, error)) error {
	return g.withEngine(cmd, func(ctx context.Context, e *wiring.Engine) error {
		if err := e.CanVerifyLocally(); err != nil {
			return err
		}
		rep, err := batch(e.Orchestrator, ctx)
		if len(rep.Items) == 0 && err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to do.")
			return nil
		}
		if perr := g.print(cmd, func(m format.Mode) string { return format.Batch(m, rep) }); perr != nil {
			return perr
		}
		if err != nil {
			return err
		}
		if n := rep.Failed(); n > 0 {
			return fmt.Errorf("%d of %d bugs failed", n, len(rep.Items))
		}
		return nil
	})
}

func newDevicesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the devices verifications would run on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withEngine(cmd, func(ctx context.Context, e *wiring.Engine) error {
				ts, err := e.Registry.All(ctx)
				if err != nil {
					return err
				}
				if len(ts) == 0 {
					return target.ErrNoTargetsAvailable
				}
				return g.print(cmd, func(m format.Mode) string { return format.Targets(m, ts) })
			})
		},
	}
}
