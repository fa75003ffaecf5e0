package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"provify/internal/bug"
	"provify/internal/format"
	"provify/internal/intake"
	"provify/internal/store"
	"provify/internal/wiring"
)

type addFlags struct {
	app      string
	pkg      string
	desc     string
	severity int
}

func newAddCmd(g *globalFlags) *cobra.Command {
	f := &addFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Submit a bug report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withEngine(cmd, func(ctx context.Context, e *wiring.Engine) error {
				b, created, err := e.Intake.Add(ctx, bug.Input{
					AppName:     f.app,
					Package:     f.pkg,
					Description: f.desc,
					Severity:    f.severity,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !created {
					fmt.Fprintf(out, "Duplicate of %s (%s), nothing added\n", b.ID, b.Status)
					return nil
				}
				fmt.Fprintf(out, "Added %s for %s\n", b.ID, b.AppName)
				return nil
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.app, "app", "", "App display name (required)")
	fl.StringVar(&f.pkg, "package", "", "Android package; resolved at verification time when empty")
	fl.StringVar(&f.desc, "bug", "", "Bug description (required)")
	fl.IntVar(&f.severity, "severity", 0, "Severity 1..5")
	_ = cmd.MarkFlagRequired("app")
	_ = cmd.MarkFlagRequired("bug")
	return cmd
}

type importFlags struct {
	sample bool
}

func newImportCmd(g *globalFlags) *cobra.Command {
	f := &importFlags{}
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Add every bug from a JSON or YAML file",
		Long: `Adds every entry of a JSON or YAML list of {app_name, app_package, bug, severity}.
Duplicates of existing bugs are reported and skipped.

With --sample, writes an example file to <file> instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if f.sample {
				if err := intake.WriteSample(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote sample to %s\n", args[0])
				return nil
			}
			return g.withEngine(cmd, func(ctx context.Context, e *wiring.Engine) error {
				rep, err := e.Intake.Import(ctx, args[0])
				fmt.Fprintf(out, "Added %d, duplicates %d\n", len(rep.Added), len(rep.Duplicates))
				if len(rep.Added) > 0 {
					fmt.Fprintf(out, "  new: %s\n", strings.Join(rep.Added, ", "))
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&f.sample, "sample", false, "Write a sample import file instead of importing")
	return cmd
}

type listFlags struct {
	status string
	pkg    string
}

func newListCmd(g *globalFlags) *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bugs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := store.Filter{Package: f.pkg}
			if f.status != "" {
				st, err := bug.ParseStatus(f.status)
				if err != nil {
					return err
				}
				filter.Status = st
			}
			return g.withEngine(cmd, func(ctx context.Context, e *wiring.Engine) error {
				bugs, err := e.Store.ListBugs(ctx, filter)
				if err != nil {
					return err
				}
				if len(bugs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No bugs.")
					return nil
				}
				return g.print(cmd, func(m format.Mode) string { return format.Bugs(m, bugs) })
			})
		},
	}
	cmd.Flags().StringVar(&f.status, "status", "", "Only bugs in this status")
	cmd.Flags().StringVar(&f.pkg, "package", "", "Only bugs for this package")
	return cmd
}

func newShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <bug-id>",
		Short: "Show one bug with notes and reproduction steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(cmd, func(ctx context.Context, e *wiring.Engine) error {
				b, err := e.Store.LoadBug(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), format.BugDetail(b))
				return nil
			})
		},
	}
}

func newStatsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count bugs per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withEngine(cmd, func(ctx context.Context, e *wiring.Engine) error {
				bugs, err := e.Store.ListBugs(ctx, store.Filter{})
				if err != nil {
					return err
				}
				s := bug.ComputeStats(bugs)
				return g.print(cmd, func(m format.Mode) string { return format.Stats(m, s) })
			})
		},
	}
}

func newFixCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fix <bug-id>",
		Short: "Mark a verified bug as fixed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(cmd, func(ctx context.Context, e *wiring.Engine) error {
				b, err := e.Orchestrator.MarkFixed(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s; run `provify reverify %s` to confirm\n", b.ID, b.Status, b.ID)
				return nil
			})
		},
	}
}

type editFlags struct {
	status string
	notes  string
}

func newEditCmd(g *globalFlags) *cobra.Command {
	f := &editFlags{}
	cmd := &cobra.Command{
		Use:   "edit <bug-id>",
		Short: "Set a bug's status or notes by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				status *bug.Status
				notes  *string
			)
			if cmd.Flags().Changed("status") {
				st, err := bug.ParseStatus(f.status)
				if err != nil {
					return err
				}
				status = &st
			}
			if cmd.Flags().Changed("notes") {
				notes = &f.notes
			}
			if status == nil && notes == nil {
				return fmt.Errorf("nothing to edit: pass --status or --notes")
			}
			return g.withEngine(cmd, func(ctx context.Context, e *wiring.Engine) error {
				b, err := e.Orchestrator.Edit(ctx, args[0], status, notes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", b.ID, b.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.status, "status", "", "New status")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Replace the notes")
	return cmd
}

func newDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <bug-id>",
		Short: "Delete a bug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(cmd, func(ctx context.Context, e *wiring.Engine) error {
				if err := e.Orchestrator.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}
