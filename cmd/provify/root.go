// provify verifies user-reported Android bugs by dispatching them to device
// agents and folding the per-device answers into a status transition.
//
// Usage:
//
//	provify add --app <name> --bug <description> [--package <pkg>] [--severity 1..5]
//	provify import <file> | provify import --sample <file>
//	provify list [--status <status>] [--package <pkg>]
//	provify verify <bug-id> | provify reverify <bug-id>
//	provify verify-all | provify reverify-fixed
//	provify fix <bug-id> | provify edit <bug-id> [--status s] [--notes n] | provify delete <bug-id>
//	provify serve [--metrics-addr :9090]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	output     string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "provify",
		Short: "Reproduce and verify Android bug reports on real devices",
		Long: "Provify sends each bug to agents driving connected Android devices,\n" +
			"aggregates their answers into a verdict and moves the bug through\n" +
			"pending, verified, not_reproducible and fixed.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Config file, YAML or JSON (default provify.yaml when present)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&g.output, "format", "", "Table style: ascii, plain or markdown (default ascii on a terminal)")

	root.AddCommand(
		newServeCmd(g),
		newAddCmd(g),
		newImportCmd(g),
		newListCmd(g),
		newShowCmd(g),
		newStatsCmd(g),
		newVerifyCmd(g),
		newReverifyCmd(g),
		newVerifyAllCmd(g),
		newReverifyFixedCmd(g),
		newFixCmd(g),
		newEditCmd(g),
		newDeleteCmd(g),
		newDevicesCmd(g),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
