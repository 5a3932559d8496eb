package main

import (
	"github.com/spf13/cobra"
)

// Provided by ldflags during build
var version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "lighthouse",
		Short:         "Master/slave node resilience controller",
		Long:          "lighthouse keeps one node of a static group running a workload and promotes a standby when the active node goes away.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newStatusCommand())
	return root
}
