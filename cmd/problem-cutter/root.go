package main

import (
	"github.com/spf13/cobra"

	"github.com/twoLoop-40/problem-cutter/pkg/errkind"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "problem-cutter",
		Short:         "Extracts individual exam problems from multi-column test-paper pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(extractCmd())
	cmd.AddCommand(validateLayoutCmd())
	return cmd
}

// exitCodeFor maps an error's errkind.Kind to spec.md §6's exit codes:
// 0 full success, 10 partial success, 20 failed, 30 invalid input.
func exitCodeFor(err error) int {
	switch errkind.KindOf(err) {
	case errkind.InvalidInput:
		return 30
	case errkind.ValidationPartial:
		return 10
	case "":
		return 20 // an unclassified error is still a job failure
	default:
		return 20
	}
}
