package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skirmishlab/vanguard/scenario"
)

var validateCmd = &cobra.Command{
	Use:   "validate <scenario.yaml>...",
	Short: "Check scenario files without playing them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	var failed int

	for _, path := range args {
		sc, err := scenario.Load(path)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%q, %d units, %dx%d)\n",
			path, sc.Name, len(sc.Units), sc.Width, sc.Height)
	}

	if failed > 0 {
		return fmt.Errorf("%d scenario file(s) failed validation", failed)
	}

	return nil
}
