package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/skirmishlab/vanguard/scenario"
	"github.com/skirmishlab/vanguard/session"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Play a scenario to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().Bool("monitor", false, "serve the battle monitor over HTTP")
	runCmd.Flags().Int("monitor-port", 0, "port for the battle monitor")
	runCmd.Flags().Bool("browser", false, "open the monitor dashboard in a browser")
	runCmd.Flags().Bool("no-recording", false, "disable the SQLite battle log")
	runCmd.Flags().String("output", "", "custom battle log file name")
	runCmd.Flags().Int("max-turns", 1000, "cap on processed turns")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := initLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	logger.Info("scenario loaded",
		zap.String("name", sc.Name),
		zap.Int("units", len(sc.Units)))

	builder := session.MakeBuilder().
		WithScenario(sc).
		WithLogger(logger)

	builder = applyRunFlags(cmd, builder)

	s := builder.Build()
	defer s.Terminate()

	if err := s.Run(); err != nil {
		return err
	}

	for _, line := range s.CombatLog().Lines() {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}

	view := s.Scheduler().View()
	living := s.World().LivingCombatants()

	if len(living) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Battle over at tick %d. %s wins.\n",
			view.Tick, living[0].Team())
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Battle over at tick %d. No survivors.\n",
			view.Tick)
	}

	return nil
}

func applyRunFlags(cmd *cobra.Command, b session.Builder) session.Builder {
	if on, _ := cmd.Flags().GetBool("monitor"); on || viper.GetBool("monitor") {
		b = b.WithMonitoring()

		if port, _ := cmd.Flags().GetInt("monitor-port"); port > 0 {
			b = b.WithMonitorPort(port)
		}
		if open, _ := cmd.Flags().GetBool("browser"); open {
			b = b.WithBrowser()
		}
	}

	if off, _ := cmd.Flags().GetBool("no-recording"); off {
		b = b.WithoutRecording()
	}
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		b = b.WithOutputFileName(out)
	}
	if n, _ := cmd.Flags().GetInt("max-turns"); n > 0 {
		b = b.WithMaxTurns(n)
	}

	return b
}
