package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/glitchload/internal/automation"
	"github.com/san-kum/glitchload/internal/logging"
	"github.com/san-kum/glitchload/internal/source"
	"github.com/san-kum/glitchload/internal/storage"
)

var (
	sweepParam  string
	sweepMin    float64
	sweepMax    float64
	sweepSteps  int
	sweepMetric string
	exportPath  string
)

func automationCommands() []*cobra.Command {
	scenarioCmd := &cobra.Command{
		Use:   "scenario [file] [image]",
		Short: "run a yaml scenario of loop configurations",
		Args:  cobra.ExactArgs(2),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	scenarioCmd.Flags().StringVar(&commandLine, "command", "", "command line for the command transform")

	sweepCmd := &cobra.Command{
		Use:   "sweep [image]",
		Short: "vary one loop setting and compare metrics",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	addLoopFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "interval_ms", fmt.Sprintf("setting to vary %v", automation.SweepParams()))
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 20, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 200, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")
	sweepCmd.Flags().IntVarP(&count, "ticks", "n", 50, "ticks per value")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "failure_rate", "metric to minimize")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run with all ticks as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "output file (default stdout)")

	return []*cobra.Command{scenarioCmd, sweepCmd, exportCmd}
}

func loadImage(ctx context.Context, ref string) (image.Image, error) {
	ready := <-source.Await(ctx, ref)
	return ready.Image, ready.Err
}

func runScenario(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	base, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	img, err := loadImage(ctx, args[1])
	if err != nil {
		return err
	}

	runner := automation.NewRunner(base)
	runner.Log = logging.With("scenario", sc.Name)
	results, err := runner.RunScenario(ctx, img, sc)

	st := storage.New(dataDir)
	if initErr := st.Init(); initErr != nil {
		return initErr
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tTICKS\tDELIVERY\tFAILURE\tLATENCY\tJITTER\tRUN")
	for i, res := range results {
		runID := "-"
		if res.Step.SaveAs != "" {
			var saveErr error
			runID, saveErr = st.Save(storage.RunMetadata{
				ID:          res.Step.SaveAs,
				Source:      args[1],
				Transform:   res.Config.Transform,
				Seed:        res.Seed,
				IntervalMs:  int64(res.Config.IntervalMs),
				MaxInFlight: res.Config.MaxInFlight,
				Metrics:     res.Metrics,
			}, res.Reports)
			if saveErr != nil {
				return saveErr
			}
		}
		name := res.Step.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}
		fmt.Fprintf(w, "%s\t%d\t%.0f%%\t%.0f%%\t%.2fms\t%.2fms\t%s\n",
			name, len(res.Reports),
			100*res.Metrics["delivery_rate"], 100*res.Metrics["failure_rate"],
			res.Metrics["mean_latency_ms"], res.Metrics["interval_jitter_ms"], runID)
	}
	if flushErr := w.Flush(); flushErr != nil {
		return flushErr
	}
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	base, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	img, err := loadImage(ctx, args[0])
	if err != nil {
		return err
	}

	runner := automation.NewRunner(base)
	runner.Log = logging.With("sweep", sweepParam)
	results, err := runner.RunSweep(ctx, img, &automation.Sweep{
		Param:    sweepParam,
		Min:      sweepMin,
		Max:      sweepMax,
		NumSteps: sweepSteps,
		Base:     automation.Step{Ticks: count},
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tDELIVERY\tFAILURE\tLATENCY\tJITTER\n", sweepParam)
	for _, res := range results {
		fmt.Fprintf(w, "%g\t%.0f%%\t%.0f%%\t%.2fms\t%.2fms\n", res.Value,
			100*res.Metrics["delivery_rate"], 100*res.Metrics["failure_rate"],
			res.Metrics["mean_latency_ms"], res.Metrics["interval_jitter_ms"])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if best, ok := automation.Best(results, sweepMetric); ok {
		fmt.Printf("\nbest %s: %s=%g (%.4f)\n", sweepMetric, sweepParam, best.Value, best.Metrics[sweepMetric])
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if exportPath == "" {
		return st.Export(os.Stdout, args[0])
	}
	return st.ExportFile(exportPath, args[0])
}
