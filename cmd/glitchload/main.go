package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/glitchload/internal/analysis"
	"github.com/san-kum/glitchload/internal/config"
	"github.com/san-kum/glitchload/internal/logging"
	"github.com/san-kum/glitchload/internal/loop"
	"github.com/san-kum/glitchload/internal/storage"
)

var (
	dataDir  string
	logLevel string

	configFile  string
	preset      string
	intervalMs  int
	transformNm string
	commandLine string
	maxInFlight int
	timeoutMs   int
	seed        int64
	addr        string
	frames      int

	recordRun bool
	gifPath   string
	svgPath   string
	count     int
	delayMs   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "glitchload",
		Short:         "glitched image loading placeholder",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logging.SetLevel(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".glitchload", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	serveCmd := &cobra.Command{
		Use:   "serve [image]",
		Short: "serve the loading animation over http",
		Long: `serve runs the glitch loop over an image and streams each frame to a
page at --addr whose .loading element shows it as its background.

The default jpeg transform only re-encodes the image at the drawn quality
(97 or 98), so the frames barely change. Pass --transform command with
--command "<glitch program>" for a visibly glitching animation.`,
		Args: cobra.ExactArgs(1),
		RunE: runServe,
	}
	addLoopFlags(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address")
	serveCmd.Flags().BoolVar(&recordRun, "record", false, "save the run's ticks on exit")

	liveCmd := &cobra.Command{
		Use:   "live [image]",
		Short: "run the loop with a terminal dashboard",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addLoopFlags(liveCmd)
	liveCmd.Flags().BoolVar(&recordRun, "record", false, "save the run's ticks on exit")

	recordCmd := &cobra.Command{
		Use:   "record [image]",
		Short: "record delivered frames to an animated gif",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecord,
	}
	addLoopFlags(recordCmd)
	recordCmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "frames to record")
	recordCmd.Flags().StringVarP(&gifPath, "output", "o", "glitch.gif", "gif output path")
	recordCmd.Flags().StringVar(&svgPath, "svg", "", "also write an svg contact sheet")

	sampleCmd := &cobra.Command{
		Use:   "sample",
		Short: "print glitch parameter draws",
		Args:  cobra.NoArgs,
		RunE:  runSample,
	}
	sampleCmd.Flags().IntVarP(&count, "count", "n", 10, "number of draws")
	sampleCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
	sampleCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	sampleCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")

	benchCmd := &cobra.Command{
		Use:   "bench [image]",
		Short: "benchmark transforms one tick at a time",
		Args:  cobra.ExactArgs(1),
		RunE:  runBench,
	}
	benchCmd.Flags().IntVarP(&count, "count", "n", 20, "ticks per transform")
	benchCmd.Flags().IntVar(&delayMs, "delay", 0, "extra latency added to each transform call (ms)")
	benchCmd.Flags().StringVar(&commandLine, "command", "", "command line for the command transform")
	benchCmd.Flags().Int64Var(&seed, "seed", 42, "random seed")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list recorded runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot tick latency and delivery intervals",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "spectrum of delivery intervals",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list configuration presets",
		RunE:  listPresets,
	}

	rootCmd.AddCommand(serveCmd, liveCmd, recordCmd, sampleCmd, benchCmd,
		runsCmd, showCmd, plotCmd, analyzeCmd, presetsCmd)
	rootCmd.AddCommand(automationCommands()...)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addLoopFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().IntVar(&intervalMs, "interval", config.DefaultIntervalMs, "tick interval (ms)")
	cmd.Flags().StringVar(&transformNm, "transform", config.DefaultTransform, "transform (jpeg re-encodes only; command runs a glitch program)")
	cmd.Flags().StringVar(&commandLine, "command", "", "command line for the command transform")
	cmd.Flags().IntVar(&maxInFlight, "max-inflight", config.DefaultMaxInFlight, "concurrent ticks (-1 = unbounded)")
	cmd.Flags().IntVar(&timeoutMs, "timeout", 0, "per-tick timeout (ms, 0 = none)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tTRANSFORM\tTIME\tINTERVAL\tTICKS\tDELIVERED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dms\t%d\t%.0f%%\n",
			run.ID,
			run.Source,
			run.Transform,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.IntervalMs,
			run.Ticks,
			100*run.Metrics["delivery_rate"],
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	ticks, err := st.LoadTicks(runID)
	if err != nil {
		return err
	}

	var latency []float64
	for _, t := range ticks {
		if t.Outcome == loop.OutcomeDelivered {
			latency = append(latency, t.LatencyMs)
		}
	}
	if len(latency) < 2 {
		return fmt.Errorf("not enough delivered ticks to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("source: %s\n", meta.Source)
	fmt.Printf("ticks: %d (%d delivered)\n\n", len(ticks), len(latency))

	fmt.Println(asciigraph.Plot(latency,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("latency (ms) per delivered tick"),
	))
	fmt.Println()

	intervals := analysis.Intervals(storage.Delivered(ticks))
	if len(intervals) >= 2 {
		fmt.Println(asciigraph.Plot(intervals,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("time between deliveries (ms)"),
		))
		fmt.Println()
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	ticks, err := st.LoadTicks(runID)
	if err != nil {
		return err
	}

	intervals := analysis.Intervals(storage.Delivered(ticks))
	if len(intervals) < 4 {
		return fmt.Errorf("no data")
	}

	fmt.Printf("delivery analysis: %s\n", meta.ID)
	fmt.Printf("interval: %dms\n\n", meta.IntervalMs)

	sum := analysis.Summarize(intervals)
	fmt.Printf("gap mean: %.2fms  stddev: %.2fms  min: %.2fms  max: %.2fms\n\n",
		sum.Mean, sum.StdDev, sum.Min, sum.Max)

	ps := analysis.Spectrum(intervals)
	if len(ps) >= 2 {
		fmt.Println(asciigraph.Plot(ps,
			asciigraph.Height(15),
			asciigraph.Width(80),
			asciigraph.Caption("power spectrum of delivery gaps"),
		))
		fmt.Println()
	}

	period := analysis.DominantPeriod(ps)
	if period == 0 {
		fmt.Println("no periodic stall detected")
		return nil
	}
	fmt.Printf("dominant period: %.2f deliveries (~%.0fms)\n", period, period*sum.Mean)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tINTERVAL\tINFLIGHT\tTIMEOUT\tSEED\tQUALITY\tAMOUNT")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%dms\t%d\t%dms\t%s\t%s\t%s\n",
			name, p.IntervalMs, p.MaxInFlight, p.TickTimeoutMs,
			p.Ranges.Seed, p.Ranges.Quality, p.Ranges.Amount)
	}
	return w.Flush()
}

func runSample(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if count <= 0 {
		return fmt.Errorf("count must be positive, got %d", count)
	}
	s, usedSeed := newSampler(cfg)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "# seed %d\n", usedSeed)
	fmt.Fprintln(w, "N\tSEED\tQUALITY\tAMOUNT\tITERATIONS")
	for i := 1; i <= count; i++ {
		p := s.Sample()
		fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%.4f\t%d\n", i, p.Seed, p.Quality, p.Amount, p.Iterations)
	}
	return w.Flush()
}
