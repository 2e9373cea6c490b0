package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/jsenna/acquire/internal/instruments"
	"github.com/jsenna/acquire/internal/measure"
	"github.com/jsenna/acquire/internal/monitor"
	"github.com/jsenna/acquire/internal/optim"
	"github.com/jsenna/acquire/internal/storage"
	"github.com/jsenna/acquire/internal/sweep"
)

var (
	dataDir string
	live    bool
	softAvg int
	spread  bool
	// tune flags
	detector string
	dims     int
	start    float64
	step     float64
	maxEvals int
	noise    float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "acquire",
		Short: "measurement control engine",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".acquire", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [plan.yaml]",
		Short: "execute a sweep plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlan,
	}
	runCmd.Flags().BoolVar(&live, "live", false, "show the live TUI monitor")
	runCmd.Flags().IntVar(&softAvg, "avg", 0, "override soft averaging factor")
	runCmd.Flags().BoolVar(&spread, "spread", false, "store per-point spread columns")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "minimize a simulated detector adaptively",
		RunE:  runTune,
	}
	tuneCmd.Flags().StringVar(&detector, "detector", "parabola", "detector kind")
	tuneCmd.Flags().IntVar(&dims, "dims", 2, "number of knobs")
	tuneCmd.Flags().Float64Var(&start, "start", -5.0, "starting value for every knob")
	tuneCmd.Flags().Float64Var(&step, "step", 1.0, "initial probe step")
	tuneCmd.Flags().IntVar(&maxEvals, "max-evals", 500, "evaluation budget")
	tuneCmd.Flags().Float64Var(&noise, "noise", 0, "detector noise level")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [tuid]",
		Short: "plot a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [tuid]",
		Short: "export a run as CSV on stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [tuid]",
		Short: "export a run as JSON on stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSONRun,
	}

	detectorsCmd := &cobra.Command{
		Use:   "detectors",
		Short: "list simulated detector kinds",
		Run: func(cmd *cobra.Command, args []string) {
			for _, kind := range instruments.Kinds() {
				fmt.Println(kind)
			}
		},
	}

	rootCmd.AddCommand(runCmd, tuneCmd, listCmd, showCmd, exportCmd, exportJSONCmd, detectorsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// watchSignals maps the first interrupt to a safety stop and a second
// one to a forced stop. The returned func detaches the handler.
func watchSignals(c *measure.Control) func() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt)
	done := make(chan struct{})
	go func() {
		hits := 0
		for {
			select {
			case <-ch:
				hits++
				if hits == 1 {
					fmt.Fprintln(os.Stderr, "\ninterrupt: finishing current point (press again to force)")
					c.Interrupt(measure.Safety)
				} else {
					fmt.Fprintln(os.Stderr, "\nforced stop")
					c.Interrupt(measure.Forced)
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
	plan, err := sweep.Load(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("avg") {
		plan.SoftAvg = softAvg
	}
	if spread {
		plan.StoreSpread = true
	}

	bench, err := plan.Bench()
	if err != nil {
		return err
	}

	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	c := measure.New("acquire")
	c.SetSink(store)
	if err := c.Configure(bench.Settables, bench.Gettables); err != nil {
		return err
	}
	plan.Apply(c)

	var lv *monitor.Live
	if live {
		lv = monitor.NewLive(bench.Domain.Len())
		c.AddMonitor(lv)
	} else {
		c.AddMonitor(monitor.NewConsole(os.Stdout, bench.Domain.Len()))
	}

	stop := watchSignals(c)
	defer stop()

	began := time.Now()
	ds, err := c.Run(context.Background(), plan.Name, bench.Domain)
	if lv != nil {
		// Restore the terminal before the summary lines.
		lv.Close()
	}
	if err != nil {
		return err
	}

	fmt.Printf("run id: %s\n", ds.TUID)
	fmt.Printf("state:  %s\n", ds.State)
	fmt.Printf("points: %d in %v\n", ds.Rows(), time.Since(began).Round(time.Millisecond))
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	knobs := make([]*instruments.Knob, dims)
	settables := make([]measure.Settable, dims)
	for i := range knobs {
		name := fmt.Sprintf("p%d", i)
		knobs[i] = instruments.NewKnob(name, strings.ToUpper(name), "a.u.")
		settables[i] = knobs[i]
	}
	det, err := instruments.Build(detector, instruments.Params{"noise": noise}, knobs)
	if err != nil {
		return err
	}

	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	c := measure.New("acquire")
	c.SetSink(store)
	c.AddMonitor(monitor.NewConsole(os.Stdout, 0))

	stop := watchSignals(c)
	defer stop()

	startPoint := make([]float64, dims)
	for i := range startPoint {
		startPoint[i] = start
	}
	ps := optim.NewPatternSearch(startPoint, step)
	ps.MaxEvals = maxEvals

	if err := c.Configure(settables, []measure.Gettable{det}); err != nil {
		return err
	}
	ds, err := c.RunAdaptive(context.Background(), detector+" tune", measure.AdaptiveSpec{
		Optimizer: ps,
	})
	if err != nil {
		return err
	}

	best, val := ps.Best()
	fmt.Printf("run id: %s\n", ds.TUID)
	fmt.Printf("state:  %s\n", ds.State)
	fmt.Printf("evals:  %d\n", ps.Evals())
	fmt.Printf("best:   %v -> %.6g\n", best, val)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	infos, err := store.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TUID\tNAME\tSTATE\tPOINTS\tSTARTED")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			info.TUID, info.Name, info.State, info.Points,
			info.Started.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ds, err := store.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s  [%s]\n", ds.TUID, ds.Name, ds.State)
	fmt.Printf("points: %d  started: %s\n\n", ds.Rows(), ds.Started.Format(time.RFC3339))

	for _, v := range ds.Vars {
		if len(v.Values) < 2 {
			continue
		}
		caption := v.Label
		if v.Unit != "" {
			caption += " (" + v.Unit + ")"
		}
		fmt.Println(asciigraph.Plot(v.Values,
			asciigraph.Height(10),
			asciigraph.Width(70),
			asciigraph.Caption(caption)))
		fmt.Println()
	}

	if len(ds.Relationships) > 0 {
		fmt.Println("relationships:")
		for _, rel := range ds.Relationships {
			fmt.Printf("  %s %s %s\n", rel.Item, rel.Relation, strings.Join(rel.Related, ", "))
		}
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ds, err := store.Load(args[0])
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	header := make([]string, 0, len(ds.Coords)+len(ds.Vars))
	for _, c := range ds.Coords {
		header = append(header, c.Name)
	}
	for _, v := range ds.Vars {
		header = append(header, v.Name)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < ds.Rows(); i++ {
		row := make([]string, 0, len(header))
		for _, c := range ds.Coords {
			row = append(row, strconv.FormatFloat(c.Values[i], 'g', -1, 64))
		}
		for _, v := range ds.Vars {
			row = append(row, strconv.FormatFloat(v.Values[i], 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func exportJSONRun(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ds, err := store.Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ds)
}
