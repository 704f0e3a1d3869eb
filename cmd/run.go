package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/hypertune/internal/optpath"
	"github.com/cwbudde/hypertune/internal/runspec"
	"github.com/cwbudde/hypertune/internal/store"
	"github.com/cwbudde/hypertune/internal/tune"
)

var (
	specPath    string
	dataDir     string
	showPath    bool
	trafoValues bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a tuning search from a declarative spec",
	Long: `Runs a hyperparameter search described by a YAML run spec and archives
the winning configuration together with the full trial trace.`,
	RunE: runTuning,
}

func init() {
	runCmd.Flags().StringVar(&specPath, "spec", "", "Run spec YAML path (required)")
	runCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Base directory for run archives")
	runCmd.Flags().BoolVar(&showPath, "show-path", false, "Print the optimization path after the run")
	runCmd.Flags().BoolVar(&trafoValues, "trafo", false, "Report transformed parameter values in the path")

	runCmd.MarkFlagRequired("spec")
	rootCmd.AddCommand(runCmd)
}

func runTuning(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(specPath)
	if err != nil {
		return fmt.Errorf("failed to read run spec: %w", err)
	}
	spec, err := runspec.Parse(raw)
	if err != nil {
		return err
	}
	inputs, err := spec.Build()
	if err != nil {
		return fmt.Errorf("invalid run spec: %w", err)
	}

	start := time.Now()
	result, err := tune.Tune(cmd.Context(), inputs.Learner, inputs.Task, inputs.Resampling, inputs.Measures, inputs.Space, inputs.Control, nil)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := archiveResult(spec, raw, result, inputs); err != nil {
		return err
	}

	primary := inputs.Measures[0]
	fmt.Printf("Run %s: %d trials (%d failed) in %s\n", result.RunID, result.Path.Len(), result.FailedTrials, elapsed.Round(time.Millisecond))
	fmt.Printf("Best %s: %.6g\n", primary.Name, result.BestY[0])
	fmt.Printf("Best configuration (raw):         %v\n", result.Best)
	fmt.Printf("Best configuration (transformed): %v\n", result.BestTrafo)
	if inputs.Control.Opts().TuneThreshold {
		fmt.Printf("Tuned threshold: %.3f (%s: %.6g)\n", result.Threshold, primary.Name, result.ThresholdY)
	}

	if showPath {
		printTable(result.Path.AsTable(trafoValues))
	}
	return nil
}

// archiveResult writes the run checkpoint and the trial trace under the
// run's ID.
func archiveResult(spec *runspec.Spec, rawSpec []byte, result *tune.Result, inputs *runspec.Inputs) error {
	archive, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open run archive: %w", err)
	}

	cp := &store.RunCheckpoint{
		RunID:        result.RunID,
		TaskName:     spec.Task.Name,
		LearnerName:  spec.Learner,
		ControlKind:  spec.Control.Kind,
		Seed:         spec.Control.Seed,
		Best:         result.Best,
		BestY:        result.BestY,
		Measures:     result.Path.Measures(),
		Trials:       result.Path.Len(),
		FailedTrials: result.FailedTrials,
		Spec:         rawSpec,
		Timestamp:    time.Now(),
	}
	if err := archive.SaveRun(result.RunID, cp); err != nil {
		return fmt.Errorf("failed to archive run: %w", err)
	}

	tw, err := optpath.NewTraceWriter(dataDir, result.RunID, false)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer tw.Close()
	for _, rec := range result.Path.Records() {
		if err := tw.Write(rec); err != nil {
			return fmt.Errorf("failed to write trace: %w", err)
		}
	}
	return tw.Flush()
}

func printTable(table *optpath.Table) {
	for i, col := range table.Cols {
		if i > 0 {
			fmt.Print("\t")
		}
		fmt.Print(col)
	}
	fmt.Println()
	for _, row := range table.Rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Print("\t")
			}
			if cell == nil {
				fmt.Print("-")
			} else {
				fmt.Printf("%v", cell)
			}
		}
		fmt.Println()
	}
}
