package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/hypertune/internal/param"
	"github.com/cwbudde/hypertune/internal/runspec"
	"github.com/cwbudde/hypertune/internal/store"
	"github.com/cwbudde/hypertune/internal/strategy"
	"github.com/cwbudde/hypertune/internal/tune"
)

var (
	resumeDataDir string
	resumeEvals   int
)

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Resume a tuning run from its archive",
	Long: `Starts a fresh search seeded with the archived best configuration.
Strategy-internal state is not restored; the archived best is re-evaluated
first, followed by random variations, so the best score never regresses.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for run archives")
	resumeCmd.Flags().IntVar(&resumeEvals, "evals", 20, "Total evaluations of the resumed search")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	runID := args[0]

	archive, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to open run archive: %w", err)
	}
	cp, err := archive.LoadRun(runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if len(cp.Spec) == 0 {
		return fmt.Errorf("run %s carries no embedded spec, cannot resume", runID)
	}
	spec, err := runspec.Parse(cp.Spec)
	if err != nil {
		return err
	}
	inputs, err := spec.Build()
	if err != nil {
		return fmt.Errorf("invalid archived spec: %w", err)
	}
	if resumeEvals < 1 {
		return fmt.Errorf("evals must be at least 1, got %d", resumeEvals)
	}

	// Seed the design with the archived best plus random variations, under a
	// bumped seed so the variations differ from the original run's draws.
	seed := cp.Seed + 1
	rng := rand.New(rand.NewSource(seed))
	design := []param.Config{cp.Best}
	for len(design) < resumeEvals {
		design = append(design, inputs.Space.Sample(rng))
	}
	opts := *inputs.Control.Opts()
	opts.Seed = seed
	ctrl := &strategy.DesignControl{Design: design, Options: opts}

	result, err := tune.Tune(cmd.Context(), inputs.Learner, inputs.Task, inputs.Resampling, inputs.Measures, inputs.Space, ctrl, nil)
	if err != nil {
		return err
	}

	cp.RunID = result.RunID
	cp.ControlKind = ctrl.Kind()
	cp.Seed = seed
	cp.Best = result.Best
	cp.BestY = result.BestY
	cp.Trials = result.Path.Len()
	cp.FailedTrials = result.FailedTrials
	cp.Timestamp = time.Now()
	if err := archive.SaveRun(result.RunID, cp); err != nil {
		return fmt.Errorf("failed to archive resumed run: %w", err)
	}

	primary := inputs.Measures[0]
	fmt.Printf("Resumed %s as %s: %d trials, best %s %.6g\n", runID, result.RunID, result.Path.Len(), primary.Name, result.BestY[0])
	fmt.Printf("Best configuration: %v\n", result.Best)
	return nil
}
