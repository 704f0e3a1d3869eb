package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or a specific job",
	Long: `Queries the job server.
Without a job-id, lists all jobs; with one, shows that job in detail.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listServerJobs(fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}
	jobID := args[0]
	return getJobStatus(fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func listServerJobs(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("Job ID: %s\n", job["id"])
		fmt.Printf("  State: %s\n", job["state"])
		if spec, ok := job["spec"].(map[string]any); ok {
			fmt.Printf("  Learner: %v\n", spec["learner"])
			if ctrl, ok := spec["control"].(map[string]any); ok {
				fmt.Printf("  Strategy: %v\n", ctrl["kind"])
			}
		}
		if trials, ok := job["trials"].(float64); ok && trials > 0 {
			fmt.Printf("  Trials: %.0f (best %s: %v)\n", trials, job["measure"], job["bestScore"])
		}
		fmt.Println()
	}
	return nil
}

func getJobStatus(url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Job: %s\n", status["id"])
	fmt.Printf("State: %s\n", status["state"])
	fmt.Println()

	if spec, ok := status["spec"].(map[string]any); ok {
		fmt.Println("Run spec:")
		if task, ok := spec["task"].(map[string]any); ok {
			fmt.Printf("  Task: %v (%v)\n", task["name"], task["type"])
		}
		fmt.Printf("  Learner: %v\n", spec["learner"])
		fmt.Printf("  Measures: %v\n", spec["measures"])
		if ctrl, ok := spec["control"].(map[string]any); ok {
			fmt.Printf("  Strategy: %v\n", ctrl["kind"])
		}
		fmt.Println()
	}

	fmt.Println("Progress:")
	if trials, ok := status["trials"].(float64); ok {
		fmt.Printf("  Trials: %.0f\n", trials)
	}
	if failed, ok := status["failedTrials"].(float64); ok && failed > 0 {
		fmt.Printf("  Failed trials: %.0f\n", failed)
	}
	if best, ok := status["bestScore"].(float64); ok {
		fmt.Printf("  Best score: %.6g\n", best)
	}
	if bestCfg, ok := status["best"].(map[string]any); ok {
		fmt.Printf("  Best configuration: %v\n", bestCfg)
	}
	if errMsg, ok := status["error"].(string); ok && errMsg != "" {
		fmt.Printf("\nError: %s\n", errMsg)
	}
	return nil
}
