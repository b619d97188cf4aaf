package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/conveyorhq/conveyor/internal/control"
	"github.com/conveyorhq/conveyor/internal/core/fault"
	"github.com/conveyorhq/conveyor/internal/pipeline"
)

var (
	runInput string
	runJobID string
)

var runCmd = &cobra.Command{
	Use:   "run [pipeline]",
	Short: "Execute a configured pipeline and wait for the result",
	Args:  cobra.ExactArgs(1),
	Run:   runRun,
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "input payload as JSON (plain strings allowed)")
	runCmd.Flags().StringVar(&runJobID, "job-id", "", "job id (default is a generated UUID)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	cfg := mustLoad()

	app, err := control.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize conveyor", "error", err)
		os.Exit(1)
	}

	pl, ok := app.Pipeline(args[0])
	if !ok {
		slog.Error("Unknown pipeline", "pipeline", args[0], "configured", app.Pipelines())
		os.Exit(1)
	}

	var input any
	if runInput != "" {
		if err := json.Unmarshal([]byte(runInput), &input); err != nil {
			input = runInput
		}
	}

	jobID := runJobID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received signal, cancelling run...", "signal", sig)
		cancel()
	}()

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start conveyor", "error", err)
		os.Exit(1)
	}

	slog.Info("Running pipeline", "pipeline", pl.Name, "job", jobID)

	result, err := app.Engine().Run(ctx, pl, input, pipeline.RunOptions{
		JobID: jobID,
		OnProgress: func(stage, message string, percent float64) {
			slog.Info("Stage completed", "stage", stage, "progress", fmt.Sprintf("%.0f%%", percent))
		},
	})

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	if err != nil {
		var wfErr *fault.WorkflowError
		if errors.As(err, &wfErr) {
			slog.Error("Pipeline failed",
				"job", jobID,
				"stage", wfErr.Stage,
				"error_type", string(wfErr.Err.Type),
				"retryable", wfErr.Err.Retryable,
				"error", wfErr.Err,
			)
		} else {
			slog.Error("Run failed", "job", jobID, "error", err)
		}
		cancel()
		_ = app.Stop(stopCtx)
		os.Exit(1)
	}

	out, merr := json.MarshalIndent(result, "", "  ")
	if merr != nil {
		fmt.Printf("%v\n", result)
	} else {
		fmt.Println(string(out))
	}

	cancel()
	if err := app.Stop(stopCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
