package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/conveyorhq/conveyor/internal/control"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [job_id]",
	Short: "Cancel a job by deleting its record",
	Long: `Cancel a job by deleting its record. An engine running the job notices
the deleted record at its next stage boundary and discards the result,
so this works across processes with the redis backend.`,
	Args: cobra.ExactArgs(1),
	Run:  runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) {
	cfg := mustLoad()

	store, err := control.NewStore(cfg)
	if err != nil {
		slog.Error("Failed to connect to job store", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	existed, err := store.Delete(context.Background(), args[0])
	if err != nil {
		slog.Error("Failed to cancel job", "error", err)
		os.Exit(1)
	}

	if !existed {
		fmt.Printf("Job %s not found\n", args[0])
		return
	}
	fmt.Printf("Cancelled job %s\n", args[0])
}
