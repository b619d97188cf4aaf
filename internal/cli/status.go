package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conveyorhq/conveyor/internal/control"
	"github.com/conveyorhq/conveyor/internal/infra/jobstore"
)

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Show the persisted record of a job",
	Long: `Show the persisted record of a job. With the redis backend this works
from any process; the memory backend only holds records inside the
engine process that ran the job.`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := mustLoad()

	store, err := control.NewStore(cfg)
	if err != nil {
		slog.Error("Failed to connect to job store", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	rec, err := store.Get(context.Background(), args[0])
	if errors.Is(err, jobstore.ErrNotFound) {
		fmt.Printf("Job %s not found (expired, cancelled, or never existed)\n", args[0])
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to read job record", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tSTAGE\tUPDATED")
	_, _ = fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%s\t%s\n",
		rec.ID, rec.Status, rec.Progress, rec.Stage, rec.UpdatedAt.Format(time.RFC3339))
	_ = w.Flush()

	if rec.Message != "" {
		fmt.Printf("Message: %s\n", rec.Message)
	}
	if rec.Error != "" {
		fmt.Printf("Error: %s\n", rec.Error)
	}
	if rec.Result != nil {
		if out, err := json.MarshalIndent(rec.Result, "", "  "); err == nil {
			fmt.Printf("Result: %s\n", out)
		}
	}
}
