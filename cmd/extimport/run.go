package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"extimport/internal/runner"
)

// runJob is swapped in tests.
var runJob = runner.Run

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		partitions []int
		runID      string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import the partitions of a job",
		Long: `Run imports every partition of the job, or only those named with
--partition, with at most runtime.parallelism partitions in flight.
A failed partition does not stop the others; the command fails if any did.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			job, issues, err := root.loadValidJob()
			printIssues(cmd.ErrOrStderr(), issues)
			if err != nil {
				return err
			}

			flush := setupMetrics(job.Metrics, job.Job)
			defer flush()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			start := time.Now()
			res, err := runJob(ctx, job, runner.Options{Partitions: partitions, RunID: runID})
			printResult(cmd.OutOrStdout(), res)
			if err != nil {
				return err
			}
			if root.verbose {
				log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVarP(&partitions, "partition", "p", nil, "partition id to run; repeat or comma-separate for several (default all)")
	cmd.Flags().StringVar(&runID, "run-id", "", "run id recorded in the ledger (default a fresh UUID)")
	return cmd
}

func printResult(w io.Writer, res runner.Result) {
	if len(res.Partitions) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run %s\n", res.RunID)
	fmt.Fprintln(tw, "PARTITION\tLINES\tBYTES\tCHECKSUM\tSTATUS")
	for _, p := range res.Partitions {
		status := "ok"
		if p.Err != nil {
			status = "failed"
		}
		fmt.Fprintf(tw, "%d/%d\t%d\t%s\t%016x\t%s\n",
			p.Partition.ID, p.Partition.Count, p.Stats.Lines, humanize.Bytes(uint64(p.Stats.Bytes)), p.Stats.Checksum, status)
	}
	_ = tw.Flush()
}
