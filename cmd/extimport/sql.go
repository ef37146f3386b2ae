package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"extimport/internal/ledger"
	"extimport/internal/runner"
)

func newSQLCmd(root *rootOptions) *cobra.Command {
	var (
		partition int
		runID     string
	)
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Print the unload statement for one partition",
		Long: `Sql prints the statement run would send for one partition. Pipes live
in a per-run directory, <work_dir>/extimport-<run id>/, so pass --run-id
to get the exact path of a given run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			job, err := root.loadJob()
			if err != nil {
				return err
			}
			if partition < 0 || partition >= job.Partitions {
				return fmt.Errorf("partition %d out of range [0,%d)", partition, job.Partitions)
			}
			if runID == "" {
				runID = ledger.NewRunID()
			}
			stmt, err := runner.Statement(job, runID, partition)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stmt)
			return nil
		},
	}
	cmd.Flags().IntVarP(&partition, "partition", "p", 0, "partition id")
	cmd.Flags().StringVar(&runID, "run-id", "", "run id the pipe path is built for (default a fresh UUID)")
	_ = cmd.MarkFlagRequired("partition")
	return cmd
}
