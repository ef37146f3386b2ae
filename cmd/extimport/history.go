package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"extimport/internal/ledger"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		dsn   string
		job   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent partition runs from the ledger",
		Long: `History lists recent partition runs recorded in the ledger, newest first.
Without --ledger the DSN and the job filter come from the job config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				cfg, err := root.loadJob()
				if err != nil {
					return err
				}
				if cfg.Ledger.DSN == "" {
					return fmt.Errorf("no ledger configured: set ledger.dsn or pass --ledger")
				}
				dsn = cfg.Ledger.DSN
				if !cmd.Flags().Changed("job") {
					job = cfg.Job
				}
			}

			l, err := ledger.Open(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer l.Close()

			entries, err := l.Recent(cmd.Context(), job, limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "ledger", "", "ledger SQLite DSN (default ledger.dsn from the config)")
	cmd.Flags().StringVar(&job, "job", "", "only show this job (empty shows all)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries")
	return cmd
}

func printHistory(w io.Writer, entries []ledger.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No partition runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tJOB\tPARTITION\tSTARTED\tELAPSED\tLINES\tBYTES\tSTATUS\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			e.RunID, e.Job, e.Partition, e.Partitions,
			e.Started.Local().Format(time.DateTime),
			e.Finished.Sub(e.Started).Truncate(time.Millisecond),
			e.Lines, humanize.Bytes(uint64(e.Bytes)), e.Status(), e.Err)
	}
	_ = tw.Flush()
}
