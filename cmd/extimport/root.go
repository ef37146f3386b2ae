package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"extimport/internal/config"
	"extimport/internal/exttable"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath     string
	verbose        bool
	metricsBackend string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "extimport",
		Short: "Unload database tables through named pipes",
		Long: `extimport has the source database unload each partition of a table into a
local named pipe and streams the rows into a file, table, AMQP or Kafka sink.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if opts.verbose {
				exttable.Verbose = true
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "job.json", "job config path (.json, .yaml, .toml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logs, including generated statements")
	cmd.PersistentFlags().StringVar(&opts.metricsBackend, "metrics-backend", "", "override metrics.backend (none, pushgateway, datadog)")

	cmd.AddCommand(
		newRunCmd(opts),
		newSQLCmd(opts),
		newValidateCmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}

func (o *rootOptions) loadJob() (config.Job, error) {
	job, err := config.Load(o.configPath)
	if err != nil {
		return config.Job{}, err
	}
	if o.metricsBackend != "" {
		job.Metrics.Backend = o.metricsBackend
	}
	return job, nil
}

// loadValidJob loads the job and rejects it when validation reports errors.
// Issues are returned in both cases so warnings can be printed.
func (o *rootOptions) loadValidJob() (config.Job, []config.Issue, error) {
	job, err := o.loadJob()
	if err != nil {
		return job, nil, err
	}
	issues := config.ValidateJob(job)
	if config.HasErrors(issues) {
		return job, issues, fmt.Errorf("configuration is invalid: %s", o.configPath)
	}
	return job, issues, nil
}
