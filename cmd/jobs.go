package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/store"
)

var (
	jobsStatus string
	jobsLimit  int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List classification jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.JobFilter{Limit: jobsLimit}
		if jobsStatus != "" {
			filter.Status = model.JobStatus(jobsStatus)
		}
		jobs, err := st.ListJobs(ctx, filter)
		if err != nil {
			return err
		}
		return printJSON(jobs)
	},
}

var jobShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job with its run stats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "job %s", args[0])
		}
		stats, err := st.GetStats(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(struct {
			Job   *model.Job           `json:"job"`
			Stats *model.StatsSnapshot `json:"stats,omitempty"`
		}{job, stats})
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 50, "max jobs to list")
	jobsCmd.AddCommand(jobShowCmd)
	rootCmd.AddCommand(jobsCmd)
}
