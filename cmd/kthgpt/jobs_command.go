package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kthgpt/internal/config"
	"kthgpt/internal/store"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect stage jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in the SQLite queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseJobStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				out := cmd.OutOrStdout()
				if cfg.Dispatch.Backend == "redis" {
					fmt.Fprintf(cmd.ErrOrStderr(), "dispatch backend is redis; jobs in %s are not listed\n", cfg.Dispatch.RedisQueue)
				}
				list, err := st.ListJobs(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, job := range list {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.Kind,
						strconv.FormatInt(job.LectureID, 10),
						strconv.FormatInt(job.AnalysisID, 10),
						string(job.Status),
						strconv.Itoa(job.Attempts),
						job.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
						job.ErrorMessage,
					})
				}
				writeTable(out, []column{
					num("ID"), col("Kind"), num("Lecture"), num("Attempt"),
					col("Status"), num("Tries"), col("Updated"), col("Error"),
				}, rows)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (queued, running, done, failed)")
	return cmd
}

func parseJobStatuses(values []string) ([]store.JobStatus, error) {
	statuses := make([]store.JobStatus, 0, len(values))
	for _, value := range values {
		status := store.JobStatus(strings.ToLower(strings.TrimSpace(value)))
		switch status {
		case store.JobQueued, store.JobRunning, store.JobDone, store.JobFailed:
			statuses = append(statuses, status)
		default:
			return nil, fmt.Errorf("unknown job status %q", value)
		}
	}
	return statuses, nil
}
