package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/cadastre-cli/internal/filestore"
	"github.com/sells-group/cadastre-cli/internal/model"
	"github.com/sells-group/cadastre-cli/internal/monitoring"
	"github.com/sells-group/cadastre-cli/internal/store"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect and manage enrichment jobs",
}

// -- job status --

var jobStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "job")
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Jobs.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "job status")
		}

		format, _ := cmd.Flags().GetString("format")
		return writeJob(os.Stdout, job, format)
	},
}

// -- job list --

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "job")
		if err != nil {
			return err
		}
		defer env.Close()

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := env.Jobs.ListJobs(ctx, store.JobFilter{
			Status: model.JobStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "job list")
		}
		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		formatJobList(os.Stdout, jobs)
		return nil
	},
}

// -- job download --

var jobDownloadCmd = &cobra.Command{
	Use:   "download <job-id>",
	Short: "Write the output table of a successful job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "job")
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Jobs.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "job download")
		}
		if job.Status != model.JobStatusSuccess || job.Result == nil {
			return eris.Errorf("job download: job %s is %s", job.ID, job.Status)
		}

		data, err := env.Files.Read(ctx, job.Result.OutputFilename)
		if err != nil {
			return eris.Wrap(err, "job download")
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" || out == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		return eris.Wrapf(os.WriteFile(out, data, 0o644), "job download: write %s", out)
	},
}

// -- job delete --

var jobDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete the stored input and output files of a finished job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "job")
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Jobs.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "job delete")
		}
		if !job.Status.Done() {
			return eris.Errorf("job delete: job %s is still %s", job.ID, job.Status)
		}

		names := []string{job.Request.InputFilename}
		if job.Result != nil {
			names = append(names, job.Result.OutputFilename)
		}
		for _, name := range names {
			if err := env.Files.Delete(ctx, name); err != nil && !filestore.IsNotFound(err) {
				return eris.Wrap(err, "job delete")
			}
		}
		fmt.Fprintf(os.Stdout, "files of job %s are deleted\n", job.ID)
		return nil
	},
}

// -- job stats --

var jobStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize job outcomes over a lookback window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "job")
		if err != nil {
			return err
		}
		defer env.Close()

		hours, _ := cmd.Flags().GetInt("hours")
		if hours <= 0 {
			hours = cfg.Monitoring.LookbackWindowHours
		}

		snap, err := monitoring.NewCollector(env.Jobs).Collect(ctx, hours)
		if err != nil {
			return eris.Wrap(err, "job stats")
		}
		formatStats(os.Stdout, snap)

		alerts := monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap)
		for _, a := range alerts {
			fmt.Fprintf(os.Stdout, "ALERT [%s] %s\n", a.Severity, a.Message)
		}
		return nil
	},
}

func init() {
	jobStatsCmd.Flags().Int("hours", 0, "lookback window in hours (default from config)")
	jobStatusCmd.Flags().String("format", "json", "output format (json, yaml)")
	jobListCmd.Flags().String("status", "", "filter by status (pending, running, success, failure)")
	jobListCmd.Flags().Int("limit", 20, "max jobs to show")
	jobDownloadCmd.Flags().String("out", "", "output file (default stdout)")

	jobCmd.AddCommand(jobStatusCmd, jobListCmd, jobDownloadCmd, jobDeleteCmd, jobStatsCmd)
	rootCmd.AddCommand(jobCmd)
}

// writeJob renders a job record as json or yaml.
func writeJob(w io.Writer, job *model.Job, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(job); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unknown format %q", format)
	}
}

func formatJobList(w io.Writer, jobs []model.Job) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tROWS\tSUCCESS\tCREATED")
	for _, j := range jobs {
		rows, success := "-", model.NotApplicable
		if j.Result != nil {
			rows = fmt.Sprintf("%d", j.Result.TotalRows)
			success = j.Result.SuccessRate.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Status, rows, success, j.CreatedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

func formatStats(w io.Writer, snap *monitoring.MetricsSnapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Window:\tlast %dh\n", snap.LookbackHours)
	fmt.Fprintf(tw, "Jobs:\t%d\n", snap.JobsTotal)
	fmt.Fprintf(tw, "Succeeded:\t%d\n", snap.Succeeded)
	fmt.Fprintf(tw, "Failed:\t%d\n", snap.Failed)
	fmt.Fprintf(tw, "Pending:\t%d\n", snap.Pending)
	fmt.Fprintf(tw, "Running:\t%d\n", snap.Running)
	fmt.Fprintf(tw, "Job failure rate:\t%.1f%%\n", snap.JobFailRate*100)
	fmt.Fprintf(tw, "Rows processed:\t%d\n", snap.RowsProcessed)
	fmt.Fprintf(tw, "Avg row success:\t%.1f%%\n", snap.AvgRowSuccessRate*100)
	_ = tw.Flush()
}
