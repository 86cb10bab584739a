package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/cadastre-cli/internal/export"
	"github.com/sells-group/cadastre-cli/internal/model"
	"github.com/sells-group/cadastre-cli/internal/tabular"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the output of a successful job as a point shapefile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "job")
		if err != nil {
			return err
		}
		defer env.Close()

		jobID, _ := cmd.Flags().GetString("job")
		out, _ := cmd.Flags().GetString("out")

		job, err := env.Jobs.GetJob(ctx, jobID)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		if job.Status != model.JobStatusSuccess || job.Result == nil {
			return eris.Errorf("export: job %s is %s", job.ID, job.Status)
		}

		delim, err := tabular.ParseDelimiter(job.Request.Delimiter)
		if err != nil {
			return err
		}
		data, err := env.Files.Read(ctx, job.Result.OutputFilename)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		table, err := tabular.Unmarshal(data, delim)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		stats, err := export.WriteShapefile(out, table, job.Request.LatColumn, job.Request.LonColumn)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d points written to %s (%d rows without coordinates skipped)\n", stats.Written, out, stats.Skipped)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("job", "", "job id")
	exportCmd.Flags().String("out", "parcels.shp", "output shapefile path")
	_ = exportCmd.MarkFlagRequired("job")
	rootCmd.AddCommand(exportCmd)
}
