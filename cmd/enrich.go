package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cadastre-cli/internal/filestore"
	"github.com/sells-group/cadastre-cli/internal/model"
	"github.com/sells-group/cadastre-cli/internal/pipeline"
	"github.com/sells-group/cadastre-cli/internal/store"
	"github.com/sells-group/cadastre-cli/internal/tabular"
)

var (
	enrichInput  string
	enrichOutput string
	enrichLat    string
	enrichLon    string
	enrichSep    string
	enrichKeep   bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a local CSV or Excel file synchronously",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		output := enrichOutput
		if output == "" {
			output = defaultOutputPath(enrichInput)
		}

		job, err := runLocal(ctx, env.Files, env.Jobs, env.Processor, enrichInput, output)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "job %s: %d rows, success %s, failure %s -> %s\n",
			job.ID, job.Result.TotalRows, job.Result.SuccessRate, job.Result.FailureRate, output)
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichInput, "input", "", "input CSV or XLSX file")
	enrichCmd.Flags().StringVar(&enrichOutput, "output", "", "output CSV file (default <input>_cadastre.csv)")
	enrichCmd.Flags().StringVar(&enrichLat, "lat", "lat", "latitude column name")
	enrichCmd.Flags().StringVar(&enrichLon, "lon", "lon", "longitude column name")
	enrichCmd.Flags().StringVar(&enrichSep, "sep", ";", "field delimiter")
	enrichCmd.Flags().BoolVar(&enrichKeep, "keep", false, "keep the stored input and output artifacts")
	_ = enrichCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(enrichCmd)
}

func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_cadastre.csv"
}

// processor is the part of *pipeline.Processor used by runLocal.
type processor interface {
	Validate(ctx context.Context, req model.JobRequest) error
	Process(ctx context.Context, req model.JobRequest) (*model.JobResult, error)
}

// runLocal stores the input file, processes it as a recorded job and
// writes the output table to output.
func runLocal(ctx context.Context, files filestore.Store, st store.Store, proc processor, input, output string) (*model.Job, error) {
	delim, err := tabular.ParseDelimiter(enrichSep)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(input)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: read %s", input)
	}
	content, err := tabular.Normalize(raw, delim)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: decode %s", input)
	}

	req := model.JobRequest{
		InputFilename: pipeline.ArtifactName(cfg.Storage.Folder, pipeline.InputSuffix),
		LatColumn:     enrichLat,
		LonColumn:     enrichLon,
		Delimiter:     enrichSep,
	}
	if err := files.Write(ctx, req.InputFilename, content); err != nil {
		return nil, err
	}
	if !enrichKeep {
		defer deleteArtifact(ctx, files, req.InputFilename)
	}

	if err := proc.Validate(ctx, req); err != nil {
		return nil, err
	}

	job, err := st.CreateJob(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := st.MarkRunning(ctx, job.ID); err != nil {
		return nil, err
	}

	result, err := proc.Process(ctx, req)
	if err != nil {
		if ferr := st.FailJob(context.WithoutCancel(ctx), job.ID, err.Error()); ferr != nil {
			zap.L().Warn("enrich: record failure", zap.Error(ferr))
		}
		return nil, err
	}
	if !enrichKeep {
		defer deleteArtifact(ctx, files, result.OutputFilename)
	}

	data, err := files.Read(ctx, result.OutputFilename)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return nil, eris.Wrapf(err, "enrich: write %s", output)
	}

	if err := st.CompleteJob(ctx, job.ID, result); err != nil {
		return nil, err
	}
	job.Status = model.JobStatusSuccess
	job.Result = result
	return job, nil
}

func deleteArtifact(ctx context.Context, files filestore.Store, name string) {
	if err := files.Delete(ctx, name); err != nil && !filestore.IsNotFound(err) {
		zap.L().Warn("enrich: delete artifact", zap.String("file", name), zap.Error(err))
	}
}
