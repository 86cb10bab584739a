package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/cadastre-cli/internal/config"
	"github.com/sells-group/cadastre-cli/internal/filestore"
	"github.com/sells-group/cadastre-cli/internal/model"
	"github.com/sells-group/cadastre-cli/internal/monitoring"
	"github.com/sells-group/cadastre-cli/internal/pipeline"
	"github.com/sells-group/cadastre-cli/internal/store"
	"github.com/sells-group/cadastre-cli/internal/tabular"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "enrich", "job", "export", "migrate", "version"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "cadastre-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestJobCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range jobCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"status", "list", "download", "delete", "stats"} {
		assert.True(t, names[name], "job should have subcommand %q", name)
	}
}

func TestCommandFlags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)

	for _, name := range []string{"input", "output", "lat", "lon", "sep", "keep"} {
		assert.NotNil(t, enrichCmd.Flags().Lookup(name), "enrich should have --%s", name)
	}
	assert.Equal(t, "json", jobStatusCmd.Flags().Lookup("format").DefValue)
	assert.NotNil(t, exportCmd.Flags().Lookup("job"))
	assert.NotNil(t, exportCmd.Flags().Lookup("out"))
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "data/points_cadastre.csv", defaultOutputPath("data/points.xlsx"))
	assert.Equal(t, "points_cadastre.csv", defaultOutputPath("points"))
}

func sampleJob() *model.Job {
	return &model.Job{
		ID:      "job-1",
		Status:  model.JobStatusSuccess,
		Request: model.JobRequest{InputFilename: "in.csv", LatColumn: "lat", LonColumn: "lon", Delimiter: ";"},
		Result: &model.JobResult{
			OutputFilename: "out.csv",
			SuccessRate:    model.NewRate(0, 0),
			FailureRate:    model.NewRate(0, 0),
		},
	}
}

func TestWriteJob_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJob(&buf, sampleJob(), "json"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "job-1", got["id"])
	result := got["result"].(map[string]any)
	assert.Equal(t, "NA", result["success_rate"])
}

func TestWriteJob_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJob(&buf, sampleJob(), "yaml"))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "success", got["status"])
	request := got["request"].(map[string]any)
	assert.Equal(t, "lat", request["lat_column"])
}

func TestWriteJob_UnknownFormat(t *testing.T) {
	assert.Error(t, writeJob(&bytes.Buffer{}, sampleJob(), "xml"))
}

func TestFormatJobList(t *testing.T) {
	var buf bytes.Buffer
	jobs := []model.Job{*sampleJob(), {ID: "job-2", Status: model.JobStatusPending}}
	formatJobList(&buf, jobs)

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "job-2")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

type originLookup struct{}

func (originLookup) LookupParcel(_ context.Context, lat, lon float64) (*model.Parcel, error) {
	if lat == 48.85 && lon == 2.35 {
		return &model.Parcel{ID: "751040000AB0012", Numero: "0012"}, nil
	}
	return nil, nil
}

func TestRunLocal(t *testing.T) {
	dir := t.TempDir()
	cfg = &config.Config{Storage: config.StorageConfig{Folder: "work"}}
	enrichLat, enrichLon, enrichSep, enrichKeep = "lat", "lon", ";", false

	files, err := filestore.NewLocal(filepath.Join(dir, "files"))
	require.NoError(t, err)
	st, err := store.NewSQLite(filepath.Join(dir, "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	input := filepath.Join(dir, "points.csv")
	require.NoError(t, os.WriteFile(input, []byte("id;lat;lon\n1;48.85;2.35\n2;;2.35\n3;0.0;0.0\n"), 0o644))
	output := filepath.Join(dir, "points_cadastre.csv")

	proc := pipeline.NewProcessor(files, originLookup{}, pipeline.Options{Folder: "work"})
	job, err := runLocal(context.Background(), files, st, proc, input, output)
	require.NoError(t, err)
	assert.Equal(t, 3, job.Result.TotalRows)
	assert.Equal(t, 1, job.Result.SuccessRows)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	table, err := tabular.Unmarshal(data, ';')
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	recorded, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSuccess, recorded.Status)

	// Artifacts are removed unless --keep is set.
	_, err = files.Read(context.Background(), job.Request.InputFilename)
	assert.True(t, filestore.IsNotFound(err))
	_, err = files.Read(context.Background(), job.Result.OutputFilename)
	assert.True(t, filestore.IsNotFound(err))
}

func TestRunLocal_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	cfg = &config.Config{}
	enrichLat, enrichLon, enrichSep, enrichKeep = "latitude", "lon", ";", false

	files, err := filestore.NewLocal(filepath.Join(dir, "files"))
	require.NoError(t, err)
	st, err := store.NewSQLite(filepath.Join(dir, "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	input := filepath.Join(dir, "points.csv")
	require.NoError(t, os.WriteFile(input, []byte("id;lat;lon\n1;48.85;2.35\n"), 0o644))

	proc := pipeline.NewProcessor(files, originLookup{}, pipeline.Options{})
	_, err = runLocal(context.Background(), files, st, proc, input, filepath.Join(dir, "out.csv"))
	require.Error(t, err)
	assert.True(t, pipeline.IsValidation(err))

	jobs, err := st.ListJobs(context.Background(), store.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestFormatStats(t *testing.T) {
	var buf bytes.Buffer
	formatStats(&buf, &monitoring.MetricsSnapshot{
		JobsTotal:         4,
		Succeeded:         3,
		Failed:            1,
		JobFailRate:       0.25,
		RowsProcessed:     30,
		AvgRowSuccessRate: 0.5,
		LookbackHours:     24,
	})

	out := buf.String()
	assert.Contains(t, out, "last 24h")
	assert.Contains(t, out, "25.0%")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "30")
	assert.Equal(t, "0", jobStatsCmd.Flags().Lookup("hours").DefValue)
}
