// Package pipeline runs the dataset enrichment job: load a table, enrich
// each row in order, publish the output and summarize outcomes.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cadastre-cli/internal/enrich"
	"github.com/sells-group/cadastre-cli/internal/filestore"
	"github.com/sells-group/cadastre-cli/internal/metrics"
	"github.com/sells-group/cadastre-cli/internal/model"
	"github.com/sells-group/cadastre-cli/internal/tabular"
)

// progressEvery controls how often row progress is logged.
const progressEvery = 100

// Options configures a Processor.
type Options struct {
	RetryDelay   time.Duration
	ColumnPrefix string
	Folder       string
}

// Processor is the dataset-processing unit of work run by each job.
type Processor struct {
	files     filestore.Store
	enricher  *enrich.Enricher
	publisher *Publisher
	prefix    string
}

// NewProcessor creates a Processor reading from and publishing to files,
// resolving parcels through lookup.
func NewProcessor(files filestore.Store, lookup enrich.Lookuper, opts Options) *Processor {
	return &Processor{
		files:     files,
		enricher:  enrich.NewEnricher(lookup, opts.RetryDelay),
		publisher: NewPublisher(files, opts.Folder),
		prefix:    opts.ColumnPrefix,
	}
}

// Validate checks the request against the stored input header without
// enriching anything.
func (p *Processor) Validate(ctx context.Context, req model.JobRequest) error {
	delim, data, err := p.load(ctx, req)
	if err != nil {
		return err
	}
	header, err := tabular.ReadHeader(bytes.NewReader(data), delim)
	if err != nil {
		return &ValidationError{Field: "filename", Value: req.InputFilename, Reason: err.Error()}
	}
	_, err = p.schema(header, req)
	return err
}

// Process enriches every row of the requested input table and publishes
// the result. Per-row failures are recorded in the output; only validation,
// storage and parse failures are returned.
func (p *Processor) Process(ctx context.Context, req model.JobRequest) (*model.JobResult, error) {
	log := zap.L().With(zap.String("input", req.InputFilename))
	start := time.Now()

	delim, data, err := p.load(ctx, req)
	if err != nil {
		return nil, err
	}

	input, err := tabular.ReadTable(bytes.NewReader(data), delim)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: parse input")
	}

	schema, err := p.schema(input.Columns, req)
	if err != nil {
		return nil, err
	}

	log.Info("pipeline: starting enrichment", zap.Int("rows", input.Len()))

	output := &model.Table{
		Columns: schema.Columns(),
		Rows:    make([]model.Row, 0, input.Len()),
	}
	outcomes := make(map[enrich.Outcome]int)

	for i, row := range input.Rows {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "pipeline: aborted at row %d", i+1)
		}

		enriched, outcome := p.enricher.Enrich(ctx, schema, row)
		output.Rows = append(output.Rows, enriched)
		outcomes[outcome]++
		metrics.RowsEnriched.WithLabelValues(outcome.String()).Inc()

		if (i+1)%progressEvery == 0 {
			log.Info("pipeline: progress", zap.Int("done", i+1), zap.Int("total", input.Len()))
		}
	}

	success := CountSuccess(output, schema.Column("numero"))

	outName, err := p.publisher.Publish(ctx, output, delim)
	if err != nil {
		return nil, err
	}

	result := &model.JobResult{
		InputFilename:  req.InputFilename,
		OutputFilename: outName,
		SuccessRate:    model.NewRate(success, output.Len()),
		FailureRate:    model.NewRate(output.Len()-success, output.Len()),
		TotalRows:      output.Len(),
		SuccessRows:    success,
	}

	log.Info("pipeline: enrichment complete",
		zap.String("output", outName),
		zap.Int("total", result.TotalRows),
		zap.Int("found", outcomes[enrich.OutcomeFound]),
		zap.Int("not_found", outcomes[enrich.OutcomeNotFound]),
		zap.Int("missing_coordinates", outcomes[enrich.OutcomeMissingCoordinates]),
		zap.Int("unknown_error", outcomes[enrich.OutcomeUnknownError]),
		zap.String("success_rate", result.SuccessRate.String()),
		zap.Duration("elapsed", time.Since(start)),
	)

	return result, nil
}

// CountSuccess counts rows whose parcel number column is non-empty.
func CountSuccess(t *model.Table, numeroColumn string) int {
	idx := t.ColumnIndex(numeroColumn)
	if idx < 0 {
		return 0
	}
	n := 0
	for _, row := range t.Rows {
		if idx < len(row) && row[idx] != "" {
			n++
		}
	}
	return n
}

// load checks the request's scalar arguments and reads the input file.
func (p *Processor) load(ctx context.Context, req model.JobRequest) (rune, []byte, error) {
	delim, err := tabular.ParseDelimiter(req.Delimiter)
	if err != nil {
		return 0, nil, &ValidationError{Field: "delimiter", Value: req.Delimiter, Reason: "must be a single character"}
	}
	if req.LatColumn == "" {
		return 0, nil, &ValidationError{Field: "lat_column", Reason: "is required"}
	}
	if req.LonColumn == "" {
		return 0, nil, &ValidationError{Field: "lon_column", Reason: "is required"}
	}

	raw, err := p.files.Read(ctx, req.InputFilename)
	if filestore.IsNotFound(err) {
		return 0, nil, &ValidationError{Field: "filename", Value: req.InputFilename, Reason: "input file not found"}
	}
	if err != nil {
		return 0, nil, eris.Wrap(err, "pipeline: read input")
	}

	data, err := tabular.Decode(raw)
	if err != nil {
		return 0, nil, eris.Wrap(err, "pipeline: decode input")
	}
	return delim, data, nil
}

func (p *Processor) schema(columns []string, req model.JobRequest) (*enrich.Schema, error) {
	schema, err := enrich.NewSchema(columns, req.LatColumn, req.LonColumn, p.prefix)
	if err != nil {
		var cnf *enrich.ColumnNotFoundError
		if errors.As(err, &cnf) {
			return nil, &ValidationError{Field: "column", Value: cnf.Column, Reason: "missing from input header"}
		}
		return nil, eris.Wrap(err, "pipeline: build schema")
	}
	return schema, nil
}
