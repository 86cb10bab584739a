package model

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// JobStatus represents the lifecycle state of a dataset-processing job.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailure JobStatus = "failure"
)

// Done reports whether the job reached a terminal state.
func (s JobStatus) Done() bool {
	return s == JobStatusSuccess || s == JobStatusFailure
}

// JobRequest holds the arguments of one dataset-processing job.
type JobRequest struct {
	InputFilename string `json:"input_filename" yaml:"input_filename"`
	LatColumn     string `json:"lat_column" yaml:"lat_column"`
	LonColumn     string `json:"lon_column" yaml:"lon_column"`
	Delimiter     string `json:"delimiter" yaml:"delimiter"`
}

// Job is one asynchronous execution of the dataset processor.
type Job struct {
	ID        string     `json:"id" yaml:"id"`
	Status    JobStatus  `json:"status" yaml:"status"`
	Request   JobRequest `json:"request" yaml:"request"`
	Result    *JobResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error     string     `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"updated_at"`
}

// JobResult summarizes a completed job.
type JobResult struct {
	InputFilename  string `json:"input_filename" yaml:"input_filename"`
	OutputFilename string `json:"output_filename" yaml:"output_filename"`
	SuccessRate    Rate   `json:"success_rate" yaml:"success_rate"`
	FailureRate    Rate   `json:"failure_rate" yaml:"failure_rate"`
	TotalRows      int    `json:"total_rows" yaml:"total_rows"`
	SuccessRows    int    `json:"success_rows" yaml:"success_rows"`
}

// NotApplicable is the rate sentinel used when a table has no rows.
const NotApplicable = "NA"

// Rate is a ratio in [0, 1], or NotApplicable when Valid is false.
type Rate struct {
	Value float64
	Valid bool
}

// NewRate returns part/total, or an invalid rate when total is zero.
func NewRate(part, total int) Rate {
	if total <= 0 {
		return Rate{}
	}
	return Rate{Value: float64(part) / float64(total), Valid: true}
}

func (r Rate) String() string {
	if !r.Valid {
		return NotApplicable
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

// MarshalJSON encodes the rate as a number or the "NA" string.
func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return json.Marshal(NotApplicable)
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON accepts a number or the "NA" string.
func (r *Rate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != NotApplicable {
			return eris.Errorf("model: invalid rate %q", s)
		}
		*r = Rate{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return eris.Wrap(err, "model: decode rate")
	}
	*r = Rate{Value: v, Valid: true}
	return nil
}

// MarshalYAML renders the rate like its JSON form.
func (r Rate) MarshalYAML() (any, error) {
	if !r.Valid {
		return NotApplicable, nil
	}
	return r.Value, nil
}
