package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowsEnriched_Increments(t *testing.T) {
	before := testutil.ToFloat64(RowsEnriched.WithLabelValues("found"))
	RowsEnriched.WithLabelValues("found").Inc()
	assert.InDelta(t, before+1, testutil.ToFloat64(RowsEnriched.WithLabelValues("found")), 1e-9)
}

func TestHandler_ExposesCollectors(t *testing.T) {
	JobsTotal.WithLabelValues("success").Inc()
	QueueDepth.Set(3)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `cadastre_jobs_total{status="success"}`)
	assert.Contains(t, string(body), "cadastre_job_queue_depth 3")
}
