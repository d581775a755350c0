package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	ObserveStage("fetch", time.Now().Add(-time.Second))
	Submissions.WithLabelValues("SettlementSp1Pallet.submit_proof", "success").Inc()

	path := filepath.Join(t.TempDir(), "router.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "zkv_router_stage_duration_seconds")
	assert.Contains(t, string(data), `outcome="success"`)
}

func TestStageFailuresCounter(t *testing.T) {
	before := testutil.ToFloat64(StageFailures.WithLabelValues("extract", "not_found"))
	StageFailures.WithLabelValues("extract", "not_found").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(StageFailures.WithLabelValues("extract", "not_found")))
}
