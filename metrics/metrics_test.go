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

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(RowsDropped.WithLabelValues(ReasonDuplicate))
	AddDropped(ReasonDuplicate, 3)
	assert.Equal(t, before+3, testutil.ToFloat64(RowsDropped.WithLabelValues(ReasonDuplicate)))

	before = testutil.ToFloat64(RowsTotal.WithLabelValues(StageLoad))
	AddRows(StageLoad, 7)
	assert.Equal(t, before+7, testutil.ToFloat64(RowsTotal.WithLabelValues(StageLoad)))
}

func TestObserveStage(t *testing.T) {
	ObserveStage(StageRender, time.Now().Add(-10*time.Millisecond))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(StageDuration), 1)
}

func TestWriteTextfile(t *testing.T) {
	AddRows(StageClean, 1)
	path := filepath.Join(t.TempDir(), "salesdash.prom")

	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "salesdash_rows_total")
}
