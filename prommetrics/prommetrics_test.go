package prommetrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mrlsearch"
)

func TestNew(t *testing.T) {
	c := New(prometheus.NewRegistry())

	assert.NotNil(t, c.SearchTotal)
	assert.NotNil(t, c.SearchDuration)
	assert.NotNil(t, c.PartitionTotal)
	assert.NotNil(t, c.PartitionDuration)
	assert.NotNil(t, c.RerankCandidates)
	assert.NotNil(t, c.RerankDropped)
	assert.NotNil(t, c.RerankSkipped)
}

func TestRecordSearch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordSearch(mrlsearch.ModeSingle, 10, 20*time.Millisecond, nil)
	c.RecordSearch(mrlsearch.ModeSingle, 10, 30*time.Millisecond, nil)
	c.RecordSearch(mrlsearch.ModeTwoPhase, 5, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.SearchTotal.WithLabelValues("single", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SearchTotal.WithLabelValues("two_phase", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.SearchDuration))
}

func TestRecordPartitionFetch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordPartitionFetch(mrlsearch.PartitionSucceeded, time.Millisecond)
	c.RecordPartitionFetch(mrlsearch.PartitionFailed, time.Millisecond)
	c.RecordPartitionFetch(mrlsearch.PartitionFailed, time.Millisecond)

	expected := `
# HELP mrlsearch_partitions_total Total number of partition scans by outcome
# TYPE mrlsearch_partitions_total counter
mrlsearch_partitions_total{status="failed"} 2
mrlsearch_partitions_total{status="succeeded"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mrlsearch_partitions_total"))
}

func TestRecordRerank(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.RecordRerank(50, 3, false)
	c.RecordRerank(50, 0, true)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.RerankDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RerankSkipped))
	assert.Equal(t, 1, testutil.CollectAndCount(c.RerankCandidates))
}

func TestKBucket(t *testing.T) {
	assert.Equal(t, "1", kBucket(1))
	assert.Equal(t, "10", kBucket(7))
	assert.Equal(t, "100", kBucket(11))
	assert.Equal(t, "1000", kBucket(1000))
	assert.Equal(t, "inf", kBucket(5000))
}
