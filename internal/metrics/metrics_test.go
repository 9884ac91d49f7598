package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCacheLookup(t *testing.T) {
	before := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("album", "hit"))

	RecordCacheLookup("album", "hit")
	RecordCacheLookup("album", "hit")

	assert.Equal(t, before+2, testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("album", "hit")))
}

func TestRecordUpstreamFetch_CountsErrorsOnly(t *testing.T) {
	before := testutil.ToFloat64(UpstreamErrorsTotal.WithLabelValues("search", "NAVIGATION"))

	RecordUpstreamFetch("search", "", time.Second)
	RecordUpstreamFetch("search", "NAVIGATION", 2*time.Second)

	assert.Equal(t, before+1, testutil.ToFloat64(UpstreamErrorsTotal.WithLabelValues("search", "NAVIGATION")))
}

func TestSessionGauge(t *testing.T) {
	RecordSessionStarted()
	assert.Equal(t, float64(1), testutil.ToFloat64(BrowserSessionActive))

	RecordSessionClosed("idle")
	assert.Equal(t, float64(0), testutil.ToFloat64(BrowserSessionActive))
}

func TestSetPreloadReady(t *testing.T) {
	SetPreloadReady(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(PreloadReady))

	SetPreloadReady(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(PreloadReady))
}
