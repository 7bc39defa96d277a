package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	c := HTTPRequests.WithLabelValues(http.MethodGet, "/api/test", "200")
	before := testutil.ToFloat64(c)

	RecordHTTPRequest(http.MethodGet, "/api/test", http.StatusOK, 5*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestRecordSightings(t *testing.T) {
	created := SightingsStored.WithLabelValues("sync", "created")
	rejected := SightingsStored.WithLabelValues("sync", "rejected")
	c0, r0 := testutil.ToFloat64(created), testutil.ToFloat64(rejected)

	RecordSightings("sync", 3, 0, 1)

	assert.Equal(t, c0+3, testutil.ToFloat64(created))
	assert.Equal(t, r0+1, testutil.ToFloat64(rejected))
}

func TestRecordBreakerState(t *testing.T) {
	g := BreakerState.WithLabelValues("test")

	RecordBreakerState("test", gobreaker.StateOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(g))
	RecordBreakerState("test", gobreaker.StateHalfOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(g))
	RecordBreakerState("test", gobreaker.StateClosed)
	assert.Equal(t, 0.0, testutil.ToFloat64(g))
}
