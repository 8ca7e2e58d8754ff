package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTick(t *testing.T) {
	before := testutil.ToFloat64(ticksTotal.WithLabelValues("test-task", StatusSuccess))
	RecordTick("test-task", StatusSuccess, 0.1)
	after := testutil.ToFloat64(ticksTotal.WithLabelValues("test-task", StatusSuccess))

	assert.Equal(t, before+1, after)
}

func TestRecordSweepIgnoresZero(t *testing.T) {
	RecordSweep("zero-store", 0)
	RecordSweep("sessions-test", 3)

	assert.Equal(t, float64(3), testutil.ToFloat64(sweepRemovedTotal.WithLabelValues("sessions-test")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	reg := NewRegistry()
	RecordCommand("ping", StatusSuccess)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "nira_commands_total"))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusSuccess, StatusOf(nil))
	assert.Equal(t, StatusError, StatusOf(errors.New("x")))
}
