package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncdata/cdc-relay/internal/domain"
	"github.com/syncdata/cdc-relay/internal/metrics"
)

func TestOutcomeOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   domain.Outcome
		want string
	}{
		{"skipped", domain.Outcome{Skipped: true}, metrics.OutcomeSkipped},
		{"failed", domain.Outcome{SnapshotHit: true, Search: domain.SinkResult{Action: domain.ActionUpsert, Err: errors.New("x")}}, metrics.OutcomeFailed},
		{"deleted", domain.Outcome{Document: domain.SinkResult{Action: domain.ActionDelete}}, metrics.OutcomeDeleted},
		{"not found", domain.Outcome{}, metrics.OutcomeNotFound},
		{"synced", domain.Outcome{SnapshotHit: true, Document: domain.SinkResult{Action: domain.ActionUpsert}}, metrics.OutcomeSynced},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, metrics.OutcomeOf(tc.in), tc.name)
	}
}

func TestMetrics_Exposition(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.ObserveEvent(metrics.OutcomeSynced, 20*time.Millisecond)
	m.ObserveLookup(metrics.LookupHit)
	m.ObserveSink("document", domain.SinkResult{Action: domain.ActionUpsert})
	m.ObserveSink("search", domain.SinkResult{Action: domain.ActionUpsert, Err: errors.New("down")})
	m.ObserveSink("search", domain.SinkResult{Action: domain.ActionNone})

	expected := `
# HELP cdc_relay_sink_operations_total Sink calls, by sink, action and result.
# TYPE cdc_relay_sink_operations_total counter
cdc_relay_sink_operations_total{action="upsert",result="error",sink="search"} 1
cdc_relay_sink_operations_total{action="upsert",result="ok",sink="document"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "cdc_relay_sink_operations_total"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cdc_relay_events_total{outcome="synced"} 1`)
	assert.Contains(t, rec.Body.String(), `cdc_relay_snapshot_lookups_total{result="hit"} 1`)
}
