package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

func newTestServer(running bool, mqtt func() bool) *Server {
	return NewServer(":0", Sources{
		Stats: func() internal.Stats {
			return internal.Stats{
				SessionID:     "s1",
				ProducerState: "pacing",
				Running:       running,
				Cycles:        100,
				Signals:       100,
				Coalesced:     25,
				Presented:     75,
				LastFPS:       59.5,
				Period:        16 * time.Millisecond,
				Uptime:        10 * time.Second,
			}
		},
		MQTTConnected: mqtt,
	})
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReadiness(t *testing.T) {
	cases := map[string]struct {
		running bool
		mqtt    func() bool
		code    int
		status  string
	}{
		"healthy without mqtt": {running: true, code: http.StatusOK, status: "healthy"},
		"healthy with mqtt":    {running: true, mqtt: func() bool { return true }, code: http.StatusOK, status: "healthy"},
		"degraded":             {running: true, mqtt: func() bool { return false }, code: http.StatusOK, status: "degraded"},
		"stopped":              {running: false, code: http.StatusServiceUnavailable, status: "unhealthy"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := get(t, newTestServer(tc.running, tc.mqtt), "/readiness")
			assert.Equal(t, tc.code, rec.Code)

			var st Status
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
			assert.Equal(t, tc.status, st.Status)
			assert.Equal(t, "s1", st.SessionID)
			assert.InDelta(t, 25.0, st.CoalesceRate, 1e-9)
		})
	}
}

func TestLiveness(t *testing.T) {
	rec := get(t, newTestServer(false, nil), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"alive"`)
}

func TestMetrics(t *testing.T) {
	rec := get(t, newTestServer(true, nil), "/metrics")
	body := rec.Body.String()
	assert.Contains(t, body, `framehandoff_cycles_total{session="s1"} 100`)
	assert.Contains(t, body, `framehandoff_coalesced_total{session="s1"} 25`)
	assert.Contains(t, body, `framehandoff_fps{session="s1"} 59.5`)
	assert.Contains(t, body, `framehandoff_period_seconds{session="s1"} 0.016`)
}

func TestStats(t *testing.T) {
	rec := get(t, newTestServer(true, nil), "/stats")
	var st internal.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, uint64(75), st.Presented)
}

func TestStartShutdown(t *testing.T) {
	s := newTestServer(true, nil)
	s.server.Addr = "127.0.0.1:0"
	require.NoError(t, s.Start())
	require.NoError(t, s.Shutdown(t.Context()))
}
