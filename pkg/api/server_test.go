package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/print-stream/go-webcam-stream/pkg/hwaccel"
)

type fakeEngine struct {
	report    *hwaccel.CapabilityReport
	refreshed int
}

func (e *fakeEngine) Capabilities() *hwaccel.CapabilityReport { return e.report }

func (e *fakeEngine) RefreshCapabilities(context.Context) *hwaccel.CapabilityReport {
	e.refreshed++
	return e.report
}

func (e *fakeEngine) Status() interface{} {
	return map[string]bool{"running": true}
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeEngine) {
	t.Helper()
	engine := &fakeEngine{
		report: &hwaccel.CapabilityReport{
			Platform:     hwaccel.PlatformIntel,
			GPUVendor:    "intel",
			RenderDevice: "/dev/dri/renderD128",
			Encoder:      "h264_vaapi",
			Accelerated:  true,
			Summary:      "hardware encoder h264_vaapi selected via /dev/dri/renderD128",
		},
	}
	s := NewServer(ServerConfig{Engine: engine})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, engine
}

func TestCapabilitiesEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/capabilities")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "intel", got["platform"])
	assert.Equal(t, "h264_vaapi", got["encoder"])
	assert.Equal(t, true, got["hardware_acceleration"])
}

func TestRefreshEndpointRequiresPost(t *testing.T) {
	ts, engine := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/capabilities/refresh")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, 0, engine.refreshed)

	resp, err = http.Post(ts.URL+"/api/v1/capabilities/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, engine.refreshed)
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got["running"])
}
