package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthManager_Aggregation(t *testing.T) {
	hm := NewHealthManager(nil)

	assert.True(t, hm.IsHealthy(), "empty manager should be healthy")

	hm.Register("feed", func() error { return nil })
	assert.True(t, hm.IsHealthy())

	hm.Register("gateway", func() error { return fmt.Errorf("failed") })
	assert.False(t, hm.IsHealthy())

	status := hm.GetStatus()
	assert.Equal(t, "Healthy", status["feed"])
	assert.Equal(t, "Unhealthy: failed", status["gateway"])
	assert.Equal(t, []string{"gateway"}, hm.Unhealthy())
}

func TestHealthManager_ServeHTTP(t *testing.T) {
	hm := NewHealthManager(nil)
	hm.Register("feed", func() error { return nil })

	rec := httptest.NewRecorder()
	hm.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Healthy", body["feed"])

	hm.Register("breaker", func() error { return fmt.Errorf("tripped") })
	rec = httptest.NewRecorder()
	hm.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
