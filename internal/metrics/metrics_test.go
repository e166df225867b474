package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelDrops_PerSink(t *testing.T) {
	before := testutil.ToFloat64(ChannelDrops.WithLabelValues("db"))

	ChannelDrops.WithLabelValues("db").Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(ChannelDrops.WithLabelValues("db")))
}

func TestHandler_ExposesTwinMetrics(t *testing.T) {
	HistoryAppends.Inc()
	Speed.Set(0.3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "twin_loop_history_appends_total")
	assert.Contains(t, string(body), "twin_froude_number 0.3")
}
