package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/rpc"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("ribbitctl", "GET", "/healthz", 200, 12*time.Millisecond)
	RecordSession(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(sessionConnected))
	RecordSession(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(sessionConnected))

	before := testutil.ToFloat64(transfers.WithLabelValues("rejected"))
	RecordTransfer("rejected")
	assert.Equal(t, before+1, testutil.ToFloat64(transfers.WithLabelValues("rejected")))
}

func TestBridgeRecorder(t *testing.T) {
	testlog.Start(t)
	rec := NewBridgeRecorder()

	calls := bridgeCalls.WithLabelValues(string(protocol.MethodSignMessage), rpc.OutcomeTimeout)
	before := testutil.ToFloat64(calls)
	rec.ObserveCall(protocol.MethodSignMessage, rpc.OutcomeTimeout, 30*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(calls))

	rec.PendingRequests(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(bridgePending))
	rec.PendingRequests(0)

	dropped := bridgeDropped.WithLabelValues(rpc.DropUnknownReply)
	before = testutil.ToFloat64(dropped)
	rec.Dropped(rpc.DropUnknownReply)
	assert.Equal(t, before+1, testutil.ToFloat64(dropped))
}

func TestHTTPObserverRecordsRequests(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPObserver(log.Logger, "test"))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	counter := httpRequests.WithLabelValues("test", "GET", "/ping", "204")
	before := testutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	unmatched := httpRequests.WithLabelValues("test", "GET", "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wallet/0xabc", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(unmatched))
}
