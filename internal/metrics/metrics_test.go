package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordDecode("online", 3, nil, 0.1)
		m.StreamOpened("online")
		m.StreamClosed("online")
		m.RecordEndpoint("rule1")
		m.RecordKeyword("hello")
		m.RecordSynthChunk(0.1)
		m.RecordSynthCancelled()
		m.RecordDenoise(0.1)
		m.RecordPublish("topic", nil, 0.1)
		m.RecordRPC("DecodeBatch", "OK", 0.1)
	})
}

func TestRecordDecodeCountsCallsAndErrors(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordDecode("online", 4, nil, 0.01)
	m.RecordDecode("online", 2, errors.New("boom"), 0.01)
	m.RecordDecode("offline", 1, nil, 0.01)

	require.Equal(t, 2.0, testutil.ToFloat64(m.DecodeCalls.WithLabelValues("online")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues("online")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DecodeCalls.WithLabelValues("offline")))
}

func TestStreamsActiveGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.StreamOpened("keyword")
	m.StreamOpened("keyword")
	m.StreamClosed("keyword")
	require.Equal(t, 1.0, testutil.ToFloat64(m.StreamsActive.WithLabelValues("keyword")))
}

func TestRecordPublishStatus(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordPublish("utterances", nil, 0.01)
	m.RecordPublish("utterances", errors.New("down"), 0.01)

	require.Equal(t, 1.0, testutil.ToFloat64(m.PublishTotal.WithLabelValues("utterances", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PublishTotal.WithLabelValues("utterances", "error")))
}

func TestServerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordEndpoint("rule1")

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(l.Addr().String(), reg, nil)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	require.Contains(t, string(body), `hark_endpoints_total{rule="rule1"} 1`)

	resp, err = http.Get("http://" + l.Addr().String() + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-done)
}
