package loadtest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	sorted := make([]int64, 100)
	for i := range sorted {
		sorted[i] = int64(i + 1)
	}
	require.EqualValues(t, 95, Percentile(sorted, 0.95))
	require.EqualValues(t, 99, Percentile(sorted, 0.99))

	// floor(10*0.95)-1 = 8
	require.EqualValues(t, 9, Percentile(sorted[:10], 0.95))
	// floor(1*0.95)-1 = -1
	require.EqualValues(t, 0, Percentile(sorted[:1], 0.95))
	require.EqualValues(t, 0, Percentile(nil, 0.99))
}

func TestSummarize(t *testing.T) {
	samples := []Sample{
		{Status: 200, Latency: 10 * time.Millisecond},
		{Status: 200, Latency: 20 * time.Millisecond},
		{Status: 404, Latency: 30 * time.Millisecond},
		{Err: errors.New("connection refused"), Latency: 41 * time.Millisecond},
	}

	r := Summarize(Target{URL: "http://x", Requests: 4}, samples)
	require.Equal(t, "http://x", r.URL)
	require.Equal(t, 4, r.Requests)
	require.EqualValues(t, 25, r.AvgMs)
	require.Equal(t, 1, r.Errors)
	require.Equal(t, map[string]int{"200": 2, "404": 1}, r.StatusCounts)
	// floor(4*0.95)-1 = 2
	require.EqualValues(t, 30, r.P95Ms)
	require.EqualValues(t, 30, r.P99Ms)
}

func TestRunnerRun(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1)%5 == 0 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	runner := NewRunner(time.Second, 4)
	r, err := runner.Run(context.Background(), Target{URL: srv.URL, Requests: 20})
	require.NoError(t, err)
	require.EqualValues(t, 20, hits.Load())
	require.Equal(t, 0, r.Errors)
	require.Equal(t, map[string]int{"200": 16, "429": 4}, r.StatusCounts)
}

func TestRunnerCountsConnectionErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r, err := NewRunner(time.Second, 0).Run(context.Background(), Target{URL: url, Requests: 3})
	require.NoError(t, err)
	require.Equal(t, 3, r.Errors)
	require.Empty(t, r.StatusCounts)
}

func TestRunnerRejectsNegativeRequests(t *testing.T) {
	_, err := NewRunner(time.Second, 0).Run(context.Background(), Target{URL: "http://localhost", Requests: -1})
	require.ErrorIs(t, err, ErrInvalidRequests)

	r, err := NewRunner(time.Second, 0).Run(context.Background(), Target{URL: "http://localhost", Requests: 0})
	require.NoError(t, err)
	require.Equal(t, 0, r.Errors)
	require.EqualValues(t, 0, r.AvgMs)
}
