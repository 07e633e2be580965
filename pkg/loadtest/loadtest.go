package loadtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrInvalidRequests = errors.New("requests must not be negative")

type Target struct {
	URL      string `json:"url"`
	Requests int    `json:"requests"`
}

type Sample struct {
	Status  int
	Latency time.Duration
	Err     error
}

// Report 每个目标输出一行 JSON
type Report struct {
	URL          string         `json:"url"`
	Requests     int            `json:"requests"`
	AvgMs        int64          `json:"avgMs"`
	P95Ms        int64          `json:"p95Ms"`
	P99Ms        int64          `json:"p99Ms"`
	Errors       int            `json:"errors"`
	StatusCounts map[string]int `json:"statusCounts"`
}

type Runner struct {
	Client *http.Client
	// Concurrency <= 0 表示所有请求同时发出
	Concurrency int
}

func NewRunner(timeout time.Duration, concurrency int) *Runner {
	return &Runner{
		Client:      &http.Client{Timeout: timeout},
		Concurrency: concurrency,
	}
}

func (r *Runner) get(ctx context.Context, url string) Sample {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Sample{Err: err, Latency: time.Since(start)}
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return Sample{Err: err, Latency: time.Since(start)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return Sample{Status: resp.StatusCode, Latency: time.Since(start)}
}

// Run 并发请求目标地址，单个请求失败记入 Errors，不中断其他请求
func (r *Runner) Run(ctx context.Context, target Target) (Report, error) {
	if target.Requests < 0 {
		return Report{}, fmt.Errorf("%s: %w", target.URL, ErrInvalidRequests)
	}
	samples := make([]Sample, target.Requests)

	g, gctx := errgroup.WithContext(ctx)
	if r.Concurrency > 0 {
		g.SetLimit(r.Concurrency)
	}
	for i := 0; i < target.Requests; i++ {
		g.Go(func() error {
			samples[i] = r.get(gctx, target.URL)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	return Summarize(target, samples), nil
}

func Summarize(target Target, samples []Sample) Report {
	report := Report{
		URL:          target.URL,
		Requests:     target.Requests,
		StatusCounts: make(map[string]int),
	}

	latencies := make([]int64, 0, len(samples))
	var sum int64
	for _, s := range samples {
		ms := s.Latency.Milliseconds()
		latencies = append(latencies, ms)
		sum += ms
		if s.Err != nil {
			report.Errors++
			continue
		}
		report.StatusCounts[strconv.Itoa(s.Status)]++
	}

	if len(latencies) > 0 {
		report.AvgMs = int64(math.Round(float64(sum) / float64(len(latencies))))
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	report.P95Ms = Percentile(latencies, 0.95)
	report.P99Ms = Percentile(latencies, 0.99)
	return report
}

// Percentile 取排序后下标 floor(n*p)-1 的值，越界返回 0
func Percentile(sorted []int64, p float64) int64 {
	idx := int(math.Floor(float64(len(sorted))*p)) - 1
	if idx < 0 || idx >= len(sorted) {
		return 0
	}
	return sorted[idx]
}
