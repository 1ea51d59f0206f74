package performance

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

const (
	slowestEndpointLimit = 5
	trendUnavailable     = "n/a"
)

// Report is the performance summary served by /api/performance/reports
type Report struct {
	Timeframe        Timeframe        `json:"timeframe"`
	Summary          Summary          `json:"summary"`
	Endpoints        []EndpointStats  `json:"endpoints"`
	SlowestEndpoints []EndpointStats  `json:"slowestEndpoints"`
	StatusCodes      map[string]int64 `json:"statusCodes"`
	Trend            Trend            `json:"trend"`
}

// Timeframe is the window a report covers
type Timeframe struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Hours int       `json:"hours"`
}

// Summary aggregates every request in the window
type Summary struct {
	TotalRequests   int64   `json:"totalRequests"`
	ErrorCount      int64   `json:"errorCount"`
	ErrorRate       float64 `json:"errorRate"`
	AvgResponseMs   float64 `json:"avgResponseMs"`
	P50Ms           float64 `json:"p50Ms"`
	P95Ms           float64 `json:"p95Ms"`
	P99Ms           float64 `json:"p99Ms"`
	RequestsPerHour float64 `json:"requestsPerHour"`
}

// EndpointStats aggregates the requests of one method and route
type EndpointStats struct {
	Method        string  `json:"method"`
	Route         string  `json:"route"`
	Count         int64   `json:"count"`
	ErrorCount    int64   `json:"errorCount"`
	AvgResponseMs float64 `json:"avgResponseMs"`
	P95Ms         float64 `json:"p95Ms"`
	MaxMs         float64 `json:"maxMs"`
}

// Trend compares the window with the one preceding it
type Trend struct {
	AvgResponseChange   string `json:"avgResponseChange"`
	RequestVolumeChange string `json:"requestVolumeChange"`
}

// isError reports whether a status counts as a failed request. Client errors
// are the caller's fault and do not count.
func isError(status int) bool {
	return status >= 500
}

func buildReport(current, previous []Sample, from, to time.Time, hours int, trendComplete bool) *Report {
	report := &Report{
		Timeframe:        Timeframe{From: from, To: to, Hours: hours},
		Endpoints:        []EndpointStats{},
		SlowestEndpoints: []EndpointStats{},
		StatusCodes:      make(map[string]int64),
	}

	durations := make([]float64, 0, len(current))
	byEndpoint := make(map[string][]Sample)
	var order []string

	for _, s := range current {
		ms := toMillis(s.Duration)
		durations = append(durations, ms)
		if isError(s.Status) {
			report.Summary.ErrorCount++
		}
		report.StatusCodes[strconv.Itoa(s.Status)]++

		key := s.Method + " " + s.Route
		if _, ok := byEndpoint[key]; !ok {
			order = append(order, key)
		}
		byEndpoint[key] = append(byEndpoint[key], s)
	}

	report.Summary.TotalRequests = int64(len(current))
	if len(current) > 0 {
		sort.Float64s(durations)
		report.Summary.AvgResponseMs = round(mean(durations))
		report.Summary.P50Ms = round(percentile(durations, 50))
		report.Summary.P95Ms = round(percentile(durations, 95))
		report.Summary.P99Ms = round(percentile(durations, 99))
		report.Summary.ErrorRate = round(float64(report.Summary.ErrorCount) / float64(len(current)) * 100)
	}
	report.Summary.RequestsPerHour = round(float64(len(current)) / float64(hours))

	for _, key := range order {
		report.Endpoints = append(report.Endpoints, endpointStats(byEndpoint[key]))
	}
	sort.SliceStable(report.Endpoints, func(i, j int) bool {
		return report.Endpoints[i].Count > report.Endpoints[j].Count
	})

	slowest := make([]EndpointStats, len(report.Endpoints))
	copy(slowest, report.Endpoints)
	sort.SliceStable(slowest, func(i, j int) bool {
		return slowest[i].AvgResponseMs > slowest[j].AvgResponseMs
	})
	if len(slowest) > slowestEndpointLimit {
		slowest = slowest[:slowestEndpointLimit]
	}
	report.SlowestEndpoints = slowest

	if !trendComplete {
		report.Trend = Trend{AvgResponseChange: trendUnavailable, RequestVolumeChange: trendUnavailable}
		return report
	}

	var previousAvg float64
	if len(previous) > 0 {
		previousDurations := make([]float64, 0, len(previous))
		for _, s := range previous {
			previousDurations = append(previousDurations, toMillis(s.Duration))
		}
		previousAvg = mean(previousDurations)
	}
	report.Trend = Trend{
		AvgResponseChange:   utils.FormatPercentChange(previousAvg, mean(durations)),
		RequestVolumeChange: utils.FormatPercentChange(float64(len(previous)), float64(len(current))),
	}

	return report
}

func endpointStats(samples []Sample) EndpointStats {
	stats := EndpointStats{
		Method: samples[0].Method,
		Route:  samples[0].Route,
		Count:  int64(len(samples)),
	}

	durations := make([]float64, 0, len(samples))
	for _, s := range samples {
		durations = append(durations, toMillis(s.Duration))
		if isError(s.Status) {
			stats.ErrorCount++
		}
	}
	sort.Float64s(durations)

	stats.AvgResponseMs = round(mean(durations))
	stats.P95Ms = round(percentile(durations, 95))
	stats.MaxMs = round(durations[len(durations)-1])
	return stats
}

// percentile uses the nearest-rank method on sorted values
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// round keeps two decimals
func round(v float64) float64 {
	return math.Round(v*100) / 100
}
