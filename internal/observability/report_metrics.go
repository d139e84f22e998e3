package observability

import (
	"sync/atomic"
	"time"
)

// ReportMetrics is the worker's in-process tally, cheap enough to read from
// the ready endpoint without touching the prometheus registry.

type ReportMetrics struct {
	claimed   atomic.Uint64
	completed atomic.Uint64
	converged atomic.Uint64
	retried   atomic.Uint64
	failed    atomic.Uint64
	recovered atomic.Uint64

	// duration stats (nanoseconds)
	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewReportMetrics() *ReportMetrics {
	return &ReportMetrics{}
}

func (m *ReportMetrics) IncClaimed()   { m.claimed.Add(1) }
func (m *ReportMetrics) IncCompleted() { m.completed.Add(1) }
func (m *ReportMetrics) IncConverged() { m.converged.Add(1) }
func (m *ReportMetrics) IncRetried()   { m.retried.Add(1) }
func (m *ReportMetrics) IncFailed()    { m.failed.Add(1) }

func (m *ReportMetrics) AddRecovered(n int64) {
	if n > 0 {
		m.recovered.Add(uint64(n))
	}
}

func (m *ReportMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	// max update

	for {
		curr := m.durationMax.Load()

		if ns <= curr {
			return
		}

		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type ReportMetricsSnapshot struct {
	Claimed         uint64
	Completed       uint64
	Converged       uint64
	Retried         uint64
	Failed          uint64
	Recovered       uint64
	DurationCount   uint64
	AverageDuration time.Duration
	MaxDuration     time.Duration
}

func (m *ReportMetrics) Snapshot() ReportMetricsSnapshot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()
	max := m.durationMax.Load()

	var avg time.Duration

	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	return ReportMetricsSnapshot{
		Claimed:         m.claimed.Load(),
		Completed:       m.completed.Load(),
		Converged:       m.converged.Load(),
		Retried:         m.retried.Load(),
		Failed:          m.failed.Load(),
		Recovered:       m.recovered.Load(),
		DurationCount:   count,
		AverageDuration: avg,
		MaxDuration:     time.Duration(max),
	}
}
