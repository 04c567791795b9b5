// Package stats tracks recent latencies per pipeline operation.
package stats

import (
	"slices"
	"sync"
	"time"
)

// Snapshot summarizes the samples one operation recorded within the window.
type Snapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

type sample struct {
	at time.Time
	ms int64
}

// Latency keeps the samples of the last maxAge for every operation name.
// Samples are appended in time order, so expiry only trims slice heads.
type Latency struct {
	mu     sync.Mutex
	maxAge time.Duration
	ops    map[string][]sample
}

// NewLatency returns a tracker with the given window; non-positive means one hour.
func NewLatency(maxAge time.Duration) *Latency {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Latency{maxAge: maxAge, ops: make(map[string][]sample)}
}

// Observe records the time elapsed since start under op.
func (l *Latency) Observe(op string, start time.Time) {
	l.Record(op, time.Since(start))
}

func (l *Latency) Record(op string, d time.Duration) {
	now := time.Now()
	s := sample{at: now, ms: max(d.Milliseconds(), 0)}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops[op] = append(l.expire(op, now), s)
}

// Snapshot summarizes every operation seen so far. Operations whose samples
// have all expired report a zero Count.
func (l *Latency) Snapshot() map[string]Snapshot {
	now := time.Now()

	l.mu.Lock()
	values := make(map[string][]int64, len(l.ops))
	for op := range l.ops {
		kept := l.expire(op, now)
		l.ops[op] = kept
		ms := make([]int64, len(kept))
		for i, s := range kept {
			ms[i] = s.ms
		}
		values[op] = ms
	}
	l.mu.Unlock()

	out := make(map[string]Snapshot, len(values))
	for op, ms := range values {
		out[op] = summarize(ms)
	}
	return out
}

// expire drops the leading samples of op older than the window. Callers hold mu.
func (l *Latency) expire(op string, now time.Time) []sample {
	samples := l.ops[op]
	cutoff := now.Add(-l.maxAge)
	i, _ := slices.BinarySearchFunc(samples, cutoff, func(s sample, t time.Time) int {
		return s.at.Compare(t)
	})
	if i == 0 {
		return samples
	}
	return slices.Clone(samples[i:])
}

func summarize(ms []int64) Snapshot {
	if len(ms) == 0 {
		return Snapshot{}
	}
	slices.Sort(ms)

	var sum int64
	for _, v := range ms {
		sum += v
	}
	return Snapshot{
		Count: len(ms),
		MinMs: ms[0],
		MaxMs: ms[len(ms)-1],
		AvgMs: float64(sum) / float64(len(ms)),
		P50Ms: quantile(ms, 0.50),
		P95Ms: quantile(ms, 0.95),
		P99Ms: quantile(ms, 0.99),
	}
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []int64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return float64(sorted[len(sorted)-1])
	}
	frac := pos - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
