package breaker

import (
	"strconv"
	"sync"

	"github.com/foliofox/foliofox/pkg/metrics"
)

const responseTimeCapacity = 100

// indexerStats is the per-indexer in-process bookkeeping §4.2's
// "Recording a request result" paragraph names: a bounded ring buffer
// of response times, cumulative success/failure counts, and a
// request counter for the load_balanced strategy.
type indexerStats struct {
	mu sync.Mutex

	responseTimes []int // ring buffer, oldest overwritten first
	rtHead        int

	successes     int64
	failures      int64
	requestCount  int64
}

func newIndexerStats() *indexerStats {
	return &indexerStats{responseTimes: make([]int, 0, responseTimeCapacity)}
}

func (s *indexerStats) recordResponseTime(ms int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responseTimes) < responseTimeCapacity {
		s.responseTimes = append(s.responseTimes, ms)
		return
	}
	s.responseTimes[s.rtHead] = ms
	s.rtHead = (s.rtHead + 1) % responseTimeCapacity
}

func (s *indexerStats) lastResponseTime() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responseTimes) == 0 {
		return 0, false
	}
	idx := s.rtHead - 1
	if idx < 0 {
		idx = len(s.responseTimes) - 1
	}
	return s.responseTimes[idx], true
}

func (s *indexerStats) successRatePct() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.successes + s.failures
	if total == 0 {
		return 100
	}
	return float64(s.successes) / float64(total) * 100
}

func (s *indexerStats) snapshotRequestCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestCount
}

// Registry owns one Breaker and one indexerStats per indexer ID. It is
// the single place the Download Queue Engine and Indexer Health
// Monitor go through to record outcomes and select candidates.
type Registry struct {
	cfg Config

	mu       sync.Mutex
	breakers map[int64]*Breaker
	stats    map[int64]*indexerStats
}

// NewRegistry creates an empty Registry using cfg for every breaker it
// lazily creates.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[int64]*Breaker),
		stats:    make(map[int64]*indexerStats),
	}
}

func (r *Registry) entry(indexerID int64) (*Breaker, *indexerStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[indexerID]
	if !ok {
		b = New(r.cfg)
		r.breakers[indexerID] = b
	}
	st, ok := r.stats[indexerID]
	if !ok {
		st = newIndexerStats()
		r.stats[indexerID] = st
	}
	return b, st
}

// Allow reports whether indexerID's breaker currently permits a call.
func (r *Registry) Allow(indexerID int64) bool {
	b, _ := r.entry(indexerID)
	return b.Allow()
}

// BeginRequest increments the in-flight request counter the
// load_balanced strategy reads, and returns a func to call when the
// request resolves, which records the outcome on the breaker and
// stats.
func (r *Registry) BeginRequest(indexerID int64) func(success bool, responseTimeMS int) {
	b, st := r.entry(indexerID)
	st.mu.Lock()
	st.requestCount++
	st.mu.Unlock()

	return func(success bool, responseTimeMS int) {
		st.mu.Lock()
		st.requestCount--
		if success {
			st.successes++
		} else {
			st.failures++
		}
		st.mu.Unlock()

		st.recordResponseTime(responseTimeMS)

		wasOpen := b.State() == Open
		if success {
			b.RecordSuccess()
		} else {
			b.RecordFailure()
		}
		if !wasOpen && b.State() == Open {
			metrics.BreakerTripsTotal.WithLabelValues(idStr(indexerID)).Inc()
		}
		metrics.BreakerState.WithLabelValues(idStr(indexerID)).Set(float64(b.State()))
	}
}

// State returns indexerID's breaker state.
func (r *Registry) State(indexerID int64) State {
	b, _ := r.entry(indexerID)
	return b.State()
}

// ConsecutiveFailures returns indexerID's breaker failure streak.
func (r *Registry) ConsecutiveFailures(indexerID int64) int {
	b, _ := r.entry(indexerID)
	return b.ConsecutiveFailures()
}

// Reset forces indexerID's breaker back to CLOSED.
func (r *Registry) Reset(indexerID int64) {
	b, _ := r.entry(indexerID)
	b.Reset()
}

func idStr(id int64) string {
	return strconv.FormatInt(id, 10)
}
