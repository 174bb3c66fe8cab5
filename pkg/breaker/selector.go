package breaker

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/foliofox/foliofox/pkg/catalog"
	"github.com/foliofox/foliofox/pkg/metrics"
)

// Strategy is one of §4.2's five indexer selection strategies.
type Strategy string

const (
	RoundRobin    Strategy = "round_robin"
	Priority      Strategy = "priority"
	ResponseTime  Strategy = "response_time"
	LoadBalanced  Strategy = "load_balanced"
	Intelligent   Strategy = "intelligent"
)

// Weights are the intelligent strategy's scoring coefficients,
// default 1:1:1:1 per §4.2.
type Weights struct {
	ResponseTime float64
	SuccessRate  float64
	Load         float64
	Priority     float64
}

// DefaultWeights returns §4.2's default 1:1:1:1 weighting.
func DefaultWeights() Weights {
	return Weights{ResponseTime: 1, SuccessRate: 1, Load: 1, Priority: 1}
}

// Selector chooses among active, breaker-permitted indexers according
// to a configured Strategy.
type Selector struct {
	registry *Registry
	strategy Strategy
	weights  Weights

	rrMu      sync.Mutex
	rrCounter uint64
}

// NewSelector creates a Selector backed by registry.
func NewSelector(registry *Registry, strategy Strategy, weights Weights) *Selector {
	return &Selector{registry: registry, strategy: strategy, weights: weights}
}

// candidates filters indexers down to active ones whose breaker
// currently allows calls.
func (sel *Selector) candidates(indexers []catalog.Indexer) []catalog.Indexer {
	out := make([]catalog.Indexer, 0, len(indexers))
	for _, ix := range indexers {
		if !ix.Active {
			continue
		}
		if !sel.registry.Allow(ix.ID) {
			continue
		}
		out = append(out, ix)
	}
	return out
}

// ErrNoCandidates is returned when no indexer is both active and
// breaker-permitted.
var ErrNoCandidates = fmt.Errorf("no active indexers with a closed or half-open breaker")

// Select picks one indexer from indexers according to the Selector's
// strategy, recording the outcome as a selector metric.
func (sel *Selector) Select(indexers []catalog.Indexer) (*catalog.Indexer, error) {
	cands := sel.candidates(indexers)
	if len(cands) == 0 {
		metrics.SelectorRequestsTotal.WithLabelValues(string(sel.strategy), "no_candidates").Inc()
		return nil, ErrNoCandidates
	}

	var chosen catalog.Indexer
	switch sel.strategy {
	case RoundRobin:
		chosen = sel.selectRoundRobin(cands)
	case Priority:
		chosen = sel.selectPriority(cands)
	case ResponseTime:
		chosen = sel.selectResponseTime(cands)
	case LoadBalanced:
		chosen = sel.selectLoadBalanced(cands)
	default:
		chosen = sel.selectIntelligent(cands)
	}

	metrics.SelectorRequestsTotal.WithLabelValues(string(sel.strategy), "selected").Inc()
	return &chosen, nil
}

func (sel *Selector) selectRoundRobin(cands []catalog.Indexer) catalog.Indexer {
	n := atomic.AddUint64(&sel.rrCounter, 1) - 1
	return cands[int(n)%len(cands)]
}

func (sel *Selector) selectPriority(cands []catalog.Indexer) catalog.Indexer {
	best := cands[0]
	for _, ix := range cands[1:] {
		if ix.Priority < best.Priority || (ix.Priority == best.Priority && ix.ID < best.ID) {
			best = ix
		}
	}
	return best
}

func (sel *Selector) selectResponseTime(cands []catalog.Indexer) catalog.Indexer {
	best := cands[0]
	bestRT := sel.lastResponseTimeOrInf(best.ID)
	for _, ix := range cands[1:] {
		rt := sel.lastResponseTimeOrInf(ix.ID)
		if rt < bestRT {
			best, bestRT = ix, rt
		}
	}
	return best
}

func (sel *Selector) selectLoadBalanced(cands []catalog.Indexer) catalog.Indexer {
	_, st0 := sel.registry.entry(cands[0].ID)
	best := cands[0]
	bestLoad := st0.snapshotRequestCount()
	for _, ix := range cands[1:] {
		_, st := sel.registry.entry(ix.ID)
		load := st.snapshotRequestCount()
		if load < bestLoad {
			best, bestLoad = ix, load
		}
	}
	return best
}

func (sel *Selector) selectIntelligent(cands []catalog.Indexer) catalog.Indexer {
	best := cands[0]
	bestScore := sel.intelligentScore(best)
	for _, ix := range cands[1:] {
		score := sel.intelligentScore(ix)
		if score < bestScore {
			best, bestScore = ix, score
		}
	}
	return best
}

// intelligentScore implements §4.2's formula:
//
//	w_rt·rt + w_sr·(100−success_rate)·10 + w_load·request_count·10 + w_prio·priority·50 + penalty
//
// where penalty = 500 if status=degraded, +∞ if status=down,
// +100·consecutive_failures. Status is read from the indexer's breaker:
// HALF_OPEN counts as degraded and OPEN as down.
func (sel *Selector) intelligentScore(ix catalog.Indexer) float64 {
	b, st := sel.registry.entry(ix.ID)

	rt := sel.lastResponseTimeOrInf(ix.ID)
	successRate := st.successRatePct()
	load := float64(st.snapshotRequestCount())
	consecutiveFailures := b.ConsecutiveFailures()

	score := sel.weights.ResponseTime*rt +
		sel.weights.SuccessRate*(100-successRate)*10 +
		sel.weights.Load*load*10 +
		sel.weights.Priority*float64(ix.Priority)*50

	penalty := 100 * float64(consecutiveFailures)
	switch b.State() {
	case Open:
		penalty = math.Inf(1)
	case HalfOpen:
		penalty += 500
	}
	return score + penalty
}

func (sel *Selector) lastResponseTimeOrInf(indexerID int64) float64 {
	_, st := sel.registry.entry(indexerID)
	rt, ok := st.lastResponseTime()
	if !ok {
		return math.Inf(1)
	}
	return float64(rt)
}
