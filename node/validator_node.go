package node

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pagevote/validatorcore/metrics"
	"github.com/pagevote/validatorcore/pageengine"
	"github.com/pagevote/validatorcore/votetower"
)

// Validator-core specific event types, published on the same EventBus
// the rest of the node's subsystems use.
const (
	EventVoteProcessed EventType = "votetower.voteProcessed"
	EventSlashDetected EventType = "votetower.slashDetected"
	EventBatchExecuted EventType = "pageengine.batchExecuted"
)

// ValidatorNode wires a Vote Tower per tracked validator identity and a
// shared Page Engine into the node's lifecycle, health, and event
// infrastructure. It implements Service so it can be registered with a
// LifecycleManager alongside the node's other subsystems.
type ValidatorNode struct {
	config Config

	towersMu sync.RWMutex
	towers   map[votetower.PublicKey]*votetower.State

	engine *pageengine.Engine

	events  *EventBus
	health  *HealthChecker
	metrics *ValidatorCoreMetrics

	httpServer *http.Server
}

// ValidatorCoreMetrics bundles the Prometheus collector with the
// registry it was registered against, so the HTTP handler and the
// collector agree on scrape source.
type ValidatorCoreMetrics struct {
	Registry   *prometheus.Registry
	Collector  *metrics.ValidatorCoreCollector
}

// NewValidatorNode builds a ValidatorNode with an empty Vote Tower set
// and a freshly initialized Page Engine. maxParallel bounds the Page
// Engine's concurrent call dispatch.
func NewValidatorNode(cfg Config, maxParallel int) *ValidatorNode {
	reg := prometheus.NewRegistry()
	vn := &ValidatorNode{
		config:  cfg,
		towers:  make(map[votetower.PublicKey]*votetower.State),
		engine:  pageengine.NewEngine(maxParallel),
		events:  NewEventBus(256),
		health:  NewHealthChecker(),
		metrics: &ValidatorCoreMetrics{Registry: reg, Collector: metrics.NewValidatorCoreCollector(reg)},
	}
	vn.health.RegisterSubsystem("votetower", vn)
	return vn
}

// Name identifies this service to a LifecycleManager.
func (vn *ValidatorNode) Name() string { return "validatorcore" }

// Start brings up the metrics HTTP server. Vote Tower and Page Engine
// state require no background goroutines of their own; all of their
// work happens synchronously on the caller's goroutine inside
// ProcessVote and ExecuteBatch.
func (vn *ValidatorNode) Start() error {
	if !vn.config.Metrics {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(vn.metrics.Registry, promhttp.HandlerOpts{}))

	vn.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", vn.config.EnginePort),
		Handler: mux,
	}
	go func() {
		_ = vn.httpServer.ListenAndServe()
	}()
	return nil
}

// Stop shuts down the metrics HTTP server, if it was started.
func (vn *ValidatorNode) Stop() error {
	if vn.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return vn.httpServer.Shutdown(ctx)
}

// Check reports ValidatorNode's health for the node-wide HealthChecker.
func (vn *ValidatorNode) Check() *SubsystemHealth {
	vn.towersMu.RLock()
	n := len(vn.towers)
	vn.towersMu.RUnlock()

	return &SubsystemHealth{
		Name:      "validatorcore",
		Status:    "healthy",
		Message:   fmt.Sprintf("%d vote towers tracked", n),
		LastCheck: time.Now().Unix(),
	}
}

// RegisterValidator initializes a new Vote Tower under identity, or
// returns an error if one is already registered there.
func (vn *ValidatorNode) RegisterValidator(identity votetower.PublicKey, init votetower.VoteInit, clock votetower.Clock) error {
	vn.towersMu.Lock()
	defer vn.towersMu.Unlock()

	if _, exists := vn.towers[identity]; exists {
		return fmt.Errorf("validatorcore: %x already registered", identity)
	}
	vn.towers[identity] = votetower.New(init, clock)
	return nil
}

// ProcessVote validates and applies vote against identity's tower,
// checks it for slashable conflicts against history, and publishes the
// outcome on the event bus.
func (vn *ValidatorNode) ProcessVote(identity votetower.PublicKey, vote votetower.Vote, slotHashes []votetower.SlotHash, clock votetower.Clock, history votetower.SlotHistory) error {
	vn.towersMu.RLock()
	tower, ok := vn.towers[identity]
	vn.towersMu.RUnlock()
	if !ok {
		return fmt.Errorf("validatorcore: %x not registered", identity)
	}

	creditsBefore := tower.Credits()
	if err := tower.ProcessVote(vote, slotHashes, clock); err != nil {
		vn.metrics.Collector.VotesProcessed.WithLabelValues("rejected").Inc()
		return err
	}
	vn.metrics.Collector.VotesProcessed.WithLabelValues("accepted").Inc()
	vn.metrics.Collector.EpochCredits.Add(float64(tower.Credits() - creditsBefore))
	vn.events.PublishAsync(EventVoteProcessed, identity)

	wasSlashed := tower.HasBeenSlashed
	tower.SlashFromTransactionVotes(history, vote)
	if !wasSlashed && tower.HasBeenSlashed {
		vn.metrics.Collector.SlashesDetected.Inc()
		vn.events.PublishAsync(EventSlashDetected, identity)
	}
	return nil
}

// Tower returns the Vote Tower registered under identity, if any.
func (vn *ValidatorNode) Tower(identity votetower.PublicKey) (*votetower.State, bool) {
	vn.towersMu.RLock()
	defer vn.towersMu.RUnlock()
	t, ok := vn.towers[identity]
	return t, ok
}

// Engine returns the shared Page Engine.
func (vn *ValidatorNode) Engine() *pageengine.Engine { return vn.engine }

// ExecuteBatch runs calls through the Page Engine, records batch
// latency and per-reason discard counts, and publishes the outcome.
func (vn *ValidatorNode) ExecuteBatch(calls []pageengine.Call) []pageengine.CallResult {
	start := time.Now()
	results := vn.engine.ExecuteBatch(calls)
	elapsed := time.Since(start).Seconds()

	committed := 0
	discards := make(map[string]int)
	for _, r := range results {
		if r.Committed {
			committed++
		} else if r.Reason != "" {
			discards[r.Reason]++
		}
	}
	vn.metrics.Collector.ObserveBatchResults(elapsed, committed, discards)
	vn.events.PublishAsync(EventBatchExecuted, len(results))
	return results
}
