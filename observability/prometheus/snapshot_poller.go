package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-display-runner/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// StatsProvider provides current service stats snapshots. *core.Service
// satisfies it.
type StatsProvider interface {
	Stats() core.LoopStats
}

var _ StatsProvider = (*core.Service)(nil)

// SnapshotPoller periodically exports Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	servicesMu sync.RWMutex
	services   map[string]StatsProvider

	pending  *prom.GaugeVec
	windows  *prom.GaugeVec
	reserved *prom.GaugeVec
	applied  *prom.GaugeVec
	failed   *prom.GaugeVec
	rejected *prom.GaugeVec
	state    *prom.GaugeVec
	lastTask *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, append([]string{"loop"}, labels...))
	}

	p := &SnapshotPoller{
		interval: interval,
		services: make(map[string]StatsProvider),
		pending:  gauge("loop_pending", "Tasks queued and not yet drained."),
		windows:  gauge("loop_windows", "Windows live in the registry."),
		reserved: gauge("loop_reserved_names", "Window names currently reserved."),
		applied:  gauge("loop_applied_total", "Applied task count snapshot."),
		failed:   gauge("loop_failed_total", "Failed task count snapshot."),
		rejected: gauge("loop_rejected_total", "Rejected call count snapshot."),
		state:    gauge("loop_state", "Loop lifecycle state (1 for the current state).", "state"),
		lastTask: gauge("loop_last_task_timestamp_seconds", "Unix time of the last applied task."),
	}

	for _, vec := range []**prom.GaugeVec{
		&p.pending, &p.windows, &p.reserved, &p.applied,
		&p.failed, &p.rejected, &p.state, &p.lastTask,
	} {
		registered, err := registerCollector(reg, *vec)
		if err != nil {
			return nil, err
		}
		*vec = registered
	}
	return p, nil
}

// AddService adds or replaces a stats provider by name.
func (p *SnapshotPoller) AddService(name string, provider StatsProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "display")
	p.servicesMu.Lock()
	p.services[name] = provider
	p.servicesMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

var allLoopStates = []core.LoopState{core.LoopIdle, core.LoopRunning, core.LoopStopping, core.LoopStopped}

func (p *SnapshotPoller) collectOnce() {
	p.servicesMu.RLock()
	defer p.servicesMu.RUnlock()

	for name, provider := range p.services {
		stats := provider.Stats()
		p.pending.WithLabelValues(name).Set(float64(stats.Pending))
		p.windows.WithLabelValues(name).Set(float64(stats.Windows))
		p.reserved.WithLabelValues(name).Set(float64(stats.Reserved))
		p.applied.WithLabelValues(name).Set(float64(stats.Applied))
		p.failed.WithLabelValues(name).Set(float64(stats.Failed))
		p.rejected.WithLabelValues(name).Set(float64(stats.Rejected))
		for _, s := range allLoopStates {
			v := 0.0
			if s == stats.State {
				v = 1
			}
			p.state.WithLabelValues(name, s.String()).Set(v)
		}
		if !stats.LastTaskAt.IsZero() {
			p.lastTask.WithLabelValues(name).Set(float64(stats.LastTaskAt.UnixNano()) / 1e9)
		}
	}
}
