package glasscore

import (
	"context"
	"time"

	"github.com/golang/glog"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/glass3/associator/cmn"
)

// Supervisor runs the pick-nucleation and hypo-darwin worker pools and
// tracks their liveness with a heartbeat, using an errgroup+context shape
// for bounded, cancelable fan-out.
type Supervisor struct {
	glass *Glass

	group  *errgroup.Group
	cancel context.CancelFunc

	lastBeat atomic.Int64 // unix millis of the most recent worker tick
}

// NewSupervisor builds a Supervisor bound to glass's lists.
func NewSupervisor(g *Glass) *Supervisor {
	return &Supervisor{glass: g}
}

// Start launches the configured number of nucleation and darwin workers.
func (sv *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	sv.group = group
	sv.cancel = cancel

	cfg := cmn.GCO.Get()

	for i := 0; i < cfg.PickListWorkers; i++ {
		id := i
		group.Go(func() error { return sv.nucleationWorker(ctx, id) })
	}
	for i := 0; i < cfg.HypoListWorkers; i++ {
		id := i
		group.Go(func() error { return sv.darwinWorker(ctx, id) })
	}
	group.Go(func() error { return sv.heartbeatLoop(ctx) })
	group.Go(func() error { return sv.siteLookupLoop(ctx) })

	glog.Infof("supervisor started: %d nucleation workers, %d darwin workers",
		cfg.PickListWorkers, cfg.HypoListWorkers)
}

// Stop cancels every worker and waits for them to return.
func (sv *Supervisor) Stop() error {
	if sv.cancel == nil {
		return nil
	}
	sv.cancel()
	return sv.group.Wait()
}

// Healthy reports whether any worker has ticked within timeout.
func (sv *Supervisor) Healthy(timeout time.Duration) bool {
	last := sv.lastBeat.Load()
	if last == 0 {
		return false
	}
	return time.Since(time.UnixMilli(last)) < timeout
}

func (sv *Supervisor) beat() {
	sv.lastBeat.Store(time.Now().UnixMilli())
}

func (sv *Supervisor) heartbeatLoop(ctx context.Context) error {
	cfg := cmn.GCO.Get()
	interval := time.Duration(cfg.HeartbeatIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sv.beat()
		}
	}
}

// siteLookupLoop periodically drains and publishes any SiteLookup requests
// queued by picks that named an unrecognized station.
func (sv *Supervisor) siteLookupLoop(ctx context.Context) error {
	cfg := cmn.GCO.Get()
	interval := time.Duration(cfg.HeartbeatIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sv.glass.emitSiteLookups()
		}
	}
}

// nucleationWorker drains newly added picks and runs Pick.Nucleate on
// each. An idle worker blocks on the new-pick channel rather than
// busy-spinning.
func (sv *Supervisor) nucleationWorker(ctx context.Context, id int) error {
	queue := sv.glass.Picks.NewPickQueue()
	idle := time.Duration(cmn.GCO.Get().WorkerIdleSleepMs) * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-queue:
			if !ok {
				return nil
			}
			sv.beat()
			if p.hasStrongHost(sv.glass.Hypos) {
				continue
			}
			born := p.Nucleate(sv.glass.Hypos)
			for _, h := range born {
				sv.glass.Hypos.Insert(h)
				sv.glass.emitHypoMessage(h)
			}
			if idle > 0 {
				time.Sleep(0) // yield without real delay on the hot path
			}
		}
	}
}

// darwinWorker drains the hypo work queue and runs HypoList.ProcessHypo on
// each entry, skipping hypos that have exceeded their per-wakeup cycle
// limit or have since vanished — such a hypo is silently skipped, not
// retried.
func (sv *Supervisor) darwinWorker(ctx context.Context, id int) error {
	queue := sv.glass.Hypos.WorkQueue()
	idle := time.Duration(cmn.GCO.Get().WorkerIdleSleepMs) * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return nil
		case hypoID, ok := <-queue:
			if !ok {
				return nil
			}
			sv.glass.Hypos.dequeueMark(hypoID)
			sv.beat()

			h := sv.glass.Hypos.Find(hypoID)
			if h == nil {
				continue
			}
			cfg := cmn.GCO.Get()
			if h.IncProcessingCycle() > cfg.ProcessLimit {
				h.ResetProcessingCycle()
				continue
			}
			sv.glass.Hypos.ProcessHypo(h, cfg)
			if idle > 0 {
				time.Sleep(0)
			}
		}
	}
}
