package glasscore

import (
	"fmt"
	"sync"

	"github.com/tidwall/buntdb"

	"github.com/glass3/associator/cmn"
	"github.com/glass3/associator/traveltime"
)

const hypoSortIndex = "hypo_sort_idx"

// HypoCallbacks lets the Glass façade observe lifecycle events without
// HypoList depending on the outbound message format: eviction emits an
// "expire" notification, and a hypo that fails its viability check after
// a prior Event was emitted gets a "cancel" instead.
type HypoCallbacks struct {
	OnExpire func(*Hypo)
	OnCancel func(*Hypo)
	OnEvent  func(*Hypo)
}

// HypoList holds every live Hypo two ways at once — an ID map for lookup
// and a sort-time-ordered set for range queries — plus the darwin work
// queue and the per-hypo processing mutexes that keep ProcessHypo atomic
// per hypo.
type HypoList struct {
	mu     sync.RWMutex
	byID   map[string]*Hypo
	db     *buntdb.DB
	pendMu sync.Mutex
	procMu map[string]*sync.Mutex
	queued map[string]bool

	maxSize int

	workQueue chan string

	webs     *WebList
	pickList *PickList
	corrList *CorrelationList

	cb HypoCallbacks
}

// NewHypoList builds an empty HypoList.
func NewHypoList(maxSize, workers, maxQueueFactor int, webs *WebList, pl *PickList, cl *CorrelationList, cb HypoCallbacks) *HypoList {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		panic(err)
	}
	if err := db.CreateIndex(hypoSortIndex, "*", buntdb.IndexJSON("t")); err != nil {
		panic(err)
	}
	cap := workers * maxQueueFactor
	if cap <= 0 {
		cap = 1
	}
	return &HypoList{
		byID:      map[string]*Hypo{},
		db:        db,
		procMu:    map[string]*sync.Mutex{},
		queued:    map[string]bool{},
		maxSize:   maxSize,
		workQueue: make(chan string, cap),
		webs:      webs,
		pickList:  pl,
		corrList:  cl,
		cb:        cb,
	}
}

// WorkQueue exposes the darwin work queue for worker pools to range over.
func (hl *HypoList) WorkQueue() <-chan string { return hl.workQueue }

// Find returns the live Hypo by ID, or nil.
func (hl *HypoList) Find(id string) *Hypo {
	hl.mu.RLock()
	defer hl.mu.RUnlock()
	return hl.byID[id]
}

// Size returns the number of live hypos.
func (hl *HypoList) Size() int {
	hl.mu.RLock()
	defer hl.mu.RUnlock()
	return len(hl.byID)
}

// Insert adds h, freezing its sort-time at the current origin time,
// evicting the oldest hypo by origin time if this puts the list over
// capacity.
func (hl *HypoList) Insert(h *Hypo) {
	hl.mu.Lock()
	h.SortTime = h.OriginTime()
	hl.byID[h.ID] = h
	hl.procMu[h.ID] = &sync.Mutex{}
	val := fmt.Sprintf(`{"t":%f}`, h.SortTime)
	_ = hl.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(h.ID, val, nil)
		return err
	})
	over := len(hl.byID) > hl.maxSize
	hl.mu.Unlock()

	if over {
		hl.evictOldest()
	}
	hl.Schedule(h.ID)
}

// Remove drops h from both the ID map and the sorted set, and frees its
// processing mutex entry.
func (hl *HypoList) Remove(id string) {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	delete(hl.byID, id)
	delete(hl.procMu, id)
	_ = hl.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(id)
		return err
	})
}

func (hl *HypoList) evictOldest() {
	hl.mu.Lock()
	var oldestID string
	_ = hl.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(hypoSortIndex, func(key, _ string) bool {
			oldestID = key
			return false
		})
	})
	var victim *Hypo
	if oldestID != "" {
		victim = hl.byID[oldestID]
		delete(hl.byID, oldestID)
		delete(hl.procMu, oldestID)
		_ = hl.db.Update(func(tx *buntdb.Tx) error {
			_, err := tx.Delete(oldestID)
			return err
		})
	}
	hl.mu.Unlock()

	if victim != nil && hl.cb.OnExpire != nil {
		hl.cb.OnExpire(victim)
	}
}

// Resync re-freezes h's sort-time after its origin time has changed
// (invariant 5: remove/update/reinsert, never mutate in place).
func (hl *HypoList) Resync(h *Hypo) {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	if _, ok := hl.byID[h.ID]; !ok {
		return
	}
	_ = hl.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(h.ID)
		return err
	})
	h.SortTime = h.OriginTime()
	val := fmt.Sprintf(`{"t":%f}`, h.SortTime)
	_ = hl.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(h.ID, val, nil)
		return err
	})
}

func (hl *HypoList) rangeIDs(minT, maxT float64) []string {
	var ids []string
	lo := fmt.Sprintf(`{"t":%f}`, minT)
	hi := fmt.Sprintf(`{"t":%f}`, maxT)
	_ = hl.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendRange(hypoSortIndex, lo, hi, func(key, _ string) bool {
			ids = append(ids, key)
			return true
		})
	})
	// Brute-force fallback guards the ordering corner cases buntdb's
	// float-keyed index can miss under concurrent resync.
	if len(ids) == 0 {
		hl.mu.RLock()
		for id, h := range hl.byID {
			if h.SortTime >= minT && h.SortTime <= maxT {
				ids = append(ids, id)
			}
		}
		hl.mu.RUnlock()
	}
	return ids
}

// Schedule enqueues hypoID for darwin processing unless it is already
// pending — a concurrent schedule request for the same hypo never
// duplicates an already-pending entry.
func (hl *HypoList) Schedule(hypoID string) {
	hl.pendMu.Lock()
	if hl.queued[hypoID] {
		hl.pendMu.Unlock()
		return
	}
	hl.queued[hypoID] = true
	hl.pendMu.Unlock()
	hl.workQueue <- hypoID
}

// dequeueMark clears the pending flag, called by the darwin worker right
// after popping, so further schedule requests enqueue again.
func (hl *HypoList) dequeueMark(hypoID string) {
	hl.pendMu.Lock()
	delete(hl.queued, hypoID)
	hl.pendMu.Unlock()
}

func (hl *HypoList) tryLockProcessing(id string) (*sync.Mutex, bool) {
	hl.mu.RLock()
	m := hl.procMu[id]
	hl.mu.RUnlock()
	if m == nil {
		return nil, false
	}
	return m, m.TryLock()
}

// Associate range-queries hypos whose origin time lies within windowSec
// before the pick, asks each whether it can associate, and either links
// exclusively (one acceptor) or schedules every acceptor and leaves the
// pick's own reference for the affinity contest to settle (several
// acceptors).
func (hl *HypoList) Associate(p *Pick, cfg *cmn.Config) []*Hypo {
	candidates := hl.candidatesBefore(p.Time, cfg.PickAssociationWindowSec)
	var accepted []*Hypo
	for _, h := range candidates {
		if h.CanAssociate(p, 1.0, cfg.AssociationSDCutoff) {
			accepted = append(accepted, h)
		}
	}
	for _, h := range accepted {
		h.AddPick(p)
	}
	if len(accepted) == 1 {
		p.SetCurrentHypoID(accepted[0].ID)
		accepted[0].ResetProcessingCycle()
	}
	for _, h := range accepted {
		hl.Schedule(h.ID)
	}
	return accepted
}

// AssociateCorrelation mirrors Associate for Correlations, using the
// correlation matching time window instead of the pick association
// window.
func (hl *HypoList) AssociateCorrelation(c *Correlation, cfg *cmn.Config) []*Hypo {
	candidates := hl.candidatesBefore(c.Time, cfg.CorrelationMatchingTimeWindow)
	var accepted []*Hypo
	for _, h := range candidates {
		if h.CanAssociateCorrelation(c) {
			accepted = append(accepted, h)
		}
	}
	for _, h := range accepted {
		h.AddCorrelation(c)
	}
	if len(accepted) == 1 {
		c.SetCurrentHypoID(accepted[0].ID)
	}
	for _, h := range accepted {
		hl.Schedule(h.ID)
	}
	return accepted
}

func (hl *HypoList) candidatesBefore(t, windowSec float64) []*Hypo {
	ids := hl.rangeIDs(t-windowSec, t)
	hl.mu.RLock()
	defer hl.mu.RUnlock()
	out := make([]*Hypo, 0, len(ids))
	for _, id := range ids {
		if h, ok := hl.byID[id]; ok {
			out = append(out, h)
		}
	}
	return out
}

// ProcessHypo runs the full per-wakeup pipeline — relocate, scavenge,
// resolve contested data, prune, check viability, merge, report — under
// h's processing mutex, re-enqueueing h if any step changed it.
func (hl *HypoList) ProcessHypo(h *Hypo, cfg *cmn.Config) {
	m, ok := hl.tryLockProcessing(h.ID)
	if !ok {
		// Already being processed by another worker, or h no longer has
		// a processing mutex (evicted); the schedule that got us here
		// is sufficient, so just drop this entry.
		return
	}
	defer m.Unlock()

	changed := false

	web := hl.webs.Get(h.WebName)
	webResolution := 50.0
	if web != nil {
		webResolution = web.NodeResolutionKm
	}
	beforeLoc := h.OriginTime()
	h.Localize(cfg, webResolution)
	DumpGraphics(h, cfg)
	if h.OriginTime() != beforeLoc {
		hl.Resync(h)
		changed = true
	}

	if n := hl.pickList.Scavenge(h, cfg.PickAssociationWindowSec); n > 0 {
		changed = true
	}
	if n := hl.corrList.Scavenge(h, cfg.CorrelationMatchingTimeWindow); n > 0 {
		changed = true
	}

	if hl.resolveData(h, cfg) > 0 {
		changed = true
	}

	if n := h.PruneData(cfg); n > 0 {
		changed = true
	}

	if h.CancelCheck(cfg) {
		hl.Remove(h.ID)
		if h.EventMessageGenerated && hl.cb.OnCancel != nil {
			hl.cb.OnCancel(h)
		}
		return
	}

	hl.mergeCloseHypos(h, cfg)

	if !h.EventMessageGenerated && h.Bayes() >= cfg.ReportingStackThreshold && h.DataCount() >= cfg.ReportingDataThreshold {
		h.EventMessageGenerated = true
		if hl.cb.OnEvent != nil {
			hl.cb.OnEvent(h)
		}
	}

	if changed {
		hl.Schedule(h.ID)
	}
}

// resolveData runs the ownership contest for data currently linked to a
// *different* hypo: for a pick the higher-affinity hypo keeps it; for a
// correlation the hypo with the higher Bayes value keeps it.
func (hl *HypoList) resolveData(h *Hypo, cfg *cmn.Config) int {
	n := 0
	for _, p := range h.Picks() {
		otherID := p.CurrentHypoID()
		if otherID == "" {
			p.SetCurrentHypoID(h.ID)
			continue
		}
		if otherID == h.ID {
			continue
		}
		other := hl.Find(otherID)
		if other == nil {
			p.SetCurrentHypoID(h.ID)
			continue
		}
		affH := h.Affinity(p, cfg.AssociationSDCutoff, cfg.PickAffinityExpFactor)
		affOther := other.Affinity(p, cfg.AssociationSDCutoff, cfg.PickAffinityExpFactor)
		if affH >= affOther {
			other.RemovePick(p.ID)
			p.SetCurrentHypoID(h.ID)
			h.ResetProcessingCycle()
			hl.Schedule(other.ID)
		} else {
			h.RemovePick(p.ID)
			hl.Schedule(other.ID)
		}
		n++
	}

	for _, c := range h.Correlations() {
		otherID := c.CurrentHypoID()
		if otherID == "" {
			c.SetCurrentHypoID(h.ID)
			continue
		}
		if otherID == h.ID {
			continue
		}
		other := hl.Find(otherID)
		if other == nil {
			c.SetCurrentHypoID(h.ID)
			continue
		}
		if h.CanAssociateCorrelation(c) && h.Bayes() >= other.Bayes() {
			other.RemoveCorrelation(c.ID)
			c.SetCurrentHypoID(h.ID)
			hl.Schedule(other.ID)
		} else {
			h.RemoveCorrelation(c.ID)
			hl.Schedule(other.ID)
		}
		n++
	}
	return n
}

// mergeCloseHypos applies the merge rule: for any other hypo within the
// origin-time and distance windows, build a trial merger and keep it only
// if its Bayes value clears the combined threshold.
func (hl *HypoList) mergeCloseHypos(h *Hypo, cfg *cmn.Config) {
	ot := h.OriginTime()
	ids := hl.rangeIDs(ot-cfg.MergeOriginTimeWindowSec, ot+cfg.MergeOriginTimeWindowSec)
	geo := h.Location()

	for _, id := range ids {
		if id == h.ID {
			continue
		}
		other := hl.Find(id)
		if other == nil {
			continue
		}
		if geo.Delta(other.Location()) > cfg.MergeDistanceWindowDeg {
			continue
		}

		otherMu, ok := hl.tryLockProcessing(other.ID)
		if !ok {
			continue
		}

		accepted := hl.tryMerge(h, other, cfg)
		otherMu.Unlock()
		if accepted {
			return
		}
	}
}

func (hl *HypoList) tryMerge(a, b *Hypo, cfg *cmn.Config) bool {
	ga, gb := a.Location(), b.Location()
	midLat := (ga.LatDeg + gb.LatDeg) / 2
	midLon := (ga.LonDeg + gb.LonDeg) / 2
	midDepth := (ga.DepthK + gb.DepthK) / 2
	midOT := (a.OriginTime() + b.OriginTime()) / 2

	trial := NewHypoFromTrigger(&Trigger{WebName: a.WebName, Lat: midLat, Lon: midLon, Depth: midDepth, OriginTime: midOT})
	web := hl.webs.Get(a.WebName)
	if web != nil {
		trial.WireTravelTimes(web.TTPrimary, web.TTSecondary, fullTablesForWeb(web))
		trial.MaxDepthKm = web.MaxDepthKm
		trial.AzimuthTaper = web.AzimuthTaper
	}
	for _, p := range a.Picks() {
		trial.AddPick(p)
	}
	for _, p := range b.Picks() {
		trial.AddPick(p)
	}
	for _, c := range a.Correlations() {
		trial.AddCorrelation(c)
	}
	for _, c := range b.Correlations() {
		trial.AddCorrelation(c)
	}

	trial.Anneal(300, 10, 1, 2, 0.2)
	trial.PruneData(cfg)
	trial.CalculateStatistics(cfg)

	ba, bb := a.Bayes(), b.Bayes()
	threshold := maxF(ba, bb) + cfg.MergeBonusFactor*minF(ba, bb)
	if trial.Bayes() < threshold {
		return false
	}

	hl.Remove(a.ID)
	hl.Remove(b.ID)
	for _, p := range trial.Picks() {
		p.SetCurrentHypoID(trial.ID)
	}
	for _, c := range trial.Correlations() {
		c.SetCurrentHypoID(trial.ID)
	}
	hl.Insert(trial)
	return true
}

func fullTablesForWeb(w *Web) []traveltime.Table {
	var out []traveltime.Table
	if w.TTPrimary != nil {
		out = append(out, w.TTPrimary)
	}
	if w.TTSecondary != nil {
		out = append(out, w.TTSecondary)
	}
	return out
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
