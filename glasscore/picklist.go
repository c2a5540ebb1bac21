package glasscore

import (
	"fmt"
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
	"github.com/tidwall/buntdb"

	"github.com/glass3/associator/cmn"
	"github.com/glass3/associator/cmn/glasserrors"
)

const pickTimeIndex = "pick_time_idx"

// PickList is the bounded, pick-time-ordered set of recent Picks plus the
// new-pick work queue awaiting nucleation. The ordered set is an in-memory
// buntdb database indexed on pick time, giving O(log n) range scans for
// HypoList.associate/scavenge instead of a hand-rolled sorted slice; a
// cuckoo filter gives a cheap negative pre-check before the exact
// duplicate-time-window scan.
type PickList struct {
	mu   sync.RWMutex
	db   *buntdb.DB
	byID map[string]*Pick

	dupFilter *cuckoo.Filter

	maxSize int

	newPickCh chan *Pick
}

// NewPickList builds an empty PickList bounded to maxSize entries, with a
// new-pick queue capacity derived from the configured worker/backpressure
// sizing: workers x maxQueueFactor. The buffered channel IS the
// backpressure — AddPick's send blocks once it is full.
func NewPickList(maxSize int, workers, maxQueueFactor int) *PickList {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		panic(err) // in-memory open cannot fail in practice
	}
	if err := db.CreateIndex(pickTimeIndex, "*", buntdb.IndexJSON("t")); err != nil {
		panic(err)
	}
	cap := workers * maxQueueFactor
	if cap <= 0 {
		cap = 1
	}
	return &PickList{
		db:        db,
		byID:      map[string]*Pick{},
		dupFilter: cuckoo.NewFilter(1 << 16),
		maxSize:   maxSize,
		newPickCh: make(chan *Pick, cap),
	}
}

// NewPickQueue exposes the new-pick channel for worker pools to range
// over.
func (pl *PickList) NewPickQueue() <-chan *Pick { return pl.newPickCh }

func dupKey(siteCode string, t float64, window float64) string {
	if window <= 0 {
		window = 1
	}
	bucket := int64(t / window)
	return fmt.Sprintf("%s|%d", siteCode, bucket)
}

// AddPick rejects exact duplicates within PickDuplicateTimeWindow, inserts,
// evicts the oldest on overflow, then enqueues for nucleation. AddPick
// blocks if the new-pick queue is full (the backpressure mechanism), so
// callers on a dedicated ingress goroutine are expected.
func (pl *PickList) AddPick(p *Pick, cfg *cmn.Config) error {
	if dup := pl.isDuplicate(p, cfg.PickDuplicateTimeWindow); dup {
		return glasserrors.ErrDuplicateInput
	}

	pl.mu.Lock()
	val := fmt.Sprintf(`{"t":%f,"site":%q}`, p.Time, p.Site.Code)
	err := pl.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(p.ID, val, nil)
		return err
	})
	if err != nil {
		pl.mu.Unlock()
		return err
	}
	pl.byID[p.ID] = p
	pl.dupFilter.InsertUnique([]byte(dupKey(p.Site.Code, p.Time, cfg.PickDuplicateTimeWindow)))
	size := len(pl.byID)
	pl.mu.Unlock()

	var capErr error
	if size > pl.maxSize {
		pl.evictOldest()
		capErr = glasserrors.ErrCapacityEvicted
	}

	pl.newPickCh <- p
	return capErr
}

func (pl *PickList) isDuplicate(p *Pick, window float64) bool {
	// A pick within window of p sits in p's time bucket or an adjacent one.
	seen := false
	for _, t := range []float64{p.Time - window, p.Time, p.Time + window} {
		if pl.dupFilter.Lookup([]byte(dupKey(p.Site.Code, t, window))) {
			seen = true
			break
		}
	}
	if !seen {
		return false
	}
	// Possible match per the probabilistic filter; confirm exactly.
	for _, existing := range pl.bySite(p.Site.Code, p.Time-window, p.Time+window) {
		if existing.Site.Code == p.Site.Code {
			return true
		}
	}
	return false
}

// bySite returns every Pick currently held whose arrival time lies within
// [minT,maxT), restricted to siteCode.
func (pl *PickList) bySite(siteCode string, minT, maxT float64) []*Pick {
	ids := pl.rangeIDs(minT, maxT)
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	var out []*Pick
	for _, id := range ids {
		if p, ok := pl.byID[id]; ok && p.Site.Code == siteCode {
			out = append(out, p)
		}
	}
	return out
}

// Range returns every held Pick whose arrival time lies within [minT,maxT).
func (pl *PickList) Range(minT, maxT float64) []*Pick {
	ids := pl.rangeIDs(minT, maxT)
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	out := make([]*Pick, 0, len(ids))
	for _, id := range ids {
		if p, ok := pl.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (pl *PickList) rangeIDs(minT, maxT float64) []string {
	var ids []string
	lo := fmt.Sprintf(`{"t":%f}`, minT)
	hi := fmt.Sprintf(`{"t":%f}`, maxT)
	_ = pl.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendRange(pickTimeIndex, lo, hi, func(key, _ string) bool {
			ids = append(ids, key)
			return true
		})
	})
	return ids
}

func (pl *PickList) evictOldest() {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	var oldestID string
	_ = pl.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(pickTimeIndex, func(key, _ string) bool {
			oldestID = key
			return false
		})
	})
	if oldestID == "" {
		return
	}
	_ = pl.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(oldestID)
		return err
	})
	delete(pl.byID, oldestID)
}

// Remove drops the pick by ID from the held set (used when a Site evicts
// it from its own recent-pick list, per invariant 3).
func (pl *PickList) Remove(id string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	_ = pl.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(id)
		return err
	})
	delete(pl.byID, id)
}

// Get returns the held Pick by ID, or nil.
func (pl *PickList) Get(id string) *Pick {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return pl.byID[id]
}

// Size returns the number of picks currently held.
func (pl *PickList) Size() int {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return len(pl.byID)
}

// Scavenge pulls previously unaffiliated picks within windowSec of hypo's
// origin time into hypo's supporting set if they now associate.
func (pl *PickList) Scavenge(h *Hypo, windowSec float64) int {
	ot := h.OriginTime()
	candidates := pl.Range(ot-windowSec, ot+windowSec)
	n := 0
	cfg := cmn.GCO.Get()
	for _, p := range candidates {
		if p.CurrentHypoID() != "" {
			continue
		}
		if h.CanAssociate(p, 1.0, cfg.AssociationSDCutoff) {
			h.AddPick(p)
			n++
		}
	}
	return n
}
