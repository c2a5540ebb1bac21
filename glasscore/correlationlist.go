package glasscore

import (
	"fmt"
	"sync"

	"github.com/tidwall/buntdb"
)

const correlationTimeIndex = "correlation_time_idx"

// CorrelationList is the bounded, time-ordered set of recent Correlations,
// built the same way as PickList: an in-memory buntdb index for range
// queries.
type CorrelationList struct {
	mu      sync.RWMutex
	db      *buntdb.DB
	byID    map[string]*Correlation
	maxSize int
}

// NewCorrelationList builds an empty, bounded CorrelationList.
func NewCorrelationList(maxSize int) *CorrelationList {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		panic(err)
	}
	if err := db.CreateIndex(correlationTimeIndex, "*", buntdb.IndexJSON("t")); err != nil {
		panic(err)
	}
	return &CorrelationList{db: db, byID: map[string]*Correlation{}, maxSize: maxSize}
}

// Add inserts c, evicting the oldest by time if over capacity.
func (cl *CorrelationList) Add(c *Correlation) (evicted bool) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	val := fmt.Sprintf(`{"t":%f}`, c.Time)
	_ = cl.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(c.ID, val, nil)
		return err
	})
	cl.byID[c.ID] = c
	if len(cl.byID) > cl.maxSize {
		cl.evictOldestLocked()
		evicted = true
	}
	return evicted
}

func (cl *CorrelationList) evictOldestLocked() {
	var oldestID string
	_ = cl.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(correlationTimeIndex, func(key, _ string) bool {
			oldestID = key
			return false
		})
	})
	if oldestID == "" {
		return
	}
	_ = cl.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(oldestID)
		return err
	})
	delete(cl.byID, oldestID)
}

// Range returns every held Correlation with time in [minT,maxT).
func (cl *CorrelationList) Range(minT, maxT float64) []*Correlation {
	var ids []string
	lo := fmt.Sprintf(`{"t":%f}`, minT)
	hi := fmt.Sprintf(`{"t":%f}`, maxT)
	cl.mu.RLock()
	_ = cl.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendRange(correlationTimeIndex, lo, hi, func(key, _ string) bool {
			ids = append(ids, key)
			return true
		})
	})
	out := make([]*Correlation, 0, len(ids))
	for _, id := range ids {
		if c, ok := cl.byID[id]; ok {
			out = append(out, c)
		}
	}
	cl.mu.RUnlock()
	return out
}

// Get returns the held Correlation by ID, or nil.
func (cl *CorrelationList) Get(id string) *Correlation {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.byID[id]
}

// Size returns the number of correlations currently held.
func (cl *CorrelationList) Size() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.byID)
}

// Scavenge mirrors PickList.Scavenge for Correlations.
func (cl *CorrelationList) Scavenge(h *Hypo, windowSec float64) int {
	ot := h.OriginTime()
	candidates := cl.Range(ot-windowSec, ot+windowSec)
	n := 0
	for _, c := range candidates {
		if c.CurrentHypoID() != "" {
			continue
		}
		if h.CanAssociateCorrelation(c) {
			h.AddCorrelation(c)
			n++
		}
	}
	return n
}
