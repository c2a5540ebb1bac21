package glasscore

import (
	"testing"

	"github.com/glass3/associator/cmn"
)

func newTestHypoList(maxSize int) (*HypoList, *WebList, *PickList, *CorrelationList) {
	webs := NewWebList(1)
	picks := NewPickList(1000, 2, 10)
	corrs := NewCorrelationList(1000)
	hl := NewHypoList(maxSize, 2, 10, webs, picks, corrs, HypoCallbacks{})
	return hl, webs, picks, corrs
}

func TestHypoListInsertFind(t *testing.T) {
	hl, _, _, _ := newTestHypoList(10)
	h := newTestHypo(t, 35, -118, 8, 1000)
	hl.Insert(h)
	if hl.Find(h.ID) == nil {
		t.Fatal("expected inserted hypo to be findable")
	}
	if hl.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", hl.Size())
	}
}

func TestHypoListEvictsOldestOverCapacity(t *testing.T) {
	var evicted *Hypo
	hl2 := NewHypoList(2, 2, 10, NewWebList(1), NewPickList(10, 2, 10), NewCorrelationList(10), HypoCallbacks{
		OnExpire: func(h *Hypo) { evicted = h },
	})

	h1 := newTestHypo(t, 0, 0, 8, 1000)
	h2 := newTestHypo(t, 0, 0, 8, 2000)
	h3 := newTestHypo(t, 0, 0, 8, 3000)
	hl2.Insert(h1)
	hl2.Insert(h2)
	hl2.Insert(h3)

	if hl2.Size() != 2 {
		t.Fatalf("Size() = %d, want 2 after eviction", hl2.Size())
	}
	if evicted == nil || evicted.ID != h1.ID {
		t.Fatalf("expected oldest hypo (h1) to be evicted, got %v", evicted)
	}
}

func TestHypoListAssociateExclusiveSingleAcceptor(t *testing.T) {
	hl, _, _, _ := newTestHypoList(10)
	h := newTestHypo(t, 35, -118, 8, 1000)
	hl.Insert(h)

	p := pickAtDistance("p1", h, 0.1, 1000) // within the 30km default distance cutoff
	cfg := cmn.GCO.Get()
	accepted := hl.Associate(p, cfg)
	if len(accepted) != 1 {
		t.Fatalf("Associate returned %d acceptors, want 1", len(accepted))
	}
	if p.CurrentHypoID() != h.ID {
		t.Fatalf("pick's hypo ref = %q, want %q (exclusive single acceptor)", p.CurrentHypoID(), h.ID)
	}
}

func TestHypoListScheduleDoesNotDuplicateWhilePending(t *testing.T) {
	hl, _, _, _ := newTestHypoList(10)
	h := newTestHypo(t, 0, 0, 8, 1000)
	hl.Insert(h) // Insert already schedules h once.

	before := len(hl.workQueue)
	hl.Schedule(h.ID) // Should be a no-op: already pending.
	if len(hl.workQueue) != before {
		t.Fatalf("queue length changed from %d to %d on duplicate schedule", before, len(hl.workQueue))
	}
}
