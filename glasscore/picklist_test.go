package glasscore

import (
	"testing"

	"github.com/glass3/associator/cmn"
)

func TestPickListRejectsDuplicateWithinWindow(t *testing.T) {
	pl := NewPickList(100, 2, 10)
	cfg := cmn.GCO.Get().Clone()
	cfg.PickDuplicateTimeWindow = 2.0

	s := NewSite("A.B.C.D", cmn.NewGeo(0, 0, 0), 1, 10)
	p1 := NewPick("p1", s, 1000.0, nanFloat(), nanFloat())
	p2 := NewPick("p2", s, 1000.5, nanFloat(), nanFloat())

	if err := pl.AddPick(p1, cfg); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := pl.AddPick(p2, cfg); err == nil {
		t.Fatal("expected second near-duplicate pick to be rejected")
	}
	if pl.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", pl.Size())
	}
}

func TestPickListRangeQuery(t *testing.T) {
	pl := NewPickList(100, 2, 10)
	cfg := cmn.GCO.Get()
	s := NewSite("A.B.C.D", cmn.NewGeo(0, 0, 0), 1, 100)
	for i := 0; i < 5; i++ {
		p := NewPick(string(rune('a'+i)), s, float64(1000+i*100), nanFloat(), nanFloat())
		if err := pl.AddPick(p, cfg); err != nil {
			t.Fatalf("AddPick %d: %v", i, err)
		}
	}
	got := pl.Range(1050, 1250)
	if len(got) != 2 {
		t.Fatalf("Range returned %d picks, want 2", len(got))
	}
}

func TestPickListEvictsOverCapacity(t *testing.T) {
	pl := NewPickList(2, 2, 10)
	cfg := cmn.GCO.Get()
	s := NewSite("A.B.C.D", cmn.NewGeo(0, 0, 0), 1, 100)
	for i := 0; i < 3; i++ {
		p := NewPick(string(rune('a'+i)), s, float64(1000+i*100), nanFloat(), nanFloat())
		_ = pl.AddPick(p, cfg)
	}
	if pl.Size() != 2 {
		t.Fatalf("Size() = %d, want 2 after capacity eviction", pl.Size())
	}
}
