package glasscore

import (
	"testing"

	"github.com/glass3/associator/cmn"
)

func TestSiteKeyFormat(t *testing.T) {
	if got := SiteKey("ANMO", "BHZ", "IU", "00"); got != "ANMO.BHZ.IU.00" {
		t.Fatalf("SiteKey = %q", got)
	}
}

func TestSiteAddPickEvictsOldest(t *testing.T) {
	s := NewSite("A.B.C.D", cmn.NewGeo(0, 0, 0), 1.0, 2)
	p1 := NewPick("p1", s, 1, nanFloat(), nanFloat())
	p2 := NewPick("p2", s, 2, nanFloat(), nanFloat())
	p3 := NewPick("p3", s, 3, nanFloat(), nanFloat())

	if evicted := s.AddPick(p1); evicted != nil {
		t.Fatal("unexpected eviction on first add")
	}
	if evicted := s.AddPick(p2); evicted != nil {
		t.Fatal("unexpected eviction on second add")
	}
	evicted := s.AddPick(p3)
	if evicted == nil || evicted.ID != "p1" {
		t.Fatalf("expected p1 to be evicted, got %v", evicted)
	}
	if len(s.Picks()) != 2 {
		t.Fatalf("Picks() len = %d, want 2", len(s.Picks()))
	}
}

func TestSiteRemovePick(t *testing.T) {
	s := NewSite("A.B.C.D", cmn.NewGeo(0, 0, 0), 1.0, 10)
	p := NewPick("p1", s, 1, nanFloat(), nanFloat())
	s.AddPick(p)
	s.RemovePick("p1")
	if len(s.Picks()) != 0 {
		t.Fatalf("expected pick removed, got %d remaining", len(s.Picks()))
	}
}
