package glasscore

import (
	"testing"

	"github.com/glass3/associator/cmn"
)

func TestPickHasBeam(t *testing.T) {
	s := NewSite("A.B.C.D", cmn.NewGeo(0, 0, 0), 1, 10)
	withBeam := NewPick("p1", s, 1, 45.0, 0.1)
	withoutBeam := NewPick("p2", s, 1, nanFloat(), nanFloat())

	if !withBeam.HasBeam() {
		t.Fatal("expected pick with back-azimuth to report HasBeam")
	}
	if withoutBeam.HasBeam() {
		t.Fatal("expected pick without back-azimuth to report no beam")
	}
}

func TestPickSetCurrentHypoIDTracksFirstAssoc(t *testing.T) {
	s := NewSite("A.B.C.D", cmn.NewGeo(0, 0, 0), 1, 10)
	p := NewPick("p1", s, 1, nanFloat(), nanFloat())
	if p.CurrentHypoID() != "" {
		t.Fatal("expected a fresh pick to be unassociated")
	}
	p.SetCurrentHypoID("hypo-1")
	if p.CurrentHypoID() != "hypo-1" {
		t.Fatalf("CurrentHypoID = %q, want hypo-1", p.CurrentHypoID())
	}
	if p.FirstAssocAt.IsZero() {
		t.Fatal("expected FirstAssocAt to be set on first association")
	}
}

func TestPickNucleateNoTriggersWhenUnlinked(t *testing.T) {
	s := NewSite("A.B.C.D", cmn.NewGeo(0, 0, 0), 1, 10)
	p := NewPick("p1", s, 1000, nanFloat(), nanFloat())
	s.AddPick(p)

	hl := NewHypoList(100, 2, 10, NewWebList(1), NewPickList(100, 2, 10), NewCorrelationList(100), HypoCallbacks{})
	if born := p.Nucleate(hl); born != nil {
		t.Fatalf("expected no hypos born from an unlinked site, got %d", len(born))
	}
}
