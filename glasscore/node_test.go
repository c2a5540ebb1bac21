package glasscore

import (
	"testing"

	"github.com/glass3/associator/cmn"
)

func TestNodeEvaluateStackBelowThreshold(t *testing.T) {
	n := NewNode("web", cmn.NewGeo(0, 0, 10), 50, 3, 3)
	s1 := NewSite("S1", cmn.NewGeo(0.1, 0, 0), 1, 10)
	n.addSiteLink(s1, 5.0, nanFloat(), 24)
	s1.AddPick(NewPick("pk1", s1, 1005.0, nanFloat(), nanFloat()))

	if trig := n.EvaluateStack(1000.0); trig != nil {
		t.Fatalf("expected no trigger below stack threshold, got %+v", trig)
	}
}

func TestNodeEvaluateStackFires(t *testing.T) {
	n := NewNode("web", cmn.NewGeo(0, 0, 10), 50, 2, 2)
	sites := []*Site{
		NewSite("S1", cmn.NewGeo(0.1, 0, 0), 1, 10),
		NewSite("S2", cmn.NewGeo(-0.1, 0.1, 0), 1, 10),
	}
	for i, s := range sites {
		n.addSiteLink(s, 5.0+float64(i), nanFloat(), 24)
		s.AddPick(NewPick("pk", s, 1000.0+5.0+float64(i), nanFloat(), nanFloat()))
	}

	trig := n.EvaluateStack(1000.0)
	if trig == nil {
		t.Fatal("expected a trigger once both sites contribute")
	}
	if len(trig.ContributingPicks) != 2 {
		t.Fatalf("ContributingPicks = %d, want 2", len(trig.ContributingPicks))
	}
}

func TestNodeAddSiteLinkDeduplicates(t *testing.T) {
	n := NewNode("web", cmn.NewGeo(0, 0, 10), 50, 1, 1)
	s := NewSite("S1", cmn.NewGeo(0.1, 0, 0), 1, 10)
	n.addSiteLink(s, 5.0, nanFloat(), 24)
	n.addSiteLink(s, 5.0, nanFloat(), 24)
	if len(n.SiteLinks()) != 1 {
		t.Fatalf("SiteLinks() len = %d, want 1 after duplicate add", len(n.SiteLinks()))
	}
}
