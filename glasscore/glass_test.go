package glasscore

import (
	"testing"

	"github.com/glass3/associator/traveltime"
)

type recordingSink struct {
	published []string
}

func (r *recordingSink) Publish(kind string, v interface{}) { r.published = append(r.published, kind) }

func TestGlassHandlePickRejectsUnresolvedSite(t *testing.T) {
	g := NewGlass(nil)
	err := g.HandlePick("p1", "ANMO", "BHZ", "IU", "00", 1000, "", nanFloat(), nanFloat())
	if err == nil {
		t.Fatal("expected HandlePick to reject a pick from an unknown site")
	}
	if len(g.DrainSiteLookups()) != 1 {
		t.Fatal("expected an unresolved-site pick to queue a SiteLookup request")
	}
}

func TestGlassHandlePickAfterStationInfo(t *testing.T) {
	g := NewGlass(nil)
	g.HandleStationInfo("ANMO", "BHZ", "IU", "00", 34.9, -106.4, 1740, 1.0, true, false)

	if err := g.HandlePick("p1", "ANMO", "BHZ", "IU", "00", 1000, "", nanFloat(), nanFloat()); err != nil {
		t.Fatalf("HandlePick after StationInfo: %v", err)
	}
	if g.Picks.Size() != 1 {
		t.Fatalf("Picks.Size() = %d, want 1", g.Picks.Size())
	}
}

func TestGlassClearGlassResetsLists(t *testing.T) {
	g := NewGlass(nil)
	g.HandleStationInfo("ANMO", "BHZ", "IU", "00", 34.9, -106.4, 1740, 1.0, true, false)
	g.ClearGlass()

	if len(g.Sites.All()) != 0 {
		t.Fatalf("Sites after ClearGlass = %d, want 0", len(g.Sites.All()))
	}
}

func TestGlassHandleDetectionSeedsFixedHypo(t *testing.T) {
	sink := &recordingSink{}
	g := NewGlass(sink)
	g.Webs.Add(NewWeb("default", 2.5, 7, 24, 50, traveltime.NewSphericalTable("P", 6.5), traveltime.NewSphericalTable("S", 3.8)))

	g.HandleDetection("det-1", 35, -118, 8, 1000)
	h, err := g.ReqHypo("det-1")
	if err != nil {
		t.Fatalf("ReqHypo: %v", err)
	}
	if !h.Fixed {
		t.Fatal("expected a Detection-seeded hypo to be Fixed")
	}
}

func TestGlassEmitEventPublishesThroughSink(t *testing.T) {
	sink := &recordingSink{}
	g := NewGlass(sink)
	h := newTestHypo(t, 35, -118, 8, 1000)
	g.emitEvent(h)
	if len(sink.published) != 1 || sink.published[0] != "Event" {
		t.Fatalf("published = %v, want [Event]", sink.published)
	}
}
