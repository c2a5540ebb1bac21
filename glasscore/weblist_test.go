package glasscore

import (
	"testing"

	"github.com/glass3/associator/cmn"
	"github.com/glass3/associator/traveltime"
)

func newTestWeb(name string) *Web {
	return NewWeb(name, 3, 3, 2, 25, traveltime.NewSphericalTable("P", 6.5), traveltime.NewSphericalTable("S", 3.8))
}

func TestWebListAddGetRemove(t *testing.T) {
	wl := NewWebList(2)
	w := newTestWeb("test")
	wl.Add(w)

	if wl.Get("test") != w {
		t.Fatal("expected Get to return the added web")
	}
	if len(wl.All()) != 1 {
		t.Fatalf("All() len = %d, want 1", len(wl.All()))
	}
	if !wl.Remove("test") {
		t.Fatal("expected Remove to report success for an existing web")
	}
	if wl.Get("test") != nil {
		t.Fatal("expected Get to return nil after Remove")
	}
	if wl.Remove("test") {
		t.Fatal("expected a second Remove to report failure")
	}
}

func TestWebListOnSiteAddedFansOutToEveryWeb(t *testing.T) {
	wl := NewWebList(2)
	wA := newTestWeb("a")
	wB := newTestWeb("b")
	sites := testSites(3)
	wA.GenerateLocal(cmn.NewGeo(0, 0, 10), 1, 1, []float64{10}, 25, sites)
	wB.GenerateLocal(cmn.NewGeo(0, 0, 10), 1, 1, []float64{10}, 25, sites)
	wl.Add(wA)
	wl.Add(wB)

	newSite := NewSite("new-site", cmn.NewGeo(0.01, 0, 0), 1.0, 10)
	newSite.Enabled = true
	wl.OnSiteAdded(newSite, append(sites, newSite))

	for _, w := range wl.All() {
		if len(w.Nodes()) == 0 {
			t.Fatalf("web %q lost its nodes during fan-out", w.Name)
		}
		linked := false
		for _, s := range w.Nodes()[0].SiteLinks() {
			if s == newSite {
				linked = true
			}
		}
		if !linked {
			t.Fatalf("web %q did not link the new site", w.Name)
		}
	}
}
