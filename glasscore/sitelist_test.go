package glasscore

import (
	"testing"

	"github.com/glass3/associator/cmn"
	"github.com/glass3/associator/traveltime"
)

func TestSiteListUpsertCreatesAndFansOutToWebs(t *testing.T) {
	webs := NewWebList(1)
	w := NewWeb("test", 3, 3, 2, 25, traveltime.NewSphericalTable("P", 6.5), nil)
	w.GenerateLocal(cmn.NewGeo(10, 20, 10), 1, 1, []float64{10}, 25, nil)
	webs.Add(w)
	sl := NewSiteList(50, webs)

	s := sl.Upsert("A.B.C.D", cmn.NewGeo(10, 20, 0), 1.0, true, false)
	if s == nil {
		t.Fatal("expected Upsert to return the created site")
	}
	if sl.Get("A.B.C.D") != s {
		t.Fatal("expected Get to return the same site instance")
	}
	links := w.Nodes()[0].SiteLinks()
	if len(links) != 1 || links[0] != s {
		t.Fatalf("expected the web's node to link the new site, got %d links", len(links))
	}
}

func TestSiteListUpsertUpdatesExisting(t *testing.T) {
	webs := NewWebList(1)
	sl := NewSiteList(50, webs)
	sl.Upsert("A.B.C.D", cmn.NewGeo(10, 20, 0), 1.0, true, false)
	updated := sl.Upsert("A.B.C.D", cmn.NewGeo(11, 21, 0), 2.0, true, false)

	if updated.Quality != 2.0 {
		t.Fatalf("Quality after update = %v, want 2.0", updated.Quality)
	}
	if len(sl.All()) != 1 {
		t.Fatalf("All() len = %d, want 1 (update, not duplicate)", len(sl.All()))
	}
}

func TestSiteListRequestAndDrainLookups(t *testing.T) {
	sl := NewSiteList(50, NewWebList(1))
	sl.RequestLookup(SiteLookupRequest{Station: "X", Channel: "Y", Network: "Z", Location: "00"})
	pending := sl.DrainLookups()
	if len(pending) != 1 {
		t.Fatalf("DrainLookups len = %d, want 1", len(pending))
	}
	if len(sl.DrainLookups()) != 0 {
		t.Fatal("expected DrainLookups to clear the queue")
	}
}
