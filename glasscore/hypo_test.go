package glasscore

import (
	"testing"

	"github.com/glass3/associator/cmn"
	"github.com/glass3/associator/traveltime"
)

func newTestHypo(t *testing.T, lat, lon, depth, ot float64) *Hypo {
	t.Helper()
	h := NewHypoFromTrigger(&Trigger{WebName: "test", Lat: lat, Lon: lon, Depth: depth, OriginTime: ot})
	h.WireTravelTimes(traveltime.NewSphericalTable("P", 6.5), traveltime.NewSphericalTable("S", 3.8), []traveltime.Table{
		traveltime.NewSphericalTable("P", 6.5),
		traveltime.NewSphericalTable("S", 3.8),
	})
	return h
}

func pickAtDistance(id string, h *Hypo, distanceDeg, originTime float64) *Pick {
	geo := h.Location()
	siteGeo := geo.OffsetKm(distanceDeg*cmn.DegToKm, 0, 0)
	site := NewSite(id+"-site", siteGeo, 1.0, 10)
	tt := traveltime.NewSphericalTable("P", 6.5)
	tt.SetOrigin(geo.LatDeg, geo.LonDeg, geo.DepthK)
	secs, _ := tt.T(siteGeo.LatDeg, siteGeo.LonDeg)
	p := NewPick(id, site, originTime+secs, nanFloat(), nanFloat())
	p.SetPhase("P")
	return p
}

func nanFloat() float64 {
	var z float64
	return z / z
}

func TestCalculateGapFewerThanTwoPicks(t *testing.T) {
	h := newTestHypo(t, 35, -118, 8, 1000)
	if gap := h.CalculateGap(); gap != 360 {
		t.Fatalf("CalculateGap with 0 picks = %v, want 360", gap)
	}
	h.AddPick(pickAtDistance("p1", h, 1.0, 1000))
	if gap := h.CalculateGap(); gap != 360 {
		t.Fatalf("CalculateGap with 1 pick = %v, want 360", gap)
	}
}

func TestCanAssociateAcceptsMatchingPick(t *testing.T) {
	h := newTestHypo(t, 35, -118, 8, 1000)
	p := pickAtDistance("p1", h, 0.1, 1000) // within the 30km default distance cutoff
	if !h.CanAssociate(p, 1.0, 3.0) {
		t.Fatal("expected an exactly-predicted-time pick to associate")
	}
}

func TestCanAssociateRejectsFarResidual(t *testing.T) {
	h := newTestHypo(t, 35, -118, 8, 1000)
	p := pickAtDistance("p1", h, 0.1, 1000) // inside the distance cutoff, so only the residual rejects it
	p.Time += 500                           // far outside any reasonable residual
	if h.CanAssociate(p, 1.0, 3.0) {
		t.Fatal("expected a wildly mistimed pick to be rejected")
	}
}

func TestAffinityZeroWhenCannotAssociate(t *testing.T) {
	h := newTestHypo(t, 35, -118, 8, 1000)
	p := pickAtDistance("p1", h, 0.5, 1000)
	p.Time += 500
	if aff := h.Affinity(p, 3.0, 1.0); aff != 0 {
		t.Fatalf("Affinity for non-associating pick = %v, want 0", aff)
	}
}

func TestPruneDataDropsUnassociatedPick(t *testing.T) {
	h := newTestHypo(t, 35, -118, 8, 1000)
	bad := pickAtDistance("bad", h, 0.5, 1000)
	bad.Time += 500
	bad.SetCurrentHypoID(h.ID)
	h.AddPick(bad)

	cfg := cmn.GCO.Get()
	n := h.PruneData(cfg)
	if n == 0 {
		t.Fatal("expected PruneData to drop the mistimed pick")
	}
	if bad.CurrentHypoID() != "" {
		t.Fatal("expected pruned pick's hypo reference to be cleared")
	}
}

func TestCancelCheckKillsLowBayesFewPicks(t *testing.T) {
	h := newTestHypo(t, 35, -118, 8, 1000)
	cfg := cmn.GCO.Get()
	if !h.CancelCheck(cfg) {
		t.Fatal("expected a freshly nucleated hypo with no supporting data to fail CancelCheck")
	}
}
