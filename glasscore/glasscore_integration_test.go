package glasscore

import (
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/glass3/associator/cmn"
	"github.com/glass3/associator/traveltime"
)

var _ = Describe("Glass construction", func() {
	It("builds an empty instance from defaults", func() {
		g := NewGlass(nil)
		Expect(g.Sites.All()).To(BeEmpty())
		Expect(g.Picks.Size()).To(Equal(0))
		Expect(g.Hypos.Size()).To(Equal(0))
	})
})

var _ = Describe("Pick ingestion", func() {
	var g *Glass

	BeforeEach(func() {
		g = NewGlass(nil)
		g.HandleStationInfo("ANMO", "BHZ", "IU", "00", 34.9, -106.4, 1740, 1.0, true, false)
	})

	It("rejects a duplicate pick at the same site and time", func() {
		Expect(g.HandlePick("p1", "ANMO", "BHZ", "IU", "00", 1000, "P", nanFloat(), nanFloat())).To(Succeed())
		Expect(g.Picks.Size()).To(Equal(1))

		// A second pick id for the same site/time is a duplicate by
		// window-based de-duplication, not by ID.
		err := g.HandlePick("p2", "ANMO", "BHZ", "IU", "00", 1000, "P", nanFloat(), nanFloat())
		Expect(err).To(HaveOccurred())
		Expect(g.Picks.Size()).To(Equal(1))
	})
})

var _ = Describe("Site list", func() {
	It("creates sites with a bounded per-site recent-pick buffer", func() {
		sl := NewSiteList(2, NewWebList(1))
		s := sl.Upsert("A", cmn.NewGeo(0, 0, 0), 1.0, true, false)

		s.AddPick(NewPick("p1", s, 1000, nanFloat(), nanFloat()))
		s.AddPick(NewPick("p2", s, 1001, nanFloat(), nanFloat()))
		s.AddPick(NewPick("p3", s, 1002, nanFloat(), nanFloat()))

		Expect(s.Picks()).To(HaveLen(2))
		Expect(sl.Get("A")).To(Equal(s))
		Expect(sl.All()).To(HaveLen(1))
	})
})

var _ = Describe("Nucleation", func() {
	It("births a Hypo once enough corroborating picks land near a node", func() {
		tableP := traveltime.NewSphericalTable("P", 6.5)
		w := NewWeb("quake", 3, 3, 4, 25, tableP, nil)

		sites := []*Site{
			NewSite("N.BHZ.IU.00", cmn.NewGeo(0.15, 0, 0), 1.0, 50),
			NewSite("E.BHZ.IU.00", cmn.NewGeo(0, 0.15, 0), 1.0, 50),
			NewSite("S.BHZ.IU.00", cmn.NewGeo(-0.15, 0, 0), 1.0, 50),
			NewSite("W.BHZ.IU.00", cmn.NewGeo(0, -0.15, 0), 1.0, 50),
		}
		for _, s := range sites {
			s.Enabled = true
		}
		w.GenerateLocal(cmn.NewGeo(0, 0, 8), 1, 1, []float64{8}, 25, sites)
		Expect(w.Nodes()).To(HaveLen(1))
		node := w.Nodes()[0]
		Expect(node.SiteLinks()).To(HaveLen(4))

		webs := NewWebList(1)
		webs.Add(w)
		hl := NewHypoList(10, 2, 10, webs, NewPickList(100, 2, 10), NewCorrelationList(100), HypoCallbacks{})

		const originTime = 1000.0
		originGeo := cmn.NewGeo(0, 0, 8)
		timing := traveltime.NewSphericalTable("P", 6.5)
		timing.SetOrigin(originGeo.LatDeg, originGeo.LonDeg, originGeo.DepthK)

		var last *Pick
		for i, s := range sites {
			secs, ok := timing.T(s.Geo.LatDeg, s.Geo.LonDeg)
			Expect(ok).To(BeTrue())
			p := NewPick(s.Code+"-pick", s, originTime+secs, nanFloat(), nanFloat())
			p.SetPhase("P")
			s.AddPick(p)
			if i == len(sites)-1 {
				last = p
			}
		}

		born := last.Nucleate(hl)
		Expect(born).NotTo(BeEmpty())

		h := born[0]
		hl.Insert(h)
		Expect(hl.Size()).To(Equal(1))
		Expect(h.DataCount()).To(BeNumerically(">=", 3))
	})
})

var _ = Describe("Hypo merging", func() {
	It("accepts a trial merge of two close, compatible hypos", func() {
		webs := NewWebList(1)
		webs.Add(NewWeb("test", 3, 3, 4, 25, traveltime.NewSphericalTable("P", 6.5), traveltime.NewSphericalTable("S", 3.8)))
		hl := NewHypoList(10, 2, 10, webs, NewPickList(100, 2, 10), NewCorrelationList(100), HypoCallbacks{})

		a := newGinkgoTestHypo(0, 0, 8, 1000)
		b := newGinkgoTestHypo(0.01, 0.01, 8, 1000.2)
		hl.Insert(a)
		hl.Insert(b)

		cfg := cmn.GCO.Get()
		merged := hl.tryMerge(a, b, cfg)
		Expect(merged).To(BeTrue())
		Expect(hl.Find(a.ID)).To(BeNil())
		Expect(hl.Find(b.ID)).To(BeNil())
	})
})

var _ = Describe("Pick association", func() {
	It("associates a single matching pick to exactly one hypo", func() {
		webs := NewWebList(1)
		hl := NewHypoList(10, 2, 10, webs, NewPickList(100, 2, 10), NewCorrelationList(100), HypoCallbacks{})
		h := newGinkgoTestHypo(35, -118, 8, 1000)
		hl.Insert(h)

		p := pickAtDistance("assoc-1", h, 0.1, 1000)
		cfg := cmn.GCO.Get()
		accepted := hl.Associate(p, cfg)

		Expect(accepted).To(HaveLen(1))
		Expect(p.CurrentHypoID()).To(Equal(h.ID))
	})
})

func newGinkgoTestHypo(lat, lon, depth, ot float64) *Hypo {
	h := NewHypoFromTrigger(&Trigger{WebName: "test", Lat: lat, Lon: lon, Depth: depth, OriginTime: ot})
	h.WireTravelTimes(traveltime.NewSphericalTable("P", 6.5), traveltime.NewSphericalTable("S", 3.8), []traveltime.Table{
		traveltime.NewSphericalTable("P", 6.5),
		traveltime.NewSphericalTable("S", 3.8),
	})
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("%s-support-%d", h.ID, i)
		h.AddPick(pickAtDistance(id, h, 0.1+0.02*float64(i), ot))
	}
	return h
}
