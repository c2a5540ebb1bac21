package glasscore

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/glass3/associator/cmn"
	"github.com/glass3/associator/traveltime"
)

// SiteFilter is Web's optional allow-list: a site must match the station
// allow-list (if non-empty) AND the network allow-list (if non-empty) AND,
// when TeleseismicOnly is set, be flagged UseForTele.
type SiteFilter struct {
	AllowedStations map[string]bool
	AllowedNetworks map[string]bool
	TeleseismicOnly bool
}

// Allows reports whether s passes this filter.
func (f *SiteFilter) Allows(s *Site) bool {
	if f == nil {
		return s.Enabled
	}
	if !s.Enabled {
		return false
	}
	if f.TeleseismicOnly && !s.UseForTele {
		return false
	}
	if len(f.AllowedStations) > 0 {
		station := strings.SplitN(s.Code, ".", 2)[0]
		if !f.AllowedStations[station] {
			return false
		}
	}
	if len(f.AllowedNetworks) > 0 {
		parts := strings.Split(s.Code, ".")
		network := ""
		if len(parts) >= 3 {
			network = parts[2]
		}
		if !f.AllowedNetworks[network] {
			return false
		}
	}
	return true
}

// Web is a grid of Nodes covering a geographic region with a common
// nucleation policy.
type Web struct {
	mu sync.RWMutex

	Name string

	NucleationStackThreshold float64
	NucleationDataThreshold  int
	StationsPerNode          int
	NodeResolutionKm         float64

	Filter *SiteFilter

	AzimuthTaper cmn.Taper
	MaxDepthKm   float64

	TTPrimary   traveltime.Table
	TTSecondary traveltime.Table // nil if none

	AllowUpdate bool

	nodes map[string]*Node
}

// NewWeb builds an empty Web with the given nucleation policy.
func NewWeb(name string, stackThresh float64, dataThresh, stationsPerNode int, resolutionKm float64, tp traveltime.Table, ts traveltime.Table) *Web {
	return &Web{
		Name:                     name,
		NucleationStackThreshold: stackThresh,
		NucleationDataThreshold:  dataThresh,
		StationsPerNode:          stationsPerNode,
		NodeResolutionKm:         resolutionKm,
		TTPrimary:                tp,
		TTSecondary:              ts,
		AllowUpdate:              true,
		MaxDepthKm:               800,
		AzimuthTaper:             cmn.NewTaper(0, 0, 270, 360),
		nodes:                    map[string]*Node{},
	}
}

// Nodes returns a snapshot of this web's node list.
func (w *Web) Nodes() []*Node {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Node, 0, len(w.nodes))
	for _, n := range w.nodes {
		out = append(out, n)
	}
	return out
}

// addNode links a freshly-built node into the web and wires its N nearest
// eligible sites.
func (w *Web) addNode(n *Node, sites []*Site) {
	w.linkNearestSites(n, sites)
	w.mu.Lock()
	w.nodes[n.ID()] = n
	w.mu.Unlock()
}

// linkNearestSites finds the StationsPerNode nearest sites passing the
// Web's filter and links them to n with computed P/S travel times.
func (w *Web) linkNearestSites(n *Node, sites []*Site) {
	type cand struct {
		site *Site
		dKm  float64
	}
	var cands []cand
	for _, s := range sites {
		if !w.Filter.Allows(s) {
			continue
		}
		cands = append(cands, cand{site: s, dKm: n.Geo.DeltaKm(s.Geo)})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dKm < cands[j].dKm })

	limit := w.StationsPerNode
	if limit <= 0 || limit > len(cands) {
		limit = len(cands)
	}
	for i := 0; i < limit; i++ {
		s := cands[i].site
		ttP, ttS := w.travelTimes(n, s)
		n.addSiteLink(s, ttP, ttS, w.StationsPerNode)
		s.AddNodeLink(n, ttP, ttS)
	}
}

func (w *Web) travelTimes(n *Node, s *Site) (ttP, ttS float64) {
	ttP = nodeToSiteTT(w.TTPrimary, n, s)
	ttS = nan()
	if w.TTSecondary != nil {
		ttS = nodeToSiteTT(w.TTSecondary, n, s)
	}
	return
}

func nodeToSiteTT(t traveltime.Table, n *Node, s *Site) float64 {
	t.SetOrigin(n.Geo.LatDeg, n.Geo.LonDeg, n.Geo.DepthK)
	secs, ok := t.T(s.Geo.LatDeg, s.Geo.LonDeg)
	if !ok {
		return nan()
	}
	return secs
}

func nan() float64 {
	var z float64
	return z / z
}

// GenerateLocal lays out a rows x cols x depths rectangular grid in a
// local-tangent frame around the anchor.
func (w *Web) GenerateLocal(anchor cmn.Geo, rows, cols int, depthsKm []float64, spacingKm float64, sites []*Site) {
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			northKm := (float64(r) - float64(rows-1)/2) * spacingKm
			eastKm := (float64(c) - float64(cols-1)/2) * spacingKm
			for _, depth := range depthsKm {
				geo := anchor.OffsetKm(eastKm, northKm, depth-anchor.DepthK)
				n := NewNode(w.Name, geo, w.NodeResolutionKm, w.NucleationStackThreshold, w.NucleationDataThreshold)
				w.addNode(n, sites)
			}
		}
	}
}

// GenerateShell lays out an approximately-uniform single-depth global
// shell of nodes spaced spacingKm apart, using a Fibonacci (golden
// spiral) point distribution as the equal-area approximation.
func (w *Web) GenerateShell(depthKm, spacingKm float64, sites []*Site) {
	n := estimateShellPointCount(spacingKm)
	golden := 3.883222077 // pi * (sqrt(5) - 1), 2*pi minus the golden angle, in radians
	for i := 0; i < n; i++ {
		lat := math.Asin(1-2*(float64(i)+0.5)/float64(n)) * 180 / math.Pi
		lon := normalizeLon(float64(i) * golden * 180 / 3.14159265358979)
		geo := cmn.NewGeo(lat, lon, depthKm)
		node := NewNode(w.Name, geo, w.NodeResolutionKm, w.NucleationStackThreshold, w.NucleationDataThreshold)
		w.addNode(node, sites)
	}
}

func estimateShellPointCount(spacingKm float64) int {
	if spacingKm <= 0 {
		spacingKm = 100
	}
	surfaceKm2 := 4 * 3.14159265358979 * cmn.EarthRadiusKm * cmn.EarthRadiusKm
	cellKm2 := spacingKm * spacingKm
	n := int(surfaceKm2 / cellKm2)
	if n < 1 {
		n = 1
	}
	if n > 200000 {
		n = 200000
	}
	return n
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

// GenerateExplicit adopts a caller-supplied list of (lat,lon,depth) node
// locations verbatim.
func (w *Web) GenerateExplicit(points []cmn.Geo, sites []*Site) {
	for _, geo := range points {
		n := NewNode(w.Name, geo, w.NodeResolutionKm, w.NucleationStackThreshold, w.NucleationDataThreshold)
		w.addNode(n, sites)
	}
}

// OnSiteAdded re-evaluates every node whose Nth-nearest-site distance is
// now beaten by the newly enabled/added site.
func (w *Web) OnSiteAdded(s *Site, allSites []*Site) {
	if !w.AllowUpdate || !w.Filter.Allows(s) {
		return
	}
	for _, n := range w.Nodes() {
		if w.nodeWantsSite(n, s) {
			ttP, ttS := w.travelTimes(n, s)
			n.addSiteLink(s, ttP, ttS, w.StationsPerNode)
			s.AddNodeLink(n, ttP, ttS)
		}
	}
}

func (w *Web) nodeWantsSite(n *Node, s *Site) bool {
	links := n.SiteLinks()
	if w.StationsPerNode <= 0 || len(links) < w.StationsPerNode {
		return true
	}
	dNew := n.Geo.DeltaKm(s.Geo)
	worst := 0.0
	for _, existing := range links {
		d := n.Geo.DeltaKm(existing.Geo)
		if d > worst {
			worst = d
		}
	}
	return dNew < worst
}

// OnSiteRemoved drops s from every node and refills the freed slot from
// the next-nearest eligible site.
func (w *Web) OnSiteRemoved(s *Site, allSites []*Site) {
	if !w.AllowUpdate {
		return
	}
	for _, n := range w.Nodes() {
		n.removeSiteLink(s.Code)
		s.RemoveNodeLink(n.ID())
		if len(n.SiteLinks()) < w.StationsPerNode {
			w.linkNearestSites(n, allSites)
		}
	}
}
