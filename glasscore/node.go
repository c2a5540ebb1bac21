package glasscore

import (
	"fmt"
	"math"
	"sync"

	"github.com/glass3/associator/cmn"
)

// approxLocalVelocityKmS is the fixed approximate local velocity used to
// turn a node's spatial resolution into a time window for pick matching.
const approxLocalVelocityKmS = 8.0

// siteLink is one (Site, travel-time) edge hanging off a Node.
type siteLink struct {
	site *Site
	ttP  float64
	ttS  float64
}

// Node is a point on a detection grid: a hypothetical source location with
// its expected travel times to the N nearest sites, used to stack pick
// contributions and test for a nucleation trigger.
type Node struct {
	mu sync.RWMutex

	WebName      string
	Geo          cmn.Geo
	ResolutionKm float64

	ExpectedStations int
	StackThreshold   float64
	DataThreshold    int

	sites []siteLink
}

// NewNode builds a Node at geo with the nucleation policy (stack/data
// thresholds) copied from its owning Web.
func NewNode(webName string, geo cmn.Geo, resolutionKm float64, stackThresh float64, dataThresh int) *Node {
	return &Node{
		WebName:        webName,
		Geo:            geo,
		ResolutionKm:   resolutionKm,
		StackThreshold: stackThresh,
		DataThreshold:  dataThresh,
	}
}

// ID returns the composite key (web-name, lat, lon, depth, resolution-km).
func (n *Node) ID() string {
	return fmt.Sprintf("%s:%.4f:%.4f:%.2f:%.2f", n.WebName, n.Geo.LatDeg, n.Geo.LonDeg, n.Geo.DepthK, n.ResolutionKm)
}

// addSiteLink adds the reciprocal half of a Site<->Node edge, bounded to
// Web's stations-per-node by dropping the farthest linked site.
func (n *Node) addSiteLink(s *Site, ttP, ttS float64, maxLinks int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, l := range n.sites {
		if l.site.Code == s.Code {
			return
		}
	}
	n.sites = append(n.sites, siteLink{site: s, ttP: ttP, ttS: ttS})
	if maxLinks > 0 && len(n.sites) > maxLinks {
		far := 0
		for i, l := range n.sites {
			if n.Geo.DeltaKm(l.site.Geo) > n.Geo.DeltaKm(n.sites[far].site.Geo) {
				far = i
			}
		}
		n.sites = append(n.sites[:far], n.sites[far+1:]...)
	}
}

func (n *Node) removeSiteLink(siteCode string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, l := range n.sites {
		if l.site.Code == siteCode {
			n.sites = append(n.sites[:i], n.sites[i+1:]...)
			return
		}
	}
}

// SiteLinks returns a snapshot of this node's site links.
func (n *Node) SiteLinks() []*Site {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Site, len(n.sites))
	for i, l := range n.sites {
		out[i] = l.site
	}
	return out
}

// EvaluateStack evaluates the stack for a candidate origin time: search
// every linked site's recent picks for one arriving within the resolution
// window of the predicted time, summing one contribution per matching
// site (ties broken by closest arrival). Returns a Trigger if both the
// stack and data thresholds are met.
func (n *Node) EvaluateStack(originTime float64) *Trigger {
	n.mu.RLock()
	links := make([]siteLink, len(n.sites))
	copy(links, n.sites)
	n.mu.RUnlock()

	halfWindow := (n.ResolutionKm / approxLocalVelocityKmS) / 2.0

	var contributing []*Pick
	for _, l := range links {
		predictedP := originTime + l.ttP
		best := n.closestPick(l.site, predictedP, halfWindow)
		if best == nil && !math.IsNaN(l.ttS) {
			predictedS := originTime + l.ttS
			best = n.closestPick(l.site, predictedS, halfWindow)
		}
		if best != nil {
			contributing = append(contributing, best)
		}
	}

	stack := float64(len(contributing))
	if stack < n.StackThreshold || len(contributing) < n.DataThreshold {
		return nil
	}

	return &Trigger{
		WebName:           n.WebName,
		Lat:               n.Geo.LatDeg,
		Lon:               n.Geo.LonDeg,
		Depth:             n.Geo.DepthK,
		OriginTime:        originTime,
		Stack:             stack,
		ContributingPicks: contributing,
		ResolutionKm:      n.ResolutionKm,
	}
}

func (n *Node) closestPick(s *Site, predicted, halfWindow float64) *Pick {
	var best *Pick
	var bestDT float64
	for _, p := range s.Picks() {
		dt := math.Abs(p.Time - predicted)
		if dt <= halfWindow && (best == nil || dt < bestDT) {
			best, bestDT = p, dt
		}
	}
	return best
}
