package glasscore

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/glass3/associator/cmn"
)

// nodeLink is one (Node, travel-time) edge hanging off a Site.
type nodeLink struct {
	node *Node
	ttP  float64
	ttS  float64 // NaN if this node has no secondary phase
}

// Site is one station. It owns a bounded, insertion-ordered list of its
// most recent Picks — eviction from this list evicts the Pick from the
// graph regardless of any outstanding Hypo reference — and the
// reciprocal half of every Site<->Node link touching it.
type Site struct {
	mu sync.RWMutex

	Code    string // dotted station.channel.network.location code
	Geo     cmn.Geo
	Quality float64

	Enabled         bool
	UseForTele      bool
	lastPickAdded   time.Time
	pickCountSince  int

	picks []*Pick
	nodes []nodeLink

	maxPicks int
}

// SiteKey formats the dotted (station, channel, network, location) code
// used as a Site's lookup key.
func SiteKey(station, channel, network, location string) string {
	return fmt.Sprintf("%s.%s.%s.%s", station, channel, network, location)
}

// NewSite builds a Site with the given bounded recent-pick capacity.
func NewSite(code string, geo cmn.Geo, quality float64, maxPicks int) *Site {
	if maxPicks <= 0 {
		maxPicks = 1
	}
	return &Site{
		Code:     code,
		Geo:      geo,
		Quality:  quality,
		Enabled:  true,
		maxPicks: maxPicks,
	}
}

// AddPick appends pick to the recent-pick list, evicting the oldest if the
// list is now over capacity.
func (s *Site) AddPick(p *Pick) (evicted *Pick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.picks = append(s.picks, p)
	s.lastPickAdded = time.Now()
	s.pickCountSince++
	if len(s.picks) > s.maxPicks {
		evicted = s.picks[0]
		s.picks = s.picks[1:]
	}
	return evicted
}

// RemovePick drops the pick with the given ID from the recent-pick list.
func (s *Site) RemovePick(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.picks {
		if p.ID == id {
			s.picks = append(s.picks[:i], s.picks[i+1:]...)
			return
		}
	}
}

// Picks returns a snapshot of the recent-pick list.
func (s *Site) Picks() []*Pick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Pick, len(s.picks))
	copy(out, s.picks)
	return out
}

// AddNodeLink establishes a reciprocal Site<->Node edge (invariant 4); the
// caller is responsible for also calling Node.addSiteLink.
func (s *Site) AddNodeLink(n *Node, ttP, ttS float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, nodeLink{node: n, ttP: ttP, ttS: ttS})
}

// RemoveNodeLink drops the link to the named node, if present.
func (s *Site) RemoveNodeLink(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.nodes {
		if l.node.ID() == nodeID {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			return
		}
	}
}

// ComputeDelta returns the great-circle angular distance, in degrees, to
// another site, using the cached unit vectors.
func (s *Site) ComputeDelta(other *Site) float64 {
	return s.Geo.Delta(other.Geo)
}

// Azimuth returns the initial bearing, in degrees, to another site.
func (s *Site) Azimuth(other *Site) float64 {
	return s.Geo.Azimuth(other.Geo)
}

// Nucleate asks every linked node to evaluate its stack at the origin
// times implied by pickTime minus each phase's travel time, keeping at
// most one (highest-stack) Trigger per Web.
func (s *Site) Nucleate(pickTime float64) []*Trigger {
	s.mu.RLock()
	links := make([]nodeLink, len(s.nodes))
	copy(links, s.nodes)
	s.mu.RUnlock()

	best := map[string]*Trigger{} // web name -> best trigger
	for _, l := range links {
		originP := pickTime - l.ttP
		if t := l.node.EvaluateStack(originP); t != nil {
			keepBest(best, t)
		}
		if !math.IsNaN(l.ttS) {
			originS := pickTime - l.ttS
			if t := l.node.EvaluateStack(originS); t != nil {
				keepBest(best, t)
			}
		}
	}

	out := make([]*Trigger, 0, len(best))
	for _, t := range best {
		out = append(out, t)
	}
	return out
}

func keepBest(best map[string]*Trigger, t *Trigger) {
	cur, ok := best[t.WebName]
	if !ok || t.Stack > cur.Stack {
		best[t.WebName] = t
	}
}
