package glasscore

import (
	"math"
	"sync"
	"time"

	"github.com/glass3/associator/cmn"
)

// Classifier carries optional per-pick classifier outputs, each paired
// with a probability.
type Classifier struct {
	Phase    string
	Prob     float64
	Distance float64
	DistProb float64
	Azimuth  float64
	AziProb  float64
	Depth    float64
	DeepProb float64
	Mag      float64
	MagProb  float64
}

// Pick is a single phase arrival at one station. A Pick is owned strongly
// by exactly one Site (via its recent-picks list) and referenced weakly —
// by ID — by at most one Hypo at a time. Go has no portable weak pointer,
// so the back-reference is CurrentHypoID, resolved through HypoList's ID
// map rather than a live pointer.
type Pick struct {
	mu sync.RWMutex

	ID   string
	Site *Site

	Time float64 // epoch seconds

	BackAzimuth float64 // NaN when absent
	Slowness    float64 // NaN when absent

	Classifiers []Classifier

	Phase string // set by association, empty at birth

	CreatedAt      time.Time
	FirstAssocAt   time.Time
	NucleatedAt    time.Time
	currentHypoID  string
}

// NewPick builds a Pick with no phase and no hypo association yet.
func NewPick(id string, site *Site, t float64, backAzimuth, slowness float64) *Pick {
	return &Pick{
		ID:          id,
		Site:        site,
		Time:        t,
		BackAzimuth: backAzimuth,
		Slowness:    slowness,
		CreatedAt:   time.Now(),
	}
}

// HasBeam reports whether back-azimuth information is present.
func (p *Pick) HasBeam() bool {
	return !math.IsNaN(p.BackAzimuth)
}

// CurrentHypoID returns the ID of the Hypo this pick currently believes it
// belongs to, or "" if unassociated.
func (p *Pick) CurrentHypoID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentHypoID
}

// SetCurrentHypoID updates the weak hypo back-reference.
func (p *Pick) SetCurrentHypoID(id string) {
	p.mu.Lock()
	p.currentHypoID = id
	if p.FirstAssocAt.IsZero() && id != "" {
		p.FirstAssocAt = time.Now()
	}
	p.mu.Unlock()
}

// SetPhase records the phase name assigned by association.
func (p *Pick) SetPhase(phase string) {
	p.mu.Lock()
	p.Phase = phase
	p.mu.Unlock()
}

// MarkNucleated records that this pick has driven a nucleation attempt.
func (p *Pick) MarkNucleated() {
	p.mu.Lock()
	if p.NucleatedAt.IsZero() {
		p.NucleatedAt = time.Now()
	}
	p.mu.Unlock()
}

// Nucleate asks the owning site to stack every linked node at this pick's
// arrival time, then for every surviving trigger constructs and anneals a
// candidate Hypo, returning the survivors to the caller. Each candidate is
// annealed against its Web's nucleation stack/data thresholds.
func (p *Pick) Nucleate(hl *HypoList) []*Hypo {
	if p.Site == nil {
		return nil
	}
	triggers := p.Site.Nucleate(p.Time)
	if len(triggers) == 0 {
		return nil
	}

	var born []*Hypo
	for _, trig := range triggers {
		if p.skipTrigger(trig, hl) {
			continue
		}
		hypo := NewHypoFromTrigger(trig)
		nucCfg := cmn.GCO.Get()
		if web := hl.webs.Get(hypo.WebName); web != nil {
			hypo.WireTravelTimes(web.TTPrimary, web.TTSecondary, fullTablesForWeb(web))
			hypo.MaxDepthKm = web.MaxDepthKm
			hypo.AzimuthTaper = web.AzimuthTaper
			nucCfg = nucCfg.Clone()
			nucCfg.NucleationStackThreshold = web.NucleationStackThreshold
			nucCfg.NucleationDataThreshold = web.NucleationDataThreshold
		}
		for _, pk := range trig.ContributingPicks {
			hypo.AddPick(pk)
		}
		if !hypo.AnnealNucleation(nucCfg) {
			continue
		}
		born = append(born, hypo)
	}
	p.MarkNucleated()
	return born
}

// hasStrongHost reports whether this pick is already associated to a hypo
// whose current Bayesian stack exceeds twice its nucleation threshold —
// such a host already explains the pick with high confidence, so
// attempting to nucleate a fresh candidate from it would only ever
// duplicate the existing hypo.
func (p *Pick) hasStrongHost(hl *HypoList) bool {
	hypoID := p.CurrentHypoID()
	if hypoID == "" {
		return false
	}
	h := hl.Find(hypoID)
	if h == nil {
		return false
	}
	return h.Bayes() > 2*h.NucleationStackThreshold
}

// skipTrigger reports whether this pick is already associated to a hypo
// within distance < the trigger's resolution — if so, the trigger is
// redundant, since that hypo already explains the pick.
func (p *Pick) skipTrigger(trig *Trigger, hl *HypoList) bool {
	hypoID := p.CurrentHypoID()
	if hypoID == "" {
		return false
	}
	h := hl.Find(hypoID)
	if h == nil {
		return false
	}
	g := h.Location()
	d := g.DeltaKm(cmn.NewGeo(trig.Lat, trig.Lon, trig.Depth))
	return d < trig.ResolutionKm
}
