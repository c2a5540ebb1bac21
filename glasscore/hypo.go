package glasscore

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/glass3/associator/cmn"
	"github.com/glass3/associator/traveltime"
)

// phaseWeight assigns the residual-locator's per-phase weight used when
// minimizing weighted absolute residual instead of maximizing Bayes.
func phaseWeight(phase string) float64 {
	switch phase {
	case "P":
		return 1.0
	case "S":
		return 2.0
	default:
		return 10.0
	}
}

// Hypo is one candidate earthquake: location, origin time, its supporting
// observations, and the locator/viability logic that refines or kills it.
type Hypo struct {
	mu sync.RWMutex

	ID string

	lat, lon, depth, originTime float64
	CreatedAt                   time.Time

	bayes        float64
	initialBayes float64

	WebName                  string
	NucleationStackThreshold float64
	NucleationDataThreshold  int

	ttNucleationP traveltime.Table
	ttNucleationS traveltime.Table
	ttFull        []traveltime.Table

	DistanceCutoffFactor     float64
	DistanceCutoffPercentile float64
	MinDistanceCutoff        float64
	distanceCutoff           float64

	AzimuthTaper cmn.Taper
	MaxDepthKm   float64

	Fixed bool

	processingCycle int
	totalProcess    int
	report          int

	EventMessageGenerated bool
	HypoMessageGenerated  bool
	CorrelationAdded      bool

	// SortTime is frozen at insertion into HypoList's ordered set
	// (invariant 5); HypoList owns writing it, never Hypo itself.
	SortTime float64

	picks        map[string]*Pick
	correlations map[string]*Correlation
}

// NewHypoFromTrigger builds a Hypo at the trigger's location/origin time
// with zero nucleation thresholds and no travel-time tables; callers wire
// the owning Web's tables with WireTravelTimes, and AnnealNucleation sets
// the thresholds.
func NewHypoFromTrigger(trig *Trigger) *Hypo {
	return &Hypo{
		ID:                       cmn.GenHypoID(),
		lat:                      trig.Lat,
		lon:                      trig.Lon,
		depth:                    trig.Depth,
		originTime:               trig.OriginTime,
		CreatedAt:                time.Now(),
		bayes:                    trig.Stack,
		initialBayes:             trig.Stack,
		WebName:                  trig.WebName,
		NucleationStackThreshold: 0,
		NucleationDataThreshold:  0,
		AzimuthTaper:             cmn.NewTaper(0, 0, 270, 360),
		MaxDepthKm:               800,
		DistanceCutoffFactor:     4.0,
		DistanceCutoffPercentile: 0.9,
		MinDistanceCutoff:        30.0,
		distanceCutoff:           30.0,
		picks:                    map[string]*Pick{},
		correlations:             map[string]*Correlation{},
	}
}

// NewFixedHypo builds a Hypo from an external Detection/Correlation whose
// location is not re-solved by the locator.
func NewFixedHypo(lat, lon, depth, originTime float64) *Hypo {
	h := NewHypoFromTrigger(&Trigger{Lat: lat, Lon: lon, Depth: depth, OriginTime: originTime})
	h.Fixed = true
	return h
}

// WireTravelTimes attaches the Web's nucleation travel-time handles and a
// full per-phase table set, cloning each so this Hypo's lookups never
// contend with another Hypo's.
func (h *Hypo) WireTravelTimes(ttP, ttS traveltime.Table, full []traveltime.Table) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ttP != nil {
		h.ttNucleationP = ttP.Clone()
	}
	if ttS != nil {
		h.ttNucleationS = ttS.Clone()
	}
	for _, t := range full {
		h.ttFull = append(h.ttFull, t.Clone())
	}
}

// Initialize resets a Hypo to an explicit state; used directly by tests
// that need a hypo with known fields without going through nucleation.
func (h *Hypo) Initialize(lat, lon, depth, originTime float64, id, webName string, bayes, thresh float64, dataThresh int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lat, h.lon, h.depth, h.originTime = lat, lon, depth, originTime
	h.ID = id
	h.WebName = webName
	h.bayes = bayes
	h.initialBayes = bayes
	h.NucleationStackThreshold = thresh
	h.NucleationDataThreshold = dataThresh
}

// Location returns the current hypocenter as a Geo.
func (h *Hypo) Location() cmn.Geo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cmn.NewGeo(h.lat, h.lon, h.depth)
}

// OriginTime returns the current origin time.
func (h *Hypo) OriginTime() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.originTime
}

// Bayes returns the current Bayesian stack value.
func (h *Hypo) Bayes() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bayes
}

// DataCount returns the total number of supporting picks and correlations.
func (h *Hypo) DataCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.picks) + len(h.correlations)
}

// ProcessingCycle returns the per-wakeup processing counter.
func (h *Hypo) ProcessingCycle() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processingCycle
}

// ResetProcessingCycle zeroes the per-wakeup counter.
func (h *Hypo) ResetProcessingCycle() {
	h.mu.Lock()
	h.processingCycle = 0
	h.mu.Unlock()
}

// IncProcessingCycle bumps both the per-wakeup and the monotonic total
// process counters, returning the new per-wakeup value.
func (h *Hypo) IncProcessingCycle() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processingCycle++
	h.totalProcess++
	return h.processingCycle
}

// AddPick adds p to the supporting set (invariant 2 allows this without p
// back-referencing h yet — the affinity contest settles exclusivity).
func (h *Hypo) AddPick(p *Pick) {
	h.mu.Lock()
	h.picks[p.ID] = p
	h.mu.Unlock()
}

// RemovePick drops a pick from the supporting set by ID.
func (h *Hypo) RemovePick(id string) {
	h.mu.Lock()
	delete(h.picks, id)
	h.mu.Unlock()
}

// Picks returns a snapshot of the supporting pick set.
func (h *Hypo) Picks() []*Pick {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Pick, 0, len(h.picks))
	for _, p := range h.picks {
		out = append(out, p)
	}
	return out
}

// AddCorrelation adds c to the supporting set.
func (h *Hypo) AddCorrelation(c *Correlation) {
	h.mu.Lock()
	h.correlations[c.ID] = c
	h.CorrelationAdded = true
	h.mu.Unlock()
}

// RemoveCorrelation drops a correlation from the supporting set by ID.
func (h *Hypo) RemoveCorrelation(id string) {
	h.mu.Lock()
	delete(h.correlations, id)
	h.mu.Unlock()
}

// Correlations returns a snapshot of the supporting correlation set.
func (h *Hypo) Correlations() []*Correlation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Correlation, 0, len(h.correlations))
	for _, c := range h.correlations {
		out = append(out, c)
	}
	return out
}

// sigmaForDistance ramps from a base sigma of 1.0 at zero distance to 3.0
// by 2 degrees, then stays flat.
var distanceSigmaTaper = cmn.NewTaper(0, 2, 1e6, 1e6)

func sigmaForDistance(distanceDeg float64) float64 {
	return 1.0 + 2.0*distanceSigmaTaper.Value(distanceDeg)
}

// residualFor returns the smallest-|residual| phase match for pick against
// the current hypocenter, along with the matched phase name and distance
// in degrees. ok is false if no phase table produced a prediction.
func (h *Hypo) residualFor(pick *Pick) (residual float64, phase string, distanceDeg float64, ok bool) {
	h.mu.RLock()
	lat, lon, depth, ot := h.lat, h.lon, h.depth, h.originTime
	tables := h.ttFull
	h.mu.RUnlock()

	if len(tables) == 0 {
		return 0, "", 0, false
	}

	geo := cmn.NewGeo(lat, lon, depth)
	distanceDeg = geo.Delta(pick.Site.Geo)

	best := math.MaxFloat64
	for _, t := range tables {
		t.SetOrigin(lat, lon, depth)
		secs, tOK := t.T(pick.Site.Geo.LatDeg, pick.Site.Geo.LonDeg)
		if !tOK {
			continue
		}
		r := pick.Time - (ot + secs)
		if math.Abs(r) < math.Abs(best) || !ok {
			best = r
			phase = t.Phase()
			ok = true
		}
	}
	residual = best
	return
}

// CanAssociate checks the hypo's current distance cutoff, optional
// back-azimuth window, and a standard-deviation residual cutoff (scaled by
// distance) — all must pass.
func (h *Hypo) CanAssociate(p *Pick, sigma, sdCutoff float64) bool {
	r, _, distanceDeg, ok := h.residualFor(p)
	if !ok {
		return false
	}

	h.mu.RLock()
	cutoff := h.distanceCutoff
	h.mu.RUnlock()
	if distanceDeg*cmn.DegToKm > cutoff {
		return false
	}

	if p.HasBeam() {
		hypoGeo := h.Location()
		predictedAz := hypoGeo.Azimuth(p.Site.Geo)
		diff := math.Abs(angleDiff(predictedAz, p.BackAzimuth))
		cfg := cmn.GCO.Get()
		if diff > cfg.BeamMatchingAzimuthWindow {
			return false
		}
	}

	scaled := sigma * sigmaForDistance(distanceDeg)
	if scaled <= 0 {
		scaled = 1
	}
	return math.Abs(r)/scaled <= sdCutoff
}

func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b+540, 360) - 180
	return d
}

// CanAssociateCorrelation applies a time/distance window instead of the
// residual test, matching the correlation's own candidate origin.
func (h *Hypo) CanAssociateCorrelation(c *Correlation) bool {
	cfg := cmn.GCO.Get()
	if math.Abs(c.CandidateTime-h.OriginTime()) > cfg.CorrelationMatchingTimeWindow {
		return false
	}
	d := h.Location().Delta(cmn.NewGeo(c.CandidateLat, c.CandidateLon, c.CandidateDepth))
	return d <= cfg.CorrelationMatchingDistanceWindow
}

// Affinity returns 0 if CanAssociate fails, otherwise an azimuthal-gap
// taper times bayes^exp.
func (h *Hypo) Affinity(p *Pick, sdCutoff, expFactor float64) float64 {
	if !h.CanAssociate(p, 1.0, sdCutoff) {
		return 0
	}
	gap := h.CalculateGap()
	g := h.AzimuthTaper.Value(gap)
	return g * math.Pow(h.Bayes(), expFactor)
}

// CalculateGap returns the largest azimuthal gap, in degrees, between
// supporting stations as seen from the current hypocenter. Fewer than two
// picks returns 360 (treated as the worst gap by CancelCheck and Affinity,
// consistent with a still-unconstrained solution being the least
// trustworthy one).
func (h *Hypo) CalculateGap() float64 {
	picks := h.Picks()
	if len(picks) < 2 {
		return 360
	}
	geo := h.Location()
	azs := make([]float64, 0, len(picks))
	for _, p := range picks {
		azs = append(azs, geo.Azimuth(p.Site.Geo))
	}
	sort.Float64s(azs)
	maxGap := 360 - azs[len(azs)-1] + azs[0]
	for i := 1; i < len(azs); i++ {
		gap := azs[i] - azs[i-1]
		if gap > maxGap {
			maxGap = gap
		}
	}
	return maxGap
}

// CalculateBayes sums per-pick Gaussian significance contributions at the
// given trial hypocenter. When nucleating is true, only P-phase matches
// contribute (the nucleation pass has no confirmed S association yet).
func (h *Hypo) CalculateBayes(lat, lon, depth, originTime float64, nucleating bool) float64 {
	h.mu.RLock()
	tables := h.ttFull
	h.mu.RUnlock()
	if len(tables) == 0 {
		return h.Bayes()
	}

	geo := cmn.NewGeo(lat, lon, depth)
	total := 0.0
	for _, p := range h.Picks() {
		distanceDeg := geo.Delta(p.Site.Geo)
		best := math.MaxFloat64
		found := false
		for _, t := range tables {
			if nucleating && t.Phase() != "P" {
				continue
			}
			t.SetOrigin(lat, lon, depth)
			secs, ok := t.T(p.Site.Geo.LatDeg, p.Site.Geo.LonDeg)
			if !ok {
				continue
			}
			r := p.Time - (originTime + secs)
			if !found || math.Abs(r) < math.Abs(best) {
				best = r
				found = true
			}
		}
		if !found {
			continue
		}
		sigma := sigmaForDistance(distanceDeg)
		total += math.Exp(-0.5 * (best / sigma) * (best / sigma))
	}
	return total
}

// AnnealNucleation runs a fixed number of short anneal passes, each
// re-checked against the nucleation thresholds; any failing pass abandons
// the candidate.
func (h *Hypo) AnnealNucleation(cfg *cmn.Config) bool {
	const passes = 3
	const itersPerPass = 25
	h.mu.Lock()
	h.NucleationStackThreshold = cfg.NucleationStackThreshold
	h.NucleationDataThreshold = cfg.NucleationDataThreshold
	h.mu.Unlock()

	for i := 0; i < passes; i++ {
		h.Anneal(itersPerPass, 5, 1, 2, 0.5)
		if h.Bayes() < cfg.NucleationStackThreshold || h.DataCount() < cfg.NucleationDataThreshold {
			return false
		}
	}
	return true
}

// Anneal is a Bayes-maximizing simulated annealing locator: spatial/time
// step tapers from (dStart,tStart) to (dStop,tStop) over iterations;
// acceptance is greedy-with-occasional-jump rather than a textbook
// Metropolis schedule, matching how candidates below the current best are
// still occasionally accepted to escape local maxima.
func (h *Hypo) Anneal(iterations int, dStart, dStop, tStart, tStop float64) float64 {
	h.mu.RLock()
	lat, lon, depth, ot := h.lat, h.lon, h.depth, h.originTime
	h.mu.RUnlock()

	best := h.CalculateBayes(lat, lon, depth, ot, false)
	bestLat, bestLon, bestDepth, bestOT := lat, lon, depth, ot

	for i := 0; i < iterations; i++ {
		frac := 0.0
		if iterations > 1 {
			frac = float64(i) / float64(iterations-1)
		}
		dStep := dStart + frac*(dStop-dStart)
		tStep := tStart + frac*(tStop-tStart)

		base := cmn.NewGeo(bestLat, bestLon, bestDepth)
		eastKm := rand.NormFloat64() * dStep
		northKm := rand.NormFloat64() * dStep
		depthKm := rand.NormFloat64() * (dStep / 2)
		candGeo := base.OffsetKm(eastKm, northKm, depthKm)
		if candGeo.DepthK < 1 {
			candGeo.DepthK = 1
		}
		if candGeo.DepthK > h.MaxDepthKm {
			candGeo.DepthK = h.MaxDepthKm
		}
		candOT := bestOT + rand.NormFloat64()*tStep

		val := h.CalculateBayes(candGeo.LatDeg, candGeo.LonDeg, candGeo.DepthK, candOT, false)
		gap := h.gapFrom(candGeo)
		gated := val * h.AzimuthTaper.Value(gap)

		accept := gated >= best
		if !accept {
			jumpDraw := math.Abs(rand.NormFloat64()) * dStep
			if gated > h.NucleationStackThreshold && best-gated < jumpDraw {
				accept = true
			}
		}
		if accept {
			best = gated
			bestLat, bestLon, bestDepth, bestOT = candGeo.LatDeg, candGeo.LonDeg, candGeo.DepthK, candOT
		}
	}

	h.mu.Lock()
	h.lat, h.lon, h.depth, h.originTime = bestLat, bestLon, bestDepth, bestOT
	h.bayes = best
	h.mu.Unlock()
	h.CalculateStatistics(cmn.GCO.Get())
	return best
}

func (h *Hypo) gapFrom(geo cmn.Geo) float64 {
	picks := h.Picks()
	if len(picks) < 2 {
		return 360
	}
	azs := make([]float64, 0, len(picks))
	for _, p := range picks {
		azs = append(azs, geo.Azimuth(p.Site.Geo))
	}
	sort.Float64s(azs)
	maxGap := 360 - azs[len(azs)-1] + azs[0]
	for i := 1; i < len(azs); i++ {
		if g := azs[i] - azs[i-1]; g > maxGap {
			maxGap = g
		}
	}
	return maxGap
}

// AnnealResidual uses identical stepping to Anneal, but minimizes
// phase-weighted sum-of-absolute-residuals instead of maximizing Bayes.
func (h *Hypo) AnnealResidual(iterations int, dStart, dStop, tStart, tStop float64) float64 {
	h.mu.RLock()
	lat, lon, depth, ot := h.lat, h.lon, h.depth, h.originTime
	h.mu.RUnlock()

	bestCost := h.residualCost(lat, lon, depth, ot)
	bestLat, bestLon, bestDepth, bestOT := lat, lon, depth, ot

	for i := 0; i < iterations; i++ {
		frac := 0.0
		if iterations > 1 {
			frac = float64(i) / float64(iterations-1)
		}
		dStep := dStart + frac*(dStop-dStart)
		tStep := tStart + frac*(tStop-tStart)

		base := cmn.NewGeo(bestLat, bestLon, bestDepth)
		candGeo := base.OffsetKm(rand.NormFloat64()*dStep, rand.NormFloat64()*dStep, rand.NormFloat64()*(dStep/2))
		if candGeo.DepthK < 1 {
			candGeo.DepthK = 1
		}
		if candGeo.DepthK > h.MaxDepthKm {
			candGeo.DepthK = h.MaxDepthKm
		}
		candOT := bestOT + rand.NormFloat64()*tStep

		cost := h.residualCost(candGeo.LatDeg, candGeo.LonDeg, candGeo.DepthK, candOT)
		if cost <= bestCost {
			bestCost = cost
			bestLat, bestLon, bestDepth, bestOT = candGeo.LatDeg, candGeo.LonDeg, candGeo.DepthK, candOT
		}
	}

	h.mu.Lock()
	h.lat, h.lon, h.depth, h.originTime = bestLat, bestLon, bestDepth, bestOT
	h.mu.Unlock()
	h.bayes = h.CalculateBayes(bestLat, bestLon, bestDepth, bestOT, false)
	h.CalculateStatistics(cmn.GCO.Get())
	return bestCost
}

func (h *Hypo) residualCost(lat, lon, depth, ot float64) float64 {
	h.mu.RLock()
	tables := h.ttFull
	h.mu.RUnlock()
	geo := cmn.NewGeo(lat, lon, depth)
	total := 0.0
	for _, p := range h.Picks() {
		best := math.MaxFloat64
		phase := ""
		found := false
		for _, t := range tables {
			t.SetOrigin(lat, lon, depth)
			secs, ok := t.T(p.Site.Geo.LatDeg, p.Site.Geo.LonDeg)
			if !ok {
				continue
			}
			r := p.Time - (ot + secs)
			if !found || math.Abs(r) < math.Abs(best) {
				best, phase, found = r, t.Phase(), true
			}
		}
		if found {
			total += math.Abs(best) * phaseWeight(phase)
		}
	}
	_ = geo
	return total
}

// Localize chooses the Bayes or residual locator per MinimizeTTLocator,
// and scales iteration count by pick-count band (small events relocate
// often; already-populous ones only on modular thresholds). A Fixed hypo
// is never relocated.
func (h *Hypo) Localize(cfg *cmn.Config, webResolutionKm float64) {
	if h.Fixed {
		return
	}
	n := h.DataCount()
	if n >= 10 && n%10 != 0 && n%25 != 0 {
		return
	}

	iterations := 500
	switch {
	case n < 10:
		iterations = 1000
	case n < 50:
		iterations = 500
	default:
		iterations = 250
	}

	gapTaper := cmn.NewTaper(0, 30, 1e6, 1e6)
	radius := webResolutionKm/4 + gapTaper.Value(float64(n)/30)*0.75*webResolutionKm
	radius /= 2

	if cfg.MinimizeTTLocator {
		h.AnnealResidual(iterations, radius, radius/10, 2.0, 0.1)
	} else {
		h.Anneal(iterations, radius, radius/10, 2.0, 0.1)
	}
}

// PruneData drops every supporting datum that no longer associates or now
// sits beyond the distance cutoff.
func (h *Hypo) PruneData(cfg *cmn.Config) int {
	n := 0
	cutoff := h.currentDistanceCutoffKm()
	for _, p := range h.Picks() {
		if !h.CanAssociate(p, 1.0, cfg.PruningSDCutoff) {
			h.RemovePick(p.ID)
			if p.CurrentHypoID() == h.ID {
				p.SetCurrentHypoID("")
			}
			n++
			continue
		}
		d := h.Location().DeltaKm(p.Site.Geo)
		if d > cutoff {
			h.RemovePick(p.ID)
			if p.CurrentHypoID() == h.ID {
				p.SetCurrentHypoID("")
			}
			n++
		}
	}
	for _, c := range h.Correlations() {
		if !h.CanAssociateCorrelation(c) {
			h.RemoveCorrelation(c.ID)
			if c.CurrentHypoID() == h.ID {
				c.SetCurrentHypoID("")
			}
			n++
		}
	}
	return n
}

func (h *Hypo) currentDistanceCutoffKm() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.distanceCutoff
}

// CalculateStatistics recomputes the adaptive distance cutoff from the
// current supporting-pick distance distribution.
func (h *Hypo) CalculateStatistics(cfg *cmn.Config) {
	picks := h.Picks()
	if len(picks) == 0 {
		return
	}
	geo := h.Location()
	dists := make([]float64, 0, len(picks))
	for _, p := range picks {
		dists = append(dists, geo.DeltaKm(p.Site.Geo))
	}
	sort.Float64s(dists)
	idx := int(cfg.DistanceCutoffPercentage * float64(len(dists)))
	if idx >= len(dists) {
		idx = len(dists) - 1
	}
	d := dists[idx]
	cutoff := cfg.DistanceCutoffFactor * d
	if cutoff < cfg.MinDistanceCutoff {
		cutoff = cfg.MinDistanceCutoff
	}
	h.mu.Lock()
	h.distanceCutoff = cutoff
	h.DistanceCutoffFactor = cfg.DistanceCutoffFactor
	h.DistanceCutoffPercentile = cfg.DistanceCutoffPercentage
	h.MinDistanceCutoff = cfg.MinDistanceCutoff
	h.mu.Unlock()
}

// CancelCheck returns true if the hypo is doomed. Correlations younger
// than CorrelationCancelAge always survive regardless of the other
// checks.
func (h *Hypo) CancelCheck(cfg *cmn.Config) bool {
	for _, c := range h.Correlations() {
		if time.Since(c.CreatedAt).Seconds() < cfg.CorrelationCancelAge {
			return false
		}
	}

	if h.DataCount() < cfg.NucleationDataThreshold {
		return true
	}
	if h.Bayes() < cfg.NucleationStackThreshold {
		return true
	}
	d := h.Location().DepthK
	if d > 550 && h.CalculateGap() > 270 {
		return true
	}
	return false
}
