package glasscore

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/glass3/associator/cmn"
	"github.com/glass3/associator/cmn/glasserrors"
	"github.com/glass3/associator/stats"
	"github.com/glass3/associator/traveltime"
)

// Sink receives outbound messages the façade emits (Event, Cancel,
// Expire, SiteLookup). The transport package's ChannelSink implements this
// by serializing each message onto a bounded buffered channel.
type Sink interface {
	Publish(kind string, v interface{})
}

type nopSink struct{}

func (nopSink) Publish(string, interface{}) {}

// Glass is the single entry point of the associator: it owns every list,
// wires the darwin/nucleation worker pools, and exposes one method per
// inbound message type.
type Glass struct {
	mu sync.RWMutex

	Sites *SiteList
	Webs  *WebList
	Picks *PickList
	Corrs *CorrelationList
	Hypos *HypoList

	sv   *Supervisor
	sink Sink

	Stats *stats.Registry
}

// NewGlass builds a fully wired Glass, reading the current global config
// (cmn.GCO) once at construction time to size every list.
func NewGlass(sink Sink) *Glass {
	if sink == nil {
		sink = nopSink{}
	}
	cfg := cmn.GCO.Get()

	webs := NewWebList(cfg.WebUpdateWorkers)
	sites := NewSiteList(cfg.MaxNumPicksPerSite, webs)
	picks := NewPickList(cfg.MaxNumPicks, cfg.PickListWorkers, cfg.MaxQueueFactor)
	corrs := NewCorrelationList(cfg.MaxNumCorrelations)

	g := &Glass{
		Sites: sites,
		Webs:  webs,
		Picks: picks,
		Corrs: corrs,
		sink:  sink,
		Stats: stats.NewRegistry(prometheus.NewRegistry()),
	}

	g.Hypos = NewHypoList(cfg.MaxNumHypos, cfg.HypoListWorkers, cfg.MaxQueueFactor, webs, picks, corrs, HypoCallbacks{
		OnExpire: g.emitExpire,
		OnCancel: g.emitCancel,
		OnEvent:  g.emitEvent,
	})

	g.sv = NewSupervisor(g)
	return g
}

// Start launches the worker pools.
func (g *Glass) Start(ctx context.Context) { g.sv.Start(ctx) }

// Stop halts the worker pools and waits for them to drain.
func (g *Glass) Stop() error { return g.sv.Stop() }

// Healthy reports supervisor liveness for a health-check endpoint.
func (g *Glass) Healthy() bool {
	return g.sv.Healthy(cmn.GCO.Get().HeartbeatTimeoutDuration())
}

// HandlePick ingests a Pick: resolve its Site, reject unresolvable/
// duplicate picks, enqueue it for nucleation, and run immediate hypo
// association.
func (g *Glass) HandlePick(id, station, channel, network, location string, t float64, phase string, backAzimuth, slowness float64) error {
	code := SiteKey(station, channel, network, location)
	site := g.Sites.Get(code)
	if site == nil || !site.Enabled {
		g.Sites.RequestLookup(SiteLookupRequest{Station: station, Channel: channel, Network: network, Location: location})
		return glasserrors.ErrUnresolvedSite
	}

	p := NewPick(id, site, t, backAzimuth, slowness)
	if phase != "" {
		p.SetPhase(phase)
	}

	cfg := cmn.GCO.Get()
	if err := g.Picks.AddPick(p, cfg); err != nil {
		if errors.Is(err, glasserrors.ErrDuplicateInput) {
			g.Stats.PicksDuplicate.Inc()
			return err
		}
		if errors.Is(err, glasserrors.ErrCapacityEvicted) {
			g.Stats.PicksEvicted.Inc()
		}
	}
	g.Stats.PicksIngested.Inc()
	g.Stats.PicksCurrent.Set(float64(g.Picks.Size()))
	if evicted := site.AddPick(p); evicted != nil {
		g.Picks.Remove(evicted.ID)
	}

	g.Hypos.Associate(p, cfg)
	return nil
}

// HandleCorrelation ingests a Correlation the same way HandlePick ingests
// a Pick.
func (g *Glass) HandleCorrelation(id, station, channel, network, location string, t float64, phase string, lat, lon, depth, candidateTime, corrVal float64) error {
	code := SiteKey(station, channel, network, location)
	site := g.Sites.Get(code)
	if site == nil || !site.Enabled {
		g.Sites.RequestLookup(SiteLookupRequest{Station: station, Channel: channel, Network: network, Location: location})
		return glasserrors.ErrUnresolvedSite
	}

	c := NewCorrelation(id, site, t, phase, lat, lon, depth, candidateTime, corrVal)
	g.Corrs.Add(c)
	g.Stats.CorrelationsIngested.Inc()
	g.Hypos.AssociateCorrelation(c, cmn.GCO.Get())
	return nil
}

// HandleDetection ingests a Detection: an externally pre-associated
// candidate with its own hypocenter estimate. If a held Hypo lies within
// 90 s and 5 degrees of it, that Hypo is requeued for processing instead.
// Otherwise the Detection seeds a fixed Hypo directly, skipping
// nucleation, so it can immediately begin accumulating corroborating
// picks and correlations.
func (g *Glass) HandleDetection(id string, lat, lon, depth, t float64) {
	target := cmn.NewGeo(lat, lon, depth)
	for _, hid := range g.Hypos.rangeIDs(t-90, t+90) {
		if other := g.Hypos.Find(hid); other != nil && other.Location().Delta(target) <= 5 {
			g.Hypos.Schedule(hid)
			return
		}
	}
	h := NewFixedHypo(lat, lon, depth, t)
	h.ID = id
	web := g.pickDefaultWeb()
	if web != nil {
		h.WireTravelTimes(web.TTPrimary, web.TTSecondary, fullTablesForWeb(web))
		h.WebName = web.Name
		h.MaxDepthKm = web.MaxDepthKm
		h.AzimuthTaper = web.AzimuthTaper
	}
	g.Hypos.Insert(h)
}

func (g *Glass) pickDefaultWeb() *Web {
	all := g.Webs.All()
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// HandleStationInfo upserts site metadata.
func (g *Glass) HandleStationInfo(station, channel, network, location string, lat, lon, elevation, quality float64, enable, teleseismic bool) *Site {
	geo := cmn.NewGeo(lat, lon, -elevation/1000.0)
	code := SiteKey(station, channel, network, location)
	return g.Sites.Upsert(code, geo, quality, enable, teleseismic)
}

// DrainSiteLookups returns and clears pending SiteLookup requests for the
// transport layer to publish.
func (g *Glass) DrainSiteLookups() []SiteLookupRequest { return g.Sites.DrainLookups() }

// ReqHypo returns the current snapshot of a live Hypo, or an error if it
// no longer exists.
func (g *Glass) ReqHypo(id string) (*Hypo, error) {
	h := g.Hypos.Find(id)
	if h == nil {
		return nil, errors.Wrapf(glasserrors.ErrUnviableHypo, "hypo %q not found", id)
	}
	return h, nil
}

// CreateWebLocal defines a rectangular local-tangent detection grid.
func (g *Glass) CreateWebLocal(name string, anchor cmn.Geo, rows, cols int, depthsKm []float64, spacingKm float64, stackThresh float64, dataThresh, stationsPerNode int, tp, ts traveltime.Table) {
	w := NewWeb(name, stackThresh, dataThresh, stationsPerNode, spacingKm, tp, ts)
	w.GenerateLocal(anchor, rows, cols, depthsKm, spacingKm, g.Sites.All())
	g.Webs.Add(w)
}

// CreateWebShell defines a global equal-area shell grid at a fixed depth.
func (g *Glass) CreateWebShell(name string, depthKm, spacingKm, stackThresh float64, dataThresh, stationsPerNode int, tp, ts traveltime.Table) {
	w := NewWeb(name, stackThresh, dataThresh, stationsPerNode, spacingKm, tp, ts)
	w.GenerateShell(depthKm, spacingKm, g.Sites.All())
	g.Webs.Add(w)
}

// CreateWebExplicit defines a grid from an explicit list of node
// locations.
func (g *Glass) CreateWebExplicit(name string, points []cmn.Geo, stackThresh float64, dataThresh, stationsPerNode int, tp, ts traveltime.Table) {
	w := NewWeb(name, stackThresh, dataThresh, stationsPerNode, 0, tp, ts)
	w.GenerateExplicit(points, g.Sites.All())
	g.Webs.Add(w)
}

// RemoveWeb tears down a named grid, reporting whether it existed.
func (g *Glass) RemoveWeb(name string) bool {
	return g.Webs.Remove(name)
}

// ClearGlass resets every list to empty — used by integration tests and
// operator resets.
func (g *Glass) ClearGlass() {
	cfg := cmn.GCO.Get()
	g.Webs = NewWebList(cfg.WebUpdateWorkers)
	g.Sites = NewSiteList(cfg.MaxNumPicksPerSite, g.Webs)
	g.Picks = NewPickList(cfg.MaxNumPicks, cfg.PickListWorkers, cfg.MaxQueueFactor)
	g.Corrs = NewCorrelationList(cfg.MaxNumCorrelations)
	g.Hypos = NewHypoList(cfg.MaxNumHypos, cfg.HypoListWorkers, cfg.MaxQueueFactor, g.Webs, g.Picks, g.Corrs, HypoCallbacks{
		OnExpire: g.emitExpire,
		OnCancel: g.emitCancel,
		OnEvent:  g.emitEvent,
	})
}

// emitSiteLookups drains any pending unknown-site requests and publishes
// one SiteLookup message per station code.
func (g *Glass) emitSiteLookups() {
	for _, req := range g.Sites.DrainLookups() {
		g.sink.Publish("SiteLookup", struct {
			Station  string
			Channel  string
			Network  string
			Location string
		}{req.Station, req.Channel, req.Network, req.Location})
	}
}

func (g *Glass) emitEvent(h *Hypo) {
	geo := h.Location()
	g.Stats.HyposReported.Inc()
	glog.Infof("event %s bayes=%.3f npicks=%d", h.ID, h.Bayes(), h.DataCount())
	g.sink.Publish("Event", struct {
		ID        string
		Latitude  float64
		Longitude float64
		Depth     float64
		Time      float64
		Bayes     float64
		NPicks    int
	}{h.ID, geo.LatDeg, geo.LonDeg, geo.DepthK, h.OriginTime(), h.Bayes(), h.DataCount()})
}

func (g *Glass) emitHypoMessage(h *Hypo) {
	g.Stats.HyposNucleated.Inc()
	g.Stats.HyposCurrent.Set(float64(g.Hypos.Size()))
	glog.V(2).Infof("hypo %s born web=%s bayes=%.3f", h.ID, h.WebName, h.Bayes())
}

func (g *Glass) emitCancel(h *Hypo) {
	g.Stats.HyposCanceled.Inc()
	glog.Infof("cancel %s", h.ID)
	g.sink.Publish("Cancel", struct{ ID string }{h.ID})
}

func (g *Glass) emitExpire(h *Hypo) {
	g.Stats.HyposExpired.Inc()
	g.sink.Publish("Expire", struct{ ID string }{h.ID})
}

func (g *Glass) String() string {
	return fmt.Sprintf("glass[sites=%d webs=%d picks=%d hypos=%d]",
		len(g.Sites.All()), len(g.Webs.All()), g.Picks.Size(), g.Hypos.Size())
}
