package transport

import (
	"math"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/glass3/associator/cmn"
	"github.com/glass3/associator/glasscore"
	"github.com/glass3/associator/traveltime"
)

// Handler is glassd's single fasthttp request handler: POST /glass routes
// an Envelope to the matching Glass method by its Cmd field; GET /metrics
// serves the process-wide default Prometheus registry. The metrics in
// glasscore.Glass.Stats are registered on Glass's own registry and are
// not served there.
type Handler struct {
	glass *glasscore.Glass
	sink  *ChannelSink
}

// ChannelSink is the Sink implementation glassd publishes outbound
// messages through: each Publish call serializes the message and pushes
// it onto a bounded buffered channel, which Outbound exposes to a reader.
type ChannelSink struct {
	out chan []byte
}

// NewChannelSink builds a Sink with the given outbound buffer depth.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{out: make(chan []byte, buffer)}
}

// Publish serializes kind+v into the matching Out envelope and pushes it
// onto the outbound channel; it never blocks the caller indefinitely — a
// full buffer drops the oldest pending message, since outbound
// notifications are advisory, not authoritative (the Hypo they describe
// remains queryable via ReqHypo).
func (s *ChannelSink) Publish(kind string, v interface{}) {
	data, err := Marshal(struct {
		Type string
		V    interface{}
	}{kind, v})
	if err != nil {
		glog.Errorf("marshal outbound %s: %v", kind, err)
		return
	}
	select {
	case s.out <- data:
	default:
		select {
		case <-s.out:
		default:
		}
		s.out <- data
	}
}

// Outbound exposes the channel for the server's writer goroutine.
func (s *ChannelSink) Outbound() <-chan []byte { return s.out }

// NewHandler wires a fasthttp handler around glass.
func NewHandler(glass *glasscore.Glass, sink *ChannelSink) *Handler {
	return &Handler{glass: glass, sink: sink}
}

// Serve is the fasthttp.RequestHandler registered with the listener.
func (h *Handler) Serve(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/metrics":
		h.serveMetrics(ctx)
	case "/glass":
		h.serveGlass(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (h *Handler) serveMetrics(ctx *fasthttp.RequestCtx) {
	fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())(ctx)
}

func (h *Handler) serveGlass(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		return
	}

	var env Envelope
	if err := Unmarshal(ctx.PostBody(), &env); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString(err.Error())
		return
	}

	resp, err := h.dispatch(env)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusUnprocessableEntity)
		ctx.SetBodyString(err.Error())
		return
	}
	if resp == nil {
		ctx.SetStatusCode(fasthttp.StatusOK)
		return
	}
	data, err := Marshal(resp)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(err.Error())
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

// dispatch routes env to the matching Glass method, returning a response
// payload for query-style commands (ReqHypo, ReqSiteList) and nil for
// fire-and-forget ones.
func (h *Handler) dispatch(env Envelope) (interface{}, error) {
	switch env.Cmd {
	case "Pick":
		var in PickIn
		if err := Unmarshal(env.Payload, &in); err != nil {
			return nil, err
		}
		// PickIn cannot tell an absent beam field from 0; re-read them as
		// pointers so an absent value reaches the Pick as NaN.
		var beam struct {
			BackAzimuth *float64 `json:"BackAzimuth"`
			Slowness    *float64 `json:"Slowness"`
		}
		_ = Unmarshal(env.Payload, &beam)
		baz, slow := math.NaN(), math.NaN()
		if beam.BackAzimuth != nil {
			baz = *beam.BackAzimuth
		}
		if beam.Slowness != nil {
			slow = *beam.Slowness
		}
		return nil, h.glass.HandlePick(in.ID, in.Station, in.Channel, in.Network, in.Location, in.Time, in.Phase, baz, slow)

	case "Correlation":
		var in CorrelationIn
		if err := Unmarshal(env.Payload, &in); err != nil {
			return nil, err
		}
		return nil, h.glass.HandleCorrelation(in.ID, in.Station, in.Channel, in.Network, in.Location, in.Time, in.Phase, in.Latitude, in.Longitude, in.Depth, in.CandidateTime, in.CorrelationVal)

	case "Detection":
		var in DetectionIn
		if err := Unmarshal(env.Payload, &in); err != nil {
			return nil, err
		}
		h.glass.HandleDetection(in.ID, in.Latitude, in.Longitude, in.Depth, in.Time)
		return nil, nil

	case "StationInfo":
		var in StationInfoIn
		if err := Unmarshal(env.Payload, &in); err != nil {
			return nil, err
		}
		h.glass.HandleStationInfo(in.Station, in.Channel, in.Network, in.Location, in.Latitude, in.Longitude, in.Elevation, in.Quality, in.Enable, in.UseForTele)
		return nil, nil

	case "SiteList":
		var in SiteListIn
		if err := Unmarshal(env.Payload, &in); err != nil {
			return nil, err
		}
		for _, s := range in.Sites {
			h.glass.HandleStationInfo(s.Station, s.Channel, s.Network, s.Location, s.Latitude, s.Longitude, s.Elevation, s.Quality, s.Enable, s.UseForTele)
		}
		return nil, nil

	case "ReqHypo":
		var in ReqHypoIn
		if err := Unmarshal(env.Payload, &in); err != nil {
			return nil, err
		}
		hyp, err := h.glass.ReqHypo(in.ID)
		if err != nil {
			return nil, err
		}
		geo := hyp.Location()
		return HypoOut{
			Type: "Hypo", ID: hyp.ID, WebName: hyp.WebName,
			Latitude: geo.LatDeg, Longitude: geo.LonDeg, Depth: geo.DepthK,
			Time: hyp.OriginTime(), Bayes: hyp.Bayes(), NPicks: hyp.DataCount(),
		}, nil

	case "ReqSiteList":
		sites := h.glass.Sites.All()
		out := make([]SiteOut, 0, len(sites))
		for _, s := range sites {
			out = append(out, SiteOut{Code: s.Code, Latitude: s.Geo.LatDeg, Longitude: s.Geo.LonDeg, Quality: s.Quality, Enable: s.Enabled})
		}
		return SiteListOut{Type: "SiteList", Sites: out}, nil

	case "Grid":
		var in GridIn
		if err := Unmarshal(env.Payload, &in); err != nil {
			return nil, err
		}
		tp, ts := travelTimesFor(in.webParamsIn)
		anchor := cmn.NewGeo(in.Anchor.Latitude, in.Anchor.Longitude, in.Anchor.DepthKm)
		h.glass.CreateWebLocal(in.Name, anchor, in.Rows, in.Cols, in.DepthsKm, in.SpacingKm, in.StackThreshold, in.DataThreshold, in.StationsPerNode, tp, ts)
		return nil, nil

	case "Shell", "Global":
		var in ShellIn
		if err := Unmarshal(env.Payload, &in); err != nil {
			return nil, err
		}
		tp, ts := travelTimesFor(in.webParamsIn)
		h.glass.CreateWebShell(in.Name, in.DepthKm, in.SpacingKm, in.StackThreshold, in.DataThreshold, in.StationsPerNode, tp, ts)
		return nil, nil

	case "Grid_Explicit":
		var in GridExplicitIn
		if err := Unmarshal(env.Payload, &in); err != nil {
			return nil, err
		}
		tp, ts := travelTimesFor(in.webParamsIn)
		points := make([]cmn.Geo, len(in.Points))
		for i, p := range in.Points {
			points[i] = cmn.NewGeo(p.Latitude, p.Longitude, p.DepthKm)
		}
		h.glass.CreateWebExplicit(in.Name, points, in.StackThreshold, in.DataThreshold, in.StationsPerNode, tp, ts)
		return nil, nil

	case "RemoveWeb":
		var in RemoveWebIn
		if err := Unmarshal(env.Payload, &in); err != nil {
			return nil, err
		}
		if !h.glass.RemoveWeb(in.Name) {
			return nil, errors.Errorf("web %q not found", in.Name)
		}
		return nil, nil

	case "ClearGlass":
		h.glass.ClearGlass()
		return nil, nil

	default:
		return nil, errors.Errorf("unknown Cmd %q", env.Cmd)
	}
}

// travelTimesFor builds the primary (and, if present, secondary) travel-time
// tables a grid-definition command names.
func travelTimesFor(p webParamsIn) (tp, ts traveltime.Table) {
	tp = traveltime.NewSphericalTable(p.Primary.Phase, p.Primary.VelocityKmS)
	if p.Secondary != nil {
		ts = traveltime.NewSphericalTable(p.Secondary.Phase, p.Secondary.VelocityKmS)
	}
	return tp, ts
}

