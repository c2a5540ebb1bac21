// Package transport defines the inbound/outbound JSON envelopes glassd
// exchanges with the outside world and the dispatch table that routes an
// inbound envelope to a Glass façade method.
package transport

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the outer wrapper every inbound message arrives in: a Cmd
// naming the handler plus the raw payload for that handler to decode.
type Envelope struct {
	Cmd     string          `json:"Cmd"`
	Payload jsoniter.RawMessage `json:"Payload"`
}

// PickIn is the inbound Pick message.
type PickIn struct {
	ID          string  `json:"ID"`
	Station     string  `json:"Station"`
	Channel     string  `json:"Channel"`
	Network     string  `json:"Network"`
	Location    string  `json:"Location"`
	Time        float64 `json:"Time"`
	Phase       string  `json:"Phase,omitempty"`
	BackAzimuth float64 `json:"BackAzimuth,omitempty"`
	Slowness    float64 `json:"Slowness,omitempty"`
}

// CorrelationIn is the inbound Correlation message.
type CorrelationIn struct {
	ID             string  `json:"ID"`
	Station        string  `json:"Station"`
	Channel        string  `json:"Channel"`
	Network        string  `json:"Network"`
	Location       string  `json:"Location"`
	Time           float64 `json:"Time"`
	Phase          string  `json:"Phase"`
	Latitude       float64 `json:"Latitude"`
	Longitude      float64 `json:"Longitude"`
	Depth          float64 `json:"Depth"`
	CandidateTime  float64 `json:"CandidateTime"`
	CorrelationVal float64 `json:"Correlation"`
}

// DetectionIn is the inbound Detection message: a higher-confidence,
// externally pre-associated candidate event that requeues a nearby held
// Hypo or seeds a fixed Hypo directly instead of going through nucleation.
type DetectionIn struct {
	ID        string  `json:"ID"`
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
	Depth     float64 `json:"Depth"`
	Time      float64 `json:"Time"`
}

// StationInfoIn is the inbound site metadata message.
type StationInfoIn struct {
	Station     string  `json:"Station"`
	Channel     string  `json:"Channel"`
	Network     string  `json:"Network"`
	Location    string  `json:"Location"`
	Latitude    float64 `json:"Latitude"`
	Longitude   float64 `json:"Longitude"`
	Elevation   float64 `json:"Elevation"`
	Quality     float64 `json:"Quality"`
	Enable      bool    `json:"Enable"`
	UseForTele  bool    `json:"UseForTeleseismic"`
}

// ReqHypoIn asks for the current state of a Hypo by ID.
type ReqHypoIn struct {
	ID string `json:"ID"`
}

// SiteListIn upserts metadata for each listed site; sites it does not list
// are left unchanged.
type SiteListIn struct {
	Sites []StationInfoIn `json:"Sites"`
}

// GeoIn is a single lat/lon/depth point, used both as a grid anchor and as
// an entry in an explicit node list.
type GeoIn struct {
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
	DepthKm   float64 `json:"DepthKm"`
}

// PhaseVelocityIn names a seismic phase and the constant velocity used to
// build its travel-time table; Secondary is nil for a single-phase grid.
type PhaseVelocityIn struct {
	Phase       string  `json:"Phase"`
	VelocityKmS float64 `json:"VelocityKmS"`
}

// webParamsIn carries the fields common to every grid-definition command:
// its name, nucleation/association thresholds, and phase velocities.
type webParamsIn struct {
	Name            string           `json:"Name"`
	StackThreshold  float64          `json:"StackThreshold"`
	DataThreshold   int              `json:"DataThreshold"`
	StationsPerNode int              `json:"StationsPerNode"`
	Primary         PhaseVelocityIn  `json:"Primary"`
	Secondary       *PhaseVelocityIn `json:"Secondary,omitempty"`
}

// GridIn defines a rectangular local-tangent grid anchored at a point
// (the "Grid" Cmd).
type GridIn struct {
	webParamsIn
	Anchor    GeoIn     `json:"Anchor"`
	Rows      int       `json:"Rows"`
	Cols      int       `json:"Cols"`
	DepthsKm  []float64 `json:"DepthsKm"`
	SpacingKm float64   `json:"SpacingKm"`
}

// ShellIn defines a single-depth global shell of ~uniform spacing (the
// "Shell" and "Global" Cmds — both build the same equal-area tessellation,
// "Global" simply naming the whole-earth case).
type ShellIn struct {
	webParamsIn
	DepthKm   float64 `json:"DepthKm"`
	SpacingKm float64 `json:"SpacingKm"`
}

// GridExplicitIn defines a grid from an explicit list of node locations
// (the "Grid_Explicit" Cmd).
type GridExplicitIn struct {
	webParamsIn
	Points []GeoIn `json:"Points"`
}

// RemoveWebIn names a previously-created grid to tear down.
type RemoveWebIn struct {
	Name string `json:"Name"`
}

// ReqSiteListIn requests a dump of all known site metadata; it carries no
// fields of its own.
type ReqSiteListIn struct{}

// HypoOut is the response to a ReqHypo query.
type HypoOut struct {
	Type      string  `json:"Type"`
	ID        string  `json:"ID"`
	WebName   string  `json:"WebName"`
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
	Depth     float64 `json:"Depth"`
	Time      float64 `json:"Time"`
	Bayes     float64 `json:"Bayes"`
	NPicks    int     `json:"NPicks"`
}

// SiteOut is one entry in a ReqSiteList response.
type SiteOut struct {
	Code      string  `json:"Code"`
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
	Quality   float64 `json:"Quality"`
	Enable    bool    `json:"Enable"`
}

// SiteListOut is the response to a ReqSiteList query.
type SiteListOut struct {
	Type  string    `json:"Type"`
	Sites []SiteOut `json:"Sites"`
}

// EventOut is published when a Hypo first clears the reporting threshold.
type EventOut struct {
	Type      string  `json:"Type"`
	ID        string  `json:"ID"`
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
	Depth     float64 `json:"Depth"`
	Time      float64 `json:"Time"`
	Bayes     float64 `json:"Bayes"`
	NPicks    int     `json:"NPicks"`
}

// CancelOut is published when a previously-reported Hypo fails its
// viability check and is withdrawn.
type CancelOut struct {
	Type string `json:"Type"`
	ID   string `json:"ID"`
}

// ExpireOut is published when a Hypo is evicted by capacity pressure,
// whether or not it was reported.
type ExpireOut struct {
	Type string `json:"Type"`
	ID   string `json:"ID"`
}

// SiteLookupOut asks the caller to resolve metadata for an unknown site.
type SiteLookupOut struct {
	Type     string `json:"Type"`
	Station  string `json:"Station"`
	Channel  string `json:"Channel"`
	Network  string `json:"Network"`
	Location string `json:"Location"`
}

// Marshal serializes v with the shared jsoniter config.
func Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

// Unmarshal deserializes data into v with the shared jsoniter config.
func Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
