package cmn

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/atomic"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds every tunable in the associator's external message
// interface, plus the worker/queue sizing its concurrency model needs. A
// single process-wide instance is held by GCO and swapped atomically so
// live reconfiguration never requires a lock in the hot path.
type Config struct {
	// Association / affinity.
	BeamMatchingAzimuthWindow float64 `json:"BeamMatchingAzimuthWindow"`
	AssociationSDCutoff       float64 `json:"AssociationSDCutoff"`
	PruningSDCutoff           float64 `json:"PruningSDCutoff"`
	PickAffinityExpFactor     float64 `json:"PickAffinityExpFactor"`
	PickAssociationWindowSec  float64 `json:"PickAssociationWindowSec"`

	// Correlation association.
	CorrelationMatchingTimeWindow     float64 `json:"CorrelationMatchingTimeWindow"`
	CorrelationMatchingDistanceWindow float64 `json:"CorrelationMatchingDistanceWindow"`
	CorrelationCancelAge              float64 `json:"CorrelationCancelAge"`

	// Distance cutoff.
	DistanceCutoffFactor     float64 `json:"DistanceCutoffFactor"`
	DistanceCutoffPercentage float64 `json:"DistanceCutoffPercentage"`
	MinDistanceCutoff        float64 `json:"MinDistanceCutoff"`

	// Viability / reporting.
	ReportingStackThreshold  float64 `json:"ReportingStackThreshold"`
	ReportingDataThreshold   int     `json:"ReportingDataThreshold"`
	NucleationStackThreshold float64 `json:"NucleationStackThreshold"`
	NucleationDataThreshold  int     `json:"NucleationDataThreshold"`

	// Grid / nucleation.
	NumStationsPerNode int     `json:"NumStationsPerNode"`
	MaxHypoDepthKm     float64 `json:"MaxHypoDepthKm"`

	// Capacity bounds.
	MaxNumPicks        int `json:"MaxNumPicks"`
	MaxNumPicksPerSite int `json:"MaxNumPicksPerSite"`
	MaxNumCorrelations int `json:"MaxNumCorrelations"`
	MaxNumHypos        int `json:"MaxNumHypos"`
	ProcessLimit       int `json:"ProcessLimit"`

	PickDuplicateTimeWindow float64 `json:"PickDuplicateTimeWindow"`

	// Merge.
	MergeOriginTimeWindowSec float64 `json:"MergeOriginTimeWindowSec"`
	MergeDistanceWindowDeg   float64 `json:"MergeDistanceWindowDeg"`
	MergeBonusFactor         float64 `json:"MergeBonusFactor"`

	// Locator.
	TestLocator       bool `json:"TestLocator"`
	MinimizeTTLocator bool `json:"MinimizeTTLocator"`

	// Graphics / debug dump.
	GraphicsOut       bool    `json:"GraphicsOut"`
	GraphicsOutFolder string  `json:"GraphicsOutFolder"`
	GraphicsStepKm    float64 `json:"GraphicsStepKm"`
	GraphicsSteps     int     `json:"GraphicsSteps"`

	// Worker / scheduling sizing.
	PickListWorkers    int `json:"PickListWorkers"`
	HypoListWorkers    int `json:"HypoListWorkers"`
	WebUpdateWorkers   int `json:"WebUpdateWorkers"`
	MaxQueueFactor     int `json:"MaxQueueFactor"`
	WorkerIdleSleepMs  int `json:"WorkerIdleSleepMs"`
	HeartbeatIntervalMs int `json:"HeartbeatIntervalMs"`
	HeartbeatTimeoutMs  int `json:"HeartbeatTimeoutMs"`
}

// DefaultConfig returns the tuning defaults used across the associator's
// own tests and example deployments.
func DefaultConfig() *Config {
	return &Config{
		BeamMatchingAzimuthWindow: 22.5,
		AssociationSDCutoff:       3.0,
		PruningSDCutoff:           3.0,
		PickAffinityExpFactor:     1.0,
		PickAssociationWindowSec:  2400.0,

		CorrelationMatchingTimeWindow:     60.0,
		CorrelationMatchingDistanceWindow: 1.0,
		CorrelationCancelAge:              900.0,

		DistanceCutoffFactor:     4.0,
		DistanceCutoffPercentage: 0.9,
		MinDistanceCutoff:        30.0,

		ReportingStackThreshold:  2.5,
		ReportingDataThreshold:   10,
		NucleationStackThreshold: 2.5,
		NucleationDataThreshold:  7,

		NumStationsPerNode: 24,
		MaxHypoDepthKm:     800.0,

		MaxNumPicks:        10000,
		MaxNumPicksPerSite: 200,
		MaxNumCorrelations: 1000,
		MaxNumHypos:        1000,
		ProcessLimit:       25,

		PickDuplicateTimeWindow: 2.5,

		MergeOriginTimeWindowSec: 30.0,
		MergeDistanceWindowDeg:   3.0,
		MergeBonusFactor:         0.1,

		TestLocator:       false,
		MinimizeTTLocator: false,

		GraphicsOut:       false,
		GraphicsOutFolder: "./graphics",
		GraphicsStepKm:    5.0,
		GraphicsSteps:     21,

		PickListWorkers:     4,
		HypoListWorkers:     4,
		WebUpdateWorkers:    2,
		MaxQueueFactor:      1000,
		WorkerIdleSleepMs:   50,
		HeartbeatIntervalMs: 1000,
		HeartbeatTimeoutMs:  15000,
	}
}

// Clone returns a deep copy suitable for mutate-then-CommitUpdate use.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// HeartbeatTimeoutDuration converts HeartbeatTimeoutMs to a time.Duration
// for liveness checks.
func (c *Config) HeartbeatTimeoutDuration() time.Duration {
	return time.Duration(c.HeartbeatTimeoutMs) * time.Millisecond
}

// globalConfigOwner holds the process-wide Config behind an atomic pointer
// so readers never block on a writer mid-reconfiguration.
type globalConfigOwner struct {
	mu  sync.Mutex // serializes concurrent BeginUpdate/CommitUpdate callers
	val atomic.Value
}

// GCO is the process-wide configuration handle.
var GCO = &globalConfigOwner{}

func init() {
	GCO.val.Store(DefaultConfig())
}

// Get returns the current configuration. Safe for concurrent use; never
// blocks on a writer.
func (g *globalConfigOwner) Get() *Config {
	return g.val.Load().(*Config)
}

// Put installs cfg as the current configuration.
func (g *globalConfigOwner) Put(cfg *Config) {
	g.val.Store(cfg)
}

// BeginUpdate takes the update lock and returns a clone to mutate; the
// caller must follow up with CommitUpdate or DiscardUpdate.
func (g *globalConfigOwner) BeginUpdate() *Config {
	g.mu.Lock()
	return g.Get().Clone()
}

// CommitUpdate installs cfg and releases the update lock taken by
// BeginUpdate.
func (g *globalConfigOwner) CommitUpdate(cfg *Config) {
	g.Put(cfg)
	g.mu.Unlock()
}

// DiscardUpdate releases the update lock taken by BeginUpdate without
// installing any change.
func (g *globalConfigOwner) DiscardUpdate() {
	g.mu.Unlock()
}

// LoadConfigJSON parses buf as a Config, starting from DefaultConfig so
// omitted fields keep their defaults.
func LoadConfigJSON(buf []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(buf, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
