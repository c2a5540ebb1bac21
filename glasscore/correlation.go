package glasscore

import (
	"sync"
	"time"
)

// Correlation is a waveform cross-correlation "mini-hypocenter" datum: it
// plays the same graph role as a Pick (a single weak hypo back-reference,
// owned by whichever list currently holds it) but additionally carries a
// candidate location/origin-time/correlation-value.
type Correlation struct {
	mu sync.RWMutex

	ID   string
	Site *Site
	Time float64

	Phase string

	CandidateLat   float64
	CandidateLon   float64
	CandidateDepth float64
	CandidateTime  float64
	CorrelationVal float64

	CreatedAt     time.Time
	currentHypoID string
}

// NewCorrelation builds a Correlation with no hypo association yet.
func NewCorrelation(id string, site *Site, t float64, phase string, lat, lon, depth, originTime, corrVal float64) *Correlation {
	return &Correlation{
		ID:             id,
		Site:           site,
		Time:           t,
		Phase:          phase,
		CandidateLat:   lat,
		CandidateLon:   lon,
		CandidateDepth: depth,
		CandidateTime:  originTime,
		CorrelationVal: corrVal,
		CreatedAt:      time.Now(),
	}
}

// CurrentHypoID returns the ID of the Hypo this correlation currently
// believes it belongs to, or "" if unassociated.
func (c *Correlation) CurrentHypoID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentHypoID
}

// SetCurrentHypoID updates the weak hypo back-reference.
func (c *Correlation) SetCurrentHypoID(id string) {
	c.mu.Lock()
	c.currentHypoID = id
	c.mu.Unlock()
}
