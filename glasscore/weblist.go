package glasscore

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// WebList is the registry of live Webs: a name-keyed map guarded by its
// own lock, with dynamic-update fan-out run on a bounded worker pool
// rather than inline on the ingress goroutine.
type WebList struct {
	mu   sync.RWMutex
	webs map[string]*Web

	updateWorkers int
}

// NewWebList builds an empty registry.
func NewWebList(updateWorkers int) *WebList {
	if updateWorkers <= 0 {
		updateWorkers = 1
	}
	return &WebList{webs: map[string]*Web{}, updateWorkers: updateWorkers}
}

// Add registers (or replaces) a Web.
func (wl *WebList) Add(w *Web) {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	wl.webs[w.Name] = w
}

// Remove destroys the named Web.
func (wl *WebList) Remove(name string) bool {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	if _, ok := wl.webs[name]; !ok {
		return false
	}
	delete(wl.webs, name)
	return true
}

// Get returns the named Web, or nil.
func (wl *WebList) Get(name string) *Web {
	wl.mu.RLock()
	defer wl.mu.RUnlock()
	return wl.webs[name]
}

// All returns a snapshot of every registered Web.
func (wl *WebList) All() []*Web {
	wl.mu.RLock()
	defer wl.mu.RUnlock()
	out := make([]*Web, 0, len(wl.webs))
	for _, w := range wl.webs {
		out = append(out, w)
	}
	return out
}

// OnSiteAdded fans a newly enabled/added site out to every update-enabled
// Web concurrently, bounded by updateWorkers.
func (wl *WebList) OnSiteAdded(s *Site, allSites []*Site) {
	wl.fanOut(func(w *Web) { w.OnSiteAdded(s, allSites) })
}

// OnSiteRemoved fans a disabled/removed site out to every update-enabled
// Web concurrently, bounded by updateWorkers.
func (wl *WebList) OnSiteRemoved(s *Site, allSites []*Site) {
	wl.fanOut(func(w *Web) { w.OnSiteRemoved(s, allSites) })
}

func (wl *WebList) fanOut(fn func(*Web)) {
	webs := wl.All()
	if len(webs) == 0 {
		return
	}
	var g errgroup.Group
	sem := make(chan struct{}, wl.updateWorkers)
	for _, w := range webs {
		w := w
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			fn(w)
			return nil
		})
	}
	_ = g.Wait()
}
