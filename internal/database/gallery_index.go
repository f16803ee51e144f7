package database

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/lost-trace/internal/facematch"
)

// GalleryIndex wraps an HNSW graph over report signatures.
// It only preselects candidates; callers rank the candidates exactly with facematch.Rank.
type GalleryIndex struct {
	graph      *hnsw.Graph[string]
	signatures map[string]facematch.Signature // Live entries, keyed by report id
	mu         sync.RWMutex
}

// NewGalleryIndex creates a new empty gallery index.
func NewGalleryIndex() *GalleryIndex {
	return &GalleryIndex{
		signatures: make(map[string]facematch.Signature),
	}
}

func newGalleryGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Rebuild replaces the index content with the comparable signatures of reports.
func (g *GalleryIndex) Rebuild(reports []Report) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.graph = nil
	g.signatures = make(map[string]facematch.Signature, len(reports))

	for i := range reports {
		r := &reports[i]
		if !r.HasSignature() {
			continue
		}
		if g.graph == nil {
			g.graph = newGalleryGraph()
		}
		sig := append(facematch.Signature(nil), r.Signature...)
		g.graph.Add(hnsw.MakeNode(r.ID, []float32(sig)))
		g.signatures[r.ID] = sig
	}
}

// Add indexes a single report. Reports without a comparable signature are ignored.
func (g *GalleryIndex) Add(id string, signature facematch.Signature) {
	if !signature.Valid() {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.graph == nil {
		g.graph = newGalleryGraph()
	}
	sig := append(facematch.Signature(nil), signature...)
	g.graph.Add(hnsw.MakeNode(id, []float32(sig)))
	g.signatures[id] = sig
}

// Delete removes a report from search results.
func (g *GalleryIndex) Delete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.signatures, id)
	// Note: the graph node stays; Search filters by the live map.
}

// Candidates returns up to limit entries near probe, excluding excludeID.
// The result is unordered with respect to exact distance.
func (g *GalleryIndex) Candidates(probe facematch.Signature, limit int, excludeID string) []facematch.GalleryEntry {
	if !probe.Valid() || limit <= 0 {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.graph == nil || len(g.signatures) == 0 {
		return nil
	}

	k := limit * HNSWSearchMultiplier
	if k > g.graph.Len() {
		k = g.graph.Len()
	}

	neighbors := g.graph.Search([]float32(probe), k)
	entries := make([]facematch.GalleryEntry, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Key == excludeID {
			continue
		}
		sig, ok := g.signatures[n.Key]
		if !ok {
			continue
		}
		entries = append(entries, facematch.GalleryEntry{ID: n.Key, Signature: sig})
		if len(entries) == limit {
			break
		}
	}
	return entries
}

// Count returns the number of indexed reports.
func (g *GalleryIndex) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.signatures)
}
