package database

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
)

// IndexHit is a stored encoding returned by an index search.
type IndexHit struct {
	EmployeeID uuid.UUID
	Distance   float64
}

// HNSWIndex wraps the HNSW graph for searching enrolled face encodings.
// Every encoding of every biometric record becomes one node; the node key
// maps back to the owning employee.
type HNSWIndex struct {
	graph    *hnsw.Graph[int64]
	owners   map[int64]uuid.UUID // Maps HNSW node ID to employee
	dim      int                 // Length of every indexed encoding
	distance DistanceFunc
	metric   string
	mu       sync.RWMutex
}

// NewHNSWIndex creates a new empty HNSW index using the named distance metric.
func NewHNSWIndex(metric string) (*HNSWIndex, error) {
	fn, err := DistanceByName(metric)
	if err != nil {
		return nil, err
	}
	return &HNSWIndex{
		owners:   make(map[int64]uuid.UUID),
		distance: fn,
		metric:   metric,
	}, nil
}

func (h *HNSWIndex) newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	if h.metric == DistanceCosine {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}
	return g
}

// Build replaces the index content with the encodings of the given records.
// Encodings whose length differs from the first indexed one are skipped.
func (h *HNSWIndex) Build(records []Biometric) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.dim = 0
	h.owners = make(map[int64]uuid.UUID)

	var (
		g   *hnsw.Graph[int64]
		dim int
		key int64
	)
	for _, rec := range records {
		for _, enc := range rec.Encodings {
			if len(enc) == 0 {
				continue
			}
			if g == nil {
				g = h.newGraph()
				dim = len(enc)
			}
			if len(enc) != dim {
				continue
			}
			g.Add(hnsw.MakeNode(key, enc))
			h.owners[key] = rec.EmployeeID
			key++
		}
	}
	h.graph = g
	h.dim = dim
}

// Search finds the k nearest stored encodings to the query.
// Distances are recomputed with the index's own distance function.
// A query whose length differs from the indexed encodings has no neighbours.
func (h *HNSWIndex) Search(query []float32, k int) ([]IndexHit, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if k <= 0 {
		return nil, errors.New("k must be positive")
	}
	if h.graph == nil || len(query) != h.dim {
		return nil, nil
	}

	neighbors := h.graph.Search(query, k)
	hits := make([]IndexHit, 0, len(neighbors))
	for _, n := range neighbors {
		owner, ok := h.owners[n.Key]
		if !ok {
			continue
		}
		hits = append(hits, IndexHit{EmployeeID: owner, Distance: h.distance(query, n.Value)})
	}
	return hits, nil
}

// Count returns the number of indexed encodings.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.owners)
}
