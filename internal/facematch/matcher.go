// Package facematch decides which enrolled employee, if any, a face embedding belongs to.
package facematch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
)

// ErrMatchNotFound is returned when no enrolled identity clears the threshold.
var ErrMatchNotFound = errors.New("no matching employee found")

// Decision policies.
const (
	// PolicyFirst returns the first identity, in enrollment order, above the threshold.
	PolicyFirst = "first"
	// PolicyBest scans every identity and returns the highest fraction above the threshold.
	PolicyBest = "best"
)

// Index modes.
const (
	IndexNone = "none"
	IndexHNSW = "hnsw"
)

// Catalog is the read side of the biometric store used by the matcher.
type Catalog interface {
	Biometrics(ctx context.Context) iter.Seq2[database.Biometric, error]
	GetBiometric(ctx context.Context, employeeID uuid.UUID) (*database.Biometric, error)
}

// Matcher compares an unknown embedding with every enrolled identity.
type Matcher struct {
	catalog   Catalog
	distance  database.DistanceFunc
	cutoff    float64
	threshold float64
	policy    string

	// Optional candidate index, rebuilt lazily after Invalidate.
	index      *database.HNSWIndex
	candidates int
	stale      atomic.Bool
	rebuildMu  sync.Mutex
}

// NewMatcher creates a matcher over the catalog using the match configuration.
func NewMatcher(catalog Catalog, cfg config.MatchConfig) (*Matcher, error) {
	distance, err := database.DistanceByName(cfg.Distance)
	if err != nil {
		return nil, err
	}

	m := &Matcher{
		catalog:    catalog,
		distance:   distance,
		cutoff:     cfg.Cutoff,
		threshold:  cfg.Threshold,
		policy:     cfg.Policy,
		candidates: cfg.IndexCandidates,
	}

	switch m.policy {
	case "":
		m.policy = PolicyFirst
	case PolicyFirst, PolicyBest:
	default:
		return nil, fmt.Errorf("unknown match policy %q", cfg.Policy)
	}

	switch cfg.Index {
	case "", IndexNone:
	case IndexHNSW:
		if m.index, err = database.NewHNSWIndex(cfg.Distance); err != nil {
			return nil, err
		}
		if m.candidates <= 0 {
			m.candidates = database.HNSWEfSearch
		}
		m.stale.Store(true)
	default:
		return nil, fmt.Errorf("unknown match index %q", cfg.Index)
	}

	return m, nil
}

// MatchFraction returns the share of stored encodings within cutoff of unknown.
// An identity without encodings has fraction 0.
func MatchFraction(distance database.DistanceFunc, unknown []float32, encodings [][]float32, cutoff float64) float64 {
	if len(encodings) == 0 {
		return 0
	}
	matched := 0
	for _, enc := range encodings {
		if distance(unknown, enc) <= cutoff {
			matched++
		}
	}
	return float64(matched) / float64(len(encodings))
}

// Identify returns the employee the embedding belongs to, or ErrMatchNotFound.
func (m *Matcher) Identify(ctx context.Context, unknown []float32) (uuid.UUID, error) {
	candidates, err := m.candidateSet(ctx, unknown)
	if err != nil {
		return uuid.Nil, err
	}

	var (
		best      uuid.UUID
		bestScore float64
		found     bool
	)
	for rec, err := range m.catalog.Biometrics(ctx) {
		if err != nil {
			return uuid.Nil, fmt.Errorf("scan biometric catalog: %w", err)
		}
		if candidates != nil {
			if _, ok := candidates[rec.EmployeeID]; !ok {
				continue
			}
		}
		if len(rec.Encodings) == 0 {
			continue
		}

		score := MatchFraction(m.distance, unknown, rec.Encodings, m.cutoff)
		if score <= m.threshold {
			continue
		}
		if m.policy == PolicyFirst {
			return rec.EmployeeID, nil
		}
		if !found || score > bestScore {
			best, bestScore, found = rec.EmployeeID, score, true
		}
	}

	if !found {
		return uuid.Nil, ErrMatchNotFound
	}
	return best, nil
}

// Verify reports whether the embedding matches the claimed employee.
// An unknown or unenrolled employee never matches.
func (m *Matcher) Verify(ctx context.Context, unknown []float32, employeeID uuid.UUID) (bool, error) {
	rec, err := m.catalog.GetBiometric(ctx, employeeID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get biometric: %w", err)
	}
	return MatchFraction(m.distance, unknown, rec.Encodings, m.cutoff) > m.threshold, nil
}

// Invalidate marks the candidate index as outdated after an enrollment change.
func (m *Matcher) Invalidate() {
	if m.index != nil {
		m.stale.Store(true)
	}
}

// candidateSet returns the identities owning an indexed encoding within the
// cutoff, or nil when no index is configured.
func (m *Matcher) candidateSet(ctx context.Context, unknown []float32) (map[uuid.UUID]struct{}, error) {
	if m.index == nil {
		return nil, nil
	}
	if err := m.rebuildIfStale(ctx); err != nil {
		return nil, err
	}

	hits, err := m.index.Search(unknown, m.candidates)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	set := make(map[uuid.UUID]struct{}, len(hits))
	for _, hit := range hits {
		if hit.Distance <= m.cutoff {
			set[hit.EmployeeID] = struct{}{}
		}
	}
	return set, nil
}

func (m *Matcher) rebuildIfStale(ctx context.Context) error {
	if !m.stale.Load() {
		return nil
	}
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()
	if !m.stale.Load() {
		return nil
	}

	// Clear the flag first so an enrollment racing with the scan marks it stale again.
	m.stale.Store(false)
	var records []database.Biometric
	for rec, err := range m.catalog.Biometrics(ctx) {
		if err != nil {
			m.stale.Store(true)
			return fmt.Errorf("load biometric catalog: %w", err)
		}
		records = append(records, rec)
	}
	m.index.Build(records)
	log.Printf("facematch: rebuilt HNSW index with %d encodings from %d identities", m.index.Count(), len(records))
	return nil
}
