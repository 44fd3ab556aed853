package facematch

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/database/mock"
)

var (
	unknownFace = []float32{0, 0}
	near        = []float32{0.1, 0}
	far         = []float32{5, 5}
)

// encodings builds a list with the given number of matching and non-matching vectors.
func encodings(matching, total int) [][]float32 {
	out := make([][]float32, 0, total)
	for i := range total {
		if i < matching {
			out = append(out, near)
		} else {
			out = append(out, far)
		}
	}
	return out
}

func enroll(t *testing.T, store *mock.MockStore, encs [][]float32) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	e := &database.Employee{FirstName: "Test", SecondName: "Person"}
	if err := store.CreateEmployee(ctx, e); err != nil {
		t.Fatalf("CreateEmployee() error = %v", err)
	}
	if err := store.ReplaceEncodings(ctx, e.ID, encs); err != nil {
		t.Fatalf("ReplaceEncodings() error = %v", err)
	}
	return e.ID
}

func matchConfig(policy, index string, threshold float64) config.MatchConfig {
	return config.MatchConfig{
		Distance:        database.DistanceEuclidean,
		Cutoff:          0.6,
		Threshold:       threshold,
		Policy:          policy,
		Index:           index,
		IndexCandidates: 50,
	}
}

func newTestMatcher(t *testing.T, store *mock.MockStore, cfg config.MatchConfig) *Matcher {
	t.Helper()
	m, err := NewMatcher(store, cfg)
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}
	return m
}

func TestMatchFraction(t *testing.T) {
	tests := []struct {
		name     string
		encs     [][]float32
		expected float64
	}{
		{"all match", encodings(4, 4), 1},
		{"half match", encodings(2, 4), 0.5},
		{"none match", encodings(0, 3), 0},
		{"no encodings", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchFraction(database.EuclideanDistance, unknownFace, tt.encs, 0.6)
			if got != tt.expected {
				t.Errorf("MatchFraction() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMatchFraction_CutoffInclusive(t *testing.T) {
	got := MatchFraction(database.EuclideanDistance, unknownFace, [][]float32{{0.5, 0}, {0.75, 0}}, 0.5)
	if got != 0.5 {
		t.Errorf("MatchFraction() = %v, want 0.5", got)
	}
}

func TestMatchFraction_Monotonic(t *testing.T) {
	encs := encodings(1, 4)
	before := MatchFraction(database.EuclideanDistance, unknownFace, encs, 0.6)
	encs = append(encs, near)
	after := MatchFraction(database.EuclideanDistance, unknownFace, encs, 0.6)
	if after < before {
		t.Errorf("adding a matching encoding lowered the fraction: %v -> %v", before, after)
	}
}

func TestIdentify_FirstQualifyingWins(t *testing.T) {
	store := mock.NewMockStore()
	a := enroll(t, store, encodings(9, 10))  // 0.90
	b := enroll(t, store, encodings(19, 20)) // 0.95

	got, err := newTestMatcher(t, store, matchConfig(PolicyFirst, IndexNone, 0.8)).Identify(context.Background(), unknownFace)
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if got != a {
		t.Errorf("expected first qualifying identity %s, got %s (b=%s)", a, got, b)
	}
}

func TestIdentify_BestPolicy(t *testing.T) {
	store := mock.NewMockStore()
	enroll(t, store, encodings(9, 10))
	b := enroll(t, store, encodings(19, 20))
	enroll(t, store, encodings(19, 20)) // same score, enrolled later

	got, err := newTestMatcher(t, store, matchConfig(PolicyBest, IndexNone, 0.8)).Identify(context.Background(), unknownFace)
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if got != b {
		t.Errorf("expected best identity %s, got %s", b, got)
	}
}

func TestIdentify_ThresholdIsExclusive(t *testing.T) {
	store := mock.NewMockStore()
	enroll(t, store, encodings(1, 2)) // exactly 0.5

	_, err := newTestMatcher(t, store, matchConfig(PolicyFirst, IndexNone, 0.5)).Identify(context.Background(), unknownFace)
	if !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestIdentify_SkipsEmptyIdentities(t *testing.T) {
	store := mock.NewMockStore()
	enroll(t, store, nil)
	want := enroll(t, store, encodings(1, 1))

	got, err := newTestMatcher(t, store, matchConfig(PolicyFirst, IndexNone, 0)).Identify(context.Background(), unknownFace)
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestIdentify_EmptyCatalog(t *testing.T) {
	_, err := newTestMatcher(t, mock.NewMockStore(), matchConfig(PolicyFirst, IndexNone, 0.5)).Identify(context.Background(), unknownFace)
	if !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestIdentify_CatalogError(t *testing.T) {
	store := mock.NewMockStore()
	store.BiometricsError = errors.New("connection reset")

	_, err := newTestMatcher(t, store, matchConfig(PolicyFirst, IndexNone, 0.5)).Identify(context.Background(), unknownFace)
	if err == nil || errors.Is(err, ErrMatchNotFound) {
		t.Errorf("expected storage error to propagate, got %v", err)
	}
}

func TestIdentify_WithHNSWIndex(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockStore()
	enroll(t, store, encodings(0, 3))
	m := newTestMatcher(t, store, matchConfig(PolicyFirst, IndexHNSW, 0.5))

	if _, err := m.Identify(ctx, unknownFace); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound before enrollment, got %v", err)
	}

	want := enroll(t, store, encodings(3, 3))
	m.Invalidate()

	got, err := m.Identify(ctx, unknownFace)
	if err != nil {
		t.Fatalf("Identify() after invalidate error = %v", err)
	}
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestIdentify_ReplacedIdentityScansLast(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockStore()
	a := enroll(t, store, encodings(3, 3))
	b := enroll(t, store, encodings(3, 3))
	m := newTestMatcher(t, store, matchConfig(PolicyFirst, IndexNone, 0.5))

	if got, _ := m.Identify(ctx, unknownFace); got != a {
		t.Fatalf("expected first enrolled identity %s, got %s", a, got)
	}
	if err := store.ReplaceEncodings(ctx, a, encodings(2, 2)); err != nil {
		t.Fatalf("ReplaceEncodings() error = %v", err)
	}
	if got, _ := m.Identify(ctx, unknownFace); got != b {
		t.Errorf("expected %s to lead after replacing %s, got %s", b, a, got)
	}
}

func TestIdentify_DimensionMismatch(t *testing.T) {
	for _, index := range []string{IndexNone, IndexHNSW} {
		t.Run(index, func(t *testing.T) {
			store := mock.NewMockStore()
			enroll(t, store, [][]float32{{0, 0, 0, 0}})
			m := newTestMatcher(t, store, matchConfig(PolicyFirst, index, 0.5))

			if _, err := m.Identify(context.Background(), []float32{0, 0, 0}); !errors.Is(err, ErrMatchNotFound) {
				t.Errorf("expected ErrMatchNotFound, got %v", err)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockStore()
	good := enroll(t, store, encodings(3, 4))
	bad := enroll(t, store, encodings(1, 4))
	m := newTestMatcher(t, store, matchConfig(PolicyFirst, IndexNone, 0.5))

	tests := []struct {
		name     string
		id       uuid.UUID
		expected bool
	}{
		{"matching identity", good, true},
		{"non-matching identity", bad, false},
		{"unknown identity", uuid.New(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Verify(ctx, unknownFace, tt.id)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("Verify() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewMatcher_InvalidConfig(t *testing.T) {
	store := mock.NewMockStore()
	tests := []struct {
		name string
		cfg  config.MatchConfig
	}{
		{"unknown distance", config.MatchConfig{Distance: "manhattan"}},
		{"unknown policy", config.MatchConfig{Distance: "cosine", Policy: "random"}},
		{"unknown index", config.MatchConfig{Distance: "cosine", Index: "faiss"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMatcher(store, tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
