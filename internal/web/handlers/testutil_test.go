package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/kozaktomas/face-auth/internal/biometrics"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/database/mock"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/fingerprint"
)

// widthDetector returns the faces registered for the width of the uploaded image.
type widthDetector struct {
	faces map[int][]fingerprint.FaceDetection
	err   error
	delay time.Duration
}

func (d *widthDetector) DetectFaces(ctx context.Context, imageData []byte, quality string) (*fingerprint.FaceResponse, error) {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, err
	}
	faces := d.faces[cfg.Width]
	return &fingerprint.FaceResponse{FacesCount: len(faces), Faces: faces}, nil
}

// testEnv wires the real services over the in-memory store.
type testEnv struct {
	store    *mock.MockStore
	auth     *auth.Service
	bio      *biometrics.Service
	detector *widthDetector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := mock.NewMockStore()

	hasher, err := auth.NewHasher(config.PasswordConfig{HashFunction: "sha256", GlobalSalt: "salt", Iterations: 10})
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	authority, err := auth.NewAuthority(config.JWTConfig{
		Secret:          "handler-secret",
		Algorithm:       "HS256",
		AccessLifespan:  config.Lifespan{Minutes: 30},
		RefreshLifespan: config.Lifespan{Days: 7},
	})
	if err != nil {
		t.Fatalf("NewAuthority() error = %v", err)
	}
	authSvc := auth.NewService(store, hasher, authority)
	if err := authSvc.Provision(context.Background(), []config.Client{{Login: "gate", Password: "open-sesame"}}, false); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	detector := &widthDetector{faces: map[int][]fingerprint.FaceDetection{
		10: {{Embedding: []float32{0, 0}, BBox: []float64{0, 0, 5, 5}}},
		20: {{Embedding: []float32{4, 4}, BBox: []float64{0, 0, 5, 5}}},
		30: {{Embedding: []float32{9, 9}, BBox: []float64{0, 0, 5, 5}}},
	}}
	matcher, err := facematch.NewMatcher(store, config.MatchConfig{
		Distance:  database.DistanceEuclidean,
		Cutoff:    0.6,
		Threshold: 0.5,
		Policy:    facematch.PolicyFirst,
	})
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}
	extractor := fingerprint.NewExtractor(detector, 2, 200*time.Millisecond)

	return &testEnv{
		store:    store,
		auth:     authSvc,
		bio:      biometrics.NewService(store, extractor, matcher, config.QualityAccurate),
		detector: detector,
	}
}

// createEmployee stores an employee directly and returns it.
func (e *testEnv) createEmployee(t *testing.T, first, second string) *database.Employee {
	t.Helper()
	emp := &database.Employee{FirstName: first, SecondName: second}
	if err := e.store.CreateEmployee(context.Background(), emp); err != nil {
		t.Fatalf("CreateEmployee() error = %v", err)
	}
	return emp
}

// testPhoto renders a PNG whose width selects the detector answer.
func testPhoto(t *testing.T, width int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, 3))
	for x := range width {
		img.Set(x, 1, color.RGBA{G: uint8(10 * x), A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// multipartRequest builds a request uploading files under field.
func multipartRequest(t *testing.T, method, path, field string, files ...[]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for i, data := range files {
		part, err := mw.CreateFormFile(field, "photo"+string(rune('a'+i))+".png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
