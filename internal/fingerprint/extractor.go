// Package fingerprint turns a photo into the face embedding used for recognition.
package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/facematch"
)

var (
	// ErrNoFaceDetected is returned when the photo contains no face.
	ErrNoFaceDetected = errors.New("there is no face in the photo")
	// ErrInvalidImage is returned when the bytes cannot be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrBadEmbedding is returned when the detector returns an unusable embedding.
	ErrBadEmbedding = errors.New("bad embedding")
)

// Extractor produces one embedding per photo.
type Extractor struct {
	detector  FaceDetector
	dim       int
	timeout   time.Duration
	maxSize   int
	maxPixels int
	prepare   func(data []byte, maxSize, maxPixels int) ([]byte, error)
}

// NewExtractor creates an extractor on top of a face detector.
// dim is the expected embedding length, 0 disables the check.
// A zero timeout disables the per-call deadline.
func NewExtractor(detector FaceDetector, dim int, timeout time.Duration) *Extractor {
	return &Extractor{
		detector:  detector,
		dim:       dim,
		timeout:   timeout,
		maxSize:   constants.MaxImageSize,
		maxPixels: constants.MaxImagePixels,
		prepare:   prepareImage,
	}
}

// Extract returns the embedding of the largest face in the photo.
// If several faces have the same largest area, the first one reported by the detector wins.
func (e *Extractor) Extract(ctx context.Context, imageData []byte, quality string) ([]float32, error) {
	switch quality {
	case "":
		quality = config.QualityAccurate
	case config.QualityFast, config.QualityAccurate:
	default:
		return nil, fmt.Errorf("unsupported quality %q", quality)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	prepared, err := e.prepareWithin(ctx, imageData)
	if err != nil {
		return nil, err
	}

	resp, err := e.detector.DetectFaces(ctx, prepared, quality)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	if len(resp.Faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	idx := facematch.LargestBox(resp.Boxes())
	if idx < 0 {
		return nil, fmt.Errorf("%w: no valid bounding box", ErrBadEmbedding)
	}
	embedding := resp.Faces[idx].Embedding
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrBadEmbedding)
	}
	if e.dim > 0 && len(embedding) != e.dim {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", ErrBadEmbedding, e.dim, len(embedding))
	}

	return embedding, nil
}

// prepareWithin decodes and downscales the photo, giving up when ctx is done.
// An abandoned decode finishes in the background and its result is dropped.
func (e *Extractor) prepareWithin(ctx context.Context, imageData []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("prepare image: %w", err)
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := e.prepare(imageData, e.maxSize, e.maxPixels)
		done <- result{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("prepare image: %w", ctx.Err())
	}
}
