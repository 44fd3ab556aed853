// Package biometrics owns the enrollment and recognition flows: it turns
// photos into embeddings, persists them and asks the matcher about them.
package biometrics

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/facematch"
)

var (
	// ErrEmployeeNotFound is returned when the target employee does not exist.
	ErrEmployeeNotFound = errors.New("employee not found")
	// ErrNoPhotos is returned when an enrollment carries no photos.
	ErrNoPhotos = errors.New("at least one photo is required")
	// ErrTooManyPhotos is returned when an enrollment exceeds MaxPhotosPerEnrollment.
	ErrTooManyPhotos = errors.New("too many photos")
)

// Extractor turns a photo into a face embedding.
type Extractor interface {
	Extract(ctx context.Context, imageData []byte, quality string) ([]float32, error)
}

// Store is the storage used by the service.
type Store interface {
	database.EmployeeStore
	database.BiometricStore
}

// ProgressInfo reports extraction progress of a multi-photo enrollment.
type ProgressInfo struct {
	Current int
	Total   int
}

// Service implements enrollment, identification and verification.
type Service struct {
	store     Store
	extractor Extractor
	matcher   *facematch.Matcher
	quality   string
	workers   int

	// OnProgress, when set, is called after every extracted photo.
	OnProgress func(ProgressInfo)
}

// NewService creates the biometrics service. quality is passed to the extractor.
func NewService(store Store, extractor Extractor, matcher *facematch.Matcher, quality string) *Service {
	return &Service{
		store:     store,
		extractor: extractor,
		matcher:   matcher,
		quality:   quality,
		workers:   constants.WorkerPoolSize,
	}
}

// Enroll extracts every photo and appends the embeddings to the employee's record.
// Nothing is written unless all photos yield an embedding.
func (s *Service) Enroll(ctx context.Context, employeeID uuid.UUID, photos [][]byte) error {
	return s.enroll(ctx, employeeID, photos, false)
}

// Replace is like Enroll but discards the previously enrolled embeddings.
func (s *Service) Replace(ctx context.Context, employeeID uuid.UUID, photos [][]byte) error {
	return s.enroll(ctx, employeeID, photos, true)
}

func (s *Service) enroll(ctx context.Context, employeeID uuid.UUID, photos [][]byte, replace bool) error {
	if len(photos) == 0 {
		return ErrNoPhotos
	}
	if len(photos) > constants.MaxPhotosPerEnrollment {
		return fmt.Errorf("%w: %d, maximum is %d", ErrTooManyPhotos, len(photos), constants.MaxPhotosPerEnrollment)
	}
	if err := s.requireEmployee(ctx, employeeID); err != nil {
		return err
	}

	encodings, err := s.extractAll(ctx, photos)
	if err != nil {
		return err
	}

	if replace {
		err = s.store.ReplaceEncodings(ctx, employeeID, encodings)
	} else {
		err = s.store.AppendEncodings(ctx, employeeID, encodings)
	}
	if errors.Is(err, database.ErrNotFound) {
		return ErrEmployeeNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to save encodings: %w", err)
	}

	s.matcher.Invalidate()
	return nil
}

// Reset deletes the employee's biometric record.
func (s *Service) Reset(ctx context.Context, employeeID uuid.UUID) error {
	if err := s.requireEmployee(ctx, employeeID); err != nil {
		return err
	}
	if err := s.store.DeleteBiometric(ctx, employeeID); err != nil {
		return fmt.Errorf("failed to delete biometric record: %w", err)
	}
	s.matcher.Invalidate()
	return nil
}

// RemoveEmployee deletes the employee together with its biometric record.
func (s *Service) RemoveEmployee(ctx context.Context, employeeID uuid.UUID) error {
	err := s.store.DeleteEmployee(ctx, employeeID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrEmployeeNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}
	s.matcher.Invalidate()
	return nil
}

// Identify returns the employee shown on the photo. Extraction errors are
// returned unchanged; facematch.ErrMatchNotFound means nobody matched.
func (s *Service) Identify(ctx context.Context, photo []byte) (uuid.UUID, error) {
	embedding, err := s.extractor.Extract(ctx, photo, s.quality)
	if err != nil {
		return uuid.Nil, err
	}
	return s.matcher.Identify(ctx, embedding)
}

// Verify reports whether the photo shows the given employee.
func (s *Service) Verify(ctx context.Context, employeeID uuid.UUID, photo []byte) (bool, error) {
	if err := s.requireEmployee(ctx, employeeID); err != nil {
		return false, err
	}
	embedding, err := s.extractor.Extract(ctx, photo, s.quality)
	if err != nil {
		return false, err
	}
	return s.matcher.Verify(ctx, embedding, employeeID)
}

func (s *Service) requireEmployee(ctx context.Context, employeeID uuid.UUID) error {
	_, err := s.store.GetEmployee(ctx, employeeID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrEmployeeNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get employee: %w", err)
	}
	return nil
}

type extractResult struct {
	index     int
	embedding []float32
	err       error
}

// extractAll runs the extractor over photos with bounded concurrency.
// The result keeps photo order. The first failure cancels the remaining work;
// the error of the lowest failing photo is returned.
func (s *Service) extractAll(ctx context.Context, photos [][]byte) ([][]float32, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan extractResult, len(photos))
	semaphore := make(chan struct{}, max(s.workers, 1))
	var wg sync.WaitGroup

	for i, photo := range photos {
		wg.Add(1)
		go func() {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				results <- extractResult{index: i, err: ctx.Err()}
				return
			}

			embedding, err := s.extractor.Extract(ctx, photo, s.quality)
			if err != nil {
				cancel()
				results <- extractResult{index: i, err: fmt.Errorf("photo %d: %w", i+1, err)}
				return
			}
			results <- extractResult{index: i, embedding: embedding}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	encodings := make([][]float32, len(photos))
	errs := make([]error, len(photos))
	done := 0
	for r := range results {
		if r.err != nil {
			errs[r.index] = r.err
			continue
		}
		encodings[r.index] = r.embedding
		done++
		if s.OnProgress != nil {
			s.OnProgress(ProgressInfo{Current: done, Total: len(photos)})
		}
	}

	// Cancellations caused by another failure must not hide the real cause.
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			if canceled == nil {
				canceled = err
			}
			continue
		}
		return nil, err
	}
	if canceled != nil {
		return nil, canceled
	}
	return encodings, nil
}
