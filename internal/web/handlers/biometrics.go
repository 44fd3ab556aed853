package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/kozaktomas/face-auth/internal/biometrics"
	"github.com/kozaktomas/face-auth/internal/constants"
)

// BiometricsHandler handles enrollment and recognition endpoints
type BiometricsHandler struct {
	service *biometrics.Service
}

// NewBiometricsHandler creates a new biometrics handler
func NewBiometricsHandler(svc *biometrics.Service) *BiometricsHandler {
	return &BiometricsHandler{service: svc}
}

// readUploadedFiles reads every file of a multipart field into memory.
func readUploadedFiles(files []*multipart.FileHeader) ([][]byte, error) {
	out := make([][]byte, 0, len(files))
	for _, fileHeader := range files {
		data, err := func() ([]byte, error) {
			file, err := fileHeader.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open file: %s", fileHeader.Filename)
			}
			defer file.Close()
			return io.ReadAll(file)
		}()
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// parsePhotos parses the multipart form and returns the files of field.
// It answers 400 itself when the form is unusable or the field is empty.
func parsePhotos(w http.ResponseWriter, r *http.Request, field string) ([][]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("no files provided in %q", field))
		return nil, false
	}

	photos, err := readUploadedFiles(files)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return photos, true
}

func (h *BiometricsHandler) enroll(w http.ResponseWriter, r *http.Request, replace bool) {
	id, ok := employeeIDParam(w, r)
	if !ok {
		return
	}
	photos, ok := parsePhotos(w, r, "photos")
	if !ok {
		return
	}

	var err error
	if replace {
		err = h.service.Replace(r.Context(), id, photos)
	} else {
		err = h.service.Enroll(r.Context(), id, photos)
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, idResponse{ID: id.String()})
}

// Enroll appends the embeddings of the uploaded photos to the employee's record.
func (h *BiometricsHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	h.enroll(w, r, false)
}

// Replace swaps the employee's enrolled embeddings for those of the uploaded photos.
func (h *BiometricsHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.enroll(w, r, true)
}

// Reset deletes the employee's biometric record.
func (h *BiometricsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Reset(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, idResponse{ID: id.String()})
}

// VerifyResponse is the result of a one-to-one check.
type VerifyResponse struct {
	ID       string `json:"_id"`
	Verified bool   `json:"verified"`
}

// Verify checks whether the uploaded photo shows the employee.
func (h *BiometricsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeIDParam(w, r)
	if !ok {
		return
	}
	photos, ok := parsePhotos(w, r, "photo")
	if !ok {
		return
	}

	verified, err := h.service.Verify(r.Context(), id, photos[0])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, VerifyResponse{ID: id.String(), Verified: verified})
}

// Identify returns the employee shown on the uploaded photo.
func (h *BiometricsHandler) Identify(w http.ResponseWriter, r *http.Request) {
	photos, ok := parsePhotos(w, r, "photo")
	if !ok {
		return
	}

	id, err := h.service.Identify(r.Context(), photos[0])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, idResponse{ID: id.String()})
}
