package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/kozaktomas/face-auth/internal/biometrics"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/fingerprint"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps a service error to its HTTP status and client message.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "incorrect login or password"
	case auth.IsTokenError(err):
		return http.StatusUnauthorized, "could not validate credentials"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "face extraction timed out"
	case errors.Is(err, fingerprint.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity, fingerprint.ErrNoFaceDetected.Error()
	case errors.Is(err, fingerprint.ErrInvalidImage):
		return http.StatusBadRequest, "the uploaded file is not a supported image"
	case errors.Is(err, fingerprint.ErrEmbeddingServer), errors.Is(err, fingerprint.ErrBadEmbedding):
		return http.StatusBadGateway, "embedding server failure"
	case errors.Is(err, facematch.ErrMatchNotFound):
		return http.StatusNotFound, facematch.ErrMatchNotFound.Error()
	case errors.Is(err, biometrics.ErrEmployeeNotFound), errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "employee not found"
	case errors.Is(err, biometrics.ErrNoPhotos), errors.Is(err, biometrics.ErrTooManyPhotos):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// respondServiceError logs err with the request and sends the mapped status.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusForError(err)
	log.Printf("%s %s: %d: %v", r.Method, sanitizeForLog(r.URL.Path), status, err)
	respondJSON(w, status, map[string]string{"error": message})
}

// employeeIDParam parses the {id} URL parameter, answering 400 when it is not a UUID.
func employeeIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid employee id")
		return uuid.Nil, false
	}
	return id, true
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
