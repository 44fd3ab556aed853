package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-auth/internal/biometrics"
	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/facematch"
)

// EmployeesHandler handles employee CRUD endpoints
type EmployeesHandler struct {
	store      database.EmployeeStore
	biometrics *biometrics.Service
}

// NewEmployeesHandler creates a new employees handler
func NewEmployeesHandler(store database.EmployeeStore, svc *biometrics.Service) *EmployeesHandler {
	return &EmployeesHandler{store: store, biometrics: svc}
}

// phoneNumber accepts a JSON string or number.
type phoneNumber string

func (p *phoneNumber) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = phoneNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("phone must be a string or a number")
	}
	*p = phoneNumber(n.String())
	return nil
}

type employeeRequest struct {
	FirstName   string      `json:"first_name"`
	SecondName  string      `json:"second_name"`
	DateOfBirth string      `json:"date_of_birth"`
	Phone       phoneNumber `json:"phone"`
	Email       string      `json:"email"`
	HomeAddress string      `json:"home_address"`
	Position    string      `json:"position"`
	OtherInfo   string      `json:"other_info"`
}

func (req *employeeRequest) validate() error {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.SecondName = strings.TrimSpace(req.SecondName)
	req.DateOfBirth = strings.TrimSpace(req.DateOfBirth)

	if req.FirstName == "" || req.SecondName == "" {
		return errors.New("first_name and second_name are required")
	}
	if req.DateOfBirth != "" {
		if _, err := time.Parse(time.DateOnly, req.DateOfBirth); err != nil {
			return fmt.Errorf("date_of_birth must be YYYY-MM-DD, got %q", req.DateOfBirth)
		}
	}
	return nil
}

func (req *employeeRequest) employee() *database.Employee {
	return &database.Employee{
		FirstName:   req.FirstName,
		SecondName:  req.SecondName,
		DateOfBirth: req.DateOfBirth,
		Phone:       string(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		HomeAddress: req.HomeAddress,
		Position:    req.Position,
		OtherInfo:   req.OtherInfo,
	}
}

func decodeEmployee(w http.ResponseWriter, r *http.Request) (*database.Employee, bool) {
	var req employeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return nil, false
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return req.employee(), true
}

type idResponse struct {
	ID string `json:"_id"`
}

// List returns all employees, optionally filtered by the q name query.
func (h *EmployeesHandler) List(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) > constants.MaxNameQueryLength {
		respondError(w, http.StatusBadRequest, "name query is too long")
		return
	}

	employees, err := h.store.ListEmployees(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	result := make([]database.Employee, 0, len(employees))
	for _, e := range employees {
		if query == "" || facematch.NameMatches(e.FullName(), query) {
			result = append(result, e)
		}
	}
	respondJSON(w, http.StatusOK, result)
}

// Create stores a new employee and returns its generated ID.
func (h *EmployeesHandler) Create(w http.ResponseWriter, r *http.Request) {
	employee, ok := decodeEmployee(w, r)
	if !ok {
		return
	}

	if err := h.store.CreateEmployee(r.Context(), employee); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, idResponse{ID: employee.ID.String()})
}

// Get returns a single employee.
func (h *EmployeesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeIDParam(w, r)
	if !ok {
		return
	}

	employee, err := h.store.GetEmployee(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, employee)
}

// Update replaces every mutable field of an employee.
func (h *EmployeesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeIDParam(w, r)
	if !ok {
		return
	}
	employee, ok := decodeEmployee(w, r)
	if !ok {
		return
	}

	employee.ID = id
	if err := h.store.ReplaceEmployee(r.Context(), employee); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, idResponse{ID: id.String()})
}

// Delete removes an employee together with its biometric record.
func (h *EmployeesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeIDParam(w, r)
	if !ok {
		return
	}

	if err := h.biometrics.RemoveEmployee(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, idResponse{ID: id.String()})
}
