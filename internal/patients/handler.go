package patients

import (
	"encoding/json"
	"net/http"

	"bedplanner/internal/apperr"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/golang-sql/civil"
)

type Handler struct {
	service  Service
	validate *validator.Validate
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Routes registers the patient endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/patients", h.HandleList)
	r.Post("/patients", h.HandleCreate)
	r.Get("/patients/{id}", h.HandleGet)
	r.Put("/patients/{id}", h.HandleUpdate)
	r.Delete("/patients/{id}", h.HandleDelete)
}

type patientRequest struct {
	ID                string     `json:"id" validate:"max=64"`
	FirstName         string     `json:"first_name" validate:"max=100"`
	LastName          string     `json:"last_name" validate:"max=100"`
	BirthDate         civil.Date `json:"birth_date"`
	Sex               string     `json:"sex" validate:"max=16"`
	ReducedMobility   bool       `json:"reduced_mobility"`
	IsolationRequired bool       `json:"isolation_required"`
	PhoneNumber       string     `json:"phone_number" validate:"max=32"`
	Notes             string     `json:"notes" validate:"max=2000"`
}

func (req patientRequest) toPatient() Patient {
	return Patient{
		ID:                req.ID,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		BirthDate:         req.BirthDate,
		Sex:               Sex(req.Sex),
		ReducedMobility:   req.ReducedMobility,
		IsolationRequired: req.IsolationRequired,
		PhoneNumber:       req.PhoneNumber,
		Notes:             req.Notes,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (patientRequest, bool) {
	var req patientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	patient, err := h.service.CreatePatient(r.Context(), req.toPatient())
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, patient)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPatients(r.Context())
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	patient, err := h.service.GetPatient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	req.ID = chi.URLParam(r, "id")
	patient, err := h.service.UpdatePatient(r.Context(), req.toPatient())
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePatient(r.Context(), chi.URLParam(r, "id")); err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
