package stays

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

// Routes registers the placement and stay endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/placements/suggestion", h.HandleSuggest)
	r.Post("/placements", h.HandlePlace)
	r.Get("/stays", h.HandleList)
	r.Post("/stays", h.HandleCreate)
	r.Get("/stays/{id}", h.HandleGet)
	r.Post("/stays/{id}/discharge", h.HandleDischarge)
	r.Get("/stays/{id}/history", h.HandleHistory)
	r.Get("/census", h.HandleCensus)
}

type placementRequest struct {
	StayID               string      `json:"stay_id" validate:"max=64"`
	PatientID            string      `json:"patient_id" validate:"required,max=64"`
	StayType             string      `json:"stay_type" validate:"max=16"`
	AdmissionDate        civil.Date  `json:"admission_date"`
	DischargeDatePlanned *civil.Date `json:"discharge_date_planned"`
}

type stayRequest struct {
	ID                   string      `json:"id" validate:"max=64"`
	PatientID            string      `json:"patient_id" validate:"required,max=64"`
	BedID                string      `json:"bed_id" validate:"required,max=64"`
	StayType             string      `json:"stay_type" validate:"max=16"`
	AdmissionDate        civil.Date  `json:"admission_date"`
	DischargeDatePlanned *civil.Date `json:"discharge_date_planned"`
}

type dischargeRequest struct {
	Date civil.Date `json:"date"`
}

func (h *Handler) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	date, ok := queryDate(w, r, "date")
	if !ok {
		return
	}
	var day civil.Date
	if date != nil {
		day = *date
	}
	bed, found, err := h.service.SuggestBed(r.Context(), r.URL.Query().Get("patient_id"), day)
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, bed)
}

func (h *Handler) HandlePlace(w http.ResponseWriter, r *http.Request) {
	var req placementRequest
	if !h.decode(w, r, &req) {
		return
	}
	stay, placed, err := h.service.PlacePatient(r.Context(), PlacementRequest{
		StayID:               req.StayID,
		PatientID:            req.PatientID,
		StayType:             StayType(req.StayType),
		AdmissionDate:        req.AdmissionDate,
		DischargeDatePlanned: req.DischargeDatePlanned,
	})
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	if !placed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, stay)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req stayRequest
	if !h.decode(w, r, &req) {
		return
	}
	stay, err := h.service.CreateStay(r.Context(), HospitalStay{
		ID:                   req.ID,
		PatientID:            req.PatientID,
		BedID:                req.BedID,
		StayType:             StayType(req.StayType),
		AdmissionDate:        req.AdmissionDate,
		DischargeDatePlanned: req.DischargeDatePlanned,
	})
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, stay)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	activeOn, ok := queryDate(w, r, "active_on")
	if !ok {
		return
	}
	list, err := h.service.ListStays(r.Context(), ListFilter{
		PatientID: r.URL.Query().Get("patient_id"),
		ActiveOn:  activeOn,
	})
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	stay, err := h.service.GetStay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, stay)
}

func (h *Handler) HandleDischarge(w http.ResponseWriter, r *http.Request) {
	var req dischargeRequest
	if !h.decode(w, r, &req) {
		return
	}
	stay, err := h.service.DischargeStay(r.Context(), chi.URLParam(r, "id"), req.Date)
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, stay)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.StayHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) HandleCensus(w http.ResponseWriter, r *http.Request) {
	date, ok := queryDate(w, r, "date")
	if !ok {
		return
	}
	var day civil.Date
	if date != nil {
		day = *date
	}
	census, err := h.service.Census(r.Context(), day)
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, census)
}

// queryDate parses an optional YYYY-MM-DD query parameter. It writes a 400
// and returns false when the value is malformed.
func queryDate(w http.ResponseWriter, r *http.Request, name string) (*civil.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		http.Error(w, "invalid "+name+": "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return &d, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
