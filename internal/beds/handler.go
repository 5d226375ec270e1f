package beds

import (
	"encoding/json"
	"net/http"

	"bedplanner/internal/apperr"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  Service
	validate *validator.Validate
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Routes registers the bed endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/beds", h.HandleList)
	r.Post("/beds", h.HandleCreate)
	r.Get("/beds/{id}", h.HandleGet)
	r.Delete("/beds/{id}", h.HandleDelete)
	r.Patch("/beds/{id}/status", h.HandleUpdateStatus)
}

type bedRequest struct {
	ID               string `json:"id" validate:"max=64"`
	RoomID           string `json:"room_id" validate:"max=64"`
	Code             string `json:"code" validate:"max=32"`
	Status           string `json:"status" validate:"max=16"`
	IsolationCapable bool   `json:"isolation_capable"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,max=16"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req bedRequest
	if !h.decode(w, r, &req) {
		return
	}
	bed, err := h.service.CreateBed(r.Context(), Bed{
		ID:               req.ID,
		RoomID:           req.RoomID,
		Code:             req.Code,
		Status:           Status(req.Status),
		IsolationCapable: req.IsolationCapable,
	})
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, bed)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListBeds(r.Context(), Status(r.URL.Query().Get("status")))
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	bed, err := h.service.GetBed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, bed)
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}
	bed, err := h.service.UpdateBedStatus(r.Context(), chi.URLParam(r, "id"), Status(req.Status))
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, bed)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteBed(r.Context(), chi.URLParam(r, "id")); err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
