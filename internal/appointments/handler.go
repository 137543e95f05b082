package appointments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicdesk/scheduling/pkg/logging"
)

// Handler handles HTTP requests for the scheduling core.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the scheduling endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateScheduled)
	r.Post("/walkin", h.CreateWalkIn)
	r.Post("/requests", h.CreatePatientRequested)
	r.Get("/slots", h.ListSlots)
	r.Get("/queue", h.ListQueue)
	r.Post("/{id}/status", h.TransitionStatus)
	r.Post("/{id}/cancel", h.CancelAsPatient)
	r.Post("/{id}/reschedule", h.Reschedule)
	return r
}

// CreateScheduled handles POST /appointments.
func (h *Handler) CreateScheduled(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	appt, err := h.svc.CreateScheduled(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, appt)
}

type walkInRequest struct {
	PatientID string `json:"patient_id"`
	Date      string `json:"date"`
	Reason    string `json:"reason"`
}

// CreateWalkIn handles POST /appointments/walkin.
func (h *Handler) CreateWalkIn(w http.ResponseWriter, r *http.Request) {
	var req walkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	appt, err := h.svc.CreateWalkIn(r.Context(), req.PatientID, req.Date, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, appt)
}

// CreatePatientRequested handles POST /appointments/requests.
func (h *Handler) CreatePatientRequested(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	appt, err := h.svc.CreatePatientRequested(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, appt)
}

type slotsResponse struct {
	DoctorID string   `json:"doctor_id"`
	Date     string   `json:"date"`
	Slots    []string `json:"slots"`
}

// ListSlots handles GET /appointments/slots?doctor_id=&date=.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	doctorID := r.URL.Query().Get("doctor_id")
	date := r.URL.Query().Get("date")
	slots, err := h.svc.ListAvailableSlots(r.Context(), doctorID, date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	h.writeJSON(w, http.StatusOK, slotsResponse{DoctorID: doctorID, Date: date, Slots: slots})
}

type queueResponse struct {
	Date         string         `json:"date"`
	Appointments []*Appointment `json:"appointments"`
}

// ListQueue handles GET /appointments/queue?date=.
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	appts, err := h.svc.ListWalkInQueue(r.Context(), date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	h.writeJSON(w, http.StatusOK, queueResponse{Date: date, Appointments: appts})
}

type transitionRequest struct {
	Status Status `json:"status"`
}

// TransitionStatus handles POST /appointments/{id}/status.
func (h *Handler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	appt, err := h.svc.TransitionStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

type cancelRequest struct {
	PatientID string `json:"patient_id"`
}

// CancelAsPatient handles POST /appointments/{id}/cancel.
func (h *Handler) CancelAsPatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	appt, err := h.svc.CancelAsPatient(r.Context(), id, req.PatientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

// Reschedule handles POST /appointments/{id}/reschedule.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	appt, err := h.svc.Reschedule(r.Context(), id, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, appt)
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Field     string `json:"field,omitempty"`
	Current   string `json:"current_status,omitempty"`
	Requested string `json:"requested_status,omitempty"`
}

// writeError maps the error taxonomy onto HTTP statuses with enough detail
// for the UI to render a specific message.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *ValidationError
		conflictErr   *ConflictError
		slotErr       *SlotUnavailableError
		policyErr     *PolicyDeniedError
		notFoundErr   *NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: validationErr.Error(), Kind: "validation", Field: validationErr.Field,
		})
	case errors.As(err, &slotErr):
		h.writeJSON(w, http.StatusConflict, errorResponse{
			Error: slotErr.Error(), Kind: "slot_unavailable",
		})
	case errors.As(err, &conflictErr):
		h.writeJSON(w, http.StatusConflict, errorResponse{
			Error:     conflictErr.Error(),
			Kind:      "conflict",
			Current:   string(conflictErr.Current),
			Requested: string(conflictErr.Requested),
		})
	case errors.As(err, &policyErr):
		h.writeJSON(w, http.StatusForbidden, errorResponse{
			Error: policyErr.Error(), Kind: "policy_denied",
		})
	case errors.As(err, &notFoundErr):
		h.writeJSON(w, http.StatusNotFound, errorResponse{
			Error: notFoundErr.Error(), Kind: "not_found",
		})
	default:
		h.logger.Error("request failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "internal error", Kind: "internal",
		})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
