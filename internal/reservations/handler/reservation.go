package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"fleetrental/internal/reservations/service"
	apperrors "fleetrental/pkg/errors"
	httputil "fleetrental/pkg/http"
	"fleetrental/pkg/logger"
	"fleetrental/pkg/model"
)

// UserIDHeader carries the caller identity resolved by the upstream
// gateway. Requests without it are rejected as unauthorized.
const UserIDHeader = "X-User-ID"

type ReservationHandler struct {
	service service.ReservationService
	logger  *logger.Logger
}

func NewReservationHandler(svc service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: svc,
		logger:  log,
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.HandlerFunc(http.MethodPost, "/api/v1/reservations", h.Create)
	router.HandlerFunc(http.MethodGet, "/api/v1/reservations/my", h.ListMine)
	router.Handle(http.MethodPut, "/api/v1/reservations/:id", h.Update)
	router.Handle(http.MethodDelete, "/api/v1/reservations/:id", h.Cancel)
	router.HandlerFunc(http.MethodGet, "/api/v1/availability", h.Availability)
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := h.callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	req, err := h.decodeRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	reservation, err := h.service.Create(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	userID, err := h.callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	req, err := h.decodeRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	reservation, err := h.service.Update(r.Context(), userID, params.ByName("id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	userID, err := h.callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.Cancel(r.Context(), userID, params.ByName("id")); err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := h.callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	reservations, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if reservations == nil {
		reservations = []*model.Reservation{}
	}

	if err := httputil.WriteSuccess(w, reservations); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}

// Availability is an advisory read: callers may see hour-stale counts and
// must not treat the answer as a hold on capacity.
func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	carType, err := model.ParseCarType(query.Get("category"))
	if err != nil {
		h.writeError(w, r, apperrors.InvalidRequest(err.Error()))
		return
	}

	startAt, err := time.Parse(time.RFC3339, query.Get("startAt"))
	if err != nil {
		h.writeError(w, r, apperrors.InvalidRequest("startAt must be a valid RFC 3339 timestamp"))
		return
	}

	days, err := strconv.Atoi(query.Get("days"))
	if err != nil || days < 1 {
		h.writeError(w, r, apperrors.InvalidRequest("days must be a positive integer"))
		return
	}

	available, err := h.service.Available(r.Context(), carType, startAt, days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result := model.AvailabilityResult{
		Category:  carType,
		StartAt:   startAt,
		Days:      days,
		Available: available,
	}
	if err := httputil.WriteSuccess(w, result); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}

func (h *ReservationHandler) callerID(r *http.Request) (string, error) {
	userID := r.Header.Get(UserIDHeader)
	if userID == "" {
		return "", apperrors.Unauthorized(fmt.Sprintf("%s header is required", UserIDHeader))
	}
	return userID, nil
}

func (h *ReservationHandler) decodeRequest(r *http.Request) (*model.ReservationRequest, error) {
	var req model.ReservationRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return nil, apperrors.InvalidRequest("Request body too large")
		case errors.Is(err, io.EOF):
			return nil, apperrors.InvalidRequest("Request body cannot be empty")
		default:
			return nil, apperrors.InvalidRequest(fmt.Sprintf("Invalid request body: %s", err.Error()))
		}
	}

	return &req, nil
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if writeErr := httputil.WriteError(w, r, err); writeErr != nil {
		h.logger.Error("Failed to write error response", "error", writeErr)
	}
}
