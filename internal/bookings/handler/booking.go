package handler

import (
	"encoding/json"
	"net/http"

	"bikerent/internal/bookings/service"
	"bikerent/internal/interval"
	apperrors "bikerent/pkg/errors"
	httputil "bikerent/pkg/http"
	"bikerent/pkg/logger"
	"bikerent/pkg/middleware"
	"bikerent/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := h.requireUser(w, r, "Create")
	if !ok {
		return
	}

	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Create", apperrors.Wrap(err, apperrors.CodeBadRequest, "Invalid request body", http.StatusBadRequest))
		return
	}
	req.UserID = userID

	booking, err := h.service.Book(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := h.requireUser(w, r, "GetByID")
	if !ok {
		return
	}

	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"), userID)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListForUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := h.requireUser(w, r, "ListForUser")
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListForUser", err)
		return
	}

	bookings, total, err := h.service.ListForUser(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, "ListForUser", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListForUser", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := h.requireUser(w, r, "Cancel")
	if !ok {
		return
	}

	booking, err := h.service.Cancel(r.Context(), ps.ByName("id"), userID)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

// Search is public: it reveals which slots are free, never who holds them.
func (h *BookingHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	start, err := httputil.ParseTimeParam(r, "start_time")
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}
	end, err := httputil.ParseTimeParam(r, "end_time")
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	window, err := interval.New(start, end)
	if err != nil {
		h.writeError(w, "Search", apperrors.InvalidWindow(err))
		return
	}

	results, err := h.service.Search(r.Context(), window)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	if err := httputil.WriteSuccess(w, results); err != nil {
		h.log.Error("failed to write success response", "handler", "Search", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) requireUser(w http.ResponseWriter, r *http.Request, handler string) (string, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
		return "", false
	}
	return userID, true
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/user", h.ListForUser)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.GET("/api/v1/vehicles/search", h.Search)
}
