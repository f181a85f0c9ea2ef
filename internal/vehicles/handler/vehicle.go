package handler

import (
	"net/http"

	"bikerent/internal/vehicles/service"
	httputil "bikerent/pkg/http"
	"bikerent/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type VehicleHandler struct {
	service service.VehicleService
	log     *logger.Logger
}

func NewVehicleHandler(service service.VehicleService, log *logger.Logger) *VehicleHandler {
	return &VehicleHandler{
		service: service,
		log:     log,
	}
}

func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	vehicles, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteSuccess(w, vehicles); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *VehicleHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	vehicle, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, vehicle); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *VehicleHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *VehicleHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/vehicles", h.List)
	router.GET("/api/v1/vehicles/id/:id", h.GetByID)
}
