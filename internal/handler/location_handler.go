package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/locator-backend-go/internal/models"
	"github.com/jengzang/locator-backend-go/internal/observability"
	"github.com/jengzang/locator-backend-go/internal/service"
	"github.com/jengzang/locator-backend-go/pkg/response"
)

const (
	HistoricoSuffix   = " - Histórico"
	LocalizadorSuffix = " - Localizador"
)

type locationService interface {
	FetchLatest(ctx context.Context, unit *string) (*service.LatestResult, error)
	FetchRange(ctx context.Context, filter models.RangeFilter) (*service.RangeResult, error)
	FetchRadius(ctx context.Context, filter models.RadiusFilter) (*service.RadiusResult, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// LocationHandler handles HTTP requests for fixes
type LocationHandler struct {
	svc      locationService
	store    pinger
	pageName string
	logger   *slog.Logger
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(svc locationService, store pinger, pageName string, logger *slog.Logger) *LocationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationHandler{
		svc:      svc,
		store:    store,
		pageName: pageName,
		logger:   logger.With("component", "handler"),
	}
}

// Latest handles GET /api/v1/locations/latest
func (h *LocationHandler) Latest(c *gin.Context) {
	var filter models.LatestFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.fail(c, "latest", h.pageName, &service.Error{Kind: service.InvalidParameter, Message: "Parámetros inválidos", Err: err})
		return
	}

	result, err := h.svc.FetchLatest(c.Request.Context(), filter.Unit)
	if err != nil {
		h.fail(c, "latest", h.pageName, err)
		return
	}

	resp := models.LatestResponse{
		Success:  true,
		Total:    result.Total(),
		PageName: h.pageName,
	}
	if result.Single {
		resp.Locations = result.Units[0].Fixes
	} else {
		resp.Units = result.Units
	}

	observability.ObserveQuery("latest", observability.OutcomeOK, resp.Total)
	response.Success(c, resp)
}

// Range handles GET /api/v1/locations/range
func (h *LocationHandler) Range(c *gin.Context) {
	pageName := h.pageName + HistoricoSuffix

	var filter models.RangeFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.fail(c, "range", pageName, &service.Error{Kind: service.InvalidParameter, Message: "Parámetros inválidos", Err: err})
		return
	}

	result, err := h.svc.FetchRange(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "range", pageName, err)
		return
	}

	observability.ObserveQuery("range", observability.OutcomeOK, len(result.Fixes))
	response.Success(c, models.RangeResponse{
		Success:       true,
		Total:         len(result.Fixes),
		FechaInicio:   result.RawStart,
		FechaFin:      result.RawEnd,
		ConsultaDesde: result.Window.Start,
		ConsultaHasta: result.Window.End,
		PageName:      pageName,
		Locations:     nonNil(result.Fixes),
	})
}

// Radius handles GET /api/v1/locations/radius
func (h *LocationHandler) Radius(c *gin.Context) {
	pageName := h.pageName + LocalizadorSuffix

	var filter models.RadiusFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.fail(c, "radius", pageName, &service.Error{Kind: service.InvalidParameter, Message: "Parámetros inválidos", Err: err})
		return
	}

	result, err := h.svc.FetchRadius(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "radius", pageName, err)
		return
	}

	observability.ObserveQuery("radius", observability.OutcomeOK, len(result.Fixes))
	response.Success(c, models.RadiusResponse{
		Success:       true,
		Total:         len(result.Fixes),
		PuntoBusqueda: models.LatLng{Lat: result.Query.CenterLat, Lng: result.Query.CenterLng},
		RadioMetros:   result.Query.RadiusMeters,
		PageName:      pageName,
		Locations:     nonNil(result.Fixes),
	})
}

// Health handles GET /health
func (h *LocationHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Localizador API is running",
	})
}

// fail writes the error envelope. Only unexpected failures are reported as HTTP 500.
func (h *LocationHandler) fail(c *gin.Context, operation, pageName string, err error) {
	var e *service.Error
	if !errors.As(err, &e) {
		e = &service.Error{Kind: service.UnexpectedFailure, Message: "Error interno del servidor: " + err.Error(), Err: err}
	}

	observability.ObserveQuery(operation, e.Kind.String(), 0)

	status := http.StatusOK
	switch {
	case e.Kind == service.UnexpectedFailure:
		status = http.StatusInternalServerError
		h.logger.Error("query failed", "operation", operation, "kind", e.Kind.String(), "error", err)
	case e.Kind.Validation():
		h.logger.Info("query rejected", "operation", operation, "kind", e.Kind.String(), "error", e.Message)
	default:
		h.logger.Error("query failed", "operation", operation, "kind", e.Kind.String(), "error", err)
	}

	_ = c.Error(err)
	response.Error(c, status, e.Message, pageName, e.Echo)
}

func nonNil(fixes []models.Fix) []models.Fix {
	if fixes == nil {
		return []models.Fix{}
	}
	return fixes
}
