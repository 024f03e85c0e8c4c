package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/locator-backend-go/internal/observability"
	"github.com/jengzang/locator-backend-go/internal/service"
	"github.com/jengzang/locator-backend-go/pkg/response"
)

// UnavailableHandler serves every route while the configuration could not be loaded
type UnavailableHandler struct {
	err error
}

// NewUnavailableHandler creates a handler reporting cause on every request
func NewUnavailableHandler(cause error) *UnavailableHandler {
	return &UnavailableHandler{err: cause}
}

func (h *UnavailableHandler) respond(c *gin.Context, operation string) {
	observability.ObserveQuery(operation, service.ConfigLoadFailure.String(), 0)
	response.Error(c, http.StatusOK, "Error cargando configuración: "+h.err.Error(), response.ErrorPageName, nil)
}

// Latest handles GET /api/v1/locations/latest
func (h *UnavailableHandler) Latest(c *gin.Context) { h.respond(c, "latest") }

// Range handles GET /api/v1/locations/range
func (h *UnavailableHandler) Range(c *gin.Context) { h.respond(c, "range") }

// Radius handles GET /api/v1/locations/radius
func (h *UnavailableHandler) Radius(c *gin.Context) { h.respond(c, "radius") }

// Health handles GET /health
func (h *UnavailableHandler) Health(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"status": "error",
		"error":  h.err.Error(),
	})
}
