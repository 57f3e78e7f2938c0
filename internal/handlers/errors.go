package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/school-system/reportgen/internal/export"
	"github.com/school-system/reportgen/internal/generation"
	"github.com/school-system/reportgen/internal/images"
	"github.com/school-system/reportgen/internal/ingest"
	"github.com/school-system/reportgen/internal/mail"
	"github.com/school-system/reportgen/internal/services"
	"github.com/school-system/reportgen/internal/store"
)

// statusFor maps a pipeline error to its HTTP status.
func statusFor(err error) int {
	var (
		parseErr   *ingest.ParseError
		validErr   *services.ValidationError
		genErr     *generation.GenerationError
		renderErr  *export.RenderError
		persistErr *store.PersistenceError
	)
	switch {
	case errors.As(err, &parseErr), errors.As(err, &validErr),
		errors.Is(err, mail.ErrInvalidAddress), errors.Is(err, images.ErrUnknownSlot):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &genErr), errors.Is(err, services.ErrNoResults):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.As(err, &renderErr), errors.As(err, &persistErr):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var parseErr *ingest.ParseError
	if errors.As(err, &parseErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": parseErr.Reason, "detail": parseErr.Error()})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
