package http

import (
	"errors"
	"net/http"

	"github.com/dstein131/Main/internal/usecase"
	"github.com/gin-gonic/gin"
)

// fail maps the usecase error taxonomy onto HTTP statuses.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, usecase.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, usecase.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, usecase.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, usecase.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, usecase.ErrFailedPrecondition):
		status = http.StatusConflict
	case errors.Is(err, usecase.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
