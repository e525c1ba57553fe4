package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fleet_tracker/internal/apperr"
)

// respondError maps the error taxonomy to an HTTP status and aborts.
func respondError(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrUnknownDevice):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Device ID not registered"})
	case errors.Is(err, apperr.ErrInvalidCredential):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid device credential"})
	case errors.Is(err, apperr.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func bindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid input: " + err.Error()})
}
