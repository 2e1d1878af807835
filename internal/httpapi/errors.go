package httpapi

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Leganyst/facility-booking/internal/apperror"
)

// respondError переводит категорию прикладной ошибки в HTTP-статус.
// Внутренние сбои наружу уходят без подробностей.
func respondError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperror.KindBadRequest:
		status = http.StatusBadRequest
	case apperror.KindForbidden:
		status = http.StatusForbidden
	case apperror.KindNotFound:
		status = http.StatusNotFound
	case apperror.KindConflict:
		status = http.StatusConflict
	case apperror.KindUnavailable:
		status = http.StatusServiceUnavailable
	}

	body := gin.H{}
	if kind == apperror.KindInternal {
		log.Printf("httpapi: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		body["error"] = "internal server error"
	} else {
		body["error"] = err.Error()
	}
	if details := apperror.DetailsOf(err); details != nil {
		body["conflictDetails"] = details
	}

	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	respondError(c, apperror.BadRequest("%s", err.Error()))
}
