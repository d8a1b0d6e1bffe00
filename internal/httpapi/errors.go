package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"petnotify/internal/model"
	"petnotify/internal/resolver"
	"petnotify/internal/storage"
	logx "petnotify/pkg/logx"
)

var errBadRequest = errors.New("bad request")

func statusOf(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, resolver.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrInvalid),
		errors.Is(err, model.ErrInvalidLeadTime),
		errors.Is(err, model.ErrUnknownCategory),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as JSON. Server errors keep their cause in the log only.
func (s *Server) fail(c *gin.Context, err error) {
	code := statusOf(err)
	msg := err.Error()
	switch code {
	case http.StatusInternalServerError:
		s.log.Error("request failed", logx.String("path", c.FullPath()), logx.Err(err))
		msg = "internal error"
	case http.StatusNotFound:
		if errors.Is(err, resolver.ErrTargetNotFound) {
			msg = resolver.ErrTargetNotFound.Error()
		} else {
			msg = "not found"
		}
	case http.StatusForbidden:
		msg = "forbidden"
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
