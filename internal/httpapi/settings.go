package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"petnotify/internal/model"
)

func (s *Server) handleGetSettings(c *gin.Context) {
	st, err := s.deps.Store.GetOrCreateSettings(c.Request.Context(), caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// handlePutSettings updates only the fields present in the body.
func (s *Server) handlePutSettings(c *gin.Context) {
	var p model.SettingsPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	st, err := s.deps.Store.PatchSettings(c.Request.Context(), caller(c), p)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
