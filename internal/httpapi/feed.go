package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"petnotify/internal/model"
	"petnotify/internal/realtime"
	"petnotify/internal/storage"
)

type listResponse struct {
	Items         []realtime.View `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

func parseListFilter(c *gin.Context) (storage.ListFilter, error) {
	var f storage.ListFilter
	if v := c.Query("unread_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("%w: unread_only", errBadRequest)
		}
		f.UnreadOnly = b
	}
	if v := c.Query("category"); v != "" {
		cat, err := model.ParseCategory(v)
		if err != nil {
			return f, err
		}
		f.Category = cat
	}
	if v := c.Query("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%w: page_size", errBadRequest)
		}
		f.PageSize = n
	}
	f.PageToken = c.Query("page_token")
	return f, nil
}

func (s *Server) handleList(c *gin.Context) {
	f, err := parseListFilter(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	page, err := s.deps.Store.List(c.Request.Context(), caller(c), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := listResponse{Items: make([]realtime.View, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, n := range page.Items {
		out.Items = append(out.Items, realtime.NewView(n, false, s.cfg.Location))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleUnreadCount(c *gin.Context) {
	n, err := s.deps.Store.UnreadCount(c.Request.Context(), caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	if err := s.deps.Store.MarkRead(c.Request.Context(), c.Param("id"), caller(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReadAll(c *gin.Context) {
	n, err := s.deps.Store.MarkAllRead(c.Request.Context(), caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (s *Server) handleTarget(c *gin.Context) {
	ctx := c.Request.Context()
	n, err := s.deps.Store.Get(ctx, c.Param("id"), caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	obj, err := s.deps.Targets.Lookup(ctx, n.Target)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": n.Target.Type, "id": n.Target.ID, "object": obj})
}
