package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"petnotify/internal/model"
)

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q", errBadRequest, c.Param("id"))
	}
	return id, nil
}

func userPtr(v *int64) *model.UserID {
	if v == nil || *v <= 0 {
		return nil
	}
	u := model.UserID(*v)
	return &u
}

type grantBody struct {
	UserID int64             `json:"user_id" binding:"required"`
	Level  model.AccessLevel `json:"level"`
	Active *bool             `json:"active"`
}

func (g grantBody) toGrant(petID int64) model.AccessGrant {
	active := g.Active == nil || *g.Active
	level := g.Level
	if level == "" {
		level = model.AccessRead
	}
	return model.AccessGrant{PetID: petID, UserID: model.UserID(g.UserID), Level: level, Active: active}
}

type petBody struct {
	Name    string `json:"name"`
	OwnerID *int64 `json:"owner_id"`
	// Grants, when present, replaces the full grant list.
	Grants *[]grantBody `json:"grants"`
}

func (s *Server) handlePutPet(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var b petBody
	if err := c.ShouldBindJSON(&b); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	ctx := c.Request.Context()
	if err := s.deps.Store.UpsertPet(ctx, model.Pet{ID: id, Name: b.Name, OwnerID: userPtr(b.OwnerID)}); err != nil {
		s.fail(c, err)
		return
	}
	if b.Grants != nil {
		grants := make([]model.AccessGrant, 0, len(*b.Grants))
		for _, g := range *b.Grants {
			grants = append(grants, g.toGrant(id))
		}
		if err := s.deps.Store.ReplaceGrants(ctx, id, grants); err != nil {
			s.fail(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

type grantRequest struct {
	grantBody
	AuthorID *int64 `json:"author_id"`
}

func (s *Server) handlePostGrant(c *gin.Context) {
	petID, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var b grantRequest
	if err := c.ShouldBindJSON(&b); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	ctx := c.Request.Context()
	g := b.toGrant(petID)
	activated, err := s.deps.Store.UpsertGrant(ctx, g)
	if err != nil {
		s.fail(c, err)
		return
	}
	n, err := s.deps.Notifier.GrantSaved(ctx, g, activated, userPtr(b.AuthorID))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activated": activated, "notified": n != nil})
}

type eventBody struct {
	PetID        int64             `json:"pet_id" binding:"required"`
	Title        string            `json:"title"`
	TypeName     string            `json:"type_name"`
	TypeSlug     string            `json:"type_slug"`
	TypeCategory string            `json:"type_category"`
	Status       model.EventStatus `json:"status"`
	StartsAt     time.Time         `json:"starts_at"`
	NextDate     *time.Time        `json:"next_date"`
	CreatedBy    *int64            `json:"created_by"`
	// Created marks the first save of the event; only then are users notified.
	Created bool `json:"created"`
}

func (s *Server) handlePutEvent(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var b eventBody
	if err := c.ShouldBindJSON(&b); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if b.Status == "" {
		b.Status = model.EventPlanned
	}
	e := model.PetEvent{
		ID:           id,
		PetID:        b.PetID,
		Title:        b.Title,
		TypeName:     b.TypeName,
		TypeSlug:     b.TypeSlug,
		TypeCategory: b.TypeCategory,
		Status:       b.Status,
		StartsAt:     b.StartsAt,
		NextDate:     b.NextDate,
		CreatedBy:    userPtr(b.CreatedBy),
	}
	ctx := c.Request.Context()
	if err := s.deps.Store.UpsertEvent(ctx, e); err != nil {
		s.fail(c, err)
		return
	}
	written, err := s.deps.Notifier.EventSaved(ctx, e, b.Created)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notified": len(written)})
}

type verificationBody struct {
	UserID int64  `json:"user_id" binding:"required"`
	Status string `json:"status" binding:"required"`
}

func (s *Server) handlePostVerification(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var b verificationBody
	if err := c.ShouldBindJSON(&b); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	status := strings.ToLower(strings.TrimSpace(b.Status))
	if status != "approved" && status != "rejected" {
		s.fail(c, fmt.Errorf("%w: status must be approved or rejected", errBadRequest))
		return
	}
	n, err := s.deps.Notifier.VerificationDecided(c.Request.Context(), model.Verification{ID: id, UserID: model.UserID(b.UserID), Status: status})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": n.ID})
}
