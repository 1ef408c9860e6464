package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ifuryst/repurpose/internal/models"
	"github.com/ifuryst/repurpose/internal/service"
	"github.com/ifuryst/repurpose/internal/service/store"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Page is the envelope of every list response
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
	Limit int   `json:"limit"`
}

type pagination struct {
	page  int
	limit int
}

func parsePagination(c *gin.Context) pagination {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil {
		limit = defaultPageLimit
	}
	limit = min(max(limit, 1), maxPageLimit)
	return pagination{page: page, limit: limit}
}

func (p pagination) offset() int {
	return (p.page - 1) * p.limit
}

func newPage[T any](items []T, total int64, p pagination) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items: items,
		Total: total,
		Page:  p.page,
		Pages: int(math.Ceil(float64(total) / float64(p.limit))),
		Limit: p.limit,
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

// ownedBy loads one record of the current user. It writes the error
// response itself and reports whether the handler may continue.
func ownedBy[T any](s *Server, c *gin.Context, repo *store.Repository[T], id uuid.UUID, kind string, owner func(*T) uuid.UUID) (*T, bool) {
	record, err := repo.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": kind + " not found"})
		return nil, false
	}
	if err != nil {
		s.Logger.Error("Failed to load "+kind, zap.String("id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load " + kind})
		return nil, false
	}
	if owner(record) != service.UserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil, false
	}
	return record, true
}

func contentOwner(c *models.Content) uuid.UUID { return c.UserID }
func jobOwner(j *models.Job) uuid.UUID         { return j.UserID }
func outputOwner(o *models.Output) uuid.UUID   { return o.UserID }

func (s *Server) internalError(c *gin.Context, msg string, err error, fields ...zap.Field) {
	s.Logger.Error(msg, append(fields, zap.Error(err))...)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
