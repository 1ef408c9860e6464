package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/ifuryst/repurpose/internal/models"
	"github.com/ifuryst/repurpose/internal/service"
	"github.com/ifuryst/repurpose/internal/service/extraction"
	"github.com/ifuryst/repurpose/internal/service/storage"
	"github.com/ifuryst/repurpose/internal/service/store"
	"github.com/ifuryst/repurpose/pkg/util"
)

const minTextLength = 100

type createTextRequest struct {
	Title       string                 `json:"title" binding:"required"`
	Text        string                 `json:"text" binding:"required"`
	Platforms   []string               `json:"platforms" binding:"required"`
	Preferences map[string]interface{} `json:"preferences"`
}

type createURLRequest struct {
	URL         string                 `json:"url" binding:"required"`
	Title       string                 `json:"title"`
	Platforms   []string               `json:"platforms" binding:"required"`
	Preferences map[string]interface{} `json:"preferences"`
}

type updateContentRequest struct {
	Title    *string                `json:"title"`
	Metadata map[string]interface{} `json:"metadata"`
	Analysis map[string]interface{} `json:"analysis"`
}

// validatePlatforms drops duplicates and rejects unknown platforms
func validatePlatforms(platforms []string) ([]string, error) {
	seen := make(map[string]bool, len(platforms))
	var result []string
	for _, p := range platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		if !models.IsSupportedPlatform(p) {
			return nil, fmt.Errorf("unsupported platform: %s", p)
		}
		seen[p] = true
		result = append(result, p)
	}
	if len(result) == 0 {
		return nil, errors.New("at least one platform is required")
	}
	return result, nil
}

// createContentJob stores the content with its pending job and wakes the processor
func (s *Server) createContentJob(c *gin.Context, content *models.Content, platforms []string, prefs map[string]interface{}) {
	ctx := c.Request.Context()
	if prefs == nil {
		prefs = map[string]interface{}{}
	}

	job := &models.Job{
		UserID:          content.UserID,
		Platforms:       platforms,
		UserPreferences: datatypes.JSONMap(prefs),
		Status:          models.JobStatusPending,
	}
	err := s.Deps.Store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.Contents.Create(ctx, content); err != nil {
			return err
		}
		job.ContentID = content.ID
		return tx.Jobs.Create(ctx, job)
	})
	if err != nil {
		s.internalError(c, "Failed to create content", err)
		return
	}

	s.notifyJob(c, job)

	s.Logger.Info("Content created",
		zap.String("content_id", content.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("source_type", content.SourceType),
		zap.Strings("platforms", platforms))

	c.JSON(http.StatusCreated, gin.H{
		"content_id": content.ID,
		"job_id":     job.ID,
		"status":     models.JobStatusPending,
		"message":    "Content created, processing started",
	})
}

// notifyJob is best effort: the engine finds the job on its next poll anyway
func (s *Server) notifyJob(c *gin.Context, job *models.Job) {
	if s.Deps.Notifier == nil {
		return
	}
	if err := s.Deps.Notifier.Notify(c.Request.Context(), job.ID); err != nil {
		s.Logger.Warn("Failed to publish job wake-up",
			zap.String("job_id", job.ID.String()),
			zap.Error(err))
	}
}

func (s *Server) handleUploadContent(c *gin.Context) {
	userID := service.UserID(c)

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	if !s.Config.Upload.IsAllowedExtension(header.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("File type not allowed. Allowed: %s", strings.Join(s.Config.Upload.AllowedExtensions, ", ")),
		})
		return
	}
	if header.Size > s.Config.Upload.MaxFileSizeBytes() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("File too large. Max size: %dMB", s.Config.Upload.MaxFileSizeMB),
		})
		return
	}

	platforms, err := validatePlatforms(util.ParseList(c.PostForm("platforms")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prefs := map[string]interface{}{}
	if raw := strings.TrimSpace(c.PostForm("preferences")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid preferences JSON"})
			return
		}
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.Config.Upload.MaxFileSizeBytes()+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	result, err := s.Deps.Extractor.Extract(data, header.Filename)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Text extraction failed: %v", err)})
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = result.Title
	}
	if title == "" {
		title = header.Filename
	}

	metadata := datatypes.JSONMap(result.Metadata)
	metadata["original_filename"] = header.Filename

	content := &models.Content{
		UserID:        userID,
		Title:         title,
		SourceType:    result.SourceType,
		OriginalText:  result.Text,
		FileSizeBytes: int64(len(data)),
		Metadata:      metadata,
	}

	if s.Deps.Objects != nil {
		key := storage.UploadKey(userID, header.Filename)
		contentType := header.Header.Get("Content-Type")
		if err := s.Deps.Objects.Put(c.Request.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
			s.internalError(c, "Failed to store file", err, zap.String("key", key))
			return
		}
		content.FilePath = key
	}

	s.createContentJob(c, content, platforms, prefs)
}

func (s *Server) handleCreateTextContent(c *gin.Context) {
	var req createTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if util.RuneLen(strings.TrimSpace(req.Text)) < minTextLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Text must be at least %d characters", minTextLength)})
		return
	}
	platforms, err := validatePlatforms(req.Platforms)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content := &models.Content{
		UserID:       service.UserID(c),
		Title:        req.Title,
		SourceType:   models.SourceTypeText,
		OriginalText: req.Text,
		Metadata: datatypes.JSONMap{
			"word_count":      util.WordCount(req.Text),
			"character_count": util.RuneLen(req.Text),
		},
	}
	s.createContentJob(c, content, platforms, req.Preferences)
}

func (s *Server) handleCreateURLContent(c *gin.Context) {
	var req createURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	platforms, err := validatePlatforms(req.Platforms)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.Deps.Extractor.ExtractURL(c.Request.Context(), req.URL)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, extraction.ErrFetch) && !errors.Is(err, extraction.ErrEmptyContent) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": fmt.Sprintf("URL extraction failed: %v", err)})
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = result.Title
	}
	if title == "" {
		title = req.URL
	}

	content := &models.Content{
		UserID:       service.UserID(c),
		Title:        title,
		SourceType:   models.SourceTypeURL,
		OriginalText: result.Text,
		SourceURL:    req.URL,
		Metadata:     datatypes.JSONMap(result.Metadata),
	}
	s.createContentJob(c, content, platforms, req.Preferences)
}

func (s *Server) handleGetContent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	content, ok := ownedBy(s, c, s.Deps.Store.Contents.Repository, id, "Content", contentOwner)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, content)
}

func (s *Server) handleListContent(c *gin.Context) {
	ctx := c.Request.Context()
	p := parsePagination(c)

	filters := map[string]interface{}{"user_id": service.UserID(c)}
	if sourceType := c.Query("source_type"); sourceType != "" {
		filters["source_type"] = sourceType
	}

	items, err := s.Deps.Store.Contents.List(ctx, store.Query{
		Filters: filters,
		Order:   "created_at DESC",
		Limit:   p.limit,
		Offset:  p.offset(),
	})
	if err != nil {
		s.internalError(c, "Failed to list content", err)
		return
	}
	total, err := s.Deps.Store.Contents.Count(ctx, filters)
	if err != nil {
		s.internalError(c, "Failed to count content", err)
		return
	}
	c.JSON(http.StatusOK, newPage(items, total, p))
}

func (s *Server) handleUpdateContent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, ok := ownedBy(s, c, s.Deps.Store.Contents.Repository, id, "Content", contentOwner); !ok {
		return
	}

	var req updateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title cannot be empty"})
			return
		}
		fields["title"] = *req.Title
	}
	if req.Metadata != nil {
		fields["metadata"] = datatypes.JSONMap(req.Metadata)
	}
	if req.Analysis != nil {
		fields["analysis"] = datatypes.JSONMap(req.Analysis)
	}

	ctx := c.Request.Context()
	if len(fields) > 0 {
		if err := s.Deps.Store.Contents.Update(ctx, id, fields); err != nil {
			s.internalError(c, "Failed to update content", err, zap.String("content_id", id.String()))
			return
		}
	}

	content, err := s.Deps.Store.Contents.Get(ctx, id)
	if err != nil {
		s.internalError(c, "Failed to load content", err, zap.String("content_id", id.String()))
		return
	}
	c.JSON(http.StatusOK, content)
}

func (s *Server) handleDeleteContent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	content, ok := ownedBy(s, c, s.Deps.Store.Contents.Repository, id, "Content", contentOwner)
	if !ok {
		return
	}

	if err := s.Deps.Store.Contents.SoftDelete(c.Request.Context(), id); err != nil {
		s.internalError(c, "Failed to delete content", err, zap.String("content_id", id.String()))
		return
	}

	if content.FilePath != "" && s.Deps.Objects != nil {
		if err := s.Deps.Objects.Delete(c.Request.Context(), content.FilePath); err != nil {
			s.Logger.Warn("Failed to delete stored file",
				zap.String("content_id", id.String()),
				zap.String("key", content.FilePath),
				zap.Error(err))
		}
	}

	s.Logger.Info("Content deleted", zap.String("content_id", id.String()))
	c.Status(http.StatusNoContent)
}
