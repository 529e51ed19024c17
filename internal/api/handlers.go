package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"turnitinbot/internal/models"
	"turnitinbot/internal/storage"
	"turnitinbot/internal/worker"
)

// Handler wires the operator HTTP routes to the document and submission
// stores. The bot itself never calls this API; it exists for inspection.
type Handler struct {
	docs  *storage.DocumentStore
	subs  *storage.SubmissionStore
	cache *worker.StatusCache
}

// NewHandler constructs a Handler instance.
func NewHandler(docs *storage.DocumentStore, subs *storage.SubmissionStore, cache *worker.StatusCache) *Handler {
	return &Handler{docs: docs, subs: subs, cache: cache}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)
	api := router.Group("/api")
	api.GET("/documents", h.listDocuments)
	api.GET("/documents/:id", h.getDocument)
	api.GET("/documents/:id/file", h.downloadDocument)
	api.GET("/documents/:id/submissions", h.listDocumentSubmissions)
	api.GET("/submissions/:id", h.getSubmission)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listDocuments(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	docs, err := h.docs.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if docs == nil {
		docs = make([]models.StoredDocument, 0)
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *Handler) getDocument(c *gin.Context) {
	doc, ok := h.documentFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) downloadDocument(c *gin.Context) {
	doc, ok := h.documentFromPath(c)
	if !ok {
		return
	}
	c.FileAttachment(doc.StoredPath, doc.OriginalName)
}

func (h *Handler) listDocumentSubmissions(c *gin.Context) {
	doc, ok := h.documentFromPath(c)
	if !ok {
		return
	}
	subs, err := h.subs.ListByDocument(c.Request.Context(), doc.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if subs == nil {
		subs = make([]models.Submission, 0)
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}

func (h *Handler) getSubmission(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
		return
	}
	// Recent submissions are answered from cache without touching the DB.
	if sub, err := h.cache.Load(c.Request.Context(), id); err == nil {
		c.JSON(http.StatusOK, sub)
		return
	}
	sub, err := h.subs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) documentFromPath(c *gin.Context) (*models.StoredDocument, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return nil, false
	}
	doc, err := h.docs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return doc, true
}
