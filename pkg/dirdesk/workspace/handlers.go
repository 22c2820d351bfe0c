package workspace

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/dirdesk/pkg/dirdesk/auth"
	"github.com/mikepea/dirdesk/pkg/dirdesk/graph"
)

// Handler exposes operator endpoints backed by the upstream provider:
// free/busy lookup, mailbox browsing, file management, and notification
// mail. Every call runs with the caller's connected account.
type Handler struct {
	client *graph.Client
}

// NewHandler creates a new workspace handler
func NewHandler(client *graph.Client) *Handler {
	return &Handler{client: client}
}

// respondUpstreamError maps facade errors to client responses. Auth failures
// carry a reconnect hint rather than a raw error.
func respondUpstreamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, graph.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Directory account not connected or expired",
			"reconnect": "/api/connect/start",
		})
	case errors.Is(err, graph.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found upstream"})
	case errors.Is(err, graph.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Upstream rate limit reached; retry shortly"})
	case errors.Is(err, graph.ErrUpstreamUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Upstream provider unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// FreeBusyRequest describes a free/busy lookup. Principals must be
// email-shaped identifiers; raw directory ids yield empty schedules.
type FreeBusyRequest struct {
	Principals  []string `json:"principals" binding:"required,min=1"`
	Start       string   `json:"start" binding:"required"` // RFC 3339
	End         string   `json:"end" binding:"required"`   // RFC 3339
	Granularity int      `json:"granularity_minutes"`
}

// FreeBusy looks up busy intervals for a set of principals
func (h *Handler) FreeBusy(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req FreeBusyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start time"})
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end time"})
		return
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "End must be after start"})
		return
	}

	schedules, err := h.client.GetSchedule(c.Request.Context(), userID, req.Principals, start, end, req.Granularity)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

// MailFolders lists the caller's mail folders
func (h *Handler) MailFolders(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	folders, err := h.client.ListMailFolders(c.Request.Context(), userID)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

// Messages lists one page of messages in a folder
func (h *Handler) Messages(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	folderID := c.Query("folder_id")
	if folderID == "" {
		folderID = "inbox"
	}

	opt := graph.ListOptions{NextLink: c.Query("next_link")}
	page, err := h.client.ListMessages(c.Request.Context(), userID, folderID, opt)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// Mailboxes lists shared mailboxes; the response carries a source tag and
// may be fallback data during an outage
func (h *Handler) Mailboxes(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	result, err := h.client.ListSharedMailboxes(c.Request.Context(), userID)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UpstreamSites lists collaboration sites straight from the provider with
// fallback degradation, for the operator dashboard
func (h *Handler) UpstreamSites(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	opt := graph.ListOptions{NextLink: c.Query("next_link")}
	result, err := h.client.ListSitesOrFallback(c.Request.Context(), userID, opt)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Files lists one page of drive items
func (h *Handler) Files(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	opt := graph.ListOptions{NextLink: c.Query("next_link")}
	page, err := h.client.ListDriveItems(c.Request.Context(), userID, c.Query("folder_id"), opt)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// CreateFolderRequest describes a folder creation
type CreateFolderRequest struct {
	ParentID string `json:"parent_id"`
	Name     string `json:"name" binding:"required"`
}

// CreateFolder creates a drive folder
func (h *Handler) CreateFolder(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.client.CreateFolder(c.Request.Context(), userID, req.ParentID, req.Name)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// UploadFile uploads a small file into a drive folder
func (h *Handler) UploadFile(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter required"})
		return
	}

	content, err := c.GetRawData()
	if err != nil || len(content) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body required"})
		return
	}

	item, err := h.client.UploadFile(c.Request.Context(), userID, c.Query("folder_id"), name,
		c.ContentType(), content)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// DeleteFile deletes a drive item
func (h *Handler) DeleteFile(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	itemID := c.Param("id")
	if err := h.client.DeleteDriveItem(c.Request.Context(), userID, itemID); err != nil {
		respondUpstreamError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// NotifyRequest describes a notification mail
type NotifyRequest struct {
	To      []string `json:"to" binding:"required,min=1"`
	Subject string   `json:"subject" binding:"required"`
	Body    string   `json:"body" binding:"required"`
}

// Notify sends a notification mail as the caller
func (h *Handler) Notify(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.client.SendMail(c.Request.Context(), userID, graph.SendMailRequest{
		Subject: req.Subject,
		Body:    req.Body,
		To:      req.To,
	})
	if err != nil {
		respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Mail sent"})
}

// RegisterRoutes registers workspace routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/workspace/freebusy", h.FreeBusy)
	rg.GET("/workspace/mail/folders", h.MailFolders)
	rg.GET("/workspace/mail/messages", h.Messages)
	rg.GET("/workspace/mailboxes", h.Mailboxes)
	rg.GET("/workspace/upstream-sites", h.UpstreamSites)
	rg.GET("/workspace/files", h.Files)
	rg.POST("/workspace/files/folders", h.CreateFolder)
	rg.POST("/workspace/files/upload", h.UploadFile)
	rg.DELETE("/workspace/files/:id", h.DeleteFile)
	rg.POST("/workspace/notify", h.Notify)
}
